package core

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/voxsheet/voxsheet/internal/tabular"
)

func testDetail(t *testing.T, s *Service) *BatchDetail {
	t.Helper()
	blob := "author,text,likes,verified\n" +
		"alice,\"a post, with commas\",3,true\n" +
		"bob,\"second \"\"quoted\"\" post\",0,false\n"
	records, _ := s.PreviewDecode(blob)
	if len(records) != 2 {
		t.Fatalf("fixture decoded %d records, want 2", len(records))
	}

	detail := &BatchDetail{
		Batch: Batch{
			ID:     "batch-1",
			Name:   "posts.csv",
			Header: []string{"author", "text", "likes", "verified"},
		},
	}
	for _, rec := range records {
		detail.Posts = append(detail.Posts, Post{Record: rec, Status: GenPending})
	}
	detail.Records = len(detail.Posts)
	return detail
}

func TestTranscriptCSVRoundTrip(t *testing.T) {
	s := testService(t, nil)
	detail := testDetail(t, s)

	out := s.TranscriptCSV(detail)

	// The export must re-decode to identical field values.
	decoded := tabular.Decode(out, s.Schema())
	if len(decoded) != len(detail.Posts) {
		t.Fatalf("re-decode yielded %d records, want %d", len(decoded), len(detail.Posts))
	}
	for i, rec := range decoded {
		orig := detail.Posts[i]
		if rec.Fields["id"] != orig.ID {
			t.Errorf("record %d id column = %q, want %q", i, rec.Fields["id"], orig.ID)
		}
		for name, want := range orig.Fields {
			if got := rec.Fields[name]; got != want {
				t.Errorf("record %d field %q = %q, want %q", i, name, got, want)
			}
		}
	}
}

func TestWriteArchiveContents(t *testing.T) {
	s := testService(t, nil)
	detail := testDetail(t, s)

	// One record has generated audio, the other does not.
	if _, err := s.store.Save(detail.ID, detail.Posts[0].ID, []byte("RIFFfake")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	detail.Posts[0].Status = GenDone

	var buf bytes.Buffer
	if err := s.writeArchive(context.Background(), &buf, detail); err != nil {
		t.Fatalf("writeArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}

	for _, want := range []string{
		"transcripts/" + detail.Posts[0].ID + ".txt",
		"transcripts/" + detail.Posts[1].ID + ".txt",
		"audio/" + detail.Posts[0].ID + ".wav",
		"manifest.csv",
	} {
		if !names[want] {
			t.Errorf("archive missing %q (has %v)", want, names)
		}
	}
	if names["audio/"+detail.Posts[1].ID+".wav"] {
		t.Error("archive contains audio for a record that was never generated")
	}

	// Transcript content is the record's body text.
	for _, f := range zr.File {
		if f.Name != "transcripts/"+detail.Posts[0].ID+".txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open transcript: %v", err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != "a post, with commas" {
			t.Errorf("transcript = %q", body)
		}
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{"strips csv suffix", Batch{Name: "posts.csv"}, "posts-audio.zip"},
		{"keeps other names", Batch{Name: "posts"}, "posts-audio.zip"},
		{"falls back to id", Batch{ID: "abc", Name: ""}, "abc-audio.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArchiveName(tt.batch); got != tt.want {
				t.Errorf("ArchiveName(%q) = %q, want %q", tt.batch.Name, got, tt.want)
			}
		})
	}
}

func TestArchiveExportsEvenWithoutAudio(t *testing.T) {
	s := testService(t, nil)
	detail := testDetail(t, s)

	var buf bytes.Buffer
	if err := s.writeArchive(context.Background(), &buf, detail); err != nil {
		t.Fatalf("writeArchive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	var hasManifest bool
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "audio/") {
			t.Errorf("unexpected audio entry %q", f.Name)
		}
		if f.Name == "manifest.csv" {
			hasManifest = true
		}
	}
	if !hasManifest {
		t.Error("manifest.csv missing from audio-less export")
	}
}
