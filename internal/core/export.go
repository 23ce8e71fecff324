package core

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/voxsheet/voxsheet/internal/tabular"
)

// WriteArchive streams a zip archive for the batch to w: one WAV per
// generated record, one .txt transcript per record, and a manifest.csv
// reproducing the decoded fields. Batches with no generated audio still
// yield transcripts and a manifest.
func (s *Service) WriteArchive(ctx context.Context, w io.Writer, batchID string) error {
	detail, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	return s.writeArchive(ctx, w, detail)
}

func (s *Service) writeArchive(ctx context.Context, w io.Writer, detail *BatchDetail) error {
	zw := zip.NewWriter(w)
	schema := s.Schema()

	for _, post := range detail.Posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tw, err := zw.Create("transcripts/" + post.ID + ".txt")
		if err != nil {
			return fmt.Errorf("create transcript entry: %w", err)
		}
		if _, err := io.WriteString(tw, post.Body(schema)); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}

		if post.Status != GenDone {
			continue
		}
		data, err := s.store.Load(detail.ID, post.ID)
		if err != nil {
			// Audio marked done but missing on disk; skip rather than
			// abort the whole archive.
			continue
		}
		aw, err := zw.Create("audio/" + post.ID + ".wav")
		if err != nil {
			return fmt.Errorf("create audio entry: %w", err)
		}
		if _, err := aw.Write(data); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}

	mw, err := zw.Create("manifest.csv")
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := io.WriteString(mw, s.TranscriptCSV(detail)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return zw.Close()
}

// TranscriptCSV renders a batch back to delimited text with an id column
// prepended, using the same quoting rules the decoder understands, so the
// export re-decodes to identical field values.
func (s *Service) TranscriptCSV(detail *BatchDetail) string {
	header := append([]string{"id"}, detail.Header...)

	records := make([]tabular.Record, len(detail.Posts))
	for i, post := range detail.Posts {
		fields := make(map[string]string, len(post.Fields)+1)
		for k, v := range post.Fields {
			fields[k] = v
		}
		fields["id"] = post.ID
		records[i] = tabular.Record{ID: post.ID, Index: post.Index, Fields: fields}
	}

	return tabular.Encode(header, records, s.Schema()) + "\n"
}

// ArchiveName returns the download filename for a batch archive.
func ArchiveName(batch Batch) string {
	base := strings.TrimSuffix(batch.Name, ".csv")
	if base == "" {
		base = batch.ID
	}
	return base + "-audio.zip"
}
