package tabular

import (
	"strings"
	"testing"
)

func TestEncodeQuoting(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"delimiter quoted", "a,b", `"a,b"`},
		{"quote doubled", `say "hi"`, `"say ""hi"""`},
		{"newline quoted", "one\ntwo", "\"one\ntwo\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			writeField(&b, tt.field, ',')
			if got := b.String(); got != tt.want {
				t.Errorf("writeField(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

// Round-trip: encoding a record sequence and re-decoding reproduces the
// original field values exactly, including fields containing delimiters,
// quotes, and embedded newlines.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	blob := "author,text,likes,verified\n" +
		"alice,\"a post, with commas\",3,true\n" +
		"bob,\"quoting \"\"things\"\" here\",0,false\n" +
		"carol,\"line one\nline two\",7,true\n"

	header := []string{"author", "text", "likes", "verified"}

	first := Decode(blob, postSchema)
	if len(first) != 3 {
		t.Fatalf("got %d records, want 3", len(first))
	}

	encoded := Encode(header, first, postSchema)
	second := Decode(encoded, postSchema)

	if len(second) != len(first) {
		t.Fatalf("re-decode yielded %d records, want %d", len(second), len(first))
	}
	for i := range first {
		for name, want := range first[i].Fields {
			if got := second[i].Fields[name]; got != want {
				t.Errorf("record %d field %q = %q, want %q", i, name, got, want)
			}
		}
		if second[i].ID != first[i].ID {
			t.Errorf("record %d ID = %q, want %q", i, second[i].ID, first[i].ID)
		}
	}
}
