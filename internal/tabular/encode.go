package tabular

import "strings"

// Encode renders records back to delimited text under the given header
// order. Fields containing the delimiter, a quote, or a newline are
// wrapped in quotes with embedded quotes doubled, so decoding the output
// reproduces the original field values exactly.
func Encode(header []string, records []Record, schema Schema) string {
	delim := schema.delimiter()

	var b strings.Builder
	writeRow(&b, header, delim)
	for _, rec := range records {
		b.WriteByte('\n')
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = rec.Fields[name]
		}
		writeRow(&b, row, delim)
	}
	return b.String()
}

func writeRow(b *strings.Builder, fields []string, delim byte) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(delim)
		}
		writeField(b, f, delim)
	}
}

func writeField(b *strings.Builder, f string, delim byte) {
	if !strings.ContainsAny(f, string(delim)+"\"\n\r") {
		b.WriteString(f)
		return
	}
	b.WriteByte('"')
	for i := 0; i < len(f); i++ {
		if f[i] == '"' {
			b.WriteByte('"')
		}
		b.WriteByte(f[i])
	}
	b.WriteByte('"')
}
