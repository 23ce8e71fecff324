package tabular

import (
	"strconv"
	"strings"
)

// Decode converts a raw delimited-text blob into an ordered record
// sequence. The first logical row is the header; every following row
// becomes a candidate record. Blobs with fewer than two logical rows
// yield an empty sequence, never an error.
func Decode(blob string, schema Schema) []Record {
	rows := SplitRows(blob)
	if len(rows) < 2 {
		return nil
	}

	delim := schema.delimiter()

	header := SplitFields(rows[0], delim)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		values := SplitFields(row, delim)

		// Pad short rows so every header name gets a value.
		// Never truncate: extra values beyond the header are ignored
		// positionally but rows are not rejected for them.
		for len(values) < len(header) {
			values = append(values, "")
		}

		rec := buildRecord(header, values, i, schema)

		if len(strings.TrimSpace(rec.Body(schema))) <= 1 {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// SplitRows segments a blob into logical rows, in original order.
// A newline inside a quoted span is literal content, so a single field
// may span multiple physical lines. Whitespace-only rows are dropped
// wherever they appear, not just at the end of the blob: an interior
// blank line contributes nothing, so the rows after it keep consecutive
// positions and the identifiers derived from them have no gaps.
//
// Quote tracking is a simple toggle flipped on every quote character,
// not open/close matching: a row containing an odd number of quotes
// desynchronizes span tracking for the remainder of the blob. This
// matches the historical behavior callers depend on.
func SplitRows(blob string) []string {
	blob = strings.ReplaceAll(blob, "\r\n", "\n")
	blob = strings.TrimRight(blob, " \t\n")

	var rows []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(blob); i++ {
		c := blob[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == '\n' && !inQuotes:
			rows = appendRow(rows, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return appendRow(rows, cur.String())
}

// appendRow appends row unless it is empty or whitespace-only.
func appendRow(rows []string, row string) []string {
	if strings.TrimSpace(row) == "" {
		return rows
	}
	return append(rows, row)
}

// SplitFields separates one row into its fields on an unquoted delimiter.
// Inside a quoted span a doubled quote emits one literal quote character
// and a lone quote closes the span. The final field is always emitted,
// and field whitespace is preserved.
func SplitFields(row string, delim byte) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(row); i++ {
		c := row[i]
		switch {
		case inQuotes && c == '"':
			if i+1 < len(row) && row[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = false
			}
		case !inQuotes && c == '"':
			inQuotes = true
		case !inQuotes && c == delim:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

// buildRecord assigns values under header names with type coercion and
// derives the record identifier.
func buildRecord(header, values []string, index int, schema Schema) Record {
	rec := Record{
		Index:  index,
		Fields: make(map[string]string, len(header)),
	}

	var author string
	for pos, name := range header {
		if name == "" {
			continue
		}
		v := values[pos]
		rec.Fields[name] = v

		switch schema.typeOf(name) {
		case FieldNumeric:
			if rec.Ints == nil {
				rec.Ints = make(map[string]int)
			}
			rec.Ints[name] = parseInt(v)
		case FieldFlag:
			if rec.Flags == nil {
				rec.Flags = make(map[string]bool)
			}
			rec.Flags[name] = strings.EqualFold(strings.TrimSpace(v), "true")
		}
		if strings.EqualFold(name, schema.Author) {
			author = v
		}
	}

	rec.ID = deriveID(author, index)
	return rec
}

// parseInt coerces a field to int, defaulting to 0 on failure.
func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// deriveID builds the synthetic record identifier from an author-like
// value plus the positional index, restricted to [A-Za-z0-9_-].
// The index suffix keeps identifiers unique within a batch even when
// several rows share an author.
func deriveID(author string, index int) string {
	stem := strings.TrimSpace(author)
	if stem == "" {
		stem = "post"
	}
	raw := stem + "-" + strconv.Itoa(index+1)

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-', c == '_':
			b.WriteByte(c)
		}
	}
	return b.String()
}
