package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Parse turns raw file bytes into an ordered header list and a sequence of
// row records. The first non-empty line is the header; fully empty lines are
// skipped. The transform is pure: no store access, no mutation of the input.
func Parse(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Message: "file is empty"}
	}

	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, &ParseError{Line: csvErr.Line, Message: csvErr.Err.Error()}
		}
		return nil, &ParseError{Message: err.Error()}
	}

	// First non-empty record is the header row.
	headerLine := -1
	var headers []string
	for i, rec := range records {
		if isEmptyRow(rec) {
			continue
		}
		headers = cleanHeaders(rec)
		if isEmptyRow(headers) {
			return nil, &ParseError{Line: i + 1, Message: "header row has no usable column names"}
		}
		headerLine = i
		break
	}
	if headerLine < 0 {
		return nil, &ParseError{Message: "missing header row"}
	}

	table := &Table{Headers: headers}

	for i, rec := range records[headerLine+1:] {
		if isEmptyRow(rec) {
			continue
		}
		if len(rec) > len(headers) {
			return nil, &ParseError{
				Line:    headerLine + i + 2,
				Message: fmt.Sprintf("row has %d columns, header has %d", len(rec), len(headers)),
			}
		}
		row := make(RawRow, len(headers))
		for j, h := range headers {
			if j < len(rec) {
				row[h] = cleanCell(rec[j])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so the csv reader never chokes on a stray encoding.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cleanHeaders(rec []string) []string {
	out := make([]string, len(rec))
	for i, h := range rec {
		out[i] = cleanCell(h)
	}
	return out
}

// cleanCell trims whitespace, a UTF-8 BOM, and the ="..." wrapper some
// spreadsheet exports put around text cells.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
