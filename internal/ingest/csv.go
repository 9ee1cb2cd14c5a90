package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// parseCSV reads comma-separated text. The first non-blank line is the
// header; blank lines are dropped and short rows are kept as-is so missing
// trailing fields read as absent.
func parseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var header []string
	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &posts.ParseError{Format: string(FormatCSV), Err: err}
		}

		trimmed := trimFields(record)
		if isBlank(trimmed) {
			continue
		}
		if header == nil {
			for i := range trimmed {
				trimmed[i] = strings.ToLower(trimmed[i])
			}
			header = trimmed
			continue
		}
		rows = append(rows, trimmed)
	}

	if header == nil {
		return nil, posts.ErrEmptyInput
	}
	return &Table{Header: header, Rows: rows}, nil
}

func trimFields(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
