package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// parseXLSX reads the first sheet of a workbook. The first non-empty row is
// the header.
func parseXLSX(data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, posts.ErrEmptyInput
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatXLSX), Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &posts.ParseError{Format: string(FormatXLSX), Err: fmt.Errorf("workbook has no sheets")}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatXLSX), Err: fmt.Errorf("reading sheet %q: %w", sheets[0], err)}
	}

	var header []string
	var rows [][]string
	for _, record := range records {
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
