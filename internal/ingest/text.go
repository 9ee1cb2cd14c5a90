package ingest

import (
	"strings"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// parseText reads tab-delimited lines with the implicit column order
// posts.PositionalFields. A first line that names at least three known
// columns is used as an explicit header instead. Markdown headings and
// fenced-code markers are skipped.
func parseText(text string) (*Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines [][]string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "```") {
			continue
		}
		lines = append(lines, trimFields(strings.Split(strings.TrimRight(line, "\r"), "\t")))
	}
	if len(lines) == 0 {
		return nil, posts.ErrEmptyInput
	}

	if posts.BuildColumnIndex(lines[0]).Len() >= 3 {
		header := lines[0]
		for i := range header {
			header[i] = strings.ToLower(header[i])
		}
		return &Table{Header: header, Rows: lines[1:]}, nil
	}

	header := make([]string, len(posts.PositionalFields))
	for i, f := range posts.PositionalFields {
		header[i] = string(f)
	}
	return &Table{Header: header, Rows: lines, Positional: true}, nil
}
