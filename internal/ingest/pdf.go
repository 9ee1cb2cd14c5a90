package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// parsePDF extracts plain text from a PDF and applies the text rules to it.
func parsePDF(data []byte) (t *Table, err error) {
	if len(data) == 0 {
		return nil, posts.ErrEmptyInput
	}

	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, &posts.ParseError{Format: string(FormatPDF), Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatPDF), Err: err}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatPDF), Err: fmt.Errorf("extracting text: %w", err)}
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatPDF), Err: fmt.Errorf("reading text: %w", err)}
	}

	return parseText(string(text))
}
