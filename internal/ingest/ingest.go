// Package ingest turns uploaded files into header-indexed tables of raw rows.
// Each format adapter only produces a Table; normalization happens in posts.
package ingest

import (
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// Format identifies an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatFeed Format = "feed"
	FormatHTML Format = "html"
)

var extFormats = map[string]Format{
	".csv":      FormatCSV,
	".json":     FormatJSON,
	".xlsx":     FormatXLSX,
	".xlsm":     FormatXLSX,
	".txt":      FormatText,
	".tsv":      FormatText,
	".md":       FormatText,
	".markdown": FormatText,
	".pdf":      FormatPDF,
	".rss":      FormatFeed,
	".atom":     FormatFeed,
	".xml":      FormatFeed,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

var mimeFormats = map[string]Format{
	"text/csv":                  FormatCSV,
	"application/csv":           FormatCSV,
	"application/json":          FormatJSON,
	"text/plain":                FormatText,
	"text/markdown":             FormatText,
	"text/tab-separated-values": FormatText,
	"application/pdf":           FormatPDF,
	"application/rss+xml":       FormatFeed,
	"application/atom+xml":      FormatFeed,
	"application/xml":           FormatFeed,
	"text/xml":                  FormatFeed,
	"text/html":                 FormatHTML,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatXLSX,
}

// AcceptedExtensions lists the file extensions DetectFormat accepts.
var AcceptedExtensions = []string{".csv", ".json", ".xlsx", ".txt", ".tsv", ".md", ".pdf", ".rss", ".atom", ".xml", ".html"}

// Table is a parsed input: a header and positional rows.
type Table struct {
	Header []string
	Rows   [][]string
	// Positional is set when the header was implied by the format
	// rather than read from the input.
	Positional bool
}

// Index builds the column index for the table.
func (t *Table) Index() posts.ColumnIndex {
	if t.Positional {
		return posts.PositionalIndex(posts.PositionalFields)
	}
	return posts.BuildColumnIndex(t.Header)
}

// DetectFormat picks a format from the file extension, falling back to the
// MIME type. Unknown types are rejected before any parsing.
func DetectFormat(filename, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if f, ok := mimeFormats[mt]; ok {
				return f, nil
			}
		}
	}
	return "", &posts.UnsupportedFormatError{Ext: ext, Accepted: AcceptedExtensions}
}

// Options configure the format adapters.
type Options struct {
	// HashtagDelimiter joins array-valued hashtag fields so the normalizer can
	// split them again.
	HashtagDelimiter string
}

// Parse decodes data in the given format into a Table. It fails with
// posts.ErrEmptyInput, posts.ErrMissingHeader or a *posts.ParseError.
func Parse(format Format, data []byte, opts Options) (*Table, error) {
	if opts.HashtagDelimiter == "" {
		opts.HashtagDelimiter = posts.DefaultHashtagDelimiter
	}

	var (
		t   *Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = parseCSV(data)
	case FormatJSON:
		t, err = parseJSON(data, opts.HashtagDelimiter)
	case FormatXLSX:
		t, err = parseXLSX(data)
	case FormatText:
		t, err = parseText(string(data))
	case FormatPDF:
		t, err = parsePDF(data)
	case FormatFeed:
		t, err = parseFeed(data, opts.HashtagDelimiter)
	case FormatHTML:
		t, err = parseHTML(data)
	default:
		return nil, &posts.UnsupportedFormatError{Ext: string(format), Accepted: AcceptedExtensions}
	}
	if err != nil {
		return nil, err
	}

	if !t.Positional {
		if err := checkHeader(t.Header); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// structuralFields are the columns a real header names at least one of.
// Aliases such as "text" double as cell values, so matching only those is
// not enough to tell a header from a data row.
var structuralFields = []posts.Field{posts.FieldType, posts.FieldLikes, posts.FieldShares, posts.FieldComments}

var valueDateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "02.01.2006", time.RFC3339}

// checkHeader rejects a first row that is data rather than column names.
func checkHeader(header []string) error {
	idx := posts.BuildColumnIndex(header)
	if !slices.ContainsFunc(structuralFields, idx.Has) {
		return fmt.Errorf("%w: %s", posts.ErrMissingHeader, strings.Join(header, ","))
	}
	for _, cell := range header {
		if looksLikeValue(cell) {
			return fmt.Errorf("%w: first row holds the value %q", posts.ErrMissingHeader, cell)
		}
	}
	return nil
}

func looksLikeValue(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false
	}
	num := strings.ReplaceAll(strings.TrimSuffix(cell, "%"), ",", "")
	if _, err := strconv.ParseFloat(num, 64); err == nil {
		return true
	}
	for _, layout := range valueDateLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return true
		}
	}
	return false
}
