package posts

import "strings"

// Field is a canonical post field name.
type Field string

const (
	FieldID                 Field = "id"
	FieldType               Field = "type"
	FieldContent            Field = "content"
	FieldLikes              Field = "likes"
	FieldShares             Field = "shares"
	FieldComments           Field = "comments"
	FieldDate               Field = "date"
	FieldViews              Field = "views"
	FieldSaves              Field = "saves"
	FieldEngagementRate     Field = "engagementRate"
	FieldHashtags           Field = "hashtags"
	FieldContentLength      Field = "contentLength"
	FieldPlatform           Field = "platform"
	FieldSentiment          Field = "sentimentScore"
	FieldPeakEngagementTime Field = "peakEngagementTime"
	FieldURL                Field = "url"
)

// PositionalFields is the implicit column order of tab-delimited text input.
var PositionalFields = []Field{
	FieldType, FieldContent, FieldLikes, FieldShares, FieldComments,
	FieldDate, FieldViews, FieldSaves, FieldEngagementRate, FieldHashtags,
}

// headerAliases maps a squashed header (lower-case, no separators) to a field.
var headerAliases = map[string]Field{
	"id":                 FieldID,
	"postid":             FieldID,
	"type":               FieldType,
	"posttype":           FieldType,
	"mediatype":          FieldType,
	"format":             FieldType,
	"content":            FieldContent,
	"text":               FieldContent,
	"caption":            FieldContent,
	"likes":              FieldLikes,
	"like":               FieldLikes,
	"shares":             FieldShares,
	"share":              FieldShares,
	"comments":           FieldComments,
	"comment":            FieldComments,
	"date":               FieldDate,
	"postdate":           FieldDate,
	"published":          FieldDate,
	"views":              FieldViews,
	"impressions":        FieldViews,
	"saves":              FieldSaves,
	"engagementrate":     FieldEngagementRate,
	"userengagementrate": FieldEngagementRate,
	"engagement":         FieldEngagementRate,
	"hashtags":           FieldHashtags,
	"tags":               FieldHashtags,
	"contentlength":      FieldContentLength,
	"platform":           FieldPlatform,
	"sentimentscore":     FieldSentiment,
	"sentiment":          FieldSentiment,
	"peakengagementtime": FieldPeakEngagementTime,
	"url":                FieldURL,
	"link":               FieldURL,
	"permalink":          FieldURL,
}

// ColumnIndex maps canonical fields to column positions. It is built once
// per input and never mutated afterwards.
type ColumnIndex struct {
	pos map[Field]int
}

// BuildColumnIndex resolves header names (case-insensitive, separator
// agnostic) to canonical fields. The first column matching a field wins.
func BuildColumnIndex(header []string) ColumnIndex {
	pos := make(map[Field]int, len(header))
	for i, h := range header {
		f, ok := headerAliases[squash(h)]
		if !ok {
			continue
		}
		if _, seen := pos[f]; !seen {
			pos[f] = i
		}
	}
	return ColumnIndex{pos: pos}
}

// PositionalIndex returns an index for fields laid out in the given order.
func PositionalIndex(fields []Field) ColumnIndex {
	pos := make(map[Field]int, len(fields))
	for i, f := range fields {
		pos[f] = i
	}
	return ColumnIndex{pos: pos}
}

// Len returns the number of resolved fields.
func (ci ColumnIndex) Len() int {
	return len(ci.pos)
}

// Has reports whether the field was resolved.
func (ci ColumnIndex) Has(f Field) bool {
	_, ok := ci.pos[f]
	return ok
}

// Lookup returns the trimmed value for f in row. Missing columns and short
// rows report ok=false.
func (ci ColumnIndex) Lookup(row []string, f Field) (string, bool) {
	i, ok := ci.pos[f]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

func squash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '.', '\t':
			return -1
		}
		return r
	}, strings.TrimPrefix(h, "\ufeff"))
}
