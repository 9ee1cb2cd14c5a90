package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// wrapperKeys are object keys searched for a nested record array when the
// JSON root is an object rather than an array.
var wrapperKeys = []string{"posts", "data", "items", "records"}

// parseJSON reads a root array of objects, a single object, or an object
// wrapping an array under one of wrapperKeys. Keys become the header.
func parseJSON(data []byte, delim string) (*Table, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil, posts.ErrEmptyInput
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, &posts.ParseError{Format: string(FormatJSON), Err: err}
	}

	records, err := jsonRecords(root)
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatJSON), Err: err}
	}
	if len(records) == 0 {
		return nil, posts.ErrEmptyInput
	}

	keySet := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keySet))
	for k := range keySet {
		header = append(header, k)
	}
	sort.Strings(header)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, k := range header {
			if v, ok := rec[k]; ok {
				row[i] = stringify(v, delim)
			}
		}
		rows = append(rows, row)
	}

	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(h)
	}
	return &Table{Header: lower, Rows: rows}, nil
}

func jsonRecords(root any) ([]map[string]any, error) {
	switch v := root.(type) {
	case []any:
		return objectsOf(v)
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := v[key].([]any); ok {
				return objectsOf(arr)
			}
		}
		return []map[string]any{v}, nil
	}
	return nil, fmt.Errorf("expected an object or an array of objects, got %T", root)
}

func objectsOf(arr []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not an object", i, item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func stringify(v any, delim string) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringify(item, delim); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, delim)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
