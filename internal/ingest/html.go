package ingest

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// parseHTML reads the first <table> in the document. Header cells come from
// <th> elements, or from the first row when the table has none.
func parseHTML(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, posts.ErrEmptyInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatHTML), Err: err}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, posts.ErrMissingHeader
	}

	var header []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		ths := tr.ChildrenFiltered("th")
		if header == nil && ths.Length() > 0 {
			header = cellTexts(ths, true)
			return
		}
		cells := cellTexts(tr.ChildrenFiltered("td, th"), false)
		if isBlank(cells) {
			return
		}
		if header == nil {
			for i := range cells {
				cells[i] = strings.ToLower(cells[i])
			}
			header = cells
			return
		}
		rows = append(rows, cells)
	})

	if header == nil {
		return nil, posts.ErrEmptyInput
	}
	return &Table{Header: header, Rows: rows}, nil
}

func cellTexts(sel *goquery.Selection, lower bool) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, cell *goquery.Selection) {
		text := strings.Join(strings.Fields(cell.Text()), " ")
		if lower {
			text = strings.ToLower(text)
		}
		out = append(out, text)
	})
	return out
}

// plainText strips markup from an HTML fragment and collapses whitespace.
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") && !strings.Contains(fragment, "&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
