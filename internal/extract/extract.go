// Package extract converts matched HTML elements into document blocks.
package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/scrapdoc/internal/scrape"
	"github.com/hyperifyio/scrapdoc/internal/tabletext"
)

// LineSeparator ends every paragraph segment and rendered text table.
const LineSeparator = "\n"

// Paragraphs appends the text of every matching element, each followed by a
// line separator, as a single paragraph block. The block is appended even
// when nothing matches.
type Paragraphs struct{}

func (Paragraphs) Extract(_ context.Context, t Target, container *goquery.Selection, tag string) (Result, error) {
	var b strings.Builder
	scrape.FindAll(container, tag).Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
		b.WriteString(LineSeparator)
	})
	text := b.String()
	t.Buffer.AddParagraph(text)
	return Result{Tag: tag, Text: text, Done: true}, nil
}

// NativeTables appends each matching table as a document-native table
// followed by a spacer. Tables without rows are skipped.
type NativeTables struct{}

func (NativeTables) Extract(_ context.Context, t Target, container *goquery.Selection, tag string) (Result, error) {
	scrape.FindAll(container, tag).Each(func(_ int, s *goquery.Selection) {
		m, ok := collectTable(s)
		if !ok {
			return
		}
		tbl := t.Buffer.AddTable(len(m.Headers))
		for i, h := range m.Headers {
			tbl.SetHeader(i, h)
		}
		for _, cells := range m.Rows {
			row := tbl.AddRow()
			for col, text := range cells {
				tbl.SetCell(row, col, text)
			}
		}
		t.Buffer.AddSpacer()
	})
	return Result{Tag: tag, Done: true}, nil
}

// TextTables renders each matching table as a plain-text grid. All grids are
// joined into one paragraph block, each followed by a line separator.
type TextTables struct{}

func (TextTables) Extract(_ context.Context, t Target, container *goquery.Selection, tag string) (Result, error) {
	var b strings.Builder
	scrape.FindAll(container, tag).Each(func(_ int, s *goquery.Selection) {
		m, ok := collectTable(s)
		if !ok {
			return
		}
		b.WriteString(tabletext.Render(m))
		b.WriteString(LineSeparator)
	})
	text := b.String()
	t.Buffer.AddParagraph(text)
	return Result{Tag: tag, Text: text, Done: true}, nil
}

// collectTable reads headers from the th cells of the first row and data from
// the td cells of every later row. It reports false when the table has no
// rows at all.
func collectTable(table *goquery.Selection) (tabletext.Model, bool) {
	rows := scrape.FindAll(table, "tr")
	if rows.Length() == 0 {
		return tabletext.Model{}, false
	}
	m := tabletext.Model{Headers: cellTexts(rows.First(), "th")}
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		m.Rows = append(m.Rows, cellTexts(tr, "td"))
	})
	return m, true
}

func cellTexts(row *goquery.Selection, cell string) []string {
	var out []string
	scrape.FindAll(row, cell).Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}
