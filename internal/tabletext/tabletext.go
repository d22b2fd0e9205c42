// Package tabletext renders tables as aligned plain-text grids:
//
//	+--------+-------+
//	| Name   |   Age |
//	+========+=======+
//	| Alice  |    30 |
//	+--------+-------+
//	| Bob    |     4 |
//	+--------+-------+
//
// Numeric columns are right-aligned, everything else left-aligned. Cells may
// span several lines. Width is measured in terminal columns, so East Asian
// wide characters count as two.
package tabletext

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// headerPadding is the extra room a header column gets beyond its text.
const headerPadding = 2

// Model is the plain data of one table. Rows may be ragged.
type Model struct {
	Headers []string
	Rows    [][]string
}

// Columns returns the number of columns the grid will have.
func (m Model) Columns() int {
	n := len(m.Headers)
	for _, r := range m.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Render formats m as a grid. A model with no columns renders as "".
// When there are fewer headers than columns, the headers are shifted to the
// right-most columns.
func Render(m Model) string {
	ncols := m.Columns()
	if ncols == 0 {
		return ""
	}

	var headers []string
	if len(m.Headers) > 0 {
		headers = make([]string, ncols)
		copy(headers[ncols-len(m.Headers):], m.Headers)
	}
	rows := make([][]string, len(m.Rows))
	for i, r := range m.Rows {
		rows[i] = make([]string, ncols)
		copy(rows[i], r)
	}

	numeric := make([]bool, ncols)
	widths := make([]int, ncols)
	for c := 0; c < ncols; c++ {
		numeric[c] = isNumericColumn(rows, c)
		if headers != nil {
			widths[c] = maxLineWidth(headers[c]) + headerPadding
		}
		for _, r := range rows {
			if w := maxLineWidth(r[c]); w > widths[c] {
				widths[c] = w
			}
		}
	}

	var b strings.Builder
	writeRule(&b, widths, '-')
	if headers != nil {
		b.WriteByte('\n')
		writeRow(&b, headers, widths, numeric)
		b.WriteByte('\n')
		writeRule(&b, widths, '=')
	}
	for _, r := range rows {
		b.WriteByte('\n')
		writeRow(&b, r, widths, numeric)
		b.WriteByte('\n')
		writeRule(&b, widths, '-')
	}
	return b.String()
}

func writeRule(b *strings.Builder, widths []int, fill byte) {
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat(string(fill), w+2))
		b.WriteByte('+')
	}
}

func writeRow(b *strings.Builder, cells []string, widths []int, rightAlign []bool) {
	lines := make([][]string, len(cells))
	height := 1
	for i, c := range cells {
		lines[i] = splitLines(c)
		if len(lines[i]) > height {
			height = len(lines[i])
		}
	}
	for l := 0; l < height; l++ {
		if l > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('|')
		for i := range cells {
			text := ""
			if l < len(lines[i]) {
				text = lines[i][l]
			}
			b.WriteByte(' ')
			b.WriteString(pad(text, widths[i], rightAlign[i]))
			b.WriteString(" |")
		}
	}
}

func pad(s string, w int, right bool) string {
	gap := w - DisplayWidth(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func maxLineWidth(s string) int {
	max := 0
	for _, l := range splitLines(s) {
		if w := DisplayWidth(l); w > max {
			max = w
		}
	}
	return max
}

// DisplayWidth returns the number of terminal columns s occupies.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r), unicode.Is(unicode.Me, r), r == '\u200b':
		case isWide(r):
			n += 2
		default:
			n++
		}
	}
	return n
}

func isWide(r rune) bool {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}

// isNumericColumn reports whether every non-empty cell in column c parses as
// a number and at least one cell is non-empty.
func isNumericColumn(rows [][]string, c int) bool {
	seen := false
	for _, r := range rows {
		v := strings.TrimSpace(r[c])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}
