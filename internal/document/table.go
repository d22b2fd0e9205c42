package document

import "github.com/hyperifyio/scrapdoc/internal/tabletext"

// Table is a document-native table. The column count is fixed when the table
// is created; cells are addressed by index and writes outside the columns are
// dropped, so ragged source rows are truncated or left with blank cells.
type Table struct {
	cols   int
	header []string
	rows   [][]string
}

// NewTable returns a table with one blank header row of cols cells.
func NewTable(cols int) *Table {
	if cols < 0 {
		cols = 0
	}
	return &Table{cols: cols, header: make([]string, cols)}
}

// Cols returns the fixed column count.
func (t *Table) Cols() int { return t.cols }

// SetHeader sets header cell i. Out of range indexes are ignored.
func (t *Table) SetHeader(i int, text string) {
	if i >= 0 && i < t.cols {
		t.header[i] = text
	}
}

// AddRow appends a blank data row and returns its index.
func (t *Table) AddRow() int {
	t.rows = append(t.rows, make([]string, t.cols))
	return len(t.rows) - 1
}

// SetCell sets data cell (row, col). Out of range indexes are ignored.
func (t *Table) SetCell(row, col int, text string) {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= t.cols {
		return
	}
	t.rows[row][col] = text
}

// Header returns a copy of the header row.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Rows returns a copy of the data rows.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Model converts the table to its plain-text form.
func (t *Table) Model() tabletext.Model {
	return tabletext.Model{Headers: t.Header(), Rows: t.Rows()}
}
