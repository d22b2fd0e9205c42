// Package document accumulates the blocks produced by a scrape run and writes
// them out as a PDF or a plain-text file.
package document

// Kind identifies the type of a Block.
type Kind int

const (
	KindParagraph Kind = iota
	KindImage
	KindTable
	// KindSpacer is the blank line placed after every image and table.
	KindSpacer
)

func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindImage:
		return "image"
	case KindTable:
		return "table"
	case KindSpacer:
		return "spacer"
	}
	return "unknown"
}

// Block is one unit of document content. Exactly one of Text, Image or Table
// is meaningful, depending on Kind.
type Block struct {
	Kind  Kind
	Text  string
	Image *Image
	Table *Table
}

// Image is an embedded picture, already re-encoded as PNG.
type Image struct {
	Name    string
	PNG     []byte
	WidthMM float64
}

// Buffer is the ordered content of one run. It is not safe for concurrent use;
// each run owns its own Buffer.
type Buffer struct {
	Title    string
	Subtitle string
	blocks   []Block
}

// NewBuffer returns an empty Buffer with the given heading lines.
func NewBuffer(title, subtitle string) *Buffer {
	return &Buffer{Title: title, Subtitle: subtitle}
}

// AddParagraph appends a paragraph block. Empty text is kept as a block.
func (b *Buffer) AddParagraph(text string) {
	b.blocks = append(b.blocks, Block{Kind: KindParagraph, Text: text})
}

// AddSpacer appends a blank-line block.
func (b *Buffer) AddSpacer() {
	b.blocks = append(b.blocks, Block{Kind: KindSpacer, Text: "\n"})
}

// AddImage appends a PNG image displayed at widthMM.
func (b *Buffer) AddImage(name string, png []byte, widthMM float64) {
	b.blocks = append(b.blocks, Block{Kind: KindImage, Image: &Image{Name: name, PNG: png, WidthMM: widthMM}})
}

// AddTable appends a table with one blank header row of cols cells and
// returns it for filling.
func (b *Buffer) AddTable(cols int) *Table {
	t := NewTable(cols)
	b.blocks = append(b.blocks, Block{Kind: KindTable, Table: t})
	return t
}

// Blocks returns the blocks in insertion order. The slice is a copy.
func (b *Buffer) Blocks() []Block {
	out := make([]Block, len(b.blocks))
	copy(out, b.blocks)
	return out
}

// Len returns the number of blocks.
func (b *Buffer) Len() int { return len(b.blocks) }

// Count returns how many blocks of kind k the buffer holds.
func (b *Buffer) Count(k Kind) int {
	n := 0
	for _, blk := range b.blocks {
		if blk.Kind == k {
			n++
		}
	}
	return n
}
