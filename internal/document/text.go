package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/hyperifyio/scrapdoc/internal/tabletext"
)

// String renders the buffer as plain text. Tables are drawn as grids and
// images appear as "[image: name]" markers.
func (b *Buffer) String() string {
	var sb strings.Builder
	if t := strings.TrimSpace(b.Title); t != "" {
		sb.WriteString(t + "\n")
		if s := strings.TrimSpace(b.Subtitle); s != "" {
			sb.WriteString(s + "\n")
		}
		sb.WriteString("\n")
	}
	for _, blk := range b.blocks {
		var s string
		switch blk.Kind {
		case KindParagraph, KindSpacer:
			s = blk.Text
		case KindImage:
			if blk.Image != nil {
				s = fmt.Sprintf("[image: %s]", blk.Image.Name)
			}
		case KindTable:
			if blk.Table != nil {
				s = tabletext.Render(blk.Table.Model())
			}
		}
		sb.WriteString(s)
		if !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// WriteText writes the plain-text rendering of b to path.
func WriteText(b *Buffer, path string) error {
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}
