package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	fontFamily   = "Helvetica"
	bodySize     = 11.0
	lineHeight   = 5.0
	cellLine     = 6.0
	cellPadding  = 1.0
	spacerHeight = 5.0
)

// WritePDF renders b as an A4 PDF and writes it to path, replacing any
// existing file.
func WritePDF(b *Buffer, path string) error {
	pdf := renderPDF(b)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// EncodePDF renders b as a PDF into w.
func EncodePDF(b *Buffer, w io.Writer) error {
	pdf := renderPDF(b)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}

func renderPDF(b *Buffer) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(b.Title, true)
	pdf.SetCreator("scrapdoc", true)
	pdf.AddPage()

	if t := strings.TrimSpace(b.Title); t != "" {
		pdf.SetFont(fontFamily, "B", 16)
		pdf.MultiCell(0, 8, tr(t), "", "L", false)
	}
	if s := strings.TrimSpace(b.Subtitle); s != "" {
		pdf.SetFont(fontFamily, "I", 10)
		pdf.MultiCell(0, lineHeight, tr(s), "", "L", false)
		pdf.Ln(spacerHeight)
	}
	pdf.SetFont(fontFamily, "", bodySize)

	for i, blk := range b.blocks {
		switch blk.Kind {
		case KindParagraph:
			text := strings.TrimRight(blk.Text, "\n")
			if strings.TrimSpace(text) == "" {
				pdf.Ln(lineHeight)
				continue
			}
			pdf.MultiCell(0, lineHeight, tr(text), "", "L", false)
		case KindSpacer:
			pdf.Ln(spacerHeight)
		case KindImage:
			placeImage(pdf, i, blk.Image)
		case KindTable:
			drawTable(pdf, tr, blk.Table)
		}
	}
	return pdf
}

func placeImage(pdf *gofpdf.Fpdf, index int, img *Image) {
	if img == nil || len(img.PNG) == 0 {
		return
	}
	name := fmt.Sprintf("img%d-%s", index, img.Name)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.PNG))
	left, _, _, _ := pdf.GetMargins()
	pdf.ImageOptions(name, left, 0, img.WidthMM, 0, true, opts, 0, "")
}

// drawTable lays out t as a bordered grid with equal column widths. Rows
// that do not fit on the current page move to the next one.
func drawTable(pdf *gofpdf.Fpdf, tr func(string) string, t *Table) {
	if t == nil || t.Cols() == 0 {
		return
	}
	left, _, right, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()
	colW := (pageW - left - right) / float64(t.Cols())

	drawRow := func(cells []string, header bool) {
		style := ""
		if header {
			style = "B"
			pdf.SetFillColor(230, 230, 230)
		}
		pdf.SetFont(fontFamily, style, bodySize-1)
		wrapped := make([][]string, len(cells))
		lines := 1
		for i, c := range cells {
			wrapped[i] = wrapText(pdf, tr(c), colW-2*cellPadding)
			if len(wrapped[i]) > lines {
				lines = len(wrapped[i])
			}
		}
		rowH := float64(lines) * cellLine
		y := pdf.GetY()
		if y+rowH > pageH-bottom {
			pdf.AddPage()
			y = pdf.GetY()
		}
		for i := range cells {
			x := left + float64(i)*colW
			if header {
				pdf.Rect(x, y, colW, rowH, "FD")
			} else {
				pdf.Rect(x, y, colW, rowH, "D")
			}
			for j, line := range wrapped[i] {
				pdf.SetXY(x+cellPadding, y+float64(j)*cellLine)
				pdf.CellFormat(colW-2*cellPadding, cellLine, line, "", 0, "L", false, 0, "")
			}
		}
		pdf.SetXY(left, y+rowH)
	}

	drawRow(t.header, true)
	for _, r := range t.rows {
		drawRow(r, false)
	}
	pdf.SetFont(fontFamily, "", bodySize)
}

// wrapText breaks s into lines no wider than w using the current font. s must
// already be in the font's code page. Words longer than a line are split.
func wrapText(pdf *gofpdf.Fpdf, s string, w float64) []string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for pdf.GetStringWidth(word) > w && len(word) > 1 {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				n := fitPrefix(pdf, word, w)
				out = append(out, word[:n])
				word = word[n:]
			}
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if pdf.GetStringWidth(candidate) <= w {
				line = candidate
				continue
			}
			out = append(out, line)
			line = word
		}
		out = append(out, line)
	}
	// Drop trailing blank lines produced by a trailing newline.
	for len(out) > 1 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// fitPrefix returns the longest byte prefix length of s that fits in w, at
// least one.
func fitPrefix(pdf *gofpdf.Fpdf, s string, w float64) int {
	n := 1
	for n < len(s) && pdf.GetStringWidth(s[:n+1]) <= w {
		n++
	}
	return n
}
