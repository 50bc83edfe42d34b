package export

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 30.0
	pdfRowHeight  = 20.0
	pdfCellPad    = 5.0
	pdfTitle      = "Chatbot Data Export"
	pdfTitleSize  = 16.0
	pdfHeaderSize = 12.0
	pdfBodySize   = 10.0
)

// PDF renders an A4 grid: a centered title, a bold header row and one
// fixed-height row per record, breaking pages at the bottom margin.
//
// FontDir, when set, must hold DejaVuSans.ttf and DejaVuSans-Bold.ttf; they
// give full UTF-8 coverage. Without it the core Helvetica font is used and
// text outside cp1252 is replaced.
type PDF struct {
	FontDir string
}

func (PDF) Format() string          { return "pdf" }
func (PDF) ContentType() string     { return "application/pdf" }
func (PDF) DefaultFilename() string { return "chatbot_data.pdf" }

func (p PDF) Render(w io.Writer, t Table) error {
	doc, err := p.layout(t)
	if err != nil {
		return err
	}
	return doc.Output(w)
}

func (p PDF) layout(t Table) (*fpdf.Fpdf, error) {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(false, pdfMargin)

	family := "Helvetica"
	tr := doc.UnicodeTranslatorFromDescriptor("")
	if p.FontDir != "" {
		family = "DejaVu"
		doc.AddUTF8Font(family, "", filepath.Join(p.FontDir, "DejaVuSans.ttf"))
		doc.AddUTF8Font(family, "B", filepath.Join(p.FontDir, "DejaVuSans-Bold.ttf"))
		tr = func(s string) string { return s }
	}
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	doc.AddPage()
	pageW, pageH := doc.GetPageSize()
	usable := pageW - 2*pdfMargin
	bottom := pageH - pdfMargin

	doc.SetFont(family, "B", pdfTitleSize)
	doc.SetXY(pdfMargin, pdfMargin)
	doc.CellFormat(usable, pdfTitleSize+4, tr(pdfTitle), "", 0, "C", false, 0, "")
	y := pdfMargin + pdfTitleSize + 4 + 1.5*pdfTitleSize

	if len(t.Columns) == 0 {
		return doc, doc.Error()
	}
	colW := usable / float64(len(t.Columns))
	cell := func(text string, x, y float64, header bool) {
		doc.Rect(x, y, colW, pdfRowHeight, "D")
		if header {
			doc.SetFont(family, "B", pdfHeaderSize)
		} else {
			doc.SetFont(family, "", pdfBodySize)
		}
		inner := colW - 2*pdfCellPad
		doc.SetXY(x+pdfCellPad, y)
		doc.CellFormat(inner, pdfRowHeight, fitText(doc, tr(text), inner), "", 0, "LM", false, 0, "")
	}

	for i, col := range t.Columns {
		cell(col, pdfMargin+float64(i)*colW, y, true)
	}
	y += pdfRowHeight
	for _, row := range t.Rows {
		for i, v := range row {
			cell(cellText(v), pdfMargin+float64(i)*colW, y, false)
		}
		y += pdfRowHeight
		if y+pdfRowHeight > bottom {
			doc.AddPage()
			y = pdfMargin
		}
	}
	return doc, doc.Error()
}

// fitText shortens s with an ellipsis until it fits width at the current font.
func fitText(doc *fpdf.Fpdf, s string, width float64) string {
	if width <= 0 || doc.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		if cand := string(r) + "..."; doc.GetStringWidth(cand) <= width {
			return cand
		}
	}
	return ""
}
