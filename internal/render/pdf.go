package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/consentio/consentio/internal/domain/consentform"
	"github.com/consentio/consentio/internal/domain/template"
)

const (
	lineHeight    = 5.0
	headerLineH   = 4.5
	cellPadding   = 2.0
	marginMM      = 19.0 // 0.75 in
	footerLineH   = 3.5
	headingColorR = 0x2C
	headingColorG = 0x52
	headingColorB = 0x82
)

// Renderer produces the archival PDF for a filled consent form. It is
// stateless across calls and safe for concurrent use.
type Renderer struct {
	builder *Builder
}

func NewRenderer(builder *Builder) *Renderer {
	return &Renderer{builder: builder}
}

func (r *Renderer) Render(content template.TemplateContent, form *consentform.FilledForm) ([]byte, error) {
	blocks := r.builder.Build(content, form)

	w := newWriter()
	for _, b := range blocks {
		w.write(b)
	}

	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writer walks the block sequence and draws it. Page breaks inside flowing
// text are fpdf's auto page break; tables, callouts and images check their
// own height and break before drawing so a box never straddles a page edge.
type writer struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	left     float64
	usable   float64
	breakAt  float64
	imageSeq int
}

func newWriter() *writer {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()

	return &writer{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		left:    left,
		usable:  pageW - left - right,
		breakAt: pageH - bottom,
	}
}

func (w *writer) write(b Block) {
	switch b.Kind {
	case KindHeader:
		w.writeHeader(b.Header)
	case KindTitle:
		w.pdf.SetFont("Helvetica", "B", 16)
		w.pdf.SetTextColor(headingColorR, headingColorG, headingColorB)
		w.pdf.MultiCell(w.usable, 7, w.tr(b.Text), "", "C", false)
	case KindHeading:
		w.pdf.Ln(2)
		w.pdf.SetFont("Helvetica", "B", 12)
		w.pdf.SetTextColor(headingColorR, headingColorG, headingColorB)
		w.pdf.MultiCell(w.usable, 6, w.tr(b.Text), "", "L", false)
		w.pdf.Ln(1)
	case KindParagraph:
		style := ""
		if b.Bold {
			style = "B"
		}
		w.pdf.SetFont("Helvetica", style, 10)
		w.pdf.SetTextColor(0, 0, 0)
		w.pdf.MultiCell(w.usable, lineHeight, w.tr(b.Text), "", "L", false)
	case KindListItem:
		w.pdf.SetFont("Helvetica", "", 10)
		w.pdf.SetTextColor(0, 0, 0)
		w.pdf.SetX(w.left + 7)
		w.pdf.MultiCell(w.usable-7, lineHeight, w.tr(b.Text), "", "L", false)
	case KindTable:
		w.writeTable(b.Table)
	case KindCallout:
		w.writeCallout(b.Callout)
	case KindImage:
		w.writeImage(b.Image)
	case KindSpacer:
		w.pdf.Ln(b.Height)
	case KindFooter:
		w.writeFooter(b.Footer)
	}
}

func (w *writer) writeHeader(h *Header) {
	y0 := w.pdf.GetY()
	x := w.left
	bottomY := y0

	if len(h.Logo) > 0 {
		name := w.registerImage(h.Logo)
		w.pdf.ImageOptions(name, x, y0, logoSizeMM, logoSizeMM, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		x += logoSizeMM + 5
		bottomY = y0 + logoSizeMM
	}

	metaWidth := 60.0
	hospWidth := w.left + w.usable - metaWidth - x

	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetXY(x, y0)
	for i, line := range h.Hospital {
		style := ""
		if i == 0 {
			style = "B"
		}
		w.pdf.SetFont("Helvetica", style, 10)
		w.pdf.SetX(x)
		w.pdf.MultiCell(hospWidth, headerLineH, w.tr(line), "", "L", false)
	}
	if y := w.pdf.GetY(); y > bottomY {
		bottomY = y
	}

	metaX := w.left + w.usable - metaWidth
	w.pdf.SetXY(metaX, y0)
	w.pdf.SetFont("Helvetica", "", 10)
	for _, line := range h.Meta {
		w.pdf.SetX(metaX)
		w.pdf.MultiCell(metaWidth, headerLineH, w.tr(line), "", "R", false)
	}
	if y := w.pdf.GetY(); y > bottomY {
		bottomY = y
	}

	w.pdf.SetXY(w.left, bottomY)
}

func (w *writer) writeTable(t *Table) {
	widths := w.columnWidths(t.Widths)

	if len(t.Header) > 0 {
		w.pdf.SetFont("Helvetica", "B", 10)
		h := w.rowHeight(t.Header, widths)
		w.breakBefore(h)

		w.pdf.SetFillColor(0x4A, 0x90, 0xE2)
		w.pdf.SetTextColor(255, 255, 255)
		w.drawRow(t.Header, widths, h, true)
	}

	w.pdf.SetTextColor(0, 0, 0)
	for _, row := range t.Rows {
		w.pdf.SetFont("Helvetica", "", 10)
		h := w.rowHeight(row, widths)
		w.breakBefore(h)

		x := w.left
		y := w.pdf.GetY()
		for i, cell := range row {
			w.pdf.SetDrawColor(0xE0, 0xE0, 0xE0)
			if t.LabelColumn && i == 0 {
				w.pdf.SetFillColor(0xF5, 0xF5, 0xF5)
				w.pdf.Rect(x, y, widths[i], h, "FD")
				w.pdf.SetFont("Helvetica", "B", 10)
			} else {
				w.pdf.Rect(x, y, widths[i], h, "D")
				w.pdf.SetFont("Helvetica", "", 10)
			}
			w.pdf.SetXY(x+cellPadding, y+cellPadding)
			w.pdf.MultiCell(widths[i]-2*cellPadding, lineHeight, w.tr(cell), "", "L", false)
			x += widths[i]
		}
		w.pdf.SetXY(w.left, y+h)
	}
}

func (w *writer) drawRow(cells []string, widths []float64, h float64, fill bool) {
	x := w.left
	y := w.pdf.GetY()
	for i, cell := range cells {
		w.pdf.SetDrawColor(0xE0, 0xE0, 0xE0)
		style := "D"
		if fill {
			style = "FD"
		}
		w.pdf.Rect(x, y, widths[i], h, style)
		w.pdf.SetXY(x+cellPadding, y+cellPadding)
		w.pdf.MultiCell(widths[i]-2*cellPadding, lineHeight, w.tr(cell), "", "L", false)
		x += widths[i]
	}
	w.pdf.SetXY(w.left, y+h)
}

func (w *writer) columnWidths(relative []float64) []float64 {
	var total float64
	for _, r := range relative {
		total += r
	}
	widths := make([]float64, len(relative))
	for i, r := range relative {
		widths[i] = w.usable * r / total
	}
	return widths
}

func (w *writer) rowHeight(cells []string, widths []float64) float64 {
	maxLines := 1
	for i, cell := range cells {
		lines := w.lineCount(w.tr(cell), widths[i]-2*cellPadding)
		if lines > maxLines {
			maxLines = lines
		}
	}
	return float64(maxLines)*lineHeight + 2*cellPadding
}

// lineCount reports how many lines MultiCell will need for already-translated
// text in the current font. The translated string is cp1252, which is not
// valid UTF-8 once accents are involved, so measuring must stay byte-based:
// GetStringWidth sums per-byte widths for the core fonts, while SplitText
// decodes runes and would index its width table out of range.
func (w *writer) lineCount(s string, width float64) int {
	lines := 0
	for _, para := range strings.Split(s, "\n") {
		lines += w.wrappedLines(para, width)
	}
	if lines == 0 {
		lines = 1
	}
	return lines
}

func (w *writer) wrappedLines(s string, width float64) int {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 1
	}

	lines := 1
	line := ""
	for _, word := range words {
		if line == "" {
			line = word
		} else if w.pdf.GetStringWidth(line+" "+word) <= width {
			line += " " + word
			continue
		} else {
			lines++
			line = word
		}
		// A word wider than the column gets force-broken mid-word.
		for w.pdf.GetStringWidth(line) > width && len(line) > 1 {
			cut := len(line) - 1
			for cut > 1 && w.pdf.GetStringWidth(line[:cut]) > width {
				cut--
			}
			line = line[cut:]
			lines++
		}
	}
	return lines
}

func (w *writer) breakBefore(h float64) {
	if w.pdf.GetY()+h > w.breakAt {
		w.pdf.AddPage()
	}
}

func (w *writer) writeCallout(c *Callout) {
	r, g, b := 0xE5, 0x3E, 0x3E
	if c.Accepted {
		r, g, b = 0x38, 0xA1, 0x69
	}

	w.pdf.SetFont("Helvetica", "B", 11)
	text := w.tr(c.Text)
	h := float64(w.lineCount(text, w.usable-2*cellPadding))*lineHeight + 2*cellPadding
	w.breakBefore(h)

	y := w.pdf.GetY()
	w.pdf.SetDrawColor(r, g, b)
	w.pdf.SetTextColor(r, g, b)
	w.pdf.Rect(w.left, y, w.usable, h, "D")
	w.pdf.SetXY(w.left+cellPadding, y+cellPadding)
	w.pdf.MultiCell(w.usable-2*cellPadding, lineHeight, text, "", "L", false)
	w.pdf.SetXY(w.left, y+h)
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *writer) writeImage(img *Image) {
	w.breakBefore(img.Height + 2)

	name := w.registerImage(img.PNG)
	w.pdf.ImageOptions(name, w.left, w.pdf.GetY(), img.Width, img.Height, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	w.pdf.SetY(w.pdf.GetY() + img.Height + 2)
}

func (w *writer) registerImage(png []byte) string {
	w.imageSeq++
	name := fmt.Sprintf("img-%d", w.imageSeq)
	w.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	return name
}

func (w *writer) writeFooter(f *Footer) {
	w.pdf.SetFont("Helvetica", "", 8)
	w.pdf.SetTextColor(0x66, 0x66, 0x66)
	for _, line := range f.Lines {
		w.pdf.MultiCell(w.usable, footerLineH, w.tr(line), "", "C", false)
	}
	w.pdf.SetTextColor(0, 0, 0)
}
