package render

// Kind identifies the layout role of a block. The section builders emit a
// flat block sequence; the PDF writer flows it across pages.
type Kind int

const (
	KindHeader Kind = iota
	KindTitle
	KindHeading
	KindParagraph
	KindListItem
	KindTable
	KindCallout
	KindImage
	KindSpacer
	KindFooter
)

// Block is one layout unit of the rendered document. Exactly the fields for
// its Kind are set; the rest stay zero.
type Block struct {
	Kind    Kind
	Text    string
	Bold    bool
	Table   *Table
	Callout *Callout
	Image   *Image
	Header  *Header
	Footer  *Footer
	Height  float64 // spacer height in mm
}

// Table is a bordered grid. Cells hold already-formatted text; the writer
// only wraps and draws.
type Table struct {
	Header      []string // optional colored header row
	Rows        [][]string
	Widths      []float64 // relative column widths, one per column
	LabelColumn bool      // shade the first column
}

// Callout is the accept/reject decision box. Accepted picks the green
// variant, otherwise red.
type Callout struct {
	Text     string
	Accepted bool
}

// Image is an embedded raster image, always PNG by the time it reaches the
// writer.
type Image struct {
	PNG     []byte
	Width   float64 // mm
	Height  float64 // mm
	Caption string
}

// Header is the institution/metadata banner at the top of the document.
// Logo is optional; with it the banner lays out three columns, without it
// two.
type Header struct {
	Logo     []byte // PNG
	Hospital []string
	Meta     []string
}

// Footer is the closing compliance block: contact line, legal boilerplate
// and the generation timestamp, all centered in small grey type.
type Footer struct {
	Lines []string
}

func heading(text string) Block   { return Block{Kind: KindHeading, Text: text} }
func paragraph(text string) Block { return Block{Kind: KindParagraph, Text: text} }
func boldParagraph(text string) Block {
	return Block{Kind: KindParagraph, Text: text, Bold: true}
}
func listItem(text string) Block { return Block{Kind: KindListItem, Text: text} }
func spacer(mm float64) Block    { return Block{Kind: KindSpacer, Height: mm} }
