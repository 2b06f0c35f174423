// pdf.go - Single-page PDF with the canvas stretched over the whole page.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"codeberg.org/go-pdf/fpdf"
)

// PageSize names a PDF page format.
type PageSize string

const (
	PageA4     PageSize = "a4"
	PageLetter PageSize = "letter"
)

// ParsePageSize accepts "a4" or "letter" in any case. Empty means A4.
func ParsePageSize(s string) (PageSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a4":
		return PageA4, nil
	case "letter":
		return PageLetter, nil
	default:
		return "", fmt.Errorf("unsupported page size %q: use a4 or letter", s)
	}
}

func (p PageSize) fpdfSize() string {
	if p == PageLetter {
		return "Letter"
	}
	return "A4"
}

// writePDF embeds img as a PNG filling the page edge to edge. The aspect ratio is not
// preserved.
func writePDF(w io.Writer, img image.Image, page PageSize) error {
	var enc bytes.Buffer
	if err := png.Encode(&enc, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}

	pdf := fpdf.New("P", "pt", page.fpdfSize(), "")
	pdf.SetCreator("GoBiodata", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", opts, &enc)
	pw, ph := pdf.GetPageSize()
	pdf.ImageOptions("canvas", 0, 0, pw, ph, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write PDF: %w", err)
	}
	return nil
}
