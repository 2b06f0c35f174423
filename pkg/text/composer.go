// composer.go - Field text composition: measuring, auto-fit sizing, word wrapping and
// alignment of label/value rows. Compose is pure geometry; Draw paints the result.
package text

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/xob0t/GoBiodata/pkg/template"
)

const (
	// Gap separates a label from its value.
	Gap = 10
	// MinValueSize is the auto-fit floor.
	MinValueSize = 10
	// SizeStep is the auto-fit decrement.
	SizeStep = 2

	centerSlack      = 20
	valueLineSpacing = 1.2
	defaultLabelSize = 20
	defaultValueSize = 28
)

// FaceSource hands out faces by family and pixel size.
type FaceSource interface {
	Face(family string, size int) (font.Face, error)
}

// Block positions the field block on the canvas.
type Block struct {
	Origin     image.Point    // Origin.X doubles as the horizontal padding
	Anchor     template.Align // used by fields without an explicit align
	LineHeight int
	AutoFit    bool
	Family     string
}

// Span is one drawn string. X is the left edge; Y is the vertical middle.
type Span struct {
	Text  string
	X, Y  float64
	Width float64
}

// Row is the composed geometry of one field.
type Row struct {
	FieldID   int
	Align     template.Align
	Color     string
	Family    string
	YCenter   float64
	MaxWidth  float64
	LabelSize int
	ValueSize int
	Label     Span
	Lines     []Span
}

// Composer lays out field rows for a canvas of fixed width.
type Composer struct {
	faces FaceSource
	width float64
}

// NewComposer creates a composer for a canvas canvasWidth pixels wide.
func NewComposer(faces FaceSource, canvasWidth int) *Composer {
	return &Composer{faces: faces, width: float64(canvasWidth)}
}

// Compose computes one row per field, in sequence order.
func (c *Composer) Compose(fields []template.Field, b Block) ([]Row, error) {
	rows := make([]Row, 0, len(fields))
	for i, f := range fields {
		row, err := c.composeField(i, f, b)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", f.ID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RowCenter is the vertical middle of the row at index.
func RowCenter(originY, index, lineHeight int) float64 {
	lh := float64(lineHeight)
	return float64(originY) + float64(index)*lh + math.Round(lh/2)
}

func (c *Composer) composeField(index int, f template.Field, b Block) (Row, error) {
	labelSize := f.LabelSize
	if labelSize <= 0 {
		labelSize = defaultLabelSize
	}
	valueSize := f.ValueSize
	if valueSize <= 0 {
		valueSize = defaultValueSize
	}
	align := f.Align
	if !align.Valid() {
		align = b.Anchor
	}
	if !align.Valid() {
		align = template.AlignCenter
	}

	padX := float64(b.Origin.X)
	yCenter := RowCenter(b.Origin.Y, index, b.LineHeight)
	labelText := f.Label + ":"

	labelFace, err := c.faces.Face(b.Family, labelSize)
	if err != nil {
		return Row{}, err
	}
	labelW := Measure(labelFace, labelText)

	var maxW float64
	switch align {
	case template.AlignLeft:
		maxW = c.width - padX - (labelW + Gap) - padX
	case template.AlignRight:
		maxW = c.width - 2*padX - labelW - Gap
	default:
		maxW = c.width - 2*padX - Gap - centerSlack
	}

	if b.AutoFit {
		if valueSize, err = c.FitSize(b.Family, f.Value, valueSize, maxW); err != nil {
			return Row{}, err
		}
	}

	valueFace, err := c.faces.Face(b.Family, valueSize)
	if err != nil {
		return Row{}, err
	}
	wrapped := Wrap(valueFace, f.Value, maxW)

	lineH := math.Round(float64(valueSize) * valueLineSpacing)
	y := yCenter - math.Floor(float64(len(wrapped)-1)*lineH/2)

	lines := make([]Span, len(wrapped))
	widest := 0.0
	for i, l := range wrapped {
		w := Measure(valueFace, l)
		lines[i] = Span{Text: l, Y: y + float64(i)*lineH, Width: w}
		widest = max(widest, w)
	}

	label := Span{Text: labelText, Y: yCenter, Width: labelW}
	switch align {
	case template.AlignLeft:
		label.X = padX
		for i := range lines {
			lines[i].X = padX + labelW + Gap
		}
	case template.AlignRight:
		valueX := c.width - padX
		for i := range lines {
			lines[i].X = valueX - lines[i].Width
		}
		label.X = valueX - (lines[0].Width + Gap) - labelW
	default:
		total := labelW + Gap + widest
		startX := math.Round(c.width/2 - total/2)
		label.X = startX
		blockX := startX + labelW + Gap
		for i := range lines {
			lines[i].X = blockX + math.Round((widest-lines[i].Width)/2)
		}
	}

	return Row{
		FieldID:   f.ID,
		Align:     align,
		Color:     f.Color,
		Family:    b.Family,
		YCenter:   yCenter,
		MaxWidth:  maxW,
		LabelSize: labelSize,
		ValueSize: valueSize,
		Label:     label,
		Lines:     lines,
	}, nil
}

// FitSize shrinks size in steps of SizeStep until value fits maxWidth unwrapped or the
// MinValueSize floor is reached. Sizes already at or below the floor are returned as is.
func (c *Composer) FitSize(family, value string, size int, maxWidth float64) (int, error) {
	for size > MinValueSize {
		face, err := c.faces.Face(family, size)
		if err != nil {
			return 0, err
		}
		if Measure(face, value) <= maxWidth {
			break
		}
		size = max(size-SizeStep, MinValueSize)
	}
	return size, nil
}

// Draw paints rows onto dc with each label and value line vertically centered on its Y.
func (c *Composer) Draw(dc *gg.Context, rows []Row) error {
	for _, row := range rows {
		dc.SetColor(template.ParseColorOr(row.Color, template.DefaultTextColor))

		labelFace, err := c.faces.Face(row.Family, row.LabelSize)
		if err != nil {
			return err
		}
		dc.SetFontFace(labelFace)
		dc.DrawStringAnchored(row.Label.Text, row.Label.X, row.Label.Y, 0, 0.5)

		valueFace, err := c.faces.Face(row.Family, row.ValueSize)
		if err != nil {
			return err
		}
		dc.SetFontFace(valueFace)
		for _, l := range row.Lines {
			if l.Text == "" {
				continue
			}
			dc.DrawStringAnchored(l.Text, l.X, l.Y, 0, 0.5)
		}
	}
	return nil
}

// Measure returns the advance width of s in fractional pixels.
func Measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

// Wrap breaks text on whitespace into lines no wider than maxWidth. A word wider than
// maxWidth gets a line of its own and is never split. Empty text yields one empty line.
func Wrap(face font.Face, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	for _, word := range words {
		test := word
		if line != "" {
			test = line + " " + word
		}
		if Measure(face, test) <= maxWidth {
			line = test
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
