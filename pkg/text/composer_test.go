package text

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xob0t/GoBiodata/pkg/template"
)

func newComposer(t *testing.T) (*Composer, *template.FontRegistry) {
	t.Helper()
	reg := template.NewFontRegistry()
	t.Cleanup(func() { reg.Close() })
	return NewComposer(reg, template.CanvasWidth), reg
}

func block(origin image.Point, anchor template.Align) Block {
	return Block{
		Origin:     origin,
		Anchor:     anchor,
		LineHeight: 56,
		AutoFit:    true,
		Family:     template.FamilySerif,
	}
}

func TestWrapKeepsLongWordWhole(t *testing.T) {
	_, reg := newComposer(t)
	face, err := reg.Face(template.FamilySans, 24)
	require.NoError(t, err)

	long := strings.Repeat("W", 40)
	lines := Wrap(face, "a "+long+" b", 100)

	require.Equal(t, []string{"a", long, "b"}, lines)
	assert.Equal(t, []string{""}, Wrap(face, "   ", 100))
	assert.Equal(t, []string{""}, Wrap(face, "", 100))
}

func TestWrapLinesFitAndAreIdempotent(t *testing.T) {
	_, reg := newComposer(t)
	face, err := reg.Face(template.FamilySerif, 24)
	require.NoError(t, err)

	text := "Software engineer at a mid sized firm, fond of classical music and long walks"
	lines := Wrap(face, text, 220)
	require.Greater(t, len(lines), 1)

	for _, l := range lines {
		assert.LessOrEqual(t, Measure(face, l), 220.0, l)
		assert.Equal(t, []string{l}, Wrap(face, l, 220), "rewrapping a wrapped line must not change it")
	}
	assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(lines, " "))
}

func TestFitSizeRespectsWidthAndFloor(t *testing.T) {
	c, reg := newComposer(t)

	size, err := c.FitSize(template.FamilySerif, "Ananya Sharma", 28, 1000)
	require.NoError(t, err)
	assert.Equal(t, 28, size)

	size, err = c.FitSize(template.FamilySerif, "Ananya Sharma Venkataraman Iyer", 28, 200)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, size, MinValueSize)
	assert.Less(t, size, 28)
	face, err := reg.Face(template.FamilySerif, size)
	require.NoError(t, err)
	if size > MinValueSize {
		assert.LessOrEqual(t, Measure(face, "Ananya Sharma Venkataraman Iyer"), 200.0)
	}

	size, err = c.FitSize(template.FamilySerif, strings.Repeat("x", 500), 27, 50)
	require.NoError(t, err)
	assert.Equal(t, MinValueSize, size)

	size, err = c.FitSize(template.FamilySerif, strings.Repeat("x", 500), 8, 50)
	require.NoError(t, err)
	assert.Equal(t, 8, size)
}

func TestComposeRowCenters(t *testing.T) {
	c, _ := newComposer(t)
	fields := template.DefaultFields()
	fields[0].Value = "Ananya"

	origins := []image.Point{{60, 420}, {60 + 120 + 30, 140}, {60, 281}}
	for _, origin := range origins {
		rows, err := c.Compose(fields, block(origin, template.AlignCenter))
		require.NoError(t, err)
		require.Len(t, rows, len(fields))
		for i, row := range rows {
			want := float64(origin.Y) + float64(i)*56 + 28
			assert.Equal(t, want, row.YCenter)
			assert.Equal(t, want, row.Label.Y)
			assert.Equal(t, fields[i].ID, row.FieldID)
		}
	}
}

func TestComposeAvailableWidthPerAlignment(t *testing.T) {
	c, reg := newComposer(t)
	face, err := reg.Face(template.FamilySerif, 18)
	require.NoError(t, err)
	labelW := Measure(face, "Email:")

	f := template.DefaultFields()[1]
	f.Value = "someone@example.com"

	f.Align = template.AlignLeft
	rows, err := c.Compose([]template.Field{f}, block(image.Pt(60, 0), ""))
	require.NoError(t, err)
	assert.InDelta(t, 794-60-(labelW+Gap)-60, rows[0].MaxWidth, 1e-9)
	assert.Equal(t, 60.0, rows[0].Label.X)
	assert.InDelta(t, 60+labelW+Gap, rows[0].Lines[0].X, 1e-9)

	f.Align = template.AlignRight
	rows, err = c.Compose([]template.Field{f}, block(image.Pt(60, 0), ""))
	require.NoError(t, err)
	assert.InDelta(t, 794-120-labelW-Gap, rows[0].MaxWidth, 1e-9)
	line := rows[0].Lines[0]
	assert.InDelta(t, 794-60, line.X+line.Width, 1e-9)
	assert.InDelta(t, line.X-Gap, rows[0].Label.X+labelW, 1e-9)

	f.Align = template.AlignCenter
	rows, err = c.Compose([]template.Field{f}, block(image.Pt(60, 0), ""))
	require.NoError(t, err)
	assert.InDelta(t, 794-120-Gap-20, rows[0].MaxWidth, 1e-9)
	line = rows[0].Lines[0]
	assert.InDelta(t, 397, (rows[0].Label.X+line.X+line.Width)/2, 1)
}

func TestComposeEmptyAlignUsesAnchor(t *testing.T) {
	c, _ := newComposer(t)
	f := template.Field{ID: 1, Label: "Age", Value: "29", LabelSize: 18, ValueSize: 24}

	rows, err := c.Compose([]template.Field{f}, block(image.Pt(210, 140), template.AlignLeft))
	require.NoError(t, err)
	assert.Equal(t, template.AlignLeft, rows[0].Align)
	assert.Equal(t, 210.0, rows[0].Label.X)
}

func TestAutoFitValueNeverExceedsAvailableWidth(t *testing.T) {
	c, reg := newComposer(t)
	values := []string{
		"Ananya",
		"A very long name that must wrap across two lines",
		"Software engineer at a multinational firm based out of Bengaluru, Karnataka",
	}
	for _, align := range []template.Align{template.AlignLeft, template.AlignCenter, template.AlignRight} {
		for _, v := range values {
			f := template.Field{ID: 1, Label: "Name", Value: v, LabelSize: 20, ValueSize: 28, Align: align}
			rows, err := c.Compose([]template.Field{f}, block(image.Pt(60, 420), ""))
			require.NoError(t, err)
			row := rows[0]
			face, err := reg.Face(template.FamilySerif, row.ValueSize)
			require.NoError(t, err)
			if row.ValueSize > MinValueSize {
				assert.LessOrEqual(t, Measure(face, v), row.MaxWidth, "%s/%s", align, v)
			}
			for _, l := range row.Lines {
				assert.LessOrEqual(t, l.Width, row.MaxWidth)
			}
		}
	}
}

func TestLongCenteredNameScenario(t *testing.T) {
	c, _ := newComposer(t)
	f := template.Field{ID: 1, Label: "Name", Value: "A very long name that must wrap across two lines", LabelSize: 20, ValueSize: 28, Align: template.AlignCenter}

	// Auto-fit shrinks the unwrapped value until it fits, so nothing is left to wrap:
	// two steps down from 28 the whole name sits on one line.
	rows, err := c.Compose([]template.Field{f}, block(image.Pt(60, 420), template.AlignCenter))
	require.NoError(t, err)
	row := rows[0]
	assert.Equal(t, 24, row.ValueSize)
	require.Len(t, row.Lines, 1)
	assert.LessOrEqual(t, row.Lines[0].Width, row.MaxWidth)

	// With auto-fit off and a narrower column the value wraps onto several lines,
	// centered as a block around the row middle.
	f.ValueSize = 40
	b := block(image.Pt(160, 420), template.AlignCenter)
	b.AutoFit = false
	rows, err = c.Compose([]template.Field{f}, b)
	require.NoError(t, err)
	row = rows[0]
	require.GreaterOrEqual(t, len(row.Lines), 2)
	assert.Equal(t, 40, row.ValueSize)
	lineH := 48.0
	assert.Equal(t, row.YCenter-float64(int((float64(len(row.Lines)-1)*lineH)/2)), row.Lines[0].Y)
	for i := 1; i < len(row.Lines); i++ {
		assert.Equal(t, lineH, row.Lines[i].Y-row.Lines[i-1].Y)
		assert.LessOrEqual(t, row.Lines[i].Width, row.MaxWidth)
	}
}

func TestDrawPaintsText(t *testing.T) {
	c, _ := newComposer(t)
	fields := []template.Field{{ID: 1, Label: "Name", Value: "Ananya", LabelSize: 20, ValueSize: 28, Color: "#000000", Align: template.AlignLeft}}
	rows, err := c.Compose(fields, block(image.Pt(60, 0), ""))
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, template.CanvasWidth, 100))
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(color.White)
	dc.Clear()
	require.NoError(t, c.Draw(dc, rows))

	dark := 0
	for y := 0; y < 100; y++ {
		for x := 60; x < 300; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x4000 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 50)
}
