// canvas.go - The render target: an RGBA bitmap with an origin-clean flag. Drawing a
// non CORS-clean image clears the flag and read-back then fails.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/layout"
)

// ErrTainted is returned by ReadBack once a non CORS-clean image has been drawn.
var ErrTainted = errors.New("canvas is tainted by cross-origin data")

// Canvas is not safe for concurrent use; the compositor serializes access.
type Canvas struct {
	img         *image.RGBA
	originClean bool
}

// NewCanvas allocates a transparent, origin-clean canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		originClean: true,
	}
}

// Bounds of the bitmap.
func (cv *Canvas) Bounds() image.Rectangle { return cv.img.Bounds() }

// OriginClean reports whether every drawn image was CORS-clean.
func (cv *Canvas) OriginClean() bool { return cv.originClean }

// Clear fills the canvas with c and starts a fresh, origin-clean bitmap.
func (cv *Canvas) Clear(c color.Color) {
	draw.Draw(cv.img, cv.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	cv.originClean = true
}

// Context returns a gg drawing context over the bitmap.
func (cv *Canvas) Context() *gg.Context {
	return gg.NewContextForRGBA(cv.img)
}

// ReadBack copies the pixels out. It fails with ErrTainted when the canvas is not
// origin-clean.
func (cv *Canvas) ReadBack() (*image.RGBA, error) {
	if !cv.originClean {
		return nil, ErrTainted
	}
	return cv.Snapshot(), nil
}

// Snapshot copies the pixels for display regardless of taint.
func (cv *Canvas) Snapshot() *image.RGBA {
	out := image.NewRGBA(cv.img.Bounds())
	copy(out.Pix, cv.img.Pix)
	return out
}

// DrawBorder stretches img over the whole canvas at the given alpha.
func (cv *Canvas) DrawBorder(img *asset.Image, alpha float64) error {
	b := cv.img.Bounds()
	return cv.DrawRegion(img, layout.Region{Rect: b, Shape: layout.ShapeBand, Alpha: alpha})
}

// DrawRegion stretches img into r.Rect and clips it to r.Shape.
func (cv *Canvas) DrawRegion(img *asset.Image, r layout.Region) error {
	if img == nil || img.Image == nil {
		return fmt.Errorf("draw %s: no image", r.Shape)
	}
	w, h := r.Rect.Dx(), r.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	scaled := imaging.Resize(img.Image, w, h, imaging.Linear)

	dc := cv.Context()
	switch r.Shape {
	case layout.ShapeCircle:
		cx := float64(r.Rect.Min.X) + float64(w)/2
		cy := float64(r.Rect.Min.Y) + float64(h)/2
		dc.DrawCircle(cx, cy, float64(min(w, h))/2)
		dc.Clip()
	case layout.ShapeRoundedRect:
		dc.DrawRoundedRectangle(float64(r.Rect.Min.X), float64(r.Rect.Min.Y), float64(w), float64(h), r.Radius)
		dc.Clip()
	}
	if r.Alpha > 0 && r.Alpha < 1 {
		if err := dc.SetMask(uniformMask(cv.img.Bounds(), r.Alpha)); err != nil {
			return fmt.Errorf("draw %s: %w", r.Shape, err)
		}
	}
	dc.DrawImage(scaled, r.Rect.Min.X, r.Rect.Min.Y)

	if !img.Clean {
		cv.originClean = false
	}
	return nil
}

func uniformMask(b image.Rectangle, alpha float64) *image.Alpha {
	m := image.NewAlpha(b)
	a := uint8(math.Round(alpha * 255))
	for i := range m.Pix {
		m.Pix[i] = a
	}
	return m
}
