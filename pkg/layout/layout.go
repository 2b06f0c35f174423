// Package layout computes where the gods image, the user photo and the field block go
// on the canvas for each layout variant. Every variant is a pure function of the
// canvas size and the document configuration.
package layout

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/xob0t/GoBiodata/pkg/template"
)

// PadX is the horizontal page margin shared by all variants.
const PadX = 60

// Alpha of the layout3 cover band.
const BandAlpha = 0.95

// ErrUserImageNotAllowed is returned when a without-image template carries a user photo.
var ErrUserImageNotAllowed = errors.New("template does not allow a user image")

// Shape says how an image region is clipped.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeRoundedRect
	ShapeBand
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeRoundedRect:
		return "rounded-rect"
	case ShapeBand:
		return "band"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Region is an image placement. The source image is stretched to Rect and clipped
// by Shape; Radius is the corner radius for rounded rects.
type Region struct {
	Rect   image.Rectangle
	Shape  Shape
	Radius float64
	Alpha  float64
}

// Placement is the result of a layout computation.
type Placement struct {
	Gods       *Region // nil when no gods image is configured
	User       *Region // nil when no user image is configured
	TextOrigin image.Point
	TextAnchor template.Align
}

// Variant is one geometric arrangement of the canvas.
type Variant interface {
	ID() template.LayoutID
	Place(size image.Point, cfg template.LayoutConfig) Placement
}

var variants = map[template.LayoutID]Variant{
	template.Layout1: photoTop{},
	template.Layout2: photoLeft{},
	template.Layout3: textOverPhoto{},
}

// For returns the variant for id. Unknown ids resolve to layout1.
func For(id template.LayoutID) Variant {
	if v, ok := variants[id]; ok {
		return v
	}
	return variants[template.Layout1]
}

// Compute checks the template invariants and places the document on a canvas of the
// given size.
func Compute(size image.Point, doc *template.Document) (Placement, error) {
	if doc.Config.UserImage != "" && !doc.Template.Type.AllowsUserImage() {
		return Placement{}, ErrUserImageNotAllowed
	}
	return For(doc.Config.Layout).Place(size, doc.Config), nil
}

// ── Shared geometry ──

func godsRadius(cfg template.LayoutConfig) int {
	if cfg.GodsSize > 0 {
		return cfg.GodsSize
	}
	return 90
}

func circleAt(cx, cy, r int) *Region {
	return &Region{
		Rect:  image.Rect(cx-r, cy-r, cx+r, cy+r),
		Shape: ShapeCircle,
		Alpha: 1,
	}
}

// anchorUser places a size×size square at one of the named anchors. ok is false for
// unknown positions so the variant can apply its own default.
func anchorUser(size image.Point, pos template.UserImagePosition, s int) (image.Point, bool) {
	w, h := size.X, size.Y
	switch pos {
	case template.UserTopLeft:
		return image.Pt(PadX, 40), true
	case template.UserTopRight:
		return image.Pt(w-PadX-s, 40), true
	case template.UserBottomRight:
		return image.Pt(w-PadX-s, h-PadX-s), true
	case template.UserBottomLeft:
		return image.Pt(PadX, h-PadX-s), true
	case template.UserCenter:
		return image.Pt(roundHalf(float64(w-s)/2), roundHalf(float64(h-s)/2)), true
	}
	return image.Point{}, false
}

func userRegion(at image.Point, s int, radius float64) *Region {
	return &Region{
		Rect:   image.Rectangle{Min: at, Max: at.Add(image.Pt(s, s))},
		Shape:  ShapeRoundedRect,
		Radius: radius,
		Alpha:  1,
	}
}

func userSize(cfg template.LayoutConfig, fallback int) int {
	if cfg.UserImageSize > 0 {
		return cfg.UserImageSize
	}
	return fallback
}

// roundHalf rounds half up, matching canvas coordinate rounding.
func roundHalf(v float64) int {
	return int(math.Floor(v + 0.5))
}
