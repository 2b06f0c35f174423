package layout

import (
	"image"

	"github.com/xob0t/GoBiodata/pkg/template"
)

// photoTop is layout1: a centered gods circle near the top or bottom, text below.
type photoTop struct{}

func (photoTop) ID() template.LayoutID { return template.Layout1 }

func (photoTop) Place(size image.Point, cfg template.LayoutConfig) Placement {
	r := godsRadius(cfg)
	cx := size.X / 2
	cy := 140
	if cfg.GodsPosition == template.GodsBottom {
		cy = size.Y - 140
	}

	p := Placement{
		TextOrigin: image.Pt(PadX, 420),
		TextAnchor: template.AlignCenter,
	}
	if cfg.GodsImage != "" {
		p.Gods = circleAt(cx, cy, r)
	}
	if cfg.UserImage != "" {
		s := userSize(cfg, 80)
		at, ok := anchorUser(size, cfg.UserImagePosition, s)
		if !ok {
			at = image.Pt(size.X-PadX-s, cy-s/2)
		}
		p.User = userRegion(at, s, 12)
	}
	return p
}

// photoLeft is layout2: the gods circle on the left, left-aligned text to its right.
type photoLeft struct{}

func (photoLeft) ID() template.LayoutID { return template.Layout2 }

func (photoLeft) Place(size image.Point, cfg template.LayoutConfig) Placement {
	r := godsRadius(cfg)
	cx := PadX + r
	cy := 160
	if cfg.GodsPosition == template.GodsBottom {
		cy = size.Y - 220
	}

	p := Placement{
		TextOrigin: image.Pt(PadX+2*r+30, 140),
		TextAnchor: template.AlignLeft,
	}
	if cfg.GodsImage != "" {
		p.Gods = circleAt(cx, cy, r)
	}
	if cfg.UserImage != "" {
		s := userSize(cfg, 76)
		at, ok := anchorUser(size, cfg.UserImagePosition, s)
		if !ok {
			at = image.Pt(PadX+6, cy+r+12)
		}
		p.User = userRegion(at, s, 10)
	}
	return p
}

// textOverPhoto is layout3: the photo as a translucent band over the top half with the
// text block starting at a quarter of the height.
type textOverPhoto struct{}

func (textOverPhoto) ID() template.LayoutID { return template.Layout3 }

func (textOverPhoto) Place(size image.Point, cfg template.LayoutConfig) Placement {
	p := Placement{
		TextOrigin: image.Pt(PadX, roundHalf(float64(size.Y)*0.25)),
		TextAnchor: template.AlignCenter,
	}
	if cfg.GodsImage != "" {
		p.Gods = &Region{
			Rect:  image.Rect(0, 0, size.X, roundHalf(float64(size.Y)*0.5)),
			Shape: ShapeBand,
			Alpha: BandAlpha,
		}
	}
	if cfg.UserImage != "" {
		s := userSize(cfg, 80)
		at, ok := anchorUser(size, cfg.UserImagePosition, s)
		if !ok {
			at, _ = anchorUser(size, template.UserTopRight, s)
		}
		p.User = userRegion(at, s, 12)
	}
	return p
}
