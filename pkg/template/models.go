// Package template holds the biodata document model: the editable field list,
// the layout configuration, the template descriptor and the session font registry.
package template

import "strings"

// ── Canvas ──

// A4 at 96 DPI, portrait. Exports always use this size.
const (
	CanvasWidth  = 794
	CanvasHeight = 1123
)

// ── Template descriptor ──

// TemplateType decides whether the user may place their own photo.
type TemplateType string

const (
	WithImage    TemplateType = "with-image"
	WithoutImage TemplateType = "without-image"
)

// NormalizeTemplateType maps backend template types onto the two editor modes.
// "layout", "without-image" and "without_image" disallow user images; anything
// else allows them.
func NormalizeTemplateType(raw string) TemplateType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "layout", "without-image", "without_image":
		return WithoutImage
	default:
		return WithImage
	}
}

// AllowsUserImage reports whether a user photo may be rendered.
func (t TemplateType) AllowsUserImage() bool {
	return t != WithoutImage
}

// Descriptor is the template selection handed to the editor at navigation time.
type Descriptor struct {
	ID          string       `json:"id"`
	Type        TemplateType `json:"type"`
	Description string       `json:"description"`
}

// ── Fields ──

// Align is the horizontal placement rule of a field row.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid reports whether a is one of the known alignments.
func (a Align) Valid() bool {
	return a == AlignLeft || a == AlignCenter || a == AlignRight
}

// Field is one label/value row. Order in the slice is the vertical stacking order.
type Field struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	LabelSize int    `json:"labelSize"`
	ValueSize int    `json:"valueSize"`
	Color     string `json:"color"`
	Align     Align  `json:"align"` // empty = layout default
}

// FieldPatch carries the attributes to change on a field. Nil members are left alone.
// Label and ID are fixed at creation time and cannot be patched.
type FieldPatch struct {
	Value     *string `json:"value,omitempty"`
	LabelSize *int    `json:"labelSize,omitempty"`
	ValueSize *int    `json:"valueSize,omitempty"`
	Color     *string `json:"color,omitempty"`
	Align     *Align  `json:"align,omitempty"`
}

// ── Layout configuration ──

// LayoutID selects one of the layout variants.
type LayoutID string

const (
	Layout1 LayoutID = "layout1" // photo top/bottom, text below
	Layout2 LayoutID = "layout2" // photo left, text right
	Layout3 LayoutID = "layout3" // text over photo
)

// GodsPosition anchors the gods/admin image vertically.
type GodsPosition string

const (
	GodsTop    GodsPosition = "top"
	GodsBottom GodsPosition = "bottom"
)

// UserImagePosition anchors the user photo relative to the canvas edges.
type UserImagePosition string

const (
	UserTopLeft     UserImagePosition = "top-left"
	UserTopRight    UserImagePosition = "top-right"
	UserBottomLeft  UserImagePosition = "bottom-left"
	UserBottomRight UserImagePosition = "bottom-right"
	UserCenter      UserImagePosition = "center"
)

// LayoutConfig is everything besides the fields that affects a render.
type LayoutConfig struct {
	Layout            LayoutID          `json:"layout"`
	Font              string            `json:"font"`
	Border            string            `json:"border,omitempty"`
	GodsImage         string            `json:"godsImage,omitempty"`
	GodsPosition      GodsPosition      `json:"godsPosition"`
	GodsSize          int               `json:"godsSize"`
	UserImage         string            `json:"userImage,omitempty"`
	UserImageSize     int               `json:"userImageSize"`
	UserImagePosition UserImagePosition `json:"userImagePosition"`
	LineHeight        int               `json:"lineHeight"`
	AutoFit           bool              `json:"autoFit"`
}

// ── Document ──

// Document is the complete editor state needed to render one composition.
type Document struct {
	Template Descriptor   `json:"template"`
	Fields   []Field      `json:"fields"`
	Config   LayoutConfig `json:"config"`
}

// Clone returns a copy that shares no slices with d.
func (d Document) Clone() Document {
	out := d
	out.Fields = append([]Field(nil), d.Fields...)
	return out
}
