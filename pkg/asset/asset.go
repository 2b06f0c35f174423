// Package asset lists, caches and fetches the media a biodata document refers to:
// admin-uploaded photos, borders and fonts from the backend, and the built-in sets used
// when the backend has none.
package asset

import (
	"fmt"

	"github.com/xob0t/GoBiodata/pkg/template"
)

// Category groups assets by purpose.
type Category string

const (
	CategoryBorder     Category = "border"
	CategoryAdminPhoto Category = "adminPhoto"
	CategoryFont       Category = "font"
	CategoryMisc       Category = "misc"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryAdminPhoto, CategoryBorder, CategoryFont, CategoryMisc}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBorder, CategoryAdminPhoto, CategoryFont, CategoryMisc:
		return true
	}
	return false
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown asset category %q", s)
	}
	return c, nil
}

// Asset is one selectable media item.
type Asset struct {
	ID           string   `json:"id"`
	URL          string   `json:"url"`
	Category     Category `json:"category"`
	OriginalName string   `json:"originalName,omitempty"`
	Builtin      bool     `json:"builtin,omitempty"`
}

// TemplateRecord is a template as published by the backend.
type TemplateRecord struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Media       string                `json:"media"`
	Type        template.TemplateType `json:"type"`
}

// Descriptor is the editor-facing view of the record.
func (t TemplateRecord) Descriptor() template.Descriptor {
	return template.Descriptor{ID: t.ID, Type: t.Type, Description: t.Description}
}

// ── Built-in sets ──

var builtinPaths = map[Category][]string{
	CategoryAdminPhoto: {
		"/images/banner.png",
		"/images/leaf.png",
		"/images/service.png",
		"/images/temp.png",
		"/images/banner(1)(1).png",
	},
	CategoryBorder: {
		"/images/images.png",
		"/images/images.jpeg",
		"/images/u1.png",
		"/images/u2.png",
	},
}

// DefaultTemplateMedia is shown for templates published without a preview image.
const DefaultTemplateMedia = "/images/temp.png"

// Builtins returns the built-in assets of a category resolved against origin. Fonts and
// misc have none.
func Builtins(c Category, origin string) []Asset {
	paths := builtinPaths[c]
	out := make([]Asset, 0, len(paths))
	for i, p := range paths {
		out = append(out, Asset{
			ID:       fmt.Sprintf("builtin-%s-%d", c, i+1),
			URL:      origin + p,
			Category: c,
			Builtin:  true,
		})
	}
	return out
}

// IsBuiltinURL reports whether url is one of the built-in assets of c under origin.
func IsBuiltinURL(c Category, origin, url string) bool {
	for _, p := range builtinPaths[c] {
		if url == origin+p || url == p {
			return true
		}
	}
	return false
}
