// fonts.go - Session font registry with built-in families and uploaded fonts.
// Uses golang.org/x/image/font/opentype for TrueType and CFF outlines. Built-in
// families come from the Go fonts and Latin Modern; uploaded fonts are registered
// once per id and never removed until the registry is closed.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmromanslant10bold"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

// Built-in family ids, in picker order.
const (
	FamilySerif     = "serif"
	FamilySans      = "sans"
	FamilyCursive   = "cursive"
	FamilyMonospace = "monospace"
)

// UploadedFamilyPrefix prefixes families registered from font assets.
const UploadedFamilyPrefix = "uploaded-font-"

var (
	// ErrUnsupportedFontFormat is returned for web-only font containers.
	ErrUnsupportedFontFormat = errors.New("unsupported font format")
	// ErrRegistryClosed is returned after Close.
	ErrRegistryClosed = errors.New("font registry closed")
)

// FontInfo describes one selectable family.
type FontInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type builtinFont struct {
	info FontInfo
	data []byte
}

var builtinFonts = []builtinFont{
	{FontInfo{FamilySerif, "Serif"}, lmroman10bold.TTF},
	{FontInfo{FamilySans, "Sans-serif"}, gobold.TTF},
	{FontInfo{FamilyCursive, "Cursive"}, lmromanslant10bold.TTF},
	{FontInfo{FamilyMonospace, "Monospace"}, gomonobold.TTF},
}

// Parsed built-ins are immutable and shared by every registry.
var parsedBuiltins = sync.OnceValue(func() map[string]*opentype.Font {
	fallback, err := opentype.Parse(gobold.TTF)
	if err != nil {
		panic(fmt.Errorf("parse embedded Go Bold: %w", err))
	}

	out := make(map[string]*opentype.Font, len(builtinFonts))
	for _, b := range builtinFonts {
		f, err := opentype.Parse(b.data)
		if err != nil {
			slog.Warn("built-in font unusable, using Go Bold", slog.String("family", b.info.ID), slog.Any("error", err))
			f = fallback
		}
		out[b.info.ID] = f
	}
	return out
})

type faceKey struct {
	family string
	size   int
}

// FontRegistry maps family ids to parsed fonts and caches faces per (family, size).
// One registry lives for one editor session: it only grows, and Close drops it.
// Faces are not safe for concurrent use; callers serialize drawing.
type FontRegistry struct {
	mu       sync.Mutex
	uploaded map[string]*opentype.Font
	names    map[string]string
	order    []string
	faces    map[faceKey]font.Face
	closed   bool
}

// NewFontRegistry creates a registry holding only the built-in families.
func NewFontRegistry() *FontRegistry {
	return &FontRegistry{
		uploaded: make(map[string]*opentype.Font),
		names:    make(map[string]string),
		faces:    make(map[faceKey]font.Face),
	}
}

// UploadedFamily returns the family id an uploaded font asset registers under.
func UploadedFamily(assetID string) string {
	return UploadedFamilyPrefix + assetID
}

// Register parses data and adds it as family "uploaded-font-<assetID>". Registering
// an id that is already known is a no-op and returns the existing family.
func (r *FontRegistry) Register(assetID, displayName string, data []byte) (string, error) {
	family := UploadedFamily(assetID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRegistryClosed
	}
	if _, ok := r.uploaded[family]; ok {
		return family, nil
	}

	if isWebFont(data) {
		return "", fmt.Errorf("font %s: %w (woff/woff2)", assetID, ErrUnsupportedFontFormat)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse font %s: %w", assetID, err)
	}

	if displayName == "" {
		displayName = family
	}
	r.uploaded[family] = parsed
	r.names[family] = displayName
	r.order = append(r.order, family)
	return family, nil
}

// Has reports whether family is a built-in or registered family.
func (r *FontRegistry) Has(family string) bool {
	if _, ok := parsedBuiltins()[family]; ok {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.uploaded[family]
	return ok
}

// Len returns the number of uploaded families.
func (r *FontRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uploaded)
}

// Families lists the built-in families followed by uploaded ones in registration order.
func (r *FontRegistry) Families() []FontInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FontInfo, 0, len(builtinFonts)+len(r.order))
	for _, b := range builtinFonts {
		out = append(out, b.info)
	}
	for _, fam := range r.order {
		out = append(out, FontInfo{ID: fam, Name: r.names[fam]})
	}
	return out
}

// Face returns a face for family at the given pixel size. Unknown families resolve
// to serif.
func (r *FontRegistry) Face(family string, size int) (font.Face, error) {
	if size <= 0 {
		size = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	parsed, ok := r.uploaded[family]
	if !ok {
		builtins := parsedBuiltins()
		if parsed, ok = builtins[family]; !ok {
			family = FamilySerif
			parsed = builtins[FamilySerif]
		}
	}

	key := faceKey{family: family, size: size}
	if face, ok := r.faces[key]; ok {
		return face, nil
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	r.faces[key] = face
	return face, nil
}

// Close releases all cached faces. The registry cannot be used afterwards.
func (r *FontRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, face := range r.faces {
		if err := face.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.faces = nil
	r.uploaded = nil
	r.names = nil
	r.order = nil
	return errors.Join(errs...)
}

func isWebFont(data []byte) bool {
	return bytes.HasPrefix(data, []byte("wOFF")) || bytes.HasPrefix(data, []byte("wOF2"))
}
