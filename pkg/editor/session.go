// Package editor ties the document model, fonts, compositor and exporter together into
// one editing session. Every mutation starts a fresh render pass.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/compositor"
	"github.com/xob0t/GoBiodata/pkg/export"
	"github.com/xob0t/GoBiodata/pkg/layout"
	"github.com/xob0t/GoBiodata/pkg/template"
)

// ErrSessionClosed is returned by every operation on a closed session.
var ErrSessionClosed = errors.New("editor session closed")

// Deps are the collaborators a session uses. Resolver may be nil for offline use.
type Deps struct {
	Resolver       *asset.Resolver
	Loader         compositor.ImageLoader
	ProbeDelay     time.Duration
	Logger         *slog.Logger
	RenderObserver compositor.Observer
	ExportObserver export.Observer
}

// Session is one user's editor state.
type Session struct {
	ID      string
	Created time.Time

	resolver *asset.Resolver
	log      *slog.Logger
	fonts    *template.FontRegistry
	comp     *compositor.Compositor
	exporter *export.Exporter

	mu       sync.Mutex
	doc      template.Document
	pass     *compositor.Pass
	lastUsed time.Time
	closed   bool
}

// New opens a session on a fresh document for tpl.
func New(tpl template.Descriptor, deps Deps) (*Session, error) {
	return NewFromDocument(template.NewDocument(tpl), deps)
}

// NewFromDocument opens a session on an existing document and starts the first pass.
func NewFromDocument(doc template.Document, deps Deps) (*Session, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	id := uuid.NewString()
	fonts := template.NewFontRegistry()
	s := &Session{
		ID:       id,
		Created:  time.Now(),
		resolver: deps.Resolver,
		log:      deps.Logger.With(slog.String("session", id)),
		fonts:    fonts,
		comp: compositor.New(compositor.Options{
			Faces:      fonts,
			Loader:     deps.Loader,
			ProbeDelay: deps.ProbeDelay,
			Logger:     deps.Logger.With(slog.String("session", id)),
			Observer:   deps.RenderObserver,
		}),
		exporter: &export.Exporter{Observer: deps.ExportObserver},
		doc:      doc.Clone(),
		lastUsed: time.Now(),
	}
	for _, w := range template.ValidateDocument(&s.doc) {
		s.log.Warn("document warning", slog.String("warning", w))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.restartLocked(); err != nil {
		s.closeLocked()
		return nil, err
	}
	return s, nil
}

// Document returns a copy of the current document.
func (s *Session) Document() template.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// LastUsed is when the session was last touched.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// LoadAssets registers uploaded fonts and picks the default photo: the first admin photo
// replaces an empty or built-in selection.
func (s *Session) LoadAssets(ctx context.Context) error {
	if s.resolver == nil {
		return nil
	}
	families := s.resolver.LoadFonts(ctx, s.fonts)
	s.log.Debug("fonts loaded", slog.Int("uploaded", len(families)))

	s.mu.Lock()
	tplType := s.doc.Template.Type
	current := s.doc.Config.GodsImage
	s.mu.Unlock()

	photos := s.resolver.ListForTemplate(ctx, asset.CategoryAdminPhoto, tplType)
	pick := current
	switch {
	case len(photos) == 0:
	case current == "":
		pick = photos[0].URL
	case asset.IsBuiltinURL(asset.CategoryAdminPhoto, s.resolver.Origin(), current) && !photos[0].Builtin:
		pick = photos[0].URL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if pick != s.doc.Config.GodsImage && s.doc.Config.GodsImage == current {
		s.doc.Config.GodsImage = pick
	}
	return s.restartLocked()
}

// Photos lists the gods/admin photos selectable for this template.
func (s *Session) Photos(ctx context.Context) []asset.Asset {
	return s.list(ctx, asset.CategoryAdminPhoto)
}

// Borders lists the selectable borders.
func (s *Session) Borders(ctx context.Context) []asset.Asset {
	return s.list(ctx, asset.CategoryBorder)
}

// Assets lists any category under the template rules.
func (s *Session) Assets(ctx context.Context, c asset.Category) []asset.Asset {
	return s.list(ctx, c)
}

func (s *Session) list(ctx context.Context, c asset.Category) []asset.Asset {
	if s.resolver == nil {
		return []asset.Asset{}
	}
	s.mu.Lock()
	t := s.doc.Template.Type
	s.mu.Unlock()
	return s.resolver.ListForTemplate(ctx, c, t)
}

// Fonts lists built-in families followed by uploaded ones.
func (s *Session) Fonts() []template.FontInfo {
	return s.fonts.Families()
}

// UpdateField patches one field. Unknown ids are ignored.
func (s *Session) UpdateField(id int, patch template.FieldPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if !template.HasField(s.doc.Fields, id) {
		s.log.Debug("ignoring update of unknown field", slog.Int("field", id))
		return nil
	}
	s.doc.Fields = template.UpdateField(s.doc.Fields, id, patch)
	return s.restartLocked()
}

// Configure replaces the layout configuration. Zero sizes and line height fall back to
// defaults. The previous configuration is kept when the new one is rejected.
func (s *Session) Configure(cfg template.LayoutConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()

	if cfg.Font == "" {
		cfg.Font = template.DefaultFont
	}
	if cfg.LineHeight <= 0 {
		cfg.LineHeight = template.DefaultLineHeight
	}
	if cfg.UserImage != "" && !s.doc.Template.Type.AllowsUserImage() {
		return layout.ErrUserImageNotAllowed
	}

	prev := s.doc.Config
	s.doc.Config = cfg
	if err := s.restartLocked(); err != nil {
		s.doc.Config = prev
		return err
	}
	return nil
}

// SetUserImage sets or clears (src == "") the user photo.
func (s *Session) SetUserImage(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if src != "" && !s.doc.Template.Type.AllowsUserImage() {
		return layout.ErrUserImageNotAllowed
	}
	s.doc.Config.UserImage = src
	return s.restartLocked()
}

// Render starts a fresh pass and waits for it to settle.
func (s *Session) Render(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.touchLocked()
	err := s.restartLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Settle(ctx)
}

// Settle waits until the newest pass has settled.
func (s *Session) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		p := s.pass
		s.mu.Unlock()

		err := p.Wait(ctx)
		if !errors.Is(err, compositor.ErrPassSuperseded) {
			return err
		}
		s.mu.Lock()
		same := s.pass == p
		s.mu.Unlock()
		if same {
			return err
		}
	}
}

// Tainted reports whether exports are blocked.
func (s *Session) Tainted() bool {
	return s.comp.Tainted()
}

// Preview returns the settled canvas for display.
func (s *Session) Preview(ctx context.Context) (*image.RGBA, error) {
	if err := s.Settle(ctx); err != nil {
		return nil, err
	}
	return s.comp.Snapshot(), nil
}

// Export writes the settled canvas to w.
func (s *Session) Export(ctx context.Context, w io.Writer, f export.Format, opts export.Options) error {
	return s.settled(ctx, func() error { return s.exporter.Export(w, s.comp, f, opts) })
}

// WriteFile exports the settled canvas to path.
func (s *Session) WriteFile(ctx context.Context, path string, opts export.Options) error {
	return s.settled(ctx, func() error { return s.exporter.WriteFile(path, s.comp, opts) })
}

// settled runs fn once the newest pass has settled. An edit that restarts rendering
// between the two makes fn fail with ErrNotSettled, and the wait starts over.
func (s *Session) settled(ctx context.Context, fn func() error) error {
	for {
		if err := s.Settle(ctx); err != nil {
			return fmt.Errorf("settle before export: %w", err)
		}
		err := fn()
		if !errors.Is(err, compositor.ErrNotSettled) || ctx.Err() != nil {
			return err
		}
	}
}

// Close stops rendering and releases fonts.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.comp.Close()
	return s.fonts.Close()
}

func (s *Session) restartLocked() error {
	p, err := s.comp.Start(s.doc.Clone())
	if err != nil {
		return err
	}
	s.pass = p
	return nil
}

func (s *Session) touchLocked() { s.lastUsed = time.Now() }
