// Package compositor runs render passes: it clears the canvas, draws the border, the
// layout images and the field text in a fixed order, and probes the result for
// cross-origin taint. Every pass carries a generation number; a pass that has been
// superseded never touches the canvas again.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/layout"
	"github.com/xob0t/GoBiodata/pkg/template"
	"github.com/xob0t/GoBiodata/pkg/text"
)

// DefaultProbeDelay is how long a pass waits after drawing before probing for taint.
const DefaultProbeDelay = 80 * time.Millisecond

// BorderAlpha is the opacity of the full-canvas border.
const BorderAlpha = 0.95

// ErrPassSuperseded is returned by Wait when a newer pass replaced this one.
var ErrPassSuperseded = errors.New("render pass superseded")

// ErrNotSettled is returned by ReadBack while the newest pass is still drawing.
var ErrNotSettled = errors.New("canvas is not settled")

// State is the stage a pass is in.
type State int

const (
	Idle State = iota
	BorderLoading
	ContentDrawing
	TaintProbe
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BorderLoading:
		return "border-loading"
	case ContentDrawing:
		return "content-drawing"
	case TaintProbe:
		return "taint-probe"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ImageLoader fetches images in a CORS mode. *asset.Fetcher implements it.
type ImageLoader interface {
	FetchImage(ctx context.Context, src string, mode asset.CORSMode) (*asset.Image, error)
}

// Observer receives pass outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveRender(layout, outcome string, d time.Duration)
	TaintChanged(tainted bool)
}

// Options configure a Compositor.
type Options struct {
	Faces      text.FaceSource
	Loader     ImageLoader   // an origin-less asset.Fetcher when nil
	ProbeDelay time.Duration // DefaultProbeDelay when zero
	Logger     *slog.Logger
	Observer   Observer
}

// Compositor owns one canvas and the passes that draw on it.
type Compositor struct {
	loader   ImageLoader
	composer *text.Composer
	delay    time.Duration
	log      *slog.Logger
	observer Observer

	mu      sync.Mutex
	canvas  *Canvas
	gen     uint64
	cancel  context.CancelFunc
	state   State
	tainted bool
}

// New creates a compositor with a 794×1123 canvas.
func New(opts Options) *Compositor {
	if opts.ProbeDelay == 0 {
		opts.ProbeDelay = DefaultProbeDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Loader == nil {
		opts.Loader = asset.NewFetcher("", 30*time.Second)
	}
	return &Compositor{
		loader:   opts.Loader,
		composer: text.NewComposer(opts.Faces, template.CanvasWidth),
		delay:    opts.ProbeDelay,
		log:      opts.Logger,
		observer: opts.Observer,
		canvas:   NewCanvas(template.CanvasWidth, template.CanvasHeight),
	}
}

// Pass is one render of a document.
type Pass struct {
	c      *Compositor
	gen    uint64
	layout template.LayoutID
	done   chan struct{}
	err    error
}

// Generation is the pass's stamp.
func (p *Pass) Generation() uint64 { return p.gen }

// Done is closed when the pass has settled or given up.
func (p *Pass) Done() <-chan struct{} { return p.done }

// Wait blocks until the pass finishes or ctx is done.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
	}
	if p.err != nil {
		return p.err
	}
	if p.c.Generation() != p.gen {
		return ErrPassSuperseded
	}
	return nil
}

// Start supersedes any running pass and begins rendering doc. The canvas is cleared to
// the paper color and the taint flag is reset before Start returns.
func (c *Compositor) Start(doc template.Document) (*Pass, error) {
	size := c.canvas.Bounds().Size()
	placement, err := layout.Compute(size, &doc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	p := &Pass{c: c, gen: c.gen, layout: doc.Config.Layout, done: make(chan struct{})}
	c.cancel = cancel
	c.state = Idle
	c.setTaintLocked(false)
	c.canvas.Clear(template.ParseColorOr(template.Background, template.Background))
	c.mu.Unlock()

	go func() {
		defer cancel()
		defer close(p.done)
		start := time.Now()
		p.err = c.run(ctx, p.gen, doc, placement)
		c.observe(p, time.Since(start))
	}()
	return p, nil
}

// Render starts a pass for doc and waits for it to settle.
func (c *Compositor) Render(ctx context.Context, doc template.Document) error {
	p, err := c.Start(doc)
	if err != nil {
		return err
	}
	return p.Wait(ctx)
}

// Close cancels the running pass.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = Idle
	c.setTaintLocked(false)
}

// Generation returns the stamp of the newest pass.
func (c *Compositor) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// State returns the stage of the newest pass.
func (c *Compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tainted reports whether exports are currently blocked.
func (c *Compositor) Tainted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tainted
}

// ReadBack copies the canvas for export. It fails with ErrNotSettled until the newest
// pass has been probed, and with ErrTainted on a tainted canvas.
func (c *Compositor) ReadBack() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Settled {
		return nil, fmt.Errorf("%w (%s)", ErrNotSettled, c.state)
	}
	return c.canvas.ReadBack()
}

// Snapshot copies the canvas for on-screen preview.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas.Snapshot()
}

// ── Pass steps ──

func (c *Compositor) run(ctx context.Context, gen uint64, doc template.Document, pl layout.Placement) error {
	cfg := doc.Config

	if cfg.Border != "" {
		if err := c.setState(gen, BorderLoading); err != nil {
			return err
		}
		if img := c.load(ctx, gen, cfg.Border, "border"); img != nil {
			err := c.paint(gen, func(cv *Canvas) error { return cv.DrawBorder(img, BorderAlpha) })
			if err != nil {
				return err
			}
		}
	}

	if err := c.setState(gen, ContentDrawing); err != nil {
		return err
	}

	// Images draw in completion order; text waits for all of them.
	g, gctx := errgroup.WithContext(ctx)
	if pl.Gods != nil {
		c.goDraw(g, gctx, gen, cfg.GodsImage, "gods", *pl.Gods)
	}
	if pl.User != nil {
		c.goDraw(g, gctx, gen, cfg.UserImage, "user", *pl.User)
	}
	if err := g.Wait(); err != nil {
		return err
	}

	err := c.paint(gen, func(cv *Canvas) error {
		rows, err := c.composer.Compose(doc.Fields, text.Block{
			Origin:     pl.TextOrigin,
			Anchor:     pl.TextAnchor,
			LineHeight: cfg.LineHeight,
			AutoFit:    cfg.AutoFit,
			Family:     cfg.Font,
		})
		if err != nil {
			return fmt.Errorf("compose fields: %w", err)
		}
		return c.composer.Draw(cv.Context(), rows)
	})
	if err != nil {
		return err
	}

	if err := c.setState(gen, TaintProbe); err != nil {
		return err
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrPassSuperseded
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrPassSuperseded
	}
	_, probeErr := c.canvas.ReadBack()
	c.setTaintLocked(probeErr != nil)
	c.state = Settled
	return nil
}

func (c *Compositor) goDraw(g *errgroup.Group, ctx context.Context, gen uint64, src, kind string, r layout.Region) {
	g.Go(func() error {
		img := c.load(ctx, gen, src, kind)
		if img == nil {
			return nil
		}
		return c.paint(gen, func(cv *Canvas) error { return cv.DrawRegion(img, r) })
	})
}

// load fetches src in anonymous mode, falling back to no-cors. A fallback marks the
// canvas tainted right away. nil means the element is skipped.
func (c *Compositor) load(ctx context.Context, gen uint64, src, kind string) *asset.Image {
	img, err := c.loader.FetchImage(ctx, src, asset.ModeAnonymous)
	if err == nil {
		return img
	}
	if ctx.Err() != nil {
		return nil
	}
	c.log.Debug("anonymous load failed, retrying without cors",
		slog.String("kind", kind), slog.String("url", src), slog.Any("error", err))

	c.mu.Lock()
	if c.gen == gen {
		c.setTaintLocked(true)
	}
	c.mu.Unlock()

	img, err = c.loader.FetchImage(ctx, src, asset.ModeNoCORS)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn("skipping image", slog.String("kind", kind), slog.Any("error", err))
		}
		return nil
	}
	return img
}

// paint runs fn on the canvas if gen is still current.
func (c *Compositor) paint(gen uint64, fn func(*Canvas) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrPassSuperseded
	}
	return fn(c.canvas)
}

func (c *Compositor) setState(gen uint64, s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrPassSuperseded
	}
	c.state = s
	return nil
}

func (c *Compositor) setTaintLocked(tainted bool) {
	if c.tainted == tainted {
		return
	}
	c.tainted = tainted
	if c.observer != nil {
		c.observer.TaintChanged(tainted)
	}
}

func (c *Compositor) observe(p *Pass, d time.Duration) {
	outcome := "settled"
	switch {
	case errors.Is(p.err, ErrPassSuperseded):
		outcome = "superseded"
	case p.err != nil:
		outcome = "failed"
		c.log.Error("render pass failed", slog.Uint64("generation", p.gen), slog.Any("error", p.err))
	}
	if c.observer != nil {
		c.observer.ObserveRender(string(layout.For(p.layout).ID()), outcome, d)
	}
}
