// resolver.go - Per-category asset lists with built-in fallback, caching and font
// registration.
package asset

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xob0t/GoBiodata/pkg/template"
)

// listTimeout bounds a shared list fetch once it no longer follows the caller's context.
const listTimeout = 30 * time.Second

// Lister fetches admin assets of one category.
type Lister interface {
	Assets(ctx context.Context, category Category) ([]Asset, error)
}

// FontSink receives downloaded fonts.
type FontSink interface {
	Register(assetID, displayName string, data []byte) (string, error)
}

// Resolver answers "which assets can the user pick" for each category. Admin lists are
// fetched once per category and kept until Invalidate.
type Resolver struct {
	lister  Lister
	fetcher *Fetcher
	origin  string
	log     *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[Category][]Asset
	epoch uint64 // bumped by Invalidate
}

// NewResolver creates a resolver. origin is the site origin built-in paths resolve
// against. A nil logger uses slog.Default().
func NewResolver(lister Lister, fetcher *Fetcher, origin string, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		lister:  lister,
		fetcher: fetcher,
		origin:  origin,
		log:     log,
		cache:   make(map[Category][]Asset),
	}
}

// Origin is the site origin used for built-in assets.
func (r *Resolver) Origin() string { return r.origin }

// Admin returns the cached admin assets of c, fetching on first use. Fetch failures are
// logged and yield an empty list that is not cached. Concurrent callers share one fetch;
// a caller that gives up does not cancel it for the others.
func (r *Resolver) Admin(ctx context.Context, c Category) []Asset {
	r.mu.RLock()
	list, ok := r.cache[c]
	r.mu.RUnlock()
	if ok {
		return slices.Clone(list)
	}

	ch := r.group.DoChan(string(c), func() (any, error) {
		r.mu.RLock()
		epoch := r.epoch
		r.mu.RUnlock()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()
		list, err := r.lister.Assets(fctx, c)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		// A list fetched across an invalidation is served once but never cached.
		if r.epoch == epoch {
			r.cache[c] = list
		}
		r.mu.Unlock()
		return list, nil
	})

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return slices.Clone(res.Val.([]Asset))
		}
		err = res.Err
	}
	var le *LoadError
	if !errors.As(err, &le) {
		err = &LoadError{URL: "/api/assets/public?category=" + string(c), Category: c, Err: err}
	}
	r.log.Warn("asset list unavailable, using built-ins", slog.String("category", string(c)), slog.Any("error", err))
	return nil
}

// List returns the admin assets of c, or the built-in set when there are none.
func (r *Resolver) List(ctx context.Context, c Category) []Asset {
	if admin := r.Admin(ctx, c); len(admin) > 0 {
		return admin
	}
	return Builtins(c, r.origin)
}

// ListForTemplate is List with the template rule applied: without-image templates only
// offer admin photos, possibly none.
func (r *Resolver) ListForTemplate(ctx context.Context, c Category, t template.TemplateType) []Asset {
	if c == CategoryAdminPhoto && t == template.WithoutImage {
		admin := r.Admin(ctx, c)
		if admin == nil {
			admin = []Asset{}
		}
		return admin
	}
	return r.List(ctx, c)
}

// Invalidate drops every cached category. Fetches in flight are not cached when they
// finish, and later callers start a fresh fetch instead of joining them.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.epoch++
	clear(r.cache)
	r.mu.Unlock()
	for _, c := range Categories {
		r.group.Forget(string(c))
	}
	r.log.Debug("asset caches invalidated")
}

// Watch invalidates on every signal from inv until ctx is done. Each callback runs after
// the caches have been dropped.
func (r *Resolver) Watch(ctx context.Context, inv Invalidator, onChange ...func()) error {
	signals, err := inv.Signals(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			r.Invalidate()
			for _, fn := range onChange {
				fn()
			}
		}
	}
}

// LoadFonts downloads every font asset and registers it with sink. Failed fonts are
// logged and skipped. It returns the registered family names in asset order.
func (r *Resolver) LoadFonts(ctx context.Context, sink FontSink) []string {
	var families []string
	for _, a := range r.Admin(ctx, CategoryFont) {
		data, err := r.fetcher.FetchBytes(ctx, a.URL)
		if err == nil {
			var fam string
			fam, err = sink.Register(a.ID, a.OriginalName, data)
			if err == nil {
				families = append(families, fam)
				continue
			}
			err = &LoadError{URL: a.URL, Category: CategoryFont, Err: err}
		}
		r.log.Warn("skipping uploaded font", slog.String("id", a.ID), slog.Any("error", err))
	}
	return families
}
