// Package server provides the biodata editor HTTP API. Each editor session owns a
// compositor; handlers mutate the session and read back its settled canvas.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/compositor"
	"github.com/xob0t/GoBiodata/pkg/config"
	"github.com/xob0t/GoBiodata/pkg/editor"
	"github.com/xob0t/GoBiodata/pkg/metrics"
)

const (
	maxUploadBytes = 10 << 20
	maxBundleBytes = 50 << 20
	shutdownGrace  = 5 * time.Second
)

// TemplateLister returns the public template catalog. *asset.Client implements it.
type TemplateLister interface {
	Templates(ctx context.Context) ([]asset.TemplateRecord, error)
}

// Options configure a Server. Only Logger is defaulted; a nil Resolver disables asset
// lookups, a nil Invalidator disables cache signals.
type Options struct {
	Logger      *slog.Logger
	Resolver    *asset.Resolver
	Templates   TemplateLister
	Loader      compositor.ImageLoader
	Invalidator asset.Invalidator
	ProbeDelay  time.Duration
	SessionTTL  time.Duration
}

// Server holds the live editor sessions.
type Server struct {
	opts  Options
	log   *slog.Logger
	store *editor.Store
	rec   metrics.Recorder
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:  opts,
		log:   opts.Logger,
		store: editor.NewStore(),
		rec:   metrics.NewRecorder(),
	}
}

// Sessions exposes the session store.
func (s *Server) Sessions() *editor.Store { return s.store }

func (s *Server) deps() editor.Deps {
	return editor.Deps{
		Resolver:       s.opts.Resolver,
		Loader:         s.opts.Loader,
		ProbeDelay:     s.opts.ProbeDelay,
		Logger:         s.log,
		RenderObserver: s.rec,
		ExportObserver: s.rec,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), correlationID(), requestLogger(s.log), metrics.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"status": "ok", "sessions": s.store.Len()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/templates", s.handleTemplates)
	api.POST("/assets/invalidate", s.handleInvalidate)
	api.POST("/sessions", s.handleCreateSession)
	api.POST("/sessions/import", s.handleImportBundle)

	sess := api.Group("/sessions/:id", s.withSession)
	sess.GET("", s.handleGetSession)
	sess.DELETE("", s.handleDeleteSession)
	sess.PATCH("/fields/:fieldId", s.handleUpdateField)
	sess.PUT("/config", s.handleConfigure)
	sess.POST("/user-image", s.handleUploadUserImage)
	sess.DELETE("/user-image", s.handleClearUserImage)
	sess.GET("/preview.png", s.handlePreview)
	sess.GET("/export/:format", s.handleExport)
	sess.GET("/bundle", s.handleExportBundle)
	sess.GET("/assets/:category", s.handleAssets)

	return r
}

// Run serves on addr until ctx is done. Idle sessions are reaped every minute and cache
// signals from the invalidator reload every session's assets.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.store.CloseAll()
		return err
	})
	g.Go(func() error {
		s.reapLoop(ctx)
		return nil
	})
	if s.opts.Resolver != nil && s.opts.Invalidator != nil {
		g.Go(func() error {
			err := s.opts.Resolver.Watch(ctx, s.opts.Invalidator, func() {
				s.store.ReloadAssets(ctx, s.log)
			})
			if err != nil {
				s.log.Error("asset invalidation disabled", slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) reapLoop(ctx context.Context) {
	ttl := s.opts.SessionTTL
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.store.Reap(ttl); n > 0 {
				s.log.Info("reaped idle sessions", slog.Int("count", n))
			}
		}
	}
}

// RunServe wires the backend client, the asset resolver and the invalidation channel
// from cfg and serves until ctx is done.
func RunServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	client := asset.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	fetcher := asset.NewFetcher(cfg.Server.SiteOrigin, cfg.API.Timeout)
	resolver := asset.NewResolver(client, fetcher, cfg.Server.SiteOrigin, log)

	var inv asset.Invalidator = asset.NewLocalInvalidator()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("close redis", slog.Any("error", err))
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		inv = asset.NewRedisInvalidator(rdb, cfg.Redis.Channel)
	}

	s := New(Options{
		Logger:      log,
		Resolver:    resolver,
		Templates:   client,
		Loader:      fetcher,
		Invalidator: inv,
		ProbeDelay:  cfg.Render.ProbeDelay,
		SessionTTL:  cfg.Server.SessionTTL,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("biodata editor listening",
		slog.String("addr", addr),
		slog.String("api", cfg.API.BaseURL),
		slog.Bool("redis", cfg.Redis.Enabled),
	)
	return s.Run(ctx, addr)
}
