package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"github.com/xob0t/GoBiodata/pkg/asset"
	"github.com/xob0t/GoBiodata/pkg/editor"
	"github.com/xob0t/GoBiodata/pkg/export"
	"github.com/xob0t/GoBiodata/pkg/layout"
	"github.com/xob0t/GoBiodata/pkg/template"
)

const sessionKey = "editorSession"

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID       string              `json:"id"`
	Created  time.Time           `json:"created"`
	Document template.Document   `json:"document"`
	Tainted  bool                `json:"tainted"`
	Fonts    []template.FontInfo `json:"fonts"`
}

type createRequest struct {
	Template template.Descriptor `json:"template"`
	// Document restores a saved document; Template is ignored when it is set.
	Document json.RawMessage `json:"document,omitempty"`
}

// ── Sessions ──

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var (
		sess *editor.Session
		err  error
	)
	if len(req.Document) > 0 && string(req.Document) != "null" {
		doc, perr := template.ParseDocument(req.Document)
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		sess, err = editor.NewFromDocument(*doc, s.deps())
	} else {
		req.Template.Type = template.NormalizeTemplateType(string(req.Template.Type))
		sess, err = editor.New(req.Template, s.deps())
	}
	if err != nil {
		s.sessionError(c, err)
		return
	}
	s.open(c, sess)
}

// handleImportBundle opens a session on an uploaded .biodata bundle.
func (s *Server) handleImportBundle(c *gin.Context) {
	data, read := readUpload(c, maxBundleBytes)
	if !read {
		return
	}
	doc, err := template.ReadBundle(data)
	if err != nil {
		badRequest(c, "invalid bundle: "+err.Error())
		return
	}
	sess, err := editor.NewFromDocument(*doc, s.deps())
	if err != nil {
		s.sessionError(c, err)
		return
	}
	s.open(c, sess)
}

// open loads the session's assets, stores it and responds 201.
func (s *Server) open(c *gin.Context, sess *editor.Session) {
	if err := sess.LoadAssets(c.Request.Context()); err != nil {
		loggerFrom(c).Warn("load session assets", slog.String("session", sess.ID), slog.Any("error", err))
	}
	s.store.Put(sess)
	s.respondSession(c, http.StatusCreated, sess)
}

func (s *Server) withSession(c *gin.Context) {
	sess, found := s.store.Get(c.Param("id"))
	if !found {
		notFound(c, "session not found")
		c.Abort()
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func sessionFrom(c *gin.Context) *editor.Session {
	return c.MustGet(sessionKey).(*editor.Session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	s.respondSession(c, http.StatusOK, sessionFrom(c))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	s.store.Delete(c.Param("id"))
	ok(c, http.StatusOK, gin.H{"id": c.Param("id"), "status": "deleted"})
}

func (s *Server) handleUpdateField(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("fieldId"))
	if err != nil {
		badRequest(c, "field id must be an integer")
		return
	}
	var patch template.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid field patch: "+err.Error())
		return
	}
	sess := sessionFrom(c)
	if err := sess.UpdateField(id, patch); err != nil {
		s.sessionError(c, err)
		return
	}
	s.respondSession(c, http.StatusOK, sess)
}

func (s *Server) handleConfigure(c *gin.Context) {
	var cfg template.LayoutConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid layout config: "+err.Error())
		return
	}
	sess := sessionFrom(c)
	if err := sess.Configure(cfg); err != nil {
		s.sessionError(c, err)
		return
	}
	s.respondSession(c, http.StatusOK, sess)
}

// handleUploadUserImage stores the uploaded photo inline as a data URL, so it never
// taints the canvas.
func (s *Server) handleUploadUserImage(c *gin.Context) {
	data, read := readUpload(c, maxUploadBytes)
	if !read {
		return
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		badRequest(c, fmt.Sprintf("unsupported upload type %s", mediaType))
		return
	}
	sess := sessionFrom(c)
	if err := sess.SetUserImage(asset.DataURL(mediaType, data)); err != nil {
		s.sessionError(c, err)
		return
	}
	s.respondSession(c, http.StatusOK, sess)
}

func (s *Server) handleClearUserImage(c *gin.Context) {
	sess := sessionFrom(c)
	if err := sess.SetUserImage(""); err != nil {
		s.sessionError(c, err)
		return
	}
	s.respondSession(c, http.StatusOK, sess)
}

func (s *Server) handleAssets(c *gin.Context) {
	cat, err := asset.ParseCategory(c.Param("category"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ok(c, http.StatusOK, sessionFrom(c).Assets(c.Request.Context(), cat))
}

// ── Rendering ──

// handlePreview serves the settled canvas, optionally downscaled. The preview is what
// the editor displays, so it is served even when exports are blocked.
func (s *Server) handlePreview(c *gin.Context) {
	scale := 1.0
	if raw := c.Query("scale"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 1 {
			badRequest(c, "scale must be in (0, 1]")
			return
		}
		scale = v
	}

	sess := sessionFrom(c)
	img, err := sess.Preview(c.Request.Context())
	if err != nil {
		s.sessionError(c, err)
		return
	}

	var buf bytes.Buffer
	if scale < 1 {
		w := max(int(float64(img.Bounds().Dx())*scale), 1)
		err = png.Encode(&buf, imaging.Resize(img, w, 0, imaging.Linear))
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		internal(c, "encode preview: "+err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Canvas-Tainted", strconv.FormatBool(sess.Tainted()))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleExport(c *gin.Context) {
	f, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	opts := export.Options{}
	if raw := c.Query("quality"); raw != "" {
		if opts.Quality, err = strconv.ParseFloat(raw, 64); err != nil {
			badRequest(c, "quality must be a number")
			return
		}
	}
	if opts.Page, err = export.ParsePageSize(c.Query("page")); err != nil {
		badRequest(c, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := sessionFrom(c).Export(c.Request.Context(), &buf, f, opts); err != nil {
		s.sessionError(c, err)
		return
	}
	attachment(c, "biodata"+f.Ext())
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}

// handleExportBundle downloads the session document as a .biodata bundle.
func (s *Server) handleExportBundle(c *gin.Context) {
	doc := sessionFrom(c).Document()
	var buf bytes.Buffer
	if err := template.WriteBundle(&buf, &doc); err != nil {
		internal(c, err.Error())
		return
	}
	attachment(c, "biodata"+template.BundleExt)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// ── Catalog ──

func (s *Server) handleTemplates(c *gin.Context) {
	if s.opts.Templates == nil {
		ok(c, http.StatusOK, []asset.TemplateRecord{})
		return
	}
	list, err := s.opts.Templates.Templates(c.Request.Context())
	if err != nil {
		loggerFrom(c).Warn("list templates", slog.Any("error", err))
		fail(c, http.StatusBadGateway, "template catalog unavailable")
		return
	}
	ok(c, http.StatusOK, list)
}

// handleInvalidate announces a media update to every instance.
func (s *Server) handleInvalidate(c *gin.Context) {
	if s.opts.Invalidator == nil {
		fail(c, http.StatusServiceUnavailable, "asset invalidation is not configured")
		return
	}
	if err := s.opts.Invalidator.Publish(c.Request.Context()); err != nil {
		loggerFrom(c).Error("publish invalidation", slog.Any("error", err))
		internal(c, "publish invalidation failed")
		return
	}
	ok(c, http.StatusAccepted, gin.H{"invalidated": true})
}

// ── Helpers ──

func (s *Server) respondSession(c *gin.Context, status int, sess *editor.Session) {
	if err := sess.Settle(c.Request.Context()); err != nil {
		s.sessionError(c, err)
		return
	}
	ok(c, status, sessionView{
		ID:       sess.ID,
		Created:  sess.Created,
		Document: sess.Document(),
		Tainted:  sess.Tainted(),
		Fonts:    sess.Fonts(),
	})
}

// sessionError maps editor errors to responses.
func (s *Server) sessionError(c *gin.Context, err error) {
	var exportErr *export.Error
	switch {
	case errors.Is(err, export.ErrExportBlocked):
		conflict(c, err.Error())
	case errors.Is(err, layout.ErrUserImageNotAllowed):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, editor.ErrSessionClosed):
		notFound(c, "session not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, "render did not settle")
	case errors.As(err, &exportErr):
		loggerFrom(c).Error("export failed", slog.String("format", string(exportErr.Format)), slog.Any("error", err))
		internal(c, err.Error())
	default:
		loggerFrom(c).Error("session operation failed", slog.Any("error", err))
		internal(c, err.Error())
	}
}

// readUpload reads the multipart "file" field, up to limit bytes.
func readUpload(c *gin.Context, limit int64) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file uploaded")
		return nil, false
	}
	if fh.Size > limit {
		fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("file larger than %d bytes", limit))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "open upload: "+err.Error())
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		badRequest(c, "read upload: "+err.Error())
		return nil, false
	}
	return data, true
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
