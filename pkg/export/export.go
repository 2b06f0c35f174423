// Package export encodes a rendered canvas as PNG, JPEG, PDF or a Word document.
//
// Every export reads the canvas back first; a tainted or unsettled canvas produces
// ErrExportBlocked and no output. Encoders write into memory and only copy to the destination on success.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultJPEGQuality is used when no quality or an out-of-range one is given.
const DefaultJPEGQuality = 0.92

// ErrExportBlocked is returned while the canvas is tainted by cross-origin images.
var ErrExportBlocked = errors.New("export blocked: the canvas contains images served without cross-origin access; re-upload them or serve them with CORS headers")

// Error reports a failed encoding.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("export %s: %v", e.Format, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Format is an output format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	PDF  Format = "pdf"
	DOCX Format = "docx"
)

// ParseFormat accepts a format name or file extension, with or without the dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "pdf":
		return PDF, nil
	case "docx", "doc", "word":
		return DOCX, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use png, jpg, pdf or docx", s)
	}
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case PDF:
		return "application/pdf"
	case DOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

// Ext is the file extension of f including the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Source is a canvas that can be read back. *compositor.Compositor implements it.
type Source interface {
	Tainted() bool
	ReadBack() (*image.RGBA, error)
}

// Options tune individual formats.
type Options struct {
	Quality float64  // JPEG quality in (0, 1]
	Page    PageSize // PDF page size, A4 when empty
}

// Observer receives export outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveExport(format, outcome string, d time.Duration)
}

// Exporter encodes canvases. The zero value is ready to use.
type Exporter struct {
	Observer Observer
}

// Export writes src to w in format f.
func (e *Exporter) Export(w io.Writer, src Source, f Format, opts Options) (err error) {
	start := time.Now()
	defer func() { e.observe(f, err, time.Since(start)) }()

	data, err := e.encode(src, f, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &Error{Format: f, Err: err}
	}
	return nil
}

// WriteFile exports src to path, inferring the format from the extension. The file is
// written to a temporary sibling first and renamed into place.
func (e *Exporter) WriteFile(path string, src Source, opts Options) (err error) {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { e.observe(f, err, time.Since(start)) }()

	data, err := e.encode(src, f, opts)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return &Error{Format: f, Err: err}
	}
	return nil
}

func (e *Exporter) encode(src Source, f Format, opts Options) ([]byte, error) {
	if src.Tainted() {
		return nil, ErrExportBlocked
	}
	img, err := src.ReadBack()
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrExportBlocked, err)
	}

	var buf bytes.Buffer
	switch f {
	case PNG:
		err = png.Encode(&buf, img)
	case JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(opts.Quality)})
	case PDF:
		err = writePDF(&buf, img, opts.Page)
	case DOCX:
		err = writeDOCX(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	if err != nil {
		return nil, &Error{Format: f, Err: err}
	}
	return buf.Bytes(), nil
}

func (e *Exporter) observe(f Format, err error, d time.Duration) {
	if e.Observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrExportBlocked):
		outcome = "blocked"
	case err != nil:
		outcome = "failed"
	}
	e.Observer.ObserveExport(string(f), outcome, d)
}

// jpegQuality maps a (0, 1] quality onto the encoder's 1..100 scale.
func jpegQuality(q float64) int {
	if q <= 0 || q > 1 {
		q = DefaultJPEGQuality
	}
	return max(1, int(q*100+0.5))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
