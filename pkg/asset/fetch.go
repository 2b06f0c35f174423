// fetch.go - Image and font loading from http(s), data: URLs and local files, with the
// CORS-mode rules that decide whether a loaded image keeps a canvas origin-clean.
package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// CORSMode selects how cross-origin resources are requested.
type CORSMode int

const (
	// ModeAnonymous sends Origin and requires an access grant for cross-origin URLs.
	ModeAnonymous CORSMode = iota
	// ModeNoCORS loads anything; cross-origin results are not CORS-clean.
	ModeNoCORS
)

func (m CORSMode) String() string {
	if m == ModeNoCORS {
		return "no-cors"
	}
	return "anonymous"
}

// maxAssetBytes caps a single download.
const maxAssetBytes = 32 << 20

// Image is a decoded image plus its provenance.
type Image struct {
	URL   string
	Image image.Image
	// Clean is false when drawing this image must taint the canvas.
	Clean bool
}

// Fetcher loads assets on behalf of a page served from Origin.
type Fetcher struct {
	Origin string
	HTTP   *http.Client
	// AllowLocalFiles enables file:// URLs and plain paths. Servers leave it off.
	AllowLocalFiles bool
}

// NewFetcher creates a fetcher for pages served from origin.
func NewFetcher(origin string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		Origin: strings.TrimRight(origin, "/"),
		HTTP:   &http.Client{Timeout: timeout},
	}
}

// FetchImage loads and decodes src. EXIF orientation is applied.
func (f *Fetcher) FetchImage(ctx context.Context, src string, mode CORSMode) (*Image, error) {
	data, clean, err := f.load(ctx, src, mode)
	if err != nil {
		return nil, &LoadError{URL: src, Err: err}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &LoadError{URL: src, Err: fmt.Errorf("decode image: %w", err)}
	}
	return &Image{URL: src, Image: img, Clean: clean}, nil
}

// FetchBytes loads src without CORS gating. Used for font files.
func (f *Fetcher) FetchBytes(ctx context.Context, src string) ([]byte, error) {
	data, _, err := f.load(ctx, src, ModeNoCORS)
	if err != nil {
		return nil, &LoadError{URL: src, Err: err}
	}
	return data, nil
}

func (f *Fetcher) load(ctx context.Context, src string, mode CORSMode) ([]byte, bool, error) {
	switch {
	case src == "":
		return nil, false, fmt.Errorf("%w: empty url", ErrUnsupportedSource)
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURL(src)
		return data, true, err
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return f.loadHTTP(ctx, src, mode)
	case !f.AllowLocalFiles && (strings.HasPrefix(src, "file://") || !strings.Contains(src, "://")):
		return nil, false, fmt.Errorf("%w: local files are disabled", ErrUnsupportedSource)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, false, err
		}
		data, err := os.ReadFile(u.Path)
		return data, true, err
	case strings.Contains(src, "://"):
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	default:
		data, err := os.ReadFile(src)
		return data, true, err
	}
}

func (f *Fetcher) loadHTTP(ctx context.Context, src string, mode CORSMode) ([]byte, bool, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, false, err
	}
	sameOrigin := f.sameOrigin(u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, false, err
	}
	if mode == ModeAnonymous && !sameOrigin && f.Origin != "" {
		req.Header.Set("Origin", f.Origin)
	}

	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			slog.Warn("close asset body", slog.String("url", src), slog.Any("error", cerr))
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, false, fmt.Errorf("HTTP status %d", res.StatusCode)
	}

	clean := sameOrigin
	if mode == ModeAnonymous && !sameOrigin {
		allow := res.Header.Get("Access-Control-Allow-Origin")
		if allow != "*" && (allow == "" || allow != f.Origin) {
			return nil, false, ErrCrossOrigin
		}
		clean = true
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxAssetBytes+1))
	if err != nil {
		return nil, false, err
	}
	if len(data) > maxAssetBytes {
		return nil, false, fmt.Errorf("asset larger than %d bytes", maxAssetBytes)
	}
	return data, clean, nil
}

func (f *Fetcher) sameOrigin(u *url.URL) bool {
	if f.Origin == "" {
		return false
	}
	o, err := url.Parse(f.Origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, u.Scheme) && strings.EqualFold(o.Host, u.Host)
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<payload>".
func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(text), nil
}

// DataURL encodes data as a base64 data URL of the given media type.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
