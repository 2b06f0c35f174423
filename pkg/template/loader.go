// loader.go - Load .biodata (ZIP) bundles and parse document.json.
package template

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BundleExt is the file extension of a document bundle.
const BundleExt = ".biodata"

// Uncompressed size limits for bundle contents.
var (
	maxEntryBytes  int64 = 32 << 20
	maxBundleBytes int64 = 64 << 20
)

// ErrBundleTooLarge is returned when a bundle unpacks past its size limits.
var ErrBundleTooLarge = errors.New("bundle too large")

// LoadBundle opens a .biodata ZIP, extracts it to a temp directory, parses
// document.json and resolves relative image paths against the extraction directory.
// The returned cleanup function removes the temp directory.
func LoadBundle(path string) (*Document, func(), error) {
	noop := func() {}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, noop, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	tmpDir, err := os.MkdirTemp("", "biodata-*")
	if err != nil {
		return nil, noop, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := unpack(&r.Reader, tmpDir); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("extract %s: %w", path, err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "document.json"))
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("read document.json: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	resolveAssetPaths(doc, tmpDir)
	return doc, cleanup, nil
}

// LoadDocument loads either a bundle or a plain JSON document, picking by extension.
func LoadDocument(path string) (*Document, func(), error) {
	if strings.EqualFold(filepath.Ext(path), BundleExt) {
		return LoadBundle(path)
	}
	doc, err := ParseDocumentFile(path)
	if err != nil {
		return nil, func() {}, err
	}
	resolveAssetPaths(doc, filepath.Dir(path))
	return doc, func() {}, nil
}

// ReadBundle parses an in-memory bundle. Relative image paths are replaced by data URLs
// of the matching archive entries so the document no longer refers to local files.
func ReadBundle(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			entries[path.Clean(f.Name)] = f
		}
	}

	docFile, ok := entries["document.json"]
	if !ok {
		return nil, fmt.Errorf("no document.json found in bundle")
	}
	raw, err := readEntry(docFile)
	if err != nil {
		return nil, fmt.Errorf("read document.json: %w", err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	inline := func(p string) (string, error) {
		if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, ":") {
			return p, nil
		}
		f, ok := entries[path.Clean(p)]
		if !ok {
			return "", fmt.Errorf("bundle entry %s not found", p)
		}
		b, err := readEntry(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		return "data:" + http.DetectContentType(b) + ";base64," + base64.StdEncoding.EncodeToString(b), nil
	}
	for _, ref := range []*string{&doc.Config.Border, &doc.Config.GodsImage, &doc.Config.UserImage} {
		if *ref, err = inline(*ref); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// WriteBundle writes doc as a bundle holding a pretty-printed document.json.
func WriteBundle(w io.Writer, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	zw := zip.NewWriter(w)
	fw, err := zw.Create("document.json")
	if err != nil {
		return fmt.Errorf("create document.json: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write document.json: %w", err)
	}
	return zw.Close()
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxEntryBytes {
		return nil, ErrBundleTooLarge
	}
	return data, nil
}

// resolveAssetPaths makes relative local image paths absolute using baseDir.
// URLs, data URLs and site-rooted paths ("/images/...") are left alone.
func resolveAssetPaths(doc *Document, baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.Contains(p, ":") {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	doc.Config.Border = resolve(doc.Config.Border)
	doc.Config.GodsImage = resolve(doc.Config.GodsImage)
	doc.Config.UserImage = resolve(doc.Config.UserImage)
}

// unpack writes the files of zr below dir. Each entry may hold maxEntryBytes and the
// whole archive maxBundleBytes once decompressed.
func unpack(zr *zip.Reader, dir string) error {
	root := filepath.Clean(dir) + string(os.PathSeparator)
	budget := maxBundleBytes
	for _, f := range zr.File {
		target := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("illegal path in bundle: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		n, err := unpackEntry(f, target, min(budget, maxEntryBytes))
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		budget -= n
	}
	return nil
}

// unpackEntry streams f into target, failing once more than limit bytes come out.
func unpackEntry(f *zip.File, target string, limit int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = ErrBundleTooLarge
	}
	return n, err
}
