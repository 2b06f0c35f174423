package template

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc"+BundleExt)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadBundleResolvesRelativeAssets(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"document.json":     `{"config":{"border":"assets/border.png","godsImage":"/images/leaf.png","userImage":"data:image/png;base64,AA=="}}`,
		"assets/border.png": "png-bytes",
	})

	doc, cleanup, err := LoadBundle(path)
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, filepath.IsAbs(doc.Config.Border))
	assert.FileExists(t, doc.Config.Border)
	assert.Equal(t, "/images/leaf.png", doc.Config.GodsImage)
	assert.Equal(t, "data:image/png;base64,AA==", doc.Config.UserImage)
}

func TestLoadBundleMissingDocument(t *testing.T) {
	path := writeBundle(t, map[string]string{"readme.txt": "hi"})

	_, _, err := LoadBundle(path)
	assert.ErrorContains(t, err, "document.json")
}

func TestLoadBundleRejectsZipSlip(t *testing.T) {
	path := writeBundle(t, map[string]string{"../evil.json": "{}"})

	_, _, err := LoadBundle(path)
	assert.ErrorContains(t, err, "illegal path")
}

func TestBundleSizeLimits(t *testing.T) {
	entry, total := maxEntryBytes, maxBundleBytes
	t.Cleanup(func() { maxEntryBytes, maxBundleBytes = entry, total })
	maxEntryBytes, maxBundleBytes = 64, 100

	doc := `{"config":{"border":"big.png"}}`
	big := writeBundle(t, map[string]string{"document.json": doc, "big.png": strings.Repeat("x", 65)})
	_, _, err := LoadBundle(big)
	assert.ErrorIs(t, err, ErrBundleTooLarge)

	data, err := os.ReadFile(big)
	require.NoError(t, err)
	_, err = ReadBundle(data)
	assert.ErrorIs(t, err, ErrBundleTooLarge)

	// Every entry fits on its own but together they pass the archive limit.
	spread := writeBundle(t, map[string]string{
		"document.json": doc,
		"a.png":         strings.Repeat("a", 60),
		"b.png":         strings.Repeat("b", 60),
	})
	_, _, err = LoadBundle(spread)
	assert.ErrorIs(t, err, ErrBundleTooLarge)

	fits := writeBundle(t, map[string]string{"document.json": doc, "big.png": strings.Repeat("x", 40)})
	got, cleanup, err := LoadBundle(fits)
	require.NoError(t, err)
	defer cleanup()
	assert.FileExists(t, got.Config.Border)
}

func TestLoadDocumentPlainJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "document.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"config":{"godsImage":"gods.png"}}`), 0o644))

	doc, cleanup, err := LoadDocument(path)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, filepath.Join(dir, "gods.png"), doc.Config.GodsImage)
}

func TestReadBundleInlinesAssets(t *testing.T) {
	path := writeBundle(t, map[string]string{
		"document.json":     `{"template":{"type":"layout"},"config":{"border":"assets/border.png","godsImage":"https://cdn.example/g.png"}}`,
		"assets/border.png": "\x89PNG\r\n\x1a\nrest",
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	doc, err := ReadBundle(data)
	require.NoError(t, err)
	assert.Equal(t, WithoutImage, doc.Template.Type)
	assert.True(t, strings.HasPrefix(doc.Config.Border, "data:image/png;base64,"))
	assert.Equal(t, "https://cdn.example/g.png", doc.Config.GodsImage)

	missing := writeBundle(t, map[string]string{"document.json": `{"config":{"border":"nope.png"}}`})
	data, err = os.ReadFile(missing)
	require.NoError(t, err)
	_, err = ReadBundle(data)
	assert.ErrorContains(t, err, "nope.png")
}

func TestWriteBundleRoundTrip(t *testing.T) {
	doc := NewDocument(Descriptor{ID: "t9", Type: WithImage})
	doc.Fields[0].Value = "Ananya"

	var buf bytes.Buffer
	require.NoError(t, WriteBundle(&buf, &doc))

	got, err := ReadBundle(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, doc, *got)
}
