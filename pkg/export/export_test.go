package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	img     *image.RGBA
	tainted bool
	readErr error
}

func (s *fakeSource) Tainted() bool { return s.tainted }

func (s *fakeSource) ReadBack() (*image.RGBA, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.img, nil
}

func canvas() *fakeSource {
	img := image.NewRGBA(image.Rect(0, 0, 794, 1123))
	for y := 0; y < 1123; y++ {
		for x := 0; x < 794; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), uint8(x ^ y), 0xff})
		}
	}
	return &fakeSource{img: img}
}

type outcomes []string

func (o *outcomes) ObserveExport(format, outcome string, _ time.Duration) {
	*o = append(*o, format+":"+outcome)
}

func TestPNGKeepsCanvasSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Exporter{}).Export(&buf, canvas(), PNG, Options{}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 794, 1123), img.Bounds())
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 92, jpegQuality(0))
	assert.Equal(t, 92, jpegQuality(-1))
	assert.Equal(t, 92, jpegQuality(1.5))
	assert.Equal(t, 50, jpegQuality(0.5))
	assert.Equal(t, 100, jpegQuality(1))
	assert.Equal(t, 1, jpegQuality(0.001))

	var low, high bytes.Buffer
	e := &Exporter{}
	require.NoError(t, e.Export(&low, canvas(), JPEG, Options{Quality: 0.1}))
	require.NoError(t, e.Export(&high, canvas(), JPEG, Options{Quality: 1}))
	assert.Less(t, low.Len(), high.Len())

	img, err := jpeg.Decode(&high)
	require.NoError(t, err)
	assert.Equal(t, 794, img.Bounds().Dx())
}

func TestPDFPageSizes(t *testing.T) {
	cases := map[PageSize]string{
		PageA4:     "/MediaBox [0 0 595.28 841.89]",
		PageLetter: "/MediaBox [0 0 612.00 792.00]",
	}
	for page, box := range cases {
		var buf bytes.Buffer
		require.NoError(t, (&Exporter{}).Export(&buf, canvas(), PDF, Options{Page: page}), page)
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "%PDF-"), page)
		assert.Contains(t, out, box, page)
		assert.Contains(t, out, "/Subtype /Image", page)
	}

	_, err := ParsePageSize("legal")
	assert.Error(t, err)
	p, err := ParsePageSize("LETTER")
	require.NoError(t, err)
	assert.Equal(t, PageLetter, p)
	p, err = ParsePageSize("")
	require.NoError(t, err)
	assert.Equal(t, PageA4, p)
}

func TestDOCXPackage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Exporter{}).Export(&buf, canvas(), DOCX, Options{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = data
	}

	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/document.xml",
		"word/_rels/document.xml.rels",
		"word/media/image1.png",
	} {
		assert.Contains(t, files, name)
	}

	doc := string(files["word/document.xml"])
	assert.Contains(t, doc, `<wp:extent cx="7556500" cy="10693400"/>`)
	assert.Contains(t, doc, `<w:pgSz w:w="11900" w:h="16840"/>`)
	assert.Contains(t, doc, `r:embed="rIdImage1"`)
	assert.Contains(t, string(files["word/_rels/document.xml.rels"]), `Target="media/image1.png"`)

	img, err := png.Decode(bytes.NewReader(files["word/media/image1.png"]))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 794, 1123), img.Bounds())
}

func TestTaintedCanvasBlocksEveryFormat(t *testing.T) {
	var seen outcomes
	e := &Exporter{Observer: &seen}
	src := canvas()
	src.tainted = true

	for _, f := range []Format{PNG, JPEG, PDF, DOCX} {
		var buf bytes.Buffer
		err := e.Export(&buf, src, f, Options{})
		assert.ErrorIs(t, err, ErrExportBlocked, f)
		assert.Zero(t, buf.Len(), f)
	}
	assert.Equal(t, outcomes{"png:blocked", "jpeg:blocked", "pdf:blocked", "docx:blocked"}, seen)

	path := filepath.Join(t.TempDir(), "out.png")
	assert.ErrorIs(t, e.WriteFile(path, src, Options{}), ErrExportBlocked)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadBackFailureBlocks(t *testing.T) {
	src := canvas()
	src.readErr = errors.New("canvas is tainted by cross-origin data")

	var buf bytes.Buffer
	err := (&Exporter{}).Export(&buf, src, PNG, Options{})
	assert.ErrorIs(t, err, ErrExportBlocked)
	assert.ErrorIs(t, err, src.readErr)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailureIsExportError(t *testing.T) {
	err := (&Exporter{}).Export(failingWriter{}, canvas(), PNG, Options{})
	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, PNG, ee.Format)
}

func TestWriteFileByExtension(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{}

	for name, magic := range map[string]string{
		"a.png":  "\x89PNG",
		"b.jpg":  "\xff\xd8",
		"c.jpeg": "\xff\xd8",
		"d.pdf":  "%PDF",
		"e.docx": "PK",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, e.WriteFile(path, canvas(), Options{}), name)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), magic), name)
	}

	assert.Error(t, e.WriteFile(filepath.Join(dir, "f.gif"), canvas(), Options{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "no temporary files left behind")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": PNG, ".JPG": JPEG, "jpeg": JPEG, "pdf": PDF, "word": DOCX, ".docx": DOCX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("svg")
	assert.Error(t, err)
	assert.Equal(t, ".jpg", JPEG.Ext())
	assert.Equal(t, "application/pdf", PDF.ContentType())
}
