package intake

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestScan_Directory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "cards", "b.PNG"))
	writePNG(t, filepath.Join(dir, ".hidden", "c.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	sources, err := Scan([]string{dir})
	require.NoError(t, err)

	var rel []string
	for _, s := range sources {
		rel = append(rel, s.RelPath)
		assert.True(t, filepath.IsAbs(s.AbsPath))
		assert.Positive(t, s.Size)
	}
	sort.Strings(rel)
	assert.Equal(t, []string{"a.png", "cards/b.PNG"}, rel)
}

func TestScan_FilesAndDedup(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.bin")
	writePNG(t, p)

	sources, err := Scan([]string{p, p})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "photo.bin", sources[0].RelPath)
}

func TestScan_Missing(t *testing.T) {
	_, err := Scan([]string{filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
}

func TestRead_DetectsMime(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "looks-like.jpg") // extension lies
	writePNG(t, pngPath)
	jpgPath := filepath.Join(dir, "real.jpg")
	writeJPEG(t, jpgPath)
	txtPath := filepath.Join(dir, "x.png")
	require.NoError(t, os.WriteFile(txtPath, []byte("plain text"), 0o644))

	sources, err := Scan([]string{pngPath, jpgPath, txtPath})
	require.NoError(t, err)

	want := []string{"image/png", "image/jpeg", "text/plain; charset=utf-8"}
	for i, src := range sources {
		f, err := Read(src)
		require.NoError(t, err)
		assert.Equal(t, want[i], f.MIME, src.RelPath)
		assert.NotEmpty(t, f.Data)
	}
}
