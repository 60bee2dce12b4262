package cmd

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/AnyUserName/pixconv/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default between runs of the shared
// root command.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.PersistentFlags().VisitAll(reset)
		c.Flags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

type env struct {
	dir    string
	config string
}

func setupEnv(t *testing.T, max int) *env {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pixconv.yaml")
	body := "ratelimit:\n" +
		"  store: file\n" +
		"  dir: " + filepath.Join(dir, "state") + "\n" +
		"  max: " + strconv.Itoa(max) + "\n" +
		"output:\n  colors: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return &env{dir: dir, config: cfgPath}
}

// addConfig appends raw yaml to the env's config file.
func (e *env) addConfig(t *testing.T, yaml string) {
	t.Helper()
	f, err := os.OpenFile(e.config, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(yaml)
	require.NoError(t, err)
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--no-color"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeImage(t *testing.T, path string, w, h int, asJPEG bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if asJPEG {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRootCmd_Help(t *testing.T) {
	e := setupEnv(t, 5)

	out, err := e.run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"convert", "probe", "quota", "stats", "validate"} {
		assert.Contains(t, out, name)
	}
}

func TestConvert_StopsAtRateLimit(t *testing.T) {
	e := setupEnv(t, 2)
	in := filepath.Join(e.dir, "in")
	writeImage(t, filepath.Join(in, "a.png"), 40, 20, false)
	writeImage(t, filepath.Join(in, "b.png"), 40, 20, false)
	writeImage(t, filepath.Join(in, "c.png"), 40, 20, false)
	outDir := filepath.Join(e.dir, "out")

	out, err := e.run(t, "convert", in, "-o", outDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Rate limit reached")

	r, err := report.ReadJSON(filepath.Join(outDir, report.FileName))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Stats.TotalEntries)
	assert.Equal(t, 2, r.Stats.Converted)
	require.NotNil(t, r.Quota)
	assert.True(t, r.Quota.Limited)
	assert.Zero(t, r.Quota.Remaining)
	assert.Equal(t, 60, r.Quota.RetryAfterMinutes)

	// Insertion order: a and b are converted, png defaults to jpeg.
	require.NotNil(t, r.Entries["a.png"].Output)
	assert.Equal(t, "a.jpg", r.Entries["a.png"].Output.Path)
	assert.Equal(t, "jpeg", r.Entries["a.png"].Output.Format)
	require.NotNil(t, r.Entries["b.png"].Output)
	assert.Nil(t, r.Entries["c.png"].Output)
	assert.Equal(t, "ready", r.Entries["c.png"].Status)

	_, err = e.run(t, "validate", outDir)
	assert.NoError(t, err)

	out, err = e.run(t, "stats", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted:      2")

	// A second run cannot start at all.
	out, err = e.run(t, "convert", filepath.Join(in, "c.png"), "-o", filepath.Join(e.dir, "out2"))
	require.NoError(t, err)
	assert.Contains(t, out, "Rate limit reached")
	r2, err := report.ReadJSON(filepath.Join(e.dir, "out2", report.FileName))
	require.NoError(t, err)
	assert.Zero(t, r2.Stats.Converted)
	assert.Positive(t, r2.Quota.RetryAfterMinutes)

	out, err = e.run(t, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining:  0 of 2")

	_, err = e.run(t, "quota", "reset")
	require.NoError(t, err)
	out, err = e.run(t, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining:  2 of 2")
}

func TestConvert_FlagsOverrideDefaults(t *testing.T) {
	e := setupEnv(t, 5)
	src := filepath.Join(e.dir, "photo.jpeg")
	writeImage(t, src, 40, 20, true)
	outDir := filepath.Join(e.dir, "out")

	out, err := e.run(t, "convert", src, "-o", outDir, "--format", "png", "--width", "10", "--height", "99")
	require.NoError(t, err, out)

	r, err := report.ReadJSON(filepath.Join(outDir, report.FileName))
	require.NoError(t, err)
	entry := r.Entries["photo.jpeg"]
	require.NotNil(t, entry.Output, entry.Error)
	assert.Equal(t, "photo.png", entry.Output.Path)
	assert.Equal(t, "png", entry.Output.Format)
	// Width wins under locked aspect.
	assert.Equal(t, 10, entry.Output.Width)
	assert.Equal(t, 5, entry.Output.Height)
	assert.Equal(t, 40, entry.Source.Width)

	_, err = os.Stat(filepath.Join(outDir, "photo.png"))
	assert.NoError(t, err)
}

func TestConvert_UnlockedAspect(t *testing.T) {
	e := setupEnv(t, 5)
	src := filepath.Join(e.dir, "wide.png")
	writeImage(t, src, 40, 20, false)
	outDir := filepath.Join(e.dir, "out")

	_, err := e.run(t, "convert", src, "-o", outDir, "-f", "jpeg", "--width", "10", "--height", "30", "--no-lock-aspect")
	require.NoError(t, err)

	r, err := report.ReadJSON(filepath.Join(outDir, report.FileName))
	require.NoError(t, err)
	o := r.Entries["wide.png"].Output
	require.NotNil(t, o)
	assert.Equal(t, 10, o.Width)
	assert.Equal(t, 30, o.Height)
}

func TestConvert_SkipsUnsupportedAndBroken(t *testing.T) {
	e := setupEnv(t, 5)
	in := filepath.Join(e.dir, "in")
	writeImage(t, filepath.Join(in, "good.png"), 8, 8, false)
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.png"), []byte("just text"), 0o644))
	broken := filepath.Join(in, "broken.png")
	writeImage(t, broken, 32, 32, false)
	data, err := os.ReadFile(broken)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(broken, data[:60], 0o644))
	outDir := filepath.Join(e.dir, "out")

	out, err := e.run(t, "convert", in, "-o", outDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "skipping notes.png")

	r, err := report.ReadJSON(filepath.Join(outDir, report.FileName))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Stats.Converted)
	assert.Equal(t, 2, r.Stats.Failed)
	assert.Equal(t, "skipped", r.Entries["notes.png"].Status)
	assert.Equal(t, "probe-failed", r.Entries["broken.png"].Status)
	assert.Contains(t, r.Entries["broken.png"].Error, "failed to read image")
	// Only the converted image spent a slot.
	assert.Equal(t, 4, r.Quota.Remaining)
}

func TestConvert_InvalidFormat(t *testing.T) {
	e := setupEnv(t, 5)
	src := filepath.Join(e.dir, "a.png")
	writeImage(t, src, 4, 4, false)

	_, err := e.run(t, "convert", src, "-o", filepath.Join(e.dir, "out"), "--format", "avif")
	assert.Error(t, err)
}

func TestConvert_UnknownPreset(t *testing.T) {
	e := setupEnv(t, 5)
	src := filepath.Join(e.dir, "a.png")
	writeImage(t, src, 4, 4, false)
	outDir := filepath.Join(e.dir, "out")

	_, err := e.run(t, "convert", src, "-o", outDir, "--preset", "tumbnail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown preset "tumbnail"`)

	_, statErr := os.Stat(filepath.Join(outDir, report.FileName))
	assert.True(t, os.IsNotExist(statErr), "no report for a rejected run")

	out, err := e.run(t, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining:  5 of 5")
}

func TestConvert_MissingWebPEncoderSpendsNoQuota(t *testing.T) {
	e := setupEnv(t, 5)
	e.addConfig(t, "encoder:\n  cwebp_path: "+filepath.Join(e.dir, "no-cwebp")+"\n")
	in := filepath.Join(e.dir, "in")
	writeImage(t, filepath.Join(in, "photo.jpg"), 16, 8, true)
	writeImage(t, filepath.Join(in, "icon.png"), 8, 8, false)
	outDir := filepath.Join(e.dir, "out")

	out, err := e.run(t, "convert", in, "-o", outDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "encoder unavailable")

	r, err := report.ReadJSON(filepath.Join(outDir, report.FileName))
	require.NoError(t, err)
	photo := r.Entries["photo.jpg"]
	assert.Nil(t, photo.Output)
	assert.Contains(t, photo.Error, "webp encoder unavailable")
	assert.Equal(t, "ready", photo.Status)
	require.NotNil(t, r.Entries["icon.png"].Output)

	// Only the png spent a slot.
	assert.Equal(t, 4, r.Quota.Remaining)
	assert.False(t, r.Quota.Limited)
}

func TestProbe_DoesNotSpendQuota(t *testing.T) {
	e := setupEnv(t, 3)
	src := filepath.Join(e.dir, "a.png")
	writeImage(t, src, 12, 7, false)

	out, err := e.run(t, "probe", src)
	require.NoError(t, err)
	assert.Contains(t, out, "12x7")
	assert.Contains(t, out, "jpeg")

	out, err = e.run(t, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining:  3 of 3")
}

func TestValidate_DetectsTampering(t *testing.T) {
	e := setupEnv(t, 5)
	src := filepath.Join(e.dir, "a.png")
	writeImage(t, src, 8, 8, false)
	outDir := filepath.Join(e.dir, "out")

	_, err := e.run(t, "convert", src, "-o", outDir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(outDir, "a.jpg")))

	out, err := e.run(t, "validate", filepath.Join(outDir, report.FileName))
	assert.Error(t, err)
	assert.Contains(t, out, "file not found")
}

func TestUniquePath(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a.jpg", uniquePath("a.jpg", used))
	assert.Equal(t, "a-1.jpg", uniquePath("a.jpg", used))
	assert.Equal(t, "a-2.jpg", uniquePath("a.jpg", used))
	assert.Equal(t, "cards/b.png", uniquePath("cards/b.png", used))
}

func TestOutputRelPath(t *testing.T) {
	assert.Equal(t, "a.webp", outputRelPath("a.jpeg", "webp"))
	assert.Equal(t, "cards/b.png", outputRelPath("cards/b.gif", "png"))
	assert.Equal(t, "image.jpg", outputRelPath(".png", "jpeg"))
}
