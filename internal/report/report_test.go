package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/pixconv/internal/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleReport writes one converted output into dir and returns a report
// describing it plus a failed and a skipped entry.
func sampleReport(t *testing.T, dir string) *Report {
	t.Helper()
	out := []byte("converted jpeg bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "banner.jpg"), out, 0o644))

	r := New("web")
	r.Quota = &Quota{Max: 20, Remaining: 19}
	r.Entries["banner.png"] = Entry{
		Source: SourceInfo{Mime: "image/png", Width: 800, Height: 600, Size: 100000},
		Output: &OutputInfo{
			Path: "banner.jpg", Format: "jpeg", Width: 400, Height: 300,
			Size: int64(len(out)), Hash: hasher.Sum(out, hasher.DefaultLen),
		},
		Status: "done",
	}
	r.Entries["broken.png"] = Entry{
		Source: SourceInfo{Mime: "image/png", Size: 12},
		Status: "probe-failed",
		Error:  "failed to read image: png: invalid format",
	}
	r.Entries["later.gif"] = Entry{
		Source: SourceInfo{Mime: "image/gif", Width: 10, Height: 10, Size: 500},
		Status: "ready",
	}
	return r
}

func TestReportRoundtrip(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport(t, dir)

	path := filepath.Join(dir, FileName)
	require.NoError(t, WriteJSON(r, path))

	r2, err := ReadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, SupportedVersion, r2.Version)
	assert.Equal(t, "web", r2.Preset)
	require.NotNil(t, r2.Quota)
	assert.Equal(t, 19, r2.Quota.Remaining)

	e, ok := r2.Entries["banner.png"]
	require.True(t, ok)
	require.NotNil(t, e.Output)
	assert.Equal(t, "jpeg", e.Output.Format)
	assert.Nil(t, r2.Entries["broken.png"].Output)

	assert.Equal(t, 3, r2.Stats.TotalEntries)
	assert.Equal(t, 1, r2.Stats.Converted)
	assert.Equal(t, 1, r2.Stats.Failed)
	assert.Equal(t, 1, r2.Stats.Skipped)
	assert.Equal(t, int64(100512), r2.Stats.TotalInputBytes)
	assert.Equal(t, int64(100000), r2.Stats.ConvertedInput)
}

func TestReportIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"version": 1,
		"generated_at": "2025-01-01T00:00:00Z",
		"preset": "default",
		"future_field": "should be ignored",
		"stats": { "total_entries": 0, "new_stat": 42 }
	}`
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	r, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Version)
	assert.NotNil(t, r.Entries)
}

func TestReadJSON_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := ReadJSON(path)
	assert.ErrorContains(t, err, "parse report")
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport(t, dir)
	r.ComputeStats()

	assert.Empty(t, Validate(r, dir))
}

func TestValidate_Problems(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport(t, dir)
	r.ComputeStats()

	// Tamper with the file on disk.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "banner.jpg"), []byte("CONVERTED JPEG BYTES"), 0o644))
	// And add an entry whose output is missing.
	r.Entries["ghost.png"] = Entry{
		Source: SourceInfo{Mime: "image/png", Width: 1, Height: 1, Size: 1},
		Output: &OutputInfo{Path: "ghost.png", Format: "png", Width: 1, Height: 1, Size: 1, Hash: "00"},
		Status: "done",
	}

	errs := Validate(r, dir)
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0], "hash mismatch")
	assert.Contains(t, errs[1], "file not found")
	assert.Contains(t, errs[2], "stats.total_entries")
	assert.Contains(t, errs[3], "stats.converted")
	assert.Contains(t, errs[4], "stats.total_output_bytes")
}

func TestValidate_DuplicatePathAndVersion(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport(t, dir)
	r.Version = 7
	dup := r.Entries["banner.png"]
	r.Entries["banner copy.png"] = dup
	r.ComputeStats()

	errs := Validate(r, dir)
	data, _ := json.Marshal(errs)
	require.Len(t, errs, 2, string(data))
	assert.Contains(t, errs[0], "unsupported report version")
	assert.Contains(t, errs[1], `also used by "banner copy.png"`)
}
