package report

// FileName is the report written next to the converted outputs.
const FileName = "pixconv.report.json"

// Report is the top-level output of a convert run.
type Report struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Preset      string           `json:"preset"`
	Quota       *Quota           `json:"quota,omitempty"`
	Entries     map[string]Entry `json:"entries"` // keyed by source path
	Stats       Stats            `json:"stats"`
}

// Quota records the rate limiter state at the end of the run.
type Quota struct {
	Max               int  `json:"max"`
	Remaining         int  `json:"remaining"`
	Limited           bool `json:"limited"`
	RetryAfterMinutes int  `json:"retry_after_minutes,omitempty"`
}

// Entry describes one source image and what became of it.
type Entry struct {
	Source SourceInfo  `json:"source"`
	Output *OutputInfo `json:"output,omitempty"` // nil when not converted
	Status string      `json:"status"`           // item state: done, error, ready, probe-failed
	Error  string      `json:"error,omitempty"`
}

// SourceInfo holds metadata about the input image.
type SourceInfo struct {
	Mime   string `json:"mime"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Size   int64  `json:"size"`
}

// OutputInfo is the converted file.
type OutputInfo struct {
	Path   string `json:"path"` // relative to the report
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"` // first 16 hex chars of xxhash64
}

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"` // converted entries only
	ConvertedInput   int64 `json:"converted_input_bytes"`
	TotalEntries     int   `json:"total_entries"`
	Converted        int   `json:"converted"`
	Failed           int   `json:"failed"`
	Skipped          int   `json:"skipped"`
}

// SupportedVersion is the current schema version.
const SupportedVersion = 1
