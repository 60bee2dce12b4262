package encoder

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

const (
	// DefaultQuality is used for lossy formats when no quality is given.
	DefaultQuality = 90

	// MaxSurfacePixels caps the render surface area (about 1 GiB of NRGBA).
	MaxSurfacePixels = 16384 * 16384
)

// Options configures a Registry.
type Options struct {
	CWebPPath string // empty = look up "cwebp" in PATH
	MaxPixels int    // 0 = MaxSurfacePixels
}

// Registry holds one encoder per output format.
type Registry struct {
	encoders  map[Format]Encoder
	maxPixels int
}

// NewRegistry creates a registry with the built-in encoders.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		encoders:  make(map[Format]Encoder),
		maxPixels: opts.MaxPixels,
	}
	if r.maxPixels <= 0 {
		r.maxPixels = MaxSurfacePixels
	}

	for _, enc := range []Encoder{
		&WebPEncoder{Path: opts.CWebPPath},
		&JPEGEncoder{},
		&PNGEncoder{},
	} {
		r.Register(enc)
	}
	return r
}

// Register installs enc for its format, replacing any previous encoder.
func (r *Registry) Register(enc Encoder) {
	r.encoders[enc.Format()] = enc
}

// Get returns the encoder for the given format, or nil if none is registered.
func (r *Registry) Get(f Format) Encoder {
	return r.encoders[f]
}

// Available returns the formats whose encoders are usable right now.
func (r *Registry) Available() []Format {
	var result []Format
	for _, f := range Supported {
		if enc, ok := r.encoders[f]; ok && enc.Available() {
			result = append(result, f)
		}
	}
	return result
}

// Encode renders img into a fresh width x height surface and encodes it.
// quality is in [0,1] and only forwarded for lossy formats.
func (r *Registry) Encode(img image.Image, width, height int, f Format, quality *float64) ([]byte, error) {
	if !f.Valid() {
		return nil, &UnsupportedFormatError{Format: string(f)}
	}
	enc := r.encoders[f]
	if enc == nil || !enc.Available() {
		return nil, &EncodeError{Format: f, Err: errors.New("encoder unavailable")}
	}

	surface, err := Render(img, width, height, r.maxPixels)
	if err != nil {
		return nil, &EncodeError{Format: f, Err: err}
	}

	q := 0
	if f.Lossy() {
		q = QualityPercent(quality)
	}

	data, err := enc.Encode(surface, q)
	if err != nil {
		return nil, &EncodeError{Format: f, Err: err}
	}
	if len(data) == 0 {
		return nil, &EncodeError{Format: f, Err: errors.New("encoder produced no data")}
	}
	return data, nil
}

// QualityPercent maps a [0,1] quality to the 1-100 scale encoders use.
// nil yields DefaultQuality; out-of-range values are clamped.
func QualityPercent(q *float64) int {
	if q == nil || math.IsNaN(*q) {
		return DefaultQuality
	}
	v := math.Min(math.Max(*q, 0), 1)
	p := int(math.Round(v * 100))
	if p < 1 {
		p = 1
	}
	return p
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	names := make([]string, len(avail))
	for i, f := range avail {
		names[i] = string(f)
	}
	return fmt.Sprintf("encoders: %s", strings.Join(names, ", "))
}
