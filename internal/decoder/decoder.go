// Package decoder turns raw image bytes into a drawable handle with known
// pixel dimensions.
//
// Handles hold decoded pixel buffers which can be large; callers must call
// Dispose once they are done with a handle. The Decoder keeps a count of live
// handles so leaks are observable.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"

	_ "golang.org/x/image/webp"
)

// Strategy selects how pixels are decoded.
type Strategy string

const (
	// StrategyEager decodes the full bitmap in Probe.
	StrategyEager Strategy = "eager"
	// StrategyLazy reads only the header in Probe and decodes pixels on the
	// first Image call.
	StrategyLazy Strategy = "lazy"
)

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyEager, "":
		return StrategyEager, nil
	case StrategyLazy:
		return StrategyLazy, nil
	default:
		return "", fmt.Errorf("invalid decoder strategy %q: must be eager or lazy", s)
	}
}

// DecodeError reports bytes that cannot be interpreted as a supported raster
// image.
type DecodeError struct {
	Format string // detected format, may be empty
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DefaultMaxPixels caps the pixel count a header may declare before the
// bitmap is allocated.
const DefaultMaxPixels = 16384 * 16384

var errZeroSize = errors.New("image has zero width or height")

// ErrTooLarge is wrapped by the DecodeError returned for images whose header
// declares more pixels than the decoder accepts.
var ErrTooLarge = errors.New("image too large")

// Decoder creates handles. The zero value is not usable; use New.
type Decoder struct {
	strategy  Strategy
	maxPixels int
	live      atomic.Int64
	decodes   atomic.Int64
}

// New returns a decoder using the given strategy. maxPixels <= 0 means
// DefaultMaxPixels.
func New(strategy Strategy, maxPixels int) *Decoder {
	if strategy == "" {
		strategy = StrategyEager
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{strategy: strategy, maxPixels: maxPixels}
}

// Strategy returns the decode strategy in use.
func (d *Decoder) Strategy() Strategy { return d.strategy }

// Live returns the number of handles that have not been disposed.
func (d *Decoder) Live() int64 { return d.live.Load() }

// Decodes returns how many probe calls reached the image decoders.
func (d *Decoder) Decodes() int64 { return d.decodes.Load() }

// MaxPixels returns the largest accepted width*height.
func (d *Decoder) MaxPixels() int { return d.maxPixels }

// Probe decodes src and returns a handle. On error no handle is left open.
//
// The header is always read first and checked against MaxPixels, so a
// small file declaring huge dimensions fails here instead of allocating.
func (d *Decoder) Probe(src []byte) (*Handle, error) {
	d.decodes.Add(1)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Format: format, Err: errZeroSize}
	}
	if exceeds(cfg.Width, cfg.Height, d.maxPixels) {
		return nil, &DecodeError{
			Format: format,
			Err:    fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, d.maxPixels),
		}
	}

	if d.strategy == StrategyLazy {
		return d.open(nil, src, cfg.Width, cfg.Height, format), nil
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Format: format, Err: errZeroSize}
	}
	return d.open(img, nil, b.Dx(), b.Dy(), format), nil
}

// exceeds reports whether w*h > limit without overflowing. w and h are
// positive.
func exceeds(w, h, limit int) bool {
	return w > limit || h > limit/w
}

func (d *Decoder) open(img image.Image, src []byte, w, h int, format string) *Handle {
	d.live.Add(1)
	return &Handle{
		Width:  w,
		Height: h,
		Format: format,
		img:    img,
		src:    src,
		owner:  d,
	}
}

// Handle is a decoded (or decodable) image surface.
type Handle struct {
	Width  int
	Height int
	Format string // "png", "jpeg", "gif", "webp"

	mu       sync.Mutex
	img      image.Image
	src      []byte // pending bytes for lazy handles
	owner    *Decoder
	disposed bool
}

// Image returns the decoded pixels, decoding them first for lazy handles.
func (h *Handle) Image() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed {
		return nil, errors.New("decoder: handle already disposed")
	}
	if h.img != nil {
		return h.img, nil
	}

	img, format, err := image.Decode(bytes.NewReader(h.src))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	h.img = img
	h.src = nil
	return img, nil
}

// Dispose releases the pixel buffer. Safe to call more than once.
func (h *Handle) Dispose() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed {
		return
	}
	h.disposed = true
	h.img = nil
	h.src = nil
	h.owner.live.Add(-1)
}
