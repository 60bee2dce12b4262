package pipeline

import (
	"context"
	"time"

	"github.com/AnyUserName/pixconv/internal/decoder"
	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/resize"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters for building a Pipeline.
type Config struct {
	Strategy  decoder.Strategy
	CWebPPath string
	MaxPixels int
	Logger    logrus.FieldLogger
}

// Pipeline composes decode, target-size calculation and encode.
type Pipeline struct {
	decoder  *decoder.Decoder
	registry *encoder.Registry
	log      logrus.FieldLogger
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	return NewWith(
		decoder.New(cfg.Strategy, cfg.MaxPixels),
		encoder.NewRegistry(encoder.Options{CWebPPath: cfg.CWebPPath, MaxPixels: cfg.MaxPixels}),
		cfg.Logger,
	)
}

// NewWith creates a pipeline from existing parts.
func NewWith(dec *decoder.Decoder, reg *encoder.Registry, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{decoder: dec, registry: reg, log: log}
}

// Decoder returns the decoder, mainly so callers can inspect live handles.
func (p *Pipeline) Decoder() *decoder.Decoder { return p.decoder }

// Registry returns the encoder registry.
func (p *Pipeline) Registry() *encoder.Registry { return p.registry }

// Available reports whether f is a supported format whose encoder can run
// right now.
func (p *Pipeline) Available(f encoder.Format) bool {
	if !f.Valid() {
		return false
	}
	enc := p.registry.Get(f)
	return enc != nil && enc.Available()
}

// Probe decodes src once to learn its dimensions.
func (p *Pipeline) Probe(ctx context.Context, src []byte, declaredMime string) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}

	h, err := p.decoder.Probe(src)
	if err != nil {
		return Meta{}, err
	}
	defer h.Dispose()

	if declaredMime == "" {
		declaredMime = "image/*"
	}
	return Meta{
		Width:    h.Width,
		Height:   h.Height,
		MimeType: declaredMime,
		ByteSize: int64(len(src)),
	}, nil
}

// Convert decodes src, resizes per settings and encodes to the target format.
// The decode handle is released before Convert returns on every path.
func (p *Pipeline) Convert(ctx context.Context, src []byte, s Settings) (*Result, error) {
	if !s.Format.Valid() {
		return nil, &encoder.UnsupportedFormatError{Format: string(s.Format)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	h, err := p.decoder.Probe(src)
	if err != nil {
		return nil, err
	}
	defer h.Dispose()

	img, err := h.Image()
	if err != nil {
		return nil, err
	}

	width, height := resize.TargetSize(h.Width, h.Height, s.Resize)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := p.registry.Encode(img, width, height, s.Format, s.Quality)
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"format": s.Format,
		"src":    [2]int{h.Width, h.Height},
		"dst":    [2]int{width, height},
		"bytes":  len(data),
		"took":   time.Since(start).Round(time.Millisecond),
	}).Debug("converted image")

	return &Result{
		Data:   data,
		Size:   int64(len(data)),
		Format: s.Format,
		Width:  width,
		Height: height,
	}, nil
}
