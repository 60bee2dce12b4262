package encoder

import (
	"fmt"
	"image"
	"strings"
)

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WEBP Format = "webp"
)

// Supported lists the output formats in display order.
var Supported = []Format{PNG, JPEG, WEBP}

// ParseFormat accepts a format name, extension or mime type
// ("jpg", ".jpeg", "image/webp", ...).
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "image/")
	v = strings.TrimPrefix(v, ".")
	switch v {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WEBP, nil
	}
	return "", &UnsupportedFormatError{Format: s}
}

// Valid reports whether f is one of the supported output formats.
func (f Format) Valid() bool {
	switch f {
	case PNG, JPEG, WEBP:
		return true
	}
	return false
}

// Extension returns the output file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case WEBP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// MIME returns the mime type of the format.
func (f Format) MIME() string { return "image/" + string(f) }

// Lossy reports whether the format takes a quality parameter.
func (f Format) Lossy() bool { return f == JPEG || f == WEBP }

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format.
	Format() Format

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality.
	Encode(img image.Image, quality int) ([]byte, error)

	// Available returns true if the encoder is ready to use.
	// External encoders (cwebp) may not be installed.
	Available() bool
}

// EncodeError reports a render or encode failure.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("encode: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports an output format outside Supported.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q (want png, jpeg or webp)", e.Format)
}
