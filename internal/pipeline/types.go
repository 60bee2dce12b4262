// Package pipeline converts one image: decode, compute the target size,
// render and encode.
package pipeline

import (
	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/resize"
)

// Meta describes a probed source image. Immutable once created.
type Meta struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	ByteSize int64  `json:"byte_size"`
}

// Settings are the user-editable conversion parameters of an item.
type Settings struct {
	Format  encoder.Format `json:"format"`
	Quality *float64       `json:"quality,omitempty"` // [0,1]; ignored for PNG
	Resize  *resize.Spec   `json:"resize,omitempty"`
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	if s.Quality != nil {
		q := *s.Quality
		out.Quality = &q
	}
	if s.Resize != nil {
		r := *s.Resize
		out.Resize = &r
	}
	return out
}

// Result is an encoded output.
type Result struct {
	Data   []byte
	Size   int64
	Format encoder.Format
	Width  int
	Height int
}
