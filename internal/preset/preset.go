// Package preset holds the default conversion settings for new items and a
// few named presets selectable from the CLI.
package preset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/resize"
)

// DefaultQuality is the [0,1] quality new items start with.
const DefaultQuality = 0.9

// Preset overrides parts of an item's default settings.
type Preset struct {
	Name    string
	Format  encoder.Format // empty = keep the per-input default
	Quality float64        // 0 = keep
	Width   int            // 0 = keep
	Height  int
}

// Built-in presets.
var presets = map[string]Preset{
	"default": {
		Name: "default",
	},
	"web": {
		Name:    "web",
		Format:  encoder.WEBP,
		Quality: 0.82,
		Width:   1280,
	},
	"thumbnail": {
		Name:    "thumbnail",
		Format:  encoder.JPEG,
		Quality: 0.78,
		Width:   320,
	},
	"lossless": {
		Name:   "lossless",
		Format: encoder.PNG,
	},
}

// Get returns a preset by name.
func Get(name string) (Preset, error) {
	if p, ok := presets[name]; ok {
		return p, nil
	}
	return Preset{}, fmt.Errorf("unknown preset %q (want %s)", name, strings.Join(Names(), ", "))
}

// Names returns the built-in preset names, sorted.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultFormat picks the output format for an input mime type: a format
// different from the input, so a fresh item always converts to something.
func DefaultFormat(mime string) encoder.Format {
	switch mime {
	case "image/png":
		return encoder.JPEG
	case "image/jpeg":
		return encoder.WEBP
	case "image/webp":
		return encoder.JPEG
	default:
		return encoder.PNG
	}
}

// Defaults returns the settings a newly added item of the given mime type
// starts with.
func Defaults(mime string) pipeline.Settings {
	q := DefaultQuality
	return pipeline.Settings{
		Format:  DefaultFormat(mime),
		Quality: &q,
		Resize:  &resize.Spec{LockAspect: true},
	}
}

// Apply returns s with the preset's overrides applied.
func (p Preset) Apply(s pipeline.Settings) pipeline.Settings {
	out := s.Clone()
	if p.Format != "" {
		out.Format = p.Format
	}
	if p.Quality > 0 {
		q := p.Quality
		out.Quality = &q
	}
	if p.Width > 0 || p.Height > 0 {
		if out.Resize == nil {
			out.Resize = &resize.Spec{LockAspect: true}
		}
		out.Resize.Width = p.Width
		out.Resize.Height = p.Height
	}
	return out
}
