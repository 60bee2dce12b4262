package pipeline

import (
	"path"
	"strings"

	"github.com/AnyUserName/pixconv/internal/encoder"
)

// OutputName derives the output file name: the source's last extension is
// replaced by the format's extension, and "image" is used when nothing is
// left of the name.
func OutputName(name string, f encoder.Format) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "image"
	}
	return base + f.Extension()
}
