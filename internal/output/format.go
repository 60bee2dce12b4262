package output

import (
	"fmt"
	"math"
)

var byteUnits = []string{"B", "KB", "MB", "GB"}

// Bytes renders a byte count with binary units: one decimal below 100,
// none above.
func Bytes(n int64) string {
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	if size >= 100 {
		return fmt.Sprintf("%.0f %s", size, byteUnits[unit])
	}
	return fmt.Sprintf("%.1f %s", size, byteUnits[unit])
}

// SizeDelta renders the output size and its change relative to the source,
// e.g. "12.0 KB (-40.0%)". The percentage is omitted when the source size is
// unknown.
func SizeDelta(source, out int64) string {
	if source <= 0 {
		return Bytes(out)
	}
	pct := float64(out-source) / float64(source) * 100
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	if math.Abs(pct) < 0.05 {
		pct, sign = 0, ""
	}
	return fmt.Sprintf("%s (%s%.1f%%)", Bytes(out), sign, pct)
}
