// Package resize computes final render dimensions from a source size and an
// optional resize request.
package resize

import "math"

// Spec is a resize request. Zero (or negative) Width/Height means "not set".
type Spec struct {
	Width      int  `json:"width,omitempty"`
	Height     int  `json:"height,omitempty"`
	LockAspect bool `json:"lock_aspect"`
}

// IsEmpty reports whether the spec requests no change.
func (s *Spec) IsEmpty() bool {
	return s == nil || (s.Width <= 0 && s.Height <= 0)
}

// TargetSize returns the dimensions an image of srcW x srcH is rendered at.
//
// With LockAspect and both axes given, width wins: the requested height is
// discarded and recomputed from the width so the image is never distorted.
func TargetSize(srcW, srcH int, spec *Spec) (int, int) {
	if spec.IsEmpty() {
		return srcW, srcH
	}

	tw, th := spec.Width, spec.Height
	if tw < 0 {
		tw = 0
	}
	if th < 0 {
		th = 0
	}

	if !spec.LockAspect {
		w, h := srcW, srcH
		if tw > 0 {
			w = tw
		}
		if th > 0 {
			h = th
		}
		return atLeastOne(w), atLeastOne(h)
	}

	switch {
	case tw > 0:
		return atLeastOne(tw), scale(tw, srcH, srcW)
	case th > 0:
		return scale(th, srcW, srcH), atLeastOne(th)
	}
	return srcW, srcH
}

// scale returns round(v * num / den), minimum 1.
func scale(v, num, den int) int {
	if den <= 0 {
		return atLeastOne(v)
	}
	return atLeastOne(int(math.Round(float64(v) * float64(num) / float64(den))))
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
