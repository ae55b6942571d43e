package pixel

import (
	"fmt"
	stdcolor "image/color"
)

// Tee is a Surface that forwards everything to several surfaces, e.g. an LED transport and a
// headless Strand for the preview.  The first surface determines Len.
type Tee []Surface

var _ Surface = Tee(nil)

func (t Tee) Len() int {
	if len(t) == 0 {
		return 0
	}
	return t[0].Len()
}

func (t Tee) Set(index int, c stdcolor.Color) {
	for _, s := range t {
		s.Set(index, c)
	}
}

func (t Tee) SetBrightness(b float64) {
	for _, s := range t {
		s.SetBrightness(b)
	}
}

// Flush flushes every surface and returns the first error.  A failing surface does not stop the
// others from being flushed.
func (t Tee) Flush() error {
	var first error
	for i, s := range t {
		if err := s.Flush(); err != nil && first == nil {
			first = fmt.Errorf("surface %d: %w", i, err)
		}
	}
	return first
}

func (t Tee) Clear() error {
	var first error
	for i, s := range t {
		if err := s.Clear(); err != nil && first == nil {
			first = fmt.Errorf("surface %d: %w", i, err)
		}
	}
	return first
}
