package pixel

import (
	stdcolor "image/color"

	"github.com/jrockway/neopixel-clock/control/color"
)

// Recorder is an in-memory Surface for tests.  It keeps the frame buffer, a copy of every flushed
// frame, and counts of the calls it received.
type Recorder struct {
	Pixels     []color.Color
	Frames     [][]color.Color
	Flushes    int
	Clears     int
	Brightness float64

	// FlushError, if set, is returned by Flush.
	FlushError error
}

var _ Surface = (*Recorder)(nil)

// NewRecorder returns a Recorder with n black pixels.
func NewRecorder(n int) *Recorder {
	return &Recorder{Pixels: make([]color.Color, n), Brightness: MaxBrightness}
}

func (r *Recorder) Len() int { return len(r.Pixels) }

func (r *Recorder) Set(index int, c stdcolor.Color) {
	checkIndex(index, len(r.Pixels))
	r.Pixels[index] = color.FromColor(c)
}

func (r *Recorder) SetBrightness(b float64) { r.Brightness = ClampBrightness(b) }

func (r *Recorder) Clear() error {
	r.Clears++
	for i := range r.Pixels {
		r.Pixels[i] = color.Black
	}
	return r.Flush()
}

func (r *Recorder) Flush() error {
	if r.FlushError != nil {
		return r.FlushError
	}
	r.Flushes++
	r.Frames = append(r.Frames, append([]color.Color(nil), r.Pixels...))
	return nil
}

// Count returns how many pixels of the zone currently have color c.
func (r *Recorder) Count(z Zone, c color.Color) int {
	n := 0
	for i := z.Offset; i < z.End(); i++ {
		if r.Pixels[i] == c {
			n++
		}
	}
	return n
}
