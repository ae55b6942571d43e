// Package animation turns what the clock wants to show into frames.  Routines never touch hardware
// or sleep; they return a Sequence, and a Player paints each frame and holds it for its duration.
// This lets tests step through an animation instantly while the device keeps real-time pacing.
package animation

import (
	"fmt"
	"time"

	"github.com/jrockway/neopixel-clock/control/color"
	"github.com/jrockway/neopixel-clock/control/pixel"
)

// Write sets one pixel.
type Write struct {
	Index int
	Color color.Color
}

// Frame is a set of writes applied on top of the previous frame, flushed, and then held.
type Frame struct {
	Clear  bool // start from an all-black frame buffer.
	Writes []Write
	Hold   time.Duration
}

// Sequence is an animation.
type Sequence []Frame

// Duration returns the total hold time of the sequence.
func (s Sequence) Duration() time.Duration {
	var d time.Duration
	for _, f := range s {
		d += f.Hold
	}
	return d
}

// fill returns writes that paint every pixel of z with c.
func fill(z pixel.Zone, c color.Color) []Write {
	w := make([]Write, 0, z.Size)
	for i := z.Offset; i < z.End(); i++ {
		w = append(w, Write{Index: i, Color: c})
	}
	return w
}

// Sleeper pauses the caller.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealTime sleeps with time.Sleep.
type RealTime struct{}

func (RealTime) Sleep(d time.Duration) { time.Sleep(d) }

// RecordingSleeper records requested pauses without sleeping.
type RecordingSleeper struct {
	Slept []time.Duration
}

func (r *RecordingSleeper) Sleep(d time.Duration) { r.Slept = append(r.Slept, d) }

// Total returns the sum of all recorded pauses.
func (r *RecordingSleeper) Total() time.Duration {
	var d time.Duration
	for _, s := range r.Slept {
		d += s
	}
	return d
}

// Player paints sequences onto a surface.
type Player struct {
	Surface pixel.Surface
	Sleeper Sleeper
}

// Play paints and holds each frame in order.  A flush error aborts the sequence; the surface is
// left as it was after the last successful frame.
func (p *Player) Play(seq Sequence) error {
	for i, f := range seq {
		if f.Clear {
			for j := 0; j < p.Surface.Len(); j++ {
				p.Surface.Set(j, color.Black)
			}
		}
		for _, w := range f.Writes {
			p.Surface.Set(w.Index, w.Color)
		}
		if err := p.Surface.Flush(); err != nil {
			return fmt.Errorf("flush frame %d of %d: %w", i+1, len(seq), err)
		}
		if f.Hold > 0 && p.Sleeper != nil {
			p.Sleeper.Sleep(f.Hold)
		}
	}
	return nil
}
