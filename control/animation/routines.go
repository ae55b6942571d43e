package animation

import (
	"time"

	"github.com/jrockway/neopixel-clock/control/color"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/tz"
)

// Pacing holds the frame timings of the decorative animations.
type Pacing struct {
	RainbowWait time.Duration
	PulseWait   time.Duration
	PulseSteps  int
	PulseCycles int
	RevealStep  time.Duration
	RevealHold  time.Duration
}

// Palette holds the colors of the clock face and the calendar reveal.
type Palette struct {
	Background color.Color
	Second     color.Color
	Minute     color.Color
	Overlap    color.Color // second and minute on the same pixel.
	Hour       color.Color
	AM         color.Color
	PM         color.Color

	Pulse [3]color.Color

	RevealPrimary   color.Color
	RevealSecondary color.Color // steps past the end of the large ring.
	DayOfWeek       color.Color
	Month           color.Color
	DayOfMonth      color.Color
	Year            color.Color
}

// DefaultPalette is what the clock ships with.
var DefaultPalette = Palette{
	Background: color.Scale(color.Blue, 0.08),
	Second:     color.Red,
	Minute:     color.Green,
	Overlap:    color.Yellow,
	Hour:       color.Orange,
	AM:         color.Cyan,
	PM:         color.Pink,

	Pulse: [3]color.Color{color.Red, color.Green, color.Blue},

	RevealPrimary:   color.White,
	RevealSecondary: color.Red,
	DayOfWeek:       color.Yellow,
	Month:           color.Green,
	DayOfMonth:      color.Blue,
	Year:            color.Purple,
}

// Blank is a single all-black frame.
func Blank() Sequence {
	return Sequence{{Clear: true}}
}

// Direction is which way the strip indicator is moving.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Bounce moves the strip indicator one step.  It reverses at both ends without dwelling there, so
// on an 8 pixel strip the indicator visits 0..7, then 6..0, then 1..7, and so on.
func Bounce(index int, dir Direction, size int) (int, Direction) {
	if size <= 1 {
		return 0, dir
	}
	if dir == Up {
		index++
		if index > size-1 {
			return size - 2, Down
		}
		return index, Up
	}
	index--
	if index < 0 {
		return 1, Up
	}
	return index, Down
}

// ringPosition proportionally maps v in [0, max) onto a ring of size pixels.
func ringPosition(v, max, size int) int {
	return v * size / max
}

// ClockFace is the running display: background everywhere, second and minute on the large ring,
// hour on the small ring, and the indicator on the strip colored by AM/PM.
func ClockFace(l pixel.Layout, lt tz.LocalTime, indicator int, p Palette) Sequence {
	var w []Write
	for _, z := range l.Zones() {
		w = append(w, fill(z, p.Background)...)
	}

	secPixel := l.LargeRing.Index(ringPosition(lt.Second, 60, l.LargeRing.Size))
	minPixel := l.LargeRing.Index(ringPosition(lt.Minute, 60, l.LargeRing.Size))
	if secPixel == minPixel {
		w = append(w, Write{Index: secPixel, Color: p.Overlap})
	} else {
		w = append(w, Write{Index: secPixel, Color: p.Second}, Write{Index: minPixel, Color: p.Minute})
	}

	hour := l.SmallRing.Index(ringPosition(lt.Hour12%12, 12, l.SmallRing.Size))
	w = append(w, Write{Index: hour, Color: p.Hour})

	ampm := p.AM
	if lt.PM {
		ampm = p.PM
	}
	w = append(w, Write{Index: l.Strip.Index(indicator), Color: ampm})
	return Sequence{{Writes: w}}
}

// RainbowCycle spins three full turns of the color wheel across every pixel.
func RainbowCycle(l pixel.Layout, wait time.Duration) Sequence {
	n := l.Len()
	seq := make(Sequence, 0, 256*3)
	for j := 0; j < 256*3; j++ {
		w := make([]Write, n)
		for i := 0; i < n; i++ {
			w[i] = Write{Index: i, Color: color.Wheel(uint8((i*256/n + j) & 255))}
		}
		seq = append(seq, Frame{Writes: w, Hold: wait})
	}
	return seq
}

// rotation returns the zone colors for rotation r: the large ring, small ring and strip each take
// the next of the three pulse colors.
func rotation(colors [3]color.Color, r int) [3]color.Color {
	return [3]color.Color{colors[r%3], colors[(r+1)%3], colors[(r+2)%3]}
}

func crossFade(l pixel.Layout, from, to [3]color.Color, steps int, wait time.Duration) Sequence {
	zones := l.Zones()
	seq := make(Sequence, 0, steps)
	for s := 1; s <= steps; s++ {
		t := float64(s) / float64(steps)
		var w []Write
		for i, z := range zones {
			w = append(w, fill(z, color.Blend(from[i], to[i], t))...)
		}
		seq = append(seq, Frame{Writes: w, Hold: wait})
	}
	return seq
}

// TriColorPulse fades the three zones in from black, cross-fades them through the rotations of the
// pulse colors for the configured number of cycles, and fades them back out.
func TriColorPulse(l pixel.Layout, pace Pacing, p Palette) Sequence {
	steps := pace.PulseSteps
	if steps < 1 {
		steps = 1
	}
	black := [3]color.Color{color.Black, color.Black, color.Black}
	var seq Sequence
	prev := black
	for r := 0; r < 3*pace.PulseCycles; r++ {
		next := rotation(p.Pulse, r)
		seq = append(seq, crossFade(l, prev, next, steps, pace.PulseWait)...)
		prev = next
	}
	return append(seq, crossFade(l, prev, black, steps, pace.PulseWait)...)
}

// Field is one value shown by the calendar reveal.
type Field struct {
	Name     string
	Value    int
	Category color.Color
}

// Fields returns the calendar fields in reveal order.  The year is shown as years since 2000.
func Fields(lt tz.LocalTime, p Palette) []Field {
	year := lt.Year - 2000
	if year < 0 {
		year = 0
	}
	return []Field{
		{Name: "day of week", Value: lt.DayOfWeek, Category: p.DayOfWeek},
		{Name: "month", Value: lt.Month, Category: p.Month},
		{Name: "day of month", Value: lt.DayOfMonth, Category: p.DayOfMonth},
		{Name: "year", Value: year, Category: p.Year},
	}
}

// Reveal shows one field: the strip and small ring in the field's category color, then an
// indicator walking Value steps around the large ring.  Steps that wrap past the end of the ring
// use the secondary color, so 27 is a full primary lap and three secondary pixels.
func Reveal(l pixel.Layout, f Field, pace Pacing, p Palette) Sequence {
	seq := Sequence{{
		Clear:  true,
		Writes: append(fill(l.Strip, f.Category), fill(l.SmallRing, f.Category)...),
		Hold:   pace.RevealStep,
	}}
	for k := 0; k < f.Value; k++ {
		c := p.RevealPrimary
		if k >= l.LargeRing.Size {
			c = p.RevealSecondary
		}
		seq = append(seq, Frame{Writes: []Write{{Index: l.LargeRing.Index(k), Color: c}}, Hold: pace.RevealStep})
	}
	return append(seq, Frame{Hold: pace.RevealHold})
}

// CalendarReveal shows the day of week, month, day of month and year in turn, then clears.
func CalendarReveal(l pixel.Layout, lt tz.LocalTime, pace Pacing, p Palette) Sequence {
	var seq Sequence
	for _, f := range Fields(lt, p) {
		seq = append(seq, Reveal(l, f, pace, p)...)
	}
	return append(seq, Blank()...)
}
