// Package pixel addresses the clock's LEDs.  The two rings and the strip are wired as one chain, so
// every LED has a single index in a flat address space that is divided into zones.
package pixel

import (
	"fmt"
	stdcolor "image/color"
)

// Surface is anything that can display pixels.
type Surface interface {
	// Set changes the color of one pixel in the frame buffer.  It panics if index is out of range.
	Set(index int, c stdcolor.Color)
	// Flush makes the frame buffer visible.
	Flush() error
	// Clear sets every pixel to black and flushes.
	Clear() error
	// SetBrightness scales all future flushes.  It is clamped to [MinBrightness, MaxBrightness].
	SetBrightness(b float64)
	// Len returns the number of addressable pixels.
	Len() int
}

const (
	MinBrightness = 0.01
	MaxBrightness = 0.8
)

// ClampBrightness limits b to the range the power supply can handle.
func ClampBrightness(b float64) float64 {
	if b < MinBrightness {
		return MinBrightness
	}
	if b > MaxBrightness {
		return MaxBrightness
	}
	return b
}

// Zone is a contiguous run of pixels belonging to one physical LED group.
type Zone struct {
	Offset int `toml:"offset"`
	Size   int `toml:"size"`
}

// End returns one past the last index in the zone.
func (z Zone) End() int { return z.Offset + z.Size }

// Contains reports whether the absolute index falls inside the zone.
func (z Zone) Contains(index int) bool { return index >= z.Offset && index < z.End() }

// Index maps a position relative to the start of the zone to an absolute index.  Positions wrap, so
// walking past the end of a ring lands back at its start.
func (z Zone) Index(pos int) int {
	pos %= z.Size
	if pos < 0 {
		pos += z.Size
	}
	return z.Offset + pos
}

// Layout is the partition of the address space into the large ring, the small ring, and the strip.
type Layout struct {
	LargeRing Zone `toml:"large_ring"`
	SmallRing Zone `toml:"small_ring"`
	Strip     Zone `toml:"strip"`
}

// Len returns the total number of pixels described by the layout.
func (l Layout) Len() int {
	n := 0
	for _, z := range l.Zones() {
		if e := z.End(); e > n {
			n = e
		}
	}
	return n
}

// Zones returns the zones in address order of the default wiring.
func (l Layout) Zones() []Zone {
	return []Zone{l.LargeRing, l.SmallRing, l.Strip}
}

// Validate checks that every zone is non-empty and that no two zones overlap.
func (l Layout) Validate() error {
	names := []string{"large ring", "small ring", "strip"}
	zones := l.Zones()
	for i, z := range zones {
		if z.Size <= 0 {
			return fmt.Errorf("%s: size %d must be positive", names[i], z.Size)
		}
		if z.Offset < 0 {
			return fmt.Errorf("%s: negative offset %d", names[i], z.Offset)
		}
	}
	for i, a := range zones {
		for j := i + 1; j < len(zones); j++ {
			b := zones[j]
			if a.Offset < b.End() && b.Offset < a.End() {
				return fmt.Errorf("%s [%d, %d) overlaps %s [%d, %d)", names[i], a.Offset, a.End(), names[j], b.Offset, b.End())
			}
		}
	}
	return nil
}

// Fill sets every pixel of the zone to c.  It does not flush.
func Fill(s Surface, z Zone, c stdcolor.Color) {
	for i := z.Offset; i < z.End(); i++ {
		s.Set(i, c)
	}
}

// checkIndex panics if index is outside [0, n).
func checkIndex(index, n int) {
	if index < 0 || index >= n {
		panic(fmt.Sprintf("pixel index %d out of range [0, %d)", index, n))
	}
}
