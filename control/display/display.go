// Package display decides what the clock shows each second.  Most seconds it draws the clock face;
// on 10, 15 and 30 minute boundaries it plays a decoration instead, once per boundary.
package display

import (
	"fmt"
	"time"

	"github.com/jrockway/neopixel-clock/control/animation"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/tz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "display_events_total",
		Help: "count of display routines run, by event",
	}, []string{"event"})

	renderMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "display_render_seconds",
		Help:    "wall time spent in one display routine, including animation delays",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"state"})
)

// State is the state of the display machine.
type State int

const (
	Dispatch State = iota
	Running
	Event10
	Event15
	Event30
)

func (s State) String() string {
	switch s {
	case Dispatch:
		return "dispatch"
	case Running:
		return "running"
	case Event10:
		return "event10"
	case Event15:
		return "event15"
	case Event30:
		return "event30"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Memory is what the machine remembers between ticks.
type Memory struct {
	// PreviousMinute is the minute value of the last event that fired.
	PreviousMinute int
	// Index and Direction are the position of the strip indicator.
	Index     int
	Direction animation.Direction
}

// Machine is the display state machine.  It is not safe for concurrent use; the scheduler loop is
// its only caller.
type Machine struct {
	Layout  pixel.Layout
	Pacing  animation.Pacing
	Palette animation.Palette
	Player  *animation.Player

	state  State
	memory Memory
}

// New returns a machine in the Dispatch state.  PreviousMinute starts out as a value no minute can
// have, so a boundary that is current at startup still fires.  An invalid layout is a programming
// error and panics; configured layouts are checked by config.Validate first.
func New(l pixel.Layout, pace animation.Pacing, palette animation.Palette, player *animation.Player) *Machine {
	if err := l.Validate(); err != nil {
		panic(fmt.Sprintf("display: invalid layout: %v", err))
	}
	if n := player.Surface.Len(); n < l.Len() {
		panic(fmt.Sprintf("display: layout needs %d pixels but the surface has %d", l.Len(), n))
	}
	return &Machine{
		Layout:  l,
		Pacing:  pace,
		Palette: palette,
		Player:  player,
		state:   Dispatch,
		memory:  Memory{PreviousMinute: -1, Direction: animation.Up},
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Memory returns a copy of the machine's memory.
func (m *Machine) Memory() Memory { return m.memory }

// Select is the Dispatch state: it picks the routine for this tick.  Firing an event records the
// minute, so the same boundary does not fire again on the next second.
func (m *Machine) Select(lt tz.LocalTime) State {
	next := choose(lt.Minute, m.memory.PreviousMinute)
	if next != Running {
		m.memory.PreviousMinute = lt.Minute
	}
	m.state = next
	return next
}

func choose(minute, previous int) State {
	if minute == previous {
		return Running
	}
	switch {
	case minute%30 == 0:
		return Event30
	case minute != 0 && minute%15 == 0:
		return Event15
	case minute != 0 && minute%10 == 0:
		return Event10
	default:
		return Running
	}
}

// Tick runs one tick: Dispatch selects a routine, the routine runs to completion, and the machine
// returns to Dispatch.
func (m *Machine) Tick(lt tz.LocalTime) error {
	state := m.Select(lt)
	start := time.Now()
	defer func() {
		renderMetric.WithLabelValues(state.String()).Observe(time.Since(start).Seconds())
		eventsCounter.WithLabelValues(state.String()).Inc()
		m.state = Dispatch
	}()

	var seq animation.Sequence
	switch state {
	case Running:
		seq = animation.ClockFace(m.Layout, lt, m.memory.Index, m.Palette)
		m.memory.Index, m.memory.Direction = animation.Bounce(m.memory.Index, m.memory.Direction, m.Layout.Strip.Size)
	case Event10:
		seq = animation.RainbowCycle(m.Layout, m.Pacing.RainbowWait)
	case Event15:
		seq = animation.TriColorPulse(m.Layout, m.Pacing, m.Palette)
	case Event30:
		seq = animation.CalendarReveal(m.Layout, lt, m.Pacing, m.Palette)
	}
	if err := m.Player.Play(seq); err != nil {
		return fmt.Errorf("%v: %w", state, err)
	}
	return nil
}
