// Package clock runs the clock's main loop.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/jrockway/neopixel-clock/control/connection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_iterations_total",
		Help: "count of connection state machine steps taken by the main loop",
	})

	missedSecondsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_seconds_total",
		Help: "count of seconds that went by without the loop reaching the ready state",
	})

	stepDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "step_duration_seconds",
		Help:    "wall time spent in one step of the connection state machine",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)

// Stepper is a state machine that the loop advances.
type Stepper interface {
	State() connection.State
	Step() connection.State
}

// Clock repeatedly steps the connection state machine.
type Clock struct {
	Machine Stepper
	// Idle is how long to pause between steps.
	Idle time.Duration
	// Now is the wall clock used for metrics; time.Now if nil.
	Now func() time.Time

	lastReady time.Time
}

// DefaultIdle keeps the loop from spinning a core while still noticing each second promptly.
const DefaultIdle = 10 * time.Millisecond

func New(m Stepper) *Clock {
	return &Clock{Machine: m, Idle: DefaultIdle}
}

func (c *Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// noteReady counts the seconds skipped since the previous visit to the ready state.
func (c *Clock) noteReady(t time.Time) {
	if !c.lastReady.IsZero() {
		if gap := t.Sub(c.lastReady); gap > 2*time.Second {
			missedSecondsCounter.Add(float64(gap/time.Second - 1))
		}
	}
	c.lastReady = t
}

// Run steps the machine until the context is cancelled.  Cancellation is only noticed between
// steps; an animation that is playing runs to completion.
func (c *Clock) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running clock: %w", ctx.Err())
		default:
		}

		start := c.now()
		if c.Machine.State() == connection.Ready {
			c.noteReady(start)
		}
		c.Machine.Step()
		iterationsCounter.Inc()
		stepDelayMetric.Observe(c.now().Sub(start).Seconds())

		if c.Idle > 0 {
			select {
			case <-time.After(c.Idle):
			case <-ctx.Done():
				return fmt.Errorf("idle between steps: %w", ctx.Err())
			}
		}
	}
}
