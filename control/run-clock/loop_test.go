package main

import (
	"context"
	"errors"
	stdcolor "image/color"
	"sync"
	"testing"
	"time"

	"github.com/jrockway/neopixel-clock/control/color"
	"github.com/jrockway/neopixel-clock/control/pixel"
)

// loggingSurface records the order of calls made to a Recorder.
type loggingSurface struct {
	mu     sync.Mutex
	r      *pixel.Recorder
	events []string
}

func (s *loggingSurface) log(e string) {
	s.events = append(s.events, e)
}

func (s *loggingSurface) Len() int { return s.r.Len() }

func (s *loggingSurface) Set(index int, c stdcolor.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log("set")
	s.r.Set(index, c)
}

func (s *loggingSurface) SetBrightness(b float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.SetBrightness(b)
}

func (s *loggingSurface) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log("flush")
	return s.r.Flush()
}

func (s *loggingSurface) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log("clear")
	return s.r.Clear()
}

// animatingRunner plays a few frames without looking at its context, like a calendar reveal that
// is in progress when the signal arrives.
type animatingRunner struct {
	surface pixel.Surface
	started chan struct{}
	frames  int
}

func (a *animatingRunner) Run(ctx context.Context) error {
	close(a.started)
	for i := 0; i < a.frames; i++ {
		a.surface.Set(i, color.White)
		a.surface.Flush()
		time.Sleep(20 * time.Millisecond)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestStopLoopWaitsForAnimation(t *testing.T) {
	s := &loggingSurface{r: pixel.NewRecorder(44)}
	a := &animatingRunner{surface: s, started: make(chan struct{}), frames: 5}
	ctx, cancel := context.WithCancel(context.Background())
	loopDoneCh := startLoop(ctx, a)
	<-a.started

	stopLoop(cancel, loopDoneCh, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if got, want := len(s.events), 2*a.frames+1; got != want {
		t.Fatalf("events:\n  got: %v\n want: %v", got, want)
	}
	if got, want := s.events[len(s.events)-1], "clear"; got != want {
		t.Errorf("last event:\n  got: %v\n want: %v", got, want)
	}
	if got, want := s.r.Count(pixel.Zone{Offset: 0, Size: 44}, color.Black), 44; got != want {
		t.Errorf("black pixels after stop:\n  got: %v\n want: %v", got, want)
	}
}

type failingRunner struct{ err error }

func (f failingRunner) Run(ctx context.Context) error { return f.err }

func TestStartLoopReportsError(t *testing.T) {
	want := errors.New("spi went away")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopDoneCh := startLoop(ctx, failingRunner{err: want})
	select {
	case err := <-loopDoneCh:
		if !errors.Is(err, want) {
			t.Errorf("loop error:\n  got: %v\n want: %v", err, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for loop error")
	}

	// Stopping a loop that already died does not block.
	r := pixel.NewRecorder(44)
	stopLoop(cancel, loopDoneCh, r)
	if got, want := r.Clears, 1; got != want {
		t.Errorf("clears:\n  got: %v\n want: %v", got, want)
	}
}
