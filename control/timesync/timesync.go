// Package timesync keeps track of the offset between the local clock and a network time source.
package timesync

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyStarted is returned by Start on a client that is already running.
	ErrAlreadyStarted = errors.New("time sync already started")
	// ErrNotStarted is returned by operations that need a started client.
	ErrNotStarted = errors.New("time sync not started")
)

// Source is a time-sync client.  Start must be called once, after the time server is known to be
// reachable.  Now returns the best estimate of the current UTC time and whether that estimate is
// backed by an actual synchronization.
type Source interface {
	Start(server string) error
	Now() (time.Time, bool)
}

// Fake is a Source for tests.
type Fake struct {
	Time     time.Time
	Valid    bool
	Starts   []string
	StartErr error
}

var _ Source = (*Fake)(nil)

func (f *Fake) Start(server string) error {
	f.Starts = append(f.Starts, server)
	return f.StartErr
}

func (f *Fake) Now() (time.Time, bool) { return f.Time, f.Valid }
