// Package connection keeps the clock connected.  Nothing is cached: every pass through the machine
// re-checks the link and the time server, which is how the clock recovers from power cuts, WiFi
// outages and upstream failures without a watchdog.
package connection

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jrockway/neopixel-clock/control/animation"
	"github.com/jrockway/neopixel-clock/control/netstat"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/timesync"
	"github.com/jrockway/neopixel-clock/control/tz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	transitionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_transitions_total",
		Help: "count of connection state machine transitions",
	}, []string{"from", "to"})

	acquireErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_acquire_errors_total",
		Help: "count of link acquisition requests that could not be issued",
	})

	acquireFailuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_acquire_failures_total",
		Help: "count of link acquisitions that used up their retry budget",
	})

	unreachableCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reachability_failures_total",
		Help: "count of reachability probes that failed while the link was up",
	})

	displayErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_errors_total",
		Help: "count of display ticks that failed to reach the LEDs",
	})
)

// State is the state of the connection machine.
type State int

const (
	CheckLink State = iota
	AcquireLink
	CheckReachability
	Ready
)

func (s State) String() string {
	switch s {
	case CheckLink:
		return "check-link"
	case AcquireLink:
		return "acquire-link"
	case CheckReachability:
		return "check-reachability"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// States lists every state.
var States = []State{CheckLink, AcquireLink, CheckReachability, Ready}

// Next is the transition table.  ok is the outcome of the state's query: linked for CheckLink,
// linked within the retry budget for AcquireLink, reachable for CheckReachability.  Ready ignores it.
func Next(s State, ok bool) State {
	switch s {
	case CheckLink:
		if ok {
			return CheckReachability
		}
		return AcquireLink
	case AcquireLink:
		if ok {
			return CheckReachability
		}
		return AcquireLink
	case CheckReachability:
		if ok {
			return Ready
		}
		return CheckLink
	default:
		return CheckLink
	}
}

// Display is the part of the display machine that the connection machine drives.
type Display interface {
	Tick(lt tz.LocalTime) error
}

// Settings configure the connection machine.
type Settings struct {
	SSID       string
	Passphrase string
	TimeServer string
	ProbeHost  string
	Attempts   int
	Poll       time.Duration
}

// Machine is the connection state machine.
type Machine struct {
	Settings Settings
	Link     netstat.Link
	Prober   netstat.Prober
	Time     timesync.Source
	Zone     tz.Zone
	Display  Display
	Surface  pixel.Surface
	Sleeper  animation.Sleeper

	state       State
	initialized bool
	lastSecond  int64
	haveSecond  bool
	l           trace.EventLog
}

// New returns a machine in the CheckLink state.
func New(s Settings, link netstat.Link, prober netstat.Prober, source timesync.Source, zone tz.Zone, d Display, surface pixel.Surface, sleeper animation.Sleeper) *Machine {
	return &Machine{
		Settings: s,
		Link:     link,
		Prober:   prober,
		Time:     source,
		Zone:     zone,
		Display:  d,
		Surface:  surface,
		Sleeper:  sleeper,
		state:    CheckLink,
		l:        trace.NewEventLog("connection", s.SSID),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Initialized reports whether the time-sync client has been started since the link last came up.
func (m *Machine) Initialized() bool { return m.initialized }

// Close finishes the machine's event log.
func (m *Machine) Close() { m.l.Finish() }

// Step does the work of the current state and moves to the next one.
func (m *Machine) Step() State {
	from := m.state
	var ok bool
	switch from {
	case CheckLink:
		ok = m.Link.Linked()
	case AcquireLink:
		ok = m.acquire()
	case CheckReachability:
		ok = m.checkReachability()
	case Ready:
		m.ready()
	}
	m.state = Next(from, ok)
	if m.state != from {
		transitionsCounter.WithLabelValues(from.String(), m.state.String()).Inc()
		m.l.Printf("%v -> %v", from, m.state)
	}
	return m.state
}

// acquire blanks the display, forgets the time-sync latch, and tries to join the network within
// the retry budget.
func (m *Machine) acquire() bool {
	if err := m.Surface.Clear(); err != nil {
		m.l.Errorf("clear display: %v", err)
	}
	m.initialized = false
	if err := m.Link.Acquire(m.Settings.SSID, m.Settings.Passphrase); err != nil {
		acquireErrorsCounter.Inc()
		m.l.Errorf("acquire link: %v", err)
	}
	for attempt := 1; attempt <= m.Settings.Attempts; attempt++ {
		m.Sleeper.Sleep(m.Settings.Poll)
		if m.Link.Linked() {
			m.l.Printf("linked to %q after %d polls", m.Settings.SSID, attempt)
			return true
		}
	}
	acquireFailuresCounter.Inc()
	m.l.Errorf("not linked to %q after %d polls; retrying", m.Settings.SSID, m.Settings.Attempts)
	return false
}

func (m *Machine) checkReachability() bool {
	if !m.Prober.Reachable(m.Settings.ProbeHost) {
		unreachableCounter.Inc()
		m.l.Errorf("%s unreachable", m.Settings.ProbeHost)
		return false
	}
	if m.initialized {
		return true
	}
	err := m.Time.Start(m.Settings.TimeServer)
	if err != nil && !errors.Is(err, timesync.ErrAlreadyStarted) {
		m.l.Errorf("start time sync with %s: %v", m.Settings.TimeServer, err)
		return false
	}
	log.Printf("time sync started with %s", m.Settings.TimeServer)
	m.initialized = true
	return true
}

// ready ticks the display if the wall clock is valid and has moved on to a new second.
func (m *Machine) ready() {
	now, ok := m.Time.Now()
	if !ok {
		return
	}
	sec := now.Unix()
	if m.haveSecond && sec == m.lastSecond {
		return
	}
	m.lastSecond, m.haveSecond = sec, true
	lt, _ := m.Zone.ToLocal(now)
	if err := m.Display.Tick(lt); err != nil {
		displayErrorsCounter.Inc()
		m.l.Errorf("display tick: %v", err)
	}
}
