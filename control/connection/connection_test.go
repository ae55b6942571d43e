package connection

import (
	"errors"
	"testing"
	"time"

	"github.com/jrockway/neopixel-clock/control/animation"
	"github.com/jrockway/neopixel-clock/control/netstat"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/timesync"
	"github.com/jrockway/neopixel-clock/control/tz"
)

type fakeDisplay struct {
	ticks []tz.LocalTime
	err   error
}

func (d *fakeDisplay) Tick(lt tz.LocalTime) error {
	d.ticks = append(d.ticks, lt)
	return d.err
}

type fixture struct {
	m       *Machine
	link    *netstat.FakeLink
	prober  *netstat.FakeProber
	time    *timesync.Fake
	display *fakeDisplay
	surface *pixel.Recorder
	sleeper *animation.RecordingSleeper
}

func newFixture(t *testing.T, links, probes []bool) *fixture {
	t.Helper()
	f := &fixture{
		link:    &netstat.FakeLink{Results: links},
		prober:  &netstat.FakeProber{Results: probes},
		time:    &timesync.Fake{Time: time.Date(2026, 10, 14, 18, 7, 0, 0, time.UTC), Valid: true},
		display: new(fakeDisplay),
		surface: pixel.NewRecorder(44),
		sleeper: new(animation.RecordingSleeper),
	}
	s := Settings{
		SSID:       "clocknet",
		Passphrase: "hunter2",
		TimeServer: "pool.ntp.org",
		ProbeHost:  "pool.ntp.org",
		Attempts:   3,
		Poll:       500 * time.Millisecond,
	}
	f.m = New(s, f.link, f.prober, f.time, tz.Zone{}, f.display, f.surface, f.sleeper)
	t.Cleanup(f.m.Close)
	return f
}

func (f *fixture) steps(t *testing.T, want ...State) {
	t.Helper()
	for i, w := range want {
		if got := f.m.Step(); got != w {
			t.Fatalf("step %d:\n  got: %v\n want: %v", i, got, w)
		}
	}
}

func TestNextIsTotal(t *testing.T) {
	for _, s := range States {
		for _, ok := range []bool{true, false} {
			next := Next(s, ok)
			found := false
			for _, v := range States {
				if v == next {
					found = true
				}
			}
			if !found {
				t.Errorf("Next(%v, %v) = %v, not a state", s, ok, next)
			}
		}
	}
	if got, want := Next(State(42), true), CheckLink; got != want {
		t.Errorf("unknown state:\n  got: %v\n want: %v", got, want)
	}
}

func TestNext(t *testing.T) {
	testData := []struct {
		from State
		ok   bool
		want State
	}{
		{CheckLink, true, CheckReachability},
		{CheckLink, false, AcquireLink},
		{AcquireLink, true, CheckReachability},
		{AcquireLink, false, AcquireLink},
		{CheckReachability, true, Ready},
		{CheckReachability, false, CheckLink},
		{Ready, true, CheckLink},
		{Ready, false, CheckLink},
	}
	for _, test := range testData {
		if got, want := Next(test.from, test.ok), test.want; got != want {
			t.Errorf("Next(%v, %v):\n  got: %v\n want: %v", test.from, test.ok, got, want)
		}
	}
}

func TestAcquireLinkRetriesUntilLinked(t *testing.T) {
	f := newFixture(t, []bool{false, false, false, false, false, false, true}, []bool{true})
	f.steps(t, AcquireLink, AcquireLink, CheckReachability, Ready)

	if got, want := len(f.link.Acquires), 2; got != want {
		t.Errorf("acquires:\n  got: %v\n want: %v", got, want)
	}
	if got, want := f.link.Calls, 1+3+3; got != want {
		t.Errorf("link checks:\n  got: %v\n want: %v", got, want)
	}
	if got, want := len(f.sleeper.Slept), 6; got != want {
		t.Errorf("polls:\n  got: %v\n want: %v", got, want)
	}
	for i, d := range f.sleeper.Slept {
		if d != 500*time.Millisecond {
			t.Errorf("poll %d slept %v", i, d)
		}
	}
	if got, want := f.surface.Clears, 2; got != want {
		t.Errorf("display clears:\n  got: %v\n want: %v", got, want)
	}
	if got, want := f.time.Starts, []string{"pool.ntp.org"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("starts:\n  got: %v\n want: %v", got, want)
	}
}

func TestAcquireErrorKeepsPolling(t *testing.T) {
	f := newFixture(t, []bool{false, true}, []bool{true})
	f.link.AcquireErr = errors.New("wpa_cli: FAIL")
	f.steps(t, AcquireLink, CheckReachability)
}

func TestUnreachableReturnsToCheckLink(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{false, true})
	f.steps(t, CheckReachability, CheckLink, CheckReachability, Ready)
	if got, want := len(f.prober.Hosts), 2; got != want {
		t.Errorf("probes:\n  got: %v\n want: %v", got, want)
	}
	if got, want := len(f.time.Starts), 1; got != want {
		t.Errorf("time sync should only start once reachable:\n  got: %v\n want: %v", got, want)
	}
}

func TestLatchStartsOnce(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{true})
	for i := 0; i < 10; i++ {
		f.steps(t, CheckReachability, Ready, CheckLink)
	}
	if got, want := len(f.time.Starts), 1; got != want {
		t.Errorf("starts:\n  got: %v\n want: %v", got, want)
	}
	if !f.m.Initialized() {
		t.Error("machine should be initialized")
	}
}

func TestLinkLossResetsLatch(t *testing.T) {
	f := newFixture(t, []bool{true, false, true}, []bool{true})
	f.steps(t, CheckReachability, Ready, CheckLink, AcquireLink)
	if f.m.Initialized() {
		t.Fatal("latch should be cleared after losing the link")
	}
	// The client is still running from the first start.
	f.time.StartErr = timesync.ErrAlreadyStarted
	f.steps(t, CheckReachability, Ready)
	if got, want := len(f.time.Starts), 2; got != want {
		t.Errorf("starts:\n  got: %v\n want: %v", got, want)
	}
	if !f.m.Initialized() {
		t.Error("ErrAlreadyStarted should count as started")
	}
}

func TestStartErrorStaysUninitialized(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{true})
	f.time.StartErr = errors.New("no route to host")
	f.steps(t, CheckReachability, CheckLink, CheckReachability, CheckLink)
	if f.m.Initialized() {
		t.Error("machine should not be initialized")
	}
	if got, want := len(f.time.Starts), 2; got != want {
		t.Errorf("starts:\n  got: %v\n want: %v", got, want)
	}
}

func TestReadyTicksOncePerSecond(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{true})
	cycle := func() { f.steps(t, CheckReachability, Ready, CheckLink) }

	cycle()
	cycle()
	if got, want := len(f.display.ticks), 1; got != want {
		t.Fatalf("ticks in one second:\n  got: %v\n want: %v", got, want)
	}
	if got, want := f.display.ticks[0].Minute, 7; got != want {
		t.Errorf("minute:\n  got: %v\n want: %v", got, want)
	}

	f.time.Time = f.time.Time.Add(300 * time.Millisecond)
	cycle()
	if got, want := len(f.display.ticks), 1; got != want {
		t.Errorf("ticks within the same second:\n  got: %v\n want: %v", got, want)
	}

	f.time.Time = f.time.Time.Add(time.Second)
	cycle()
	if got, want := len(f.display.ticks), 2; got != want {
		t.Errorf("ticks after a second:\n  got: %v\n want: %v", got, want)
	}
}

func TestReadyWaitsForValidTime(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{true})
	f.time.Valid = false
	f.steps(t, CheckReachability, Ready, CheckLink)
	if got, want := len(f.display.ticks), 0; got != want {
		t.Errorf("ticks:\n  got: %v\n want: %v", got, want)
	}
}

func TestDisplayErrorDoesNotStopMachine(t *testing.T) {
	f := newFixture(t, []bool{true}, []bool{true})
	f.display.err = errors.New("flush: spi went away")
	f.steps(t, CheckReachability, Ready, CheckLink, CheckReachability)
}
