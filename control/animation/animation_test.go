package animation

import (
	"errors"
	"testing"
	"time"

	"github.com/jrockway/neopixel-clock/control/color"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/tz"
)

var (
	testLayout = pixel.Layout{
		LargeRing: pixel.Zone{Offset: 0, Size: 24},
		SmallRing: pixel.Zone{Offset: 24, Size: 12},
		Strip:     pixel.Zone{Offset: 36, Size: 8},
	}
	testPacing = Pacing{
		RainbowWait: 5 * time.Millisecond,
		PulseWait:   10 * time.Millisecond,
		PulseSteps:  4,
		PulseCycles: 2,
		RevealStep:  150 * time.Millisecond,
		RevealHold:  1500 * time.Millisecond,
	}
)

func TestBounce(t *testing.T) {
	index, dir := 0, Up
	want := []int{1, 2, 3, 4, 5, 6, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6}
	for step, w := range want {
		index, dir = Bounce(index, dir, 8)
		if index < 0 || index > 7 {
			t.Fatalf("step %d: index %d left the strip", step, index)
		}
		if got := index; got != w {
			t.Errorf("step %d:\n  got: %v\n want: %v", step, got, w)
		}
	}

	if index, dir := Bounce(7, Up, 8); index != 6 || dir != Down {
		t.Errorf("bounce at top: got %d %v", index, dir)
	}
	if index, dir := Bounce(0, Down, 8); index != 1 || dir != Up {
		t.Errorf("bounce at bottom: got %d %v", index, dir)
	}
	if index, _ := Bounce(0, Up, 1); index != 0 {
		t.Errorf("single pixel strip: got %d", index)
	}
}

func play(t *testing.T, seq Sequence) (*pixel.Recorder, *RecordingSleeper) {
	t.Helper()
	r := pixel.NewRecorder(testLayout.Len())
	s := new(RecordingSleeper)
	p := &Player{Surface: r, Sleeper: s}
	if err := p.Play(seq); err != nil {
		t.Fatalf("play: %v", err)
	}
	return r, s
}

func TestClockFace(t *testing.T) {
	p := DefaultPalette
	lt := tz.LocalTime{Hour: 15, Hour12: 3, Minute: 30, Second: 45, PM: true}
	r, s := play(t, ClockFace(testLayout, lt, 5, p))
	if got, want := r.Flushes, 1; got != want {
		t.Errorf("flushes:\n  got: %v\n want: %v", got, want)
	}
	if got, want := len(s.Slept), 0; got != want {
		t.Errorf("sleeps:\n  got: %v\n want: %v", got, want)
	}
	checks := []struct {
		name  string
		index int
		want  color.Color
	}{
		{"second", 18, p.Second},
		{"minute", 12, p.Minute},
		{"hour", 24 + 3, p.Hour},
		{"indicator", 36 + 5, p.PM},
		{"background", 0, p.Background},
		{"strip background", 36, p.Background},
	}
	for _, c := range checks {
		if got := r.Pixels[c.index]; got != c.want {
			t.Errorf("%s (pixel %d):\n  got: %v\n want: %v", c.name, c.index, got, c.want)
		}
	}

	// Twelve o'clock is the top of the small ring, and an overlapping second and minute share a
	// color.
	r, _ = play(t, ClockFace(testLayout, tz.LocalTime{Hour: 0, Hour12: 12, Minute: 0, Second: 1}, 0, p))
	if got, want := r.Pixels[24], p.Hour; got != want {
		t.Errorf("midnight hour:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Pixels[0], p.Overlap; got != want {
		t.Errorf("overlap:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Pixels[36], p.AM; got != want {
		t.Errorf("am indicator:\n  got: %v\n want: %v", got, want)
	}
}

func TestRainbowCycle(t *testing.T) {
	seq := RainbowCycle(testLayout, 5*time.Millisecond)
	if got, want := len(seq), 768; got != want {
		t.Fatalf("frames:\n  got: %v\n want: %v", got, want)
	}
	if got, want := seq.Duration(), 768*5*time.Millisecond; got != want {
		t.Errorf("duration:\n  got: %v\n want: %v", got, want)
	}
	r, _ := play(t, seq)
	// The last frame is j=767; pixel 0 is at wheel position 767&255.
	if got, want := r.Pixels[0], color.Wheel(767&255); got != want {
		t.Errorf("pixel 0:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Pixels[43], color.Wheel(uint8((43*256/44+767)&255)); got != want {
		t.Errorf("pixel 43:\n  got: %v\n want: %v", got, want)
	}
}

func TestTriColorPulse(t *testing.T) {
	p := DefaultPalette
	seq := TriColorPulse(testLayout, testPacing, p)
	// Fade in, five cross-fades, fade out.
	if got, want := len(seq), (3*testPacing.PulseCycles+1)*testPacing.PulseSteps; got != want {
		t.Fatalf("frames:\n  got: %v\n want: %v", got, want)
	}

	r := pixel.NewRecorder(testLayout.Len())
	player := &Player{Surface: r, Sleeper: new(RecordingSleeper)}
	steps := testPacing.PulseSteps
	for rot := 0; rot < 3*testPacing.PulseCycles; rot++ {
		if err := player.Play(seq[rot*steps : (rot+1)*steps]); err != nil {
			t.Fatal(err)
		}
		want := rotation(p.Pulse, rot)
		for i, z := range testLayout.Zones() {
			if got := r.Count(z, want[i]); got != z.Size {
				t.Errorf("rotation %d zone %d: %d of %d pixels are %v", rot, i, got, z.Size, want[i])
			}
		}
	}
	if err := player.Play(seq[3*testPacing.PulseCycles*steps:]); err != nil {
		t.Fatal(err)
	}
	if got, want := r.Count(pixel.Zone{Offset: 0, Size: 44}, color.Black), 44; got != want {
		t.Errorf("black pixels after fade out:\n  got: %v\n want: %v", got, want)
	}
}

// walk returns how many large ring writes of each color the reveal makes.
func walk(seq Sequence, primary, secondary color.Color) (int, int) {
	var p, s int
	for _, f := range seq {
		for _, w := range f.Writes {
			if !testLayout.LargeRing.Contains(w.Index) {
				continue
			}
			switch w.Color {
			case primary:
				p++
			case secondary:
				s++
			}
		}
	}
	return p, s
}

func TestRevealDayOfMonth(t *testing.T) {
	p := DefaultPalette
	seq := Reveal(testLayout, Field{Name: "day of month", Value: 27, Category: p.DayOfMonth}, testPacing, p)
	primary, secondary := walk(seq, p.RevealPrimary, p.RevealSecondary)
	if primary != 24 || secondary != 3 {
		t.Errorf("walk:\n  got: %d primary, %d secondary\n want: 24 primary, 3 secondary", primary, secondary)
	}

	r, _ := play(t, seq)
	if got, want := r.Count(testLayout.LargeRing, p.RevealSecondary), 3; got != want {
		t.Errorf("secondary pixels left on ring:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Count(testLayout.LargeRing, p.RevealPrimary), 21; got != want {
		t.Errorf("primary pixels left on ring:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Count(testLayout.Strip, p.DayOfMonth), 8; got != want {
		t.Errorf("strip category pixels:\n  got: %v\n want: %v", got, want)
	}
	if got, want := r.Count(testLayout.SmallRing, p.DayOfMonth), 12; got != want {
		t.Errorf("small ring category pixels:\n  got: %v\n want: %v", got, want)
	}
}

func TestCalendarReveal(t *testing.T) {
	p := DefaultPalette
	lt := tz.LocalTime{DayOfWeek: 4, Month: 10, DayOfMonth: 14, Year: 2026}
	fields := Fields(lt, p)
	wantValues := []int{4, 10, 14, 26}
	for i, f := range fields {
		if got, want := f.Value, wantValues[i]; got != want {
			t.Errorf("field %s:\n  got: %v\n want: %v", f.Name, got, want)
		}
	}

	seq := CalendarReveal(testLayout, lt, testPacing, p)
	// Each field: one category frame, one frame per step, one hold frame.  Then a final clear.
	wantFrames := 4*2 + 4 + 10 + 14 + 26 + 1
	if got, want := len(seq), wantFrames; got != want {
		t.Errorf("frames:\n  got: %v\n want: %v", got, want)
	}
	primary, secondary := walk(seq, p.RevealPrimary, p.RevealSecondary)
	if primary != 4+10+14+24 || secondary != 2 {
		t.Errorf("walk: got %d primary, %d secondary", primary, secondary)
	}

	r, s := play(t, seq)
	if got, want := r.Count(pixel.Zone{Offset: 0, Size: 44}, color.Black), 44; got != want {
		t.Errorf("black pixels at end:\n  got: %v\n want: %v", got, want)
	}
	wantSleep := time.Duration(4+4+10+14+26)*testPacing.RevealStep + 4*testPacing.RevealHold
	if got, want := s.Total(), wantSleep; got != want {
		t.Errorf("total pause:\n  got: %v\n want: %v", got, want)
	}

	if got := Fields(tz.LocalTime{Year: 1999}, p)[3].Value; got != 0 {
		t.Errorf("year before 2000: got %d", got)
	}
}

func TestPlayFlushError(t *testing.T) {
	r := pixel.NewRecorder(testLayout.Len())
	r.FlushError = errors.New("spi went away")
	p := &Player{Surface: r}
	if err := p.Play(Blank()); !errors.Is(err, r.FlushError) {
		t.Errorf("play:\n  got: %v\n want: %v", err, r.FlushError)
	}
}
