// Package config holds the settings the clock is built with.  Devices whose network credentials
// cannot be compiled in can override them with a TOML file.
package config

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jrockway/neopixel-clock/control/animation"
	"github.com/jrockway/neopixel-clock/control/connection"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/tz"
	"github.com/pelletier/go-toml"
)

// The wiring and settings of the device as built.
const (
	LargeRingOffset = 0
	LargeRingSize   = 24
	SmallRingOffset = 24
	SmallRingSize   = 12
	StripOffset     = 36
	StripSize       = 8

	SSID       = "clocknet"
	Passphrase = ""
	TimeServer = "pool.ntp.org"
	ProbeHost  = "pool.ntp.org"

	AcquireAttempts = 20
	AcquirePoll     = 500 * time.Millisecond

	RainbowWait = 5 * time.Millisecond
	PulseWait   = 10 * time.Millisecond
	PulseSteps  = 64
	PulseCycles = 2
	RevealStep  = 150 * time.Millisecond
	RevealHold  = 1500 * time.Millisecond

	Brightness = 0.4

	ChronyAddr = "localhost:323"
)

// Time sources.
const (
	SourceSNTP   = "sntp"
	SourceChrony = "chrony"
)

// Mountain is US Mountain Time.
var Mountain = tz.Zone{
	DST: tz.Rule{Abbrev: "MDT", Week: 2, Weekday: time.Sunday, Month: time.March, Hour: 2, Offset: -360},
	STD: tz.Rule{Abbrev: "MST", Week: 1, Weekday: time.Sunday, Month: time.November, Hour: 2, Offset: -420},
}

// Config is everything needed to assemble a clock.
type Config struct {
	Layout     pixel.Layout
	Zone       tz.Zone
	Network    connection.Settings
	Pacing     animation.Pacing
	Brightness float64
	// TimeSource is SourceSNTP or SourceChrony.
	TimeSource string
	ChronyAddr string
}

// Default returns the settings the clock is built with.
func Default() *Config {
	return &Config{
		Layout: pixel.Layout{
			LargeRing: pixel.Zone{Offset: LargeRingOffset, Size: LargeRingSize},
			SmallRing: pixel.Zone{Offset: SmallRingOffset, Size: SmallRingSize},
			Strip:     pixel.Zone{Offset: StripOffset, Size: StripSize},
		},
		Zone: Mountain,
		Network: connection.Settings{
			SSID:       SSID,
			Passphrase: Passphrase,
			TimeServer: TimeServer,
			ProbeHost:  ProbeHost,
			Attempts:   AcquireAttempts,
			Poll:       AcquirePoll,
		},
		Pacing: animation.Pacing{
			RainbowWait: RainbowWait,
			PulseWait:   PulseWait,
			PulseSteps:  PulseSteps,
			PulseCycles: PulseCycles,
			RevealStep:  RevealStep,
			RevealHold:  RevealHold,
		},
		Brightness: Brightness,
		TimeSource: SourceSNTP,
		ChronyAddr: ChronyAddr,
	}
}

// Duration is a time.Duration written in TOML as a string like "500ms".
type Duration time.Duration

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = (*Duration)(nil)
)

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// file is the TOML document.  Zero values mean "keep the default"; the layout and zone are
// replaced as a whole when present, since zero is a meaningful offset.
type file struct {
	Layout  *pixel.Layout `toml:"layout"`
	Zone    *tz.Zone      `toml:"zone"`
	Network struct {
		SSID       string   `toml:"ssid"`
		Passphrase string   `toml:"passphrase"`
		TimeServer string   `toml:"time_server"`
		ProbeHost  string   `toml:"probe_host"`
		Attempts   int      `toml:"acquire_attempts"`
		Poll       Duration `toml:"acquire_poll"`
	} `toml:"network"`
	Pacing struct {
		RainbowWait Duration `toml:"rainbow_wait"`
		PulseWait   Duration `toml:"pulse_wait"`
		PulseSteps  int      `toml:"pulse_steps"`
		PulseCycles int      `toml:"pulse_cycles"`
		RevealStep  Duration `toml:"reveal_step"`
		RevealHold  Duration `toml:"reveal_hold"`
	} `toml:"pacing"`
	Brightness float64 `toml:"brightness"`
	Time       struct {
		Source     string `toml:"source"`
		ChronyAddr string `toml:"chrony_addr"`
	} `toml:"time"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v Duration) {
	if v != 0 {
		*dst = time.Duration(v)
	}
}

// Load reads a TOML document and applies it over the defaults.  The result is validated.
func Load(r io.Reader) (*Config, error) {
	var f file
	if err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c := Default()
	if f.Layout != nil {
		c.Layout = *f.Layout
	}
	if f.Zone != nil {
		c.Zone = *f.Zone
	}

	n := &c.Network
	setString(&n.SSID, f.Network.SSID)
	setString(&n.Passphrase, f.Network.Passphrase)
	setString(&n.TimeServer, f.Network.TimeServer)
	setString(&n.ProbeHost, f.Network.ProbeHost)
	setInt(&n.Attempts, f.Network.Attempts)
	setDuration(&n.Poll, f.Network.Poll)

	p := &c.Pacing
	setDuration(&p.RainbowWait, f.Pacing.RainbowWait)
	setDuration(&p.PulseWait, f.Pacing.PulseWait)
	setInt(&p.PulseSteps, f.Pacing.PulseSteps)
	setInt(&p.PulseCycles, f.Pacing.PulseCycles)
	setDuration(&p.RevealStep, f.Pacing.RevealStep)
	setDuration(&p.RevealHold, f.Pacing.RevealHold)

	if f.Brightness != 0 {
		c.Brightness = f.Brightness
	}
	setString(&c.TimeSource, f.Time.Source)
	setString(&c.ChronyAddr, f.Time.ChronyAddr)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks that the configuration describes a clock that can run.
func (c *Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if c.Brightness < pixel.MinBrightness || c.Brightness > pixel.MaxBrightness {
		return fmt.Errorf("brightness %v outside [%v, %v]", c.Brightness, pixel.MinBrightness, pixel.MaxBrightness)
	}
	if c.Network.SSID == "" {
		return errors.New("no ssid")
	}
	if c.Network.TimeServer == "" {
		return errors.New("no time server")
	}
	if c.Network.ProbeHost == "" {
		return errors.New("no reachability probe host")
	}
	if c.Network.Attempts < 1 {
		return fmt.Errorf("acquire attempts %d must be positive", c.Network.Attempts)
	}
	if c.Pacing.PulseSteps < 1 {
		return fmt.Errorf("pulse steps %d must be positive", c.Pacing.PulseSteps)
	}
	switch c.TimeSource {
	case SourceSNTP:
	case SourceChrony:
		if c.ChronyAddr == "" {
			return errors.New("chrony time source needs an address")
		}
	default:
		return fmt.Errorf("unknown time source %q", c.TimeSource)
	}
	return nil
}
