package pixel

import (
	"fmt"
	stdcolor "image/color"
	"math"

	"github.com/fulr/spidev"
	"github.com/jrockway/neopixel-clock/control/color"
)

// Xferer is the part of a spidev device that SPIDev needs.
type Xferer interface {
	Xfer(tx []byte) ([]byte, error)
}

// SPIDev drives an APA102 chain by writing raw frames to a /dev/spidevN.M device, for boards where
// periph.io can't find the SPI controller.  It does its own gamma correction.
type SPIDev struct {
	dev        Xferer
	frame      []color.Color
	brightness float64
}

var _ Surface = (*SPIDev)(nil)

// OpenSPIDev opens the spidev device at path for a chain of n pixels.
func OpenSPIDev(path string, n int) (*SPIDev, error) {
	dev, err := spidev.NewSPIDevice(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSPIDev(dev, n), nil
}

// NewSPIDev wraps an already-open device.
func NewSPIDev(dev Xferer, n int) *SPIDev {
	return &SPIDev{dev: dev, frame: make([]color.Color, n), brightness: MaxBrightness}
}

func (s *SPIDev) Len() int { return len(s.frame) }

func (s *SPIDev) Set(index int, c stdcolor.Color) {
	checkIndex(index, len(s.frame))
	s.frame[index] = color.FromColor(c)
}

func (s *SPIDev) SetBrightness(b float64) { s.brightness = ClampBrightness(b) }

func (s *SPIDev) Clear() error {
	for i := range s.frame {
		s.frame[i] = color.Black
	}
	return s.Flush()
}

func (s *SPIDev) Flush() error {
	if _, err := s.dev.Xfer(encodeAPA102(s.frame, s.brightness)); err != nil {
		return fmt.Errorf("xfer apa102 frame: %w", err)
	}
	return nil
}

func gamma(c uint8) uint8 {
	u := float64(c) / 0xff
	return uint8(255*math.Pow(u, 2.2) + 0.5)
}

// encodeAPA102 builds a start frame, one 4-byte LED frame per pixel (global brightness, blue,
// green, red), and enough end-frame bytes to clock the data through the whole chain.
func encodeAPA102(frame []color.Color, brightness float64) []byte {
	n := len(frame)
	end := n/16 + 1
	buf := make([]byte, 0, 4+4*n+end)
	buf = append(buf, 0, 0, 0, 0)
	for _, c := range frame {
		r, g, b := color.Scale(c, brightness).RGB()
		buf = append(buf, 0xe0|0x1f, gamma(b), gamma(g), gamma(r))
	}
	for i := 0; i < end; i++ {
		buf = append(buf, 0xff)
	}
	return buf
}
