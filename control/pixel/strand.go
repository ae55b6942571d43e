package pixel

import (
	"fmt"
	"image"
	stdcolor "image/color"
	"image/png"
	"log"
	"net/http"
	"sync"

	"github.com/jrockway/neopixel-clock/control/color"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/apa102"
)

const (
	previewScale       = 20 // Size of one pixel in the rendered image.
	previewPixelBorder = 10 // Border around right and bottom of pixel, to simulate pixel spacing.
)

// Strand is the chain of APA102 LEDs that makes up the clock: the large ring, then the small ring,
// then the strip.  It keeps the last flushed frame as an image, which is served over HTTP for
// debugging the rest of the program without the LEDs attached.
type Strand struct {
	layout     Layout
	leds       *apa102.Dev // nil when running headless.
	frame      []color.Color
	brightness float64

	imageMu sync.Mutex
	image   *image.NRGBA // must hold imageMu to read or write.
}

var _ Surface = (*Strand)(nil)

// NewStrand returns a Strand for the layout.  If p is nil, nothing is sent to hardware but the
// preview still works.
func NewStrand(p spi.Port, layout Layout) (*Strand, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("validate layout: %w", err)
	}
	s := &Strand{
		layout:     layout,
		frame:      make([]color.Color, layout.Len()),
		brightness: MaxBrightness,
		image:      newPreview(layout),
	}
	if p == nil {
		return s, nil
	}
	opts := &apa102.Opts{
		NumPixels:        layout.Len(),
		Intensity:        255,
		Temperature:      apa102.NeutralTemp,
		DisableGlobalPWM: true,
	}
	leds, err := apa102.New(p, opts)
	if err != nil {
		return nil, fmt.Errorf("init apa102: %w", err)
	}
	s.leds = leds
	return s, nil
}

// Len implements Surface.
func (s *Strand) Len() int { return len(s.frame) }

// Set implements Surface.
func (s *Strand) Set(index int, c stdcolor.Color) {
	checkIndex(index, len(s.frame))
	s.frame[index] = color.FromColor(c)
}

// SetBrightness implements Surface.
func (s *Strand) SetBrightness(b float64) {
	s.brightness = ClampBrightness(b)
}

// Clear implements Surface.
func (s *Strand) Clear() error {
	for i := range s.frame {
		s.frame[i] = color.Black
	}
	if err := s.Flush(); err != nil {
		return fmt.Errorf("clear strand: %w", err)
	}
	return nil
}

// Flush implements Surface.
func (s *Strand) Flush() error {
	out := make([]stdcolor.NRGBA, len(s.frame))
	for i, c := range s.frame {
		r, g, b := color.Scale(c, s.brightness).RGB()
		out[i] = stdcolor.NRGBA{R: r, G: g, B: b, A: 0xff}
	}
	s.updatePreview()
	if s.leds == nil {
		return nil
	}
	if _, err := s.leds.Write(apa102.ToRGB(out)); err != nil {
		return fmt.Errorf("write to apa102 strand: %w", err)
	}
	return nil
}

// ServeHTTP serves the last flushed frame as a PNG.
func (s *Strand) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	if err := png.Encode(w, s.image); err != nil {
		log.Printf("encoding image: %v", err)
	}
}

// newPreview allocates an image with one row per zone, as wide as the largest zone.
func newPreview(l Layout) *image.NRGBA {
	width := 0
	for _, z := range l.Zones() {
		if z.Size > width {
			width = z.Size
		}
	}
	scale := previewScale + previewPixelBorder
	img := image.NewNRGBA(image.Rect(0, 0, width*scale, len(l.Zones())*scale))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// updatePreview copies the frame buffer (before brightness scaling) into the preview image.
func (s *Strand) updatePreview() {
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	scale := previewScale + previewPixelBorder
	for row, z := range s.layout.Zones() {
		for x := 0; x < z.Size; x++ {
			c := s.frame[z.Offset+x]
			for destX := scale * x; destX < scale*(x+1)-previewPixelBorder; destX++ {
				for destY := scale * row; destY < scale*(row+1)-previewPixelBorder; destY++ {
					s.image.Set(destX, destY, c)
				}
			}
		}
	}
}
