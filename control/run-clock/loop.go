package main

import (
	"context"
	"log"

	"github.com/jrockway/neopixel-clock/control/pixel"
)

type runner interface {
	Run(ctx context.Context) error
}

// startLoop runs r in the background.  The returned channel yields the loop's error if anyone is
// listening before ctx is cancelled, and is closed once the loop has returned.
func startLoop(ctx context.Context, r runner) <-chan error {
	loopDoneCh := make(chan error)
	go func() {
		err := r.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()
	return loopDoneCh
}

// stopLoop cancels the loop and waits for it to return before blanking the leds.  The loop only
// notices cancellation between steps, so an animation that is playing finishes first; until then
// it is the only writer of the surface.
func stopLoop(cancel context.CancelFunc, loopDoneCh <-chan error, surface pixel.Surface) {
	cancel()
	<-loopDoneCh
	if err := surface.Clear(); err != nil {
		log.Printf("blank leds: %v", err)
	}
}
