// Package button triggers captures from a physical shutter button.
package button

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"netcamera/pkg/utils"
)

var logger = utils.GetLogger()

const DefaultDebounce = 50 * time.Millisecond

// Pin reports whether the button is currently held down.
type Pin interface {
	Pressed() bool
}

// Watch polls pin every debounce interval and calls onPress once per press, after the
// pin has read pressed for two consecutive polls. It returns when ctx is done.
func Watch(ctx context.Context, pin Pin, debounce time.Duration, onPress func()) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	var held, fired bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pressed := pin.Pressed()
		switch {
		case !pressed:
			held, fired = false, false
		case !held:
			held = true
		case !fired:
			fired = true
			onPress()
		}
	}
}

var (
	gpioOnce sync.Once
	gpioErr  error
)

// RPiPin is an active-low button on a Raspberry Pi GPIO pin with the internal pull-up
// enabled.
type RPiPin struct {
	pin rpio.Pin
}

func OpenRPi(bcm int) (*RPiPin, error) {
	gpioOnce.Do(func() {
		gpioErr = rpio.Open()
	})
	if gpioErr != nil {
		return nil, fmt.Errorf("open gpio: %w", gpioErr)
	}
	p := rpio.Pin(bcm)
	p.Input()
	p.PullUp()
	logger.Infof("watching button on gpio %d", bcm)

	return &RPiPin{pin: p}, nil
}

func (p *RPiPin) Pressed() bool {
	return p.pin.Read() == rpio.Low
}
