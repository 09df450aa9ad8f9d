package hardware

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	blinkPulse = 60 * time.Millisecond
	blinkCount = 2
)

type outPin interface {
	Out(l gpio.Level) error
}

// LED is the activity indicator.
type LED struct {
	pin   outPin
	pulse time.Duration
	busy  atomic.Bool
}

func NewLED(pin outPin) *LED {
	return &LED{pin: pin, pulse: blinkPulse}
}

func (l *LED) On() error  { return l.pin.Out(gpio.High) }
func (l *LED) Off() error { return l.pin.Out(gpio.Low) }

// Blink starts a double blink on its own goroutine and returns immediately.
// A call while a blink is still running is dropped.
func (l *LED) Blink() {
	if !l.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer l.busy.Store(false)
		for i := 0; i < blinkCount; i++ {
			_ = l.On()
			time.Sleep(l.pulse)
			_ = l.Off()
			time.Sleep(l.pulse)
		}
	}()
}
