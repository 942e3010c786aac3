// Package led drives the indicator LED. Blink doubles as the pacing wait of
// the poll loop, so an indicator without a pin still waits.
package led

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Indicator struct {
	pin   gpio.PinOut
	sleep func(context.Context, time.Duration) error
}

type Option func(*Indicator)

// WithSleep replaces the wait, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(i *Indicator) { i.sleep = sleep }
}

// New returns an indicator on pin. pin may be nil.
func New(pin gpio.PinOut, options ...Option) *Indicator {
	i := &Indicator{pin: pin, sleep: Sleep}
	for _, o := range options {
		o(i)
	}
	return i
}

// Blink lights the LED for the first half of period and clears it for the
// second half. The LED is left off even when ctx ends the wait early.
func (i *Indicator) Blink(ctx context.Context, period time.Duration) error {
	if err := i.set(gpio.High); err != nil {
		return err
	}
	err := i.sleep(ctx, period/2)
	if oErr := i.set(gpio.Low); oErr != nil && err == nil {
		err = oErr
	}
	if err != nil {
		return err
	}
	return i.sleep(ctx, period/2)
}

// Flash blinks n times.
func (i *Indicator) Flash(ctx context.Context, n int, period time.Duration) error {
	for k := 0; k < n; k++ {
		if err := i.Blink(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

func (i *Indicator) Off() error { return i.set(gpio.Low) }

func (i *Indicator) set(l gpio.Level) error {
	if i.pin == nil {
		return nil
	}
	return i.pin.Out(l)
}
