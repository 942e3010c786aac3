// Package adc drives an MCP3008 successive-approximation ADC over four
// plain GPIO lines, clocking every bit in software.
package adc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Resolution is the number of conversion bits.
	Resolution = 10
	// MaxRaw is the largest raw sample.
	MaxRaw = 1<<Resolution - 1

	// DefaultSettle is the hold time after each clock pulse. The chip needs a
	// minimum pulse width; 100µs is well clear of it on a Pi.
	DefaultSettle = 100 * time.Microsecond
	// DefaultMaxPulses bounds the wait for the null bit that precedes data.
	DefaultMaxPulses = 256
)

// ErrProtocolTimeout is returned when the chip never answers a conversion
// request within the pulse bound.
var ErrProtocolTimeout = errors.New("adc: protocol timeout")

// Pins are the four lines wired to the chip, named as in the datasheet.
type Pins struct {
	CLK  gpio.PinOut
	DOUT gpio.PinIn
	DIN  gpio.PinOut
	CS   gpio.PinOut
}

// Chip is one MCP3008. It may be shared by several sensors; transactions
// are serialised.
type Chip struct {
	mu        sync.Mutex
	pins      Pins
	vref      float64
	settle    time.Duration
	maxPulses int
	wait      func(time.Duration)
}

// Option configures a Chip.
type Option func(*Chip)

// WithSettle sets the hold time after each clock pulse.
func WithSettle(d time.Duration) Option {
	return func(c *Chip) {
		c.settle = d
	}
}

// WithMaxPulses sets how many pulses to wait for the chip's null bit before
// giving up with ErrProtocolTimeout.
func WithMaxPulses(n int) Option {
	return func(c *Chip) {
		if n > 0 {
			c.maxPulses = n
		}
	}
}

// New prepares the chip lines: chip-select released, clock low, DOUT input.
func New(pins Pins, vref float64, options ...Option) (*Chip, error) {
	if pins.CLK == nil || pins.DOUT == nil || pins.DIN == nil || pins.CS == nil {
		return nil, errors.New("adc: all four pins are required")
	}
	if vref <= 0 {
		return nil, fmt.Errorf("adc: vref must be > 0, got %v", vref)
	}
	c := &Chip{
		pins:      pins,
		vref:      vref,
		settle:    DefaultSettle,
		maxPulses: DefaultMaxPulses,
		wait:      time.Sleep,
	}
	for _, option := range options {
		option(c)
	}

	if err := pins.CS.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("adc: cs: %w", err)
	}
	if err := pins.CLK.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("adc: clk: %w", err)
	}
	if err := pins.DIN.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("adc: din: %w", err)
	}
	if err := pins.DOUT.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("adc: dout: %w", err)
	}
	return c, nil
}

// Vref returns the reference voltage of the chip.
func (c *Chip) Vref() float64 { return c.vref }

// ReadChannel returns the voltage on the addressed input.
func (c *Chip) ReadChannel(ctx context.Context, addr Address) (float64, error) {
	raw, err := c.ReadRaw(ctx, addr)
	if err != nil {
		return 0, err
	}
	return Voltage(raw, c.vref), nil
}

// ReadRaw runs one conversion and returns the 10-bit result.
func (c *Chip) ReadRaw(ctx context.Context, addr Address) (raw uint16, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// "The first clock received with CS low and DIN high will constitute a
	// start bit."
	if err = c.pins.CS.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("%s: select: %w", addr, err)
	}
	defer func() {
		if cErr := c.pins.CS.Out(gpio.High); cErr != nil && err == nil {
			err = fmt.Errorf("%s: release: %w", addr, cErr)
		}
	}()

	if err = c.clockOut(gpio.High); err != nil {
		return 0, fmt.Errorf("%s: start bit: %w", addr, err)
	}
	// single-ended, then D2 D1 D0
	if err = c.clockOut(gpio.High); err != nil {
		return 0, fmt.Errorf("%s: command: %w", addr, err)
	}
	for _, b := range addr.Bits() {
		if err = c.clockOut(b); err != nil {
			return 0, fmt.Errorf("%s: command: %w", addr, err)
		}
	}

	// sample and hold; the chip answers with a null bit on its falling edge.
	// A late null bit is tolerated and the data is framed from wherever it
	// shows up, so a chip that answers with no null bit but a low data bit
	// reads misaligned rather than failing.
	if err = c.pulse(); err != nil {
		return 0, fmt.Errorf("%s: sample: %w", addr, err)
	}
	for n := 1; c.pins.DOUT.Read() != gpio.Low; n++ {
		if n >= c.maxPulses {
			return 0, fmt.Errorf("%s: no null bit after %d pulses: %w", addr, n, ErrProtocolTimeout)
		}
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		if err = c.pulse(); err != nil {
			return 0, fmt.Errorf("%s: sample: %w", addr, err)
		}
	}

	for i := 0; i < Resolution; i++ {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		if err = c.pulse(); err != nil {
			return 0, fmt.Errorf("%s: bit %d: %w", addr, Resolution-1-i, err)
		}
		raw <<= 1
		if c.pins.DOUT.Read() == gpio.High {
			raw |= 1
		}
	}
	return raw, nil
}

// Close puts the lines back in their idle state.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return multierr.Combine(
		c.pins.CS.Out(gpio.High),
		c.pins.CLK.Out(gpio.Low),
		c.pins.DIN.Out(gpio.Low),
	)
}

// Voltage converts a raw sample to volts against vref.
func Voltage(raw uint16, vref float64) float64 {
	return float64(raw) / MaxRaw * vref
}

// clockOut presents one bit on DIN and clocks it in.
func (c *Chip) clockOut(l gpio.Level) error {
	if err := c.pins.DIN.Out(l); err != nil {
		return err
	}
	return c.pulse()
}

// pulse is one clock: rising edge, falling edge, then the settle hold.
func (c *Chip) pulse() error {
	if err := c.pins.CLK.Out(gpio.High); err != nil {
		return err
	}
	if err := c.pins.CLK.Out(gpio.Low); err != nil {
		return err
	}
	if c.settle > 0 {
		c.wait(c.settle)
	}
	return nil
}
