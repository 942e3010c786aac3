// Package thermal switches the payload heater from the inside temperature.
package thermal

import (
	"log/slog"

	"periph.io/x/conn/v3/gpio"
)

const (
	DefaultOn  = 21.0
	DefaultOff = 25.0
)

// Thermostat drives an active-high heater output. At or below On the heater
// runs; anywhere above it, including the band up to Off, it is off.
type Thermostat struct {
	pin    gpio.PinOut
	on     float64
	off    float64
	logger *slog.Logger

	known  bool
	heated bool
}

func New(pin gpio.PinOut, on, off float64, logger *slog.Logger) *Thermostat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Thermostat{pin: pin, on: on, off: off, logger: logger}
}

// Decide reports whether the heater should run at reading.
func (t *Thermostat) Decide(reading float64) bool {
	return reading <= t.on
}

// Apply sets the heater for reading.
func (t *Thermostat) Apply(reading float64) error {
	return t.set(t.Decide(reading), reading)
}

// Off turns the heater off.
func (t *Thermostat) Off() error { return t.set(false, 0) }

// Heating reports the last state written.
func (t *Thermostat) Heating() bool { return t.heated }

func (t *Thermostat) set(on bool, reading float64) error {
	if err := t.pin.Out(gpio.Level(on)); err != nil {
		return err
	}
	if !t.known || on != t.heated {
		if on {
			t.logger.Info("heater on", "temp", reading, "on_at_or_below", t.on)
		} else {
			t.logger.Info("heater off", "temp", reading, "off_at_or_above", t.off)
		}
	}
	t.known, t.heated = true, on
	return nil
}
