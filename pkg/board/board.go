// Package board hands out GPIO lines by name, either from the host through
// periph.io or from an in-memory simulation.
package board

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Board provides GPIO lines by name.
type Board interface {
	Pin(name string) (gpio.PinIO, error)
	Close() error
}

var (
	_ Board = (*Periph)(nil)
	_ Board = (*Sim)(nil)
)

// Periph is the real host board. Pin names are whatever periph registers,
// e.g. "GPIO17" or the header alias "P1_11" on a Raspberry Pi.
type Periph struct {
	mu   sync.Mutex
	pins []gpio.PinIO
}

// NewPeriph initialises the periph host drivers.
func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return &Periph{}, nil
}

func (p *Periph) Pin(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	p.mu.Lock()
	p.pins = append(p.pins, pin)
	p.mu.Unlock()
	return pin, nil
}

// Close halts every pin handed out.
func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for _, pin := range p.pins {
		err = multierr.Append(err, pin.Halt())
	}
	p.pins = nil
	return err
}
