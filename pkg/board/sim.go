package board

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

const simEdgeBuffer = 64

// Sim is a board made of gpiotest pins. Unknown names get a fresh pin that
// idles high, so active-low inputs read as released.
type Sim struct {
	mu   sync.Mutex
	pins map[string]gpio.PinIO
}

func NewSim() *Sim {
	return &Sim{pins: make(map[string]gpio.PinIO)}
}

// AttachADC wires chip onto the four named lines.
func (s *Sim) AttachADC(clk, dout, din, cs string, chip *SimChip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range []string{clk, dout, din, cs} {
		if _, ok := s.pins[name]; ok {
			return fmt.Errorf("pin %q already in use", name)
		}
	}
	p := chip.Pins()
	s.pins[clk] = p.CLK
	s.pins[dout] = p.DOUT
	s.pins[din] = p.DIN
	s.pins[cs] = p.CS
	return nil
}

func (s *Sim) Pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, fmt.Errorf("empty pin name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pins[name]; ok {
		return p, nil
	}
	p := &gpiotest.Pin{N: name, L: gpio.High, EdgesChan: make(chan gpio.Level, simEdgeBuffer)}
	s.pins[name] = p
	return p, nil
}

// Edge queues a simulated edge on a plain pin. It reports false when the pin
// is not a plain simulated pin or its edge buffer is full.
func (s *Sim) Edge(name string, l gpio.Level) bool {
	s.mu.Lock()
	p, ok := s.pins[name].(*gpiotest.Pin)
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case p.EdgesChan <- l:
		return true
	default:
		return false
	}
}

// Set drives the level a plain simulated pin reads, e.g. a switch.
func (s *Sim) Set(name string, l gpio.Level) bool {
	s.mu.Lock()
	p, ok := s.pins[name].(*gpiotest.Pin)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return p.Out(l) == nil
}

func (s *Sim) Close() error { return nil }
