package board

import (
	"math/rand"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

const simMaxRaw = 1023

// SimChip answers the MCP3008 bit protocol on four simulated lines. Command
// bits are latched on rising clock edges and DOUT changes on falling edges,
// as on the real part.
type SimChip struct {
	mu     sync.Mutex
	sample    func(ch int) uint16
	stuck     bool
	nullDelay int

	pins     SimPins
	selected bool
	clk      gpio.Level
	pulses   int
	cmd      uint8
	valid    bool
	value    uint16
	dout     gpio.Level

	requests []int
	framing  int
}

// SimPins are the chip's lines as seen from the controller.
type SimPins struct {
	CLK  gpio.PinIO
	DOUT gpio.PinIO
	DIN  gpio.PinIO
	CS   gpio.PinIO
}

// NewSimChip returns a chip that converts channel ch to sample(ch). A nil
// sample gives noisy readings around mid-scale.
func NewSimChip(sample func(ch int) uint16) *SimChip {
	if sample == nil {
		sample = func(int) uint16 { return uint16(448 + rand.Intn(128)) }
	}
	c := &SimChip{sample: sample, dout: gpio.High}
	c.pins = SimPins{
		CLK:  &simClock{Pin: &gpiotest.Pin{N: "SIM_CLK"}, chip: c},
		DOUT: &simDout{Pin: &gpiotest.Pin{N: "SIM_DOUT"}, chip: c},
		DIN:  &gpiotest.Pin{N: "SIM_DIN"},
		CS:   &simSelect{Pin: &gpiotest.Pin{N: "SIM_CS", L: gpio.High}, chip: c},
	}
	return c
}

// Pins returns the chip lines.
func (c *SimChip) Pins() SimPins { return c.pins }

// SetStuck makes the chip stop answering: DOUT stays high forever.
func (c *SimChip) SetStuck(stuck bool) {
	c.mu.Lock()
	c.stuck = stuck
	c.mu.Unlock()
}

// SetNullDelay makes the chip hold DOUT high for n extra pulses after the
// sample before driving the null bit, like a part on long leads.
func (c *SimChip) SetNullDelay(n int) {
	c.mu.Lock()
	c.nullDelay = n
	c.mu.Unlock()
}

// Requests returns the channels requested so far, in order.
func (c *SimChip) Requests() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.requests...)
}

// FramingErrors counts transactions whose start or mode bit was wrong.
func (c *SimChip) FramingErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framing
}

func (c *SimChip) selectLine(l gpio.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = l == gpio.Low
	c.pulses = 0
	c.cmd = 0
	c.valid = false
	c.dout = gpio.High
}

func (c *SimChip) clock(l gpio.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rising := c.clk == gpio.Low && l == gpio.High
	falling := c.clk == gpio.High && l == gpio.Low
	c.clk = l
	if !c.selected {
		return
	}

	if rising {
		c.pulses++
		if c.pulses <= 5 {
			c.cmd <<= 1
			if c.pins.DIN.Read() == gpio.High {
				c.cmd |= 1
			}
		}
		return
	}
	if !falling || c.stuck {
		return
	}

	switch {
	case c.pulses == 6:
		// start bit and single-ended bit must both be set
		if c.cmd>>3 != 0b11 {
			c.framing++
			return
		}
		ch := int(c.cmd & 0x07)
		c.requests = append(c.requests, ch)
		c.value = c.sample(ch) & simMaxRaw
		c.valid = true
		c.dout = c.nullDelay > 0
	case !c.valid:
	case c.pulses == 6+c.nullDelay:
		c.dout = gpio.Low
	case c.pulses > 6+c.nullDelay && c.pulses <= 16+c.nullDelay:
		c.dout = (c.value>>(16+c.nullDelay-c.pulses))&1 == 1
	case c.pulses > 16+c.nullDelay:
		c.dout = gpio.Low
	}
}

func (c *SimChip) read() gpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dout
}

type simClock struct {
	*gpiotest.Pin
	chip *SimChip
}

func (p *simClock) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.chip.clock(l)
	return nil
}

type simSelect struct {
	*gpiotest.Pin
	chip *SimChip
}

func (p *simSelect) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.chip.selectLine(l)
	return nil
}

type simDout struct {
	*gpiotest.Pin
	chip *SimChip
}

func (p *simDout) Read() gpio.Level { return p.chip.read() }
