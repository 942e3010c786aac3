package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/record"
	"periph.io/x/conn/v3/gpio"
)

const edgePoll = 250 * time.Millisecond

// ParseEdge maps "falling", "rising" or "both" to a gpio edge. Empty means
// falling.
func ParseEdge(s string) (gpio.Edge, error) {
	switch strings.ToLower(s) {
	case "", "falling":
		return gpio.FallingEdge, nil
	case "rising":
		return gpio.RisingEdge, nil
	case "both":
		return gpio.BothEdges, nil
	}
	return gpio.NoEdge, fmt.Errorf("unknown edge %q", s)
}

// Counter counts pulses on a digital input between two readings. Each
// instance owns its count, so several counters can fly together.
type Counter struct {
	base
	pin  gpio.PinIn
	edge gpio.Edge

	mu    sync.Mutex
	count int
	since time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCounter(name string, pin gpio.PinIn, edge gpio.Edge, env Env) *Counter {
	return &Counter{base: newBase(name, KindCounter, env), pin: pin, edge: edge}
}

// Start opens the data file, arms edge detection and starts the window.
func (c *Counter) Start(context.Context) error {
	if err := c.open(); err != nil {
		return &StartError{Sensor: c.name, Err: err}
	}
	if err := c.pin.In(pullFor(c.edge), c.edge); err != nil {
		return &StartError{Sensor: c.name, Err: fmt.Errorf("edge detection on %s: %w", c.pin, err)}
	}
	c.mu.Lock()
	c.count = 0
	c.since = c.env.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.watch(ctx)
	return nil
}

func pullFor(e gpio.Edge) gpio.Pull {
	switch e {
	case gpio.FallingEdge:
		return gpio.PullUp
	case gpio.RisingEdge:
		return gpio.PullDown
	}
	return gpio.Float
}

func (c *Counter) watch(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		if c.pin.WaitForEdge(edgePoll) {
			c.Tick()
		}
	}
}

// Tick counts one pulse.
func (c *Counter) Tick() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

// Get returns count/seconds/60 for the window since the previous Get and
// starts a new window. A zero-length window reads 0.
func (c *Counter) Get(context.Context) (Reading, error) {
	c.mu.Lock()
	now := c.env.Now()
	n, secs := c.count, now.Sub(c.since).Seconds()
	c.count = 0
	c.since = now
	c.mu.Unlock()

	var rate float64
	if secs > 0 {
		rate = float64(n) / secs / 60
	}
	c.env.Logger.Debug("counter reading", "sensor", c.name, "pulses", n, "seconds", secs, "rate", rate)
	return Reading{Timestamp: now, Value: rate, Fields: []string{record.Float(rate)}}, nil
}

func (c *Counter) Write(ctx context.Context) error { return c.write(ctx, c.Get) }

// Stop ends edge detection.
func (c *Counter) Stop(context.Context) error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	defer c.stopped()
	if err := c.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return &StopError{Sensor: c.name, Err: err}
	}
	return nil
}
