// Package gate detects launch and landing from an active-low switch. The
// switch must read asserted, then still read asserted after a quiet period,
// before it counts.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/led"
	"periph.io/x/conn/v3/gpio"
)

const (
	LaunchQuiet   = 2 * time.Second
	LandingQuiet  = 10 * time.Second
	LaunchBlink   = 2 * time.Second
	launchFlashes = 5
	launchFlash   = 200 * time.Millisecond
)

type State int

const (
	Idle State = iota
	Armed
	Confirmed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Confirmed:
		return "confirmed"
	}
	return "unknown"
}

// Input is the switch line. gpio.PinIn satisfies it.
type Input interface {
	Read() gpio.Level
}

type Gate struct {
	in     Input
	quiet  time.Duration
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

type Option func(*Gate)

func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gate) { g.sleep = sleep }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func New(in Input, quiet time.Duration, options ...Option) *Gate {
	g := &Gate{in: in, quiet: quiet, sleep: led.Sleep, logger: slog.Default()}
	for _, o := range options {
		o(g)
	}
	return g
}

func (g *Gate) asserted() bool { return g.in.Read() == gpio.Low }

// Confirm runs one debounce attempt and returns Confirmed or Idle. Only the
// level is sampled, twice; what happens in between is ignored. A cancelled
// wait returns Armed with the context error.
func (g *Gate) Confirm(ctx context.Context) (State, error) {
	if !g.asserted() {
		return Idle, nil
	}
	g.logger.Debug("gate armed", "quiet", g.quiet)
	if err := g.sleep(ctx, g.quiet); err != nil {
		return Armed, err
	}
	if !g.asserted() {
		return Idle, nil
	}
	return Confirmed, nil
}

// Launch holds the mission on the pad until the switch is closed.
type Launch struct {
	gate      *Gate
	indicator *led.Indicator
	blink     time.Duration
}

// NewLaunch waits on in with the given quiet period, blinking indicator
// every blink while it waits.
func NewLaunch(in Input, indicator *led.Indicator, quiet, blink time.Duration, options ...Option) *Launch {
	if indicator == nil {
		indicator = led.New(nil)
	}
	return &Launch{gate: New(in, quiet, options...), indicator: indicator, blink: blink}
}

// Wait blocks until launch is confirmed or ctx is done. Confirmation is
// acknowledged with five fast flashes.
func (l *Launch) Wait(ctx context.Context) error {
	l.gate.logger.Info("waiting for launch signal")
	for {
		if err := l.indicator.Blink(ctx, l.blink); err != nil {
			return err
		}
		st, err := l.gate.Confirm(ctx)
		if err != nil {
			return err
		}
		if st == Confirmed {
			break
		}
	}
	l.gate.logger.Info("launch confirmed")
	return l.indicator.Flash(ctx, launchFlashes, launchFlash)
}

// Landing reports recovery: the switch held closed through the quiet period.
type Landing struct {
	gate *Gate
}

func NewLanding(in Input, quiet time.Duration, options ...Option) *Landing {
	return &Landing{gate: New(in, quiet, options...)}
}

// Check makes one debounce attempt. It only waits when the switch reads
// closed.
func (l *Landing) Check(ctx context.Context) (bool, error) {
	st, err := l.gate.Confirm(ctx)
	if err != nil {
		return false, err
	}
	if st == Confirmed {
		l.gate.logger.Info("received stop signal, shutting down")
		return true, nil
	}
	return false, nil
}
