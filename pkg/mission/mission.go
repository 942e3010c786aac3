// Package mission runs the flight: start the sensors, wait for launch, poll
// every sensor until landing or interrupt, then stop everything.
package mission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/ericogr/balloon-flight-controller/pkg/sensor"
)

const DefaultBlink = time.Second

type State int

const (
	Idle State = iota
	Starting
	AwaitingLaunch
	Flying
	Landing
	ShuttingDown
	Done
)

var stateNames = [...]string{"idle", "starting", "awaiting-launch", "flying", "landing", "shutting-down", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

type Outcome int

const (
	Interrupted Outcome = iota
	Landed
)

func (o Outcome) String() string {
	if o == Landed {
		return "landed"
	}
	return "interrupted"
}

// LaunchGate blocks until launch. *gate.Launch is one.
type LaunchGate interface {
	Wait(ctx context.Context) error
}

// LandingGate reports recovery. *gate.Landing is one.
type LandingGate interface {
	Check(ctx context.Context) (bool, error)
}

// Heater is driven from the inside temperature. *thermal.Thermostat is one.
type Heater interface {
	Apply(reading float64) error
	Off() error
}

// Indicator paces the loop. *led.Indicator is one.
type Indicator interface {
	Blink(ctx context.Context, period time.Duration) error
	Off() error
}

type Mission struct {
	sensors []sensor.Sensor
	active  []sensor.Sensor

	logger    *slog.Logger
	launch    LaunchGate
	landing   LandingGate
	heater    Heater
	inside    string
	indicator Indicator
	blink     time.Duration
	freeSpace func() (uint64, error)
	onState   func(State)
	now       func() time.Time

	state      State
	iterations int
	failures   map[string]int
}

type Option func(*Mission)

func WithLogger(l *slog.Logger) Option {
	return func(m *Mission) { m.logger = l }
}

// WithLaunch holds the mission until g confirms launch.
func WithLaunch(g LaunchGate) Option {
	return func(m *Mission) { m.launch = g }
}

// WithLanding ends the mission when g reports landing.
func WithLanding(g LandingGate) Option {
	return func(m *Mission) { m.landing = g }
}

// WithHeater drives h from the reading of the sensor named inside.
func WithHeater(h Heater, inside string) Option {
	return func(m *Mission) { m.heater, m.inside = h, inside }
}

// WithIndicator blinks i twice per iteration, period each.
func WithIndicator(i Indicator, period time.Duration) Option {
	return func(m *Mission) { m.indicator, m.blink = i, period }
}

// WithFreeSpace reports free storage in the per-iteration log.
func WithFreeSpace(f func() (uint64, error)) Option {
	return func(m *Mission) { m.freeSpace = f }
}

// WithStateHook is called on every state change.
func WithStateHook(f func(State)) Option {
	return func(m *Mission) { m.onState = f }
}

// New returns a mission over sensors, polled in the given order.
func New(sensors []sensor.Sensor, options ...Option) *Mission {
	m := &Mission{
		sensors:  sensors,
		logger:   slog.Default(),
		blink:    DefaultBlink,
		now:      time.Now,
		failures: make(map[string]int),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

func (m *Mission) setState(s State) {
	m.logger.Debug("mission state", "from", m.state, "to", s)
	m.state = s
	if m.onState != nil {
		m.onState(s)
	}
}

// Active returns the sensors that started.
func (m *Mission) Active() []sensor.Sensor {
	return append([]sensor.Sensor(nil), m.active...)
}

// Run flies the mission. Shutdown always runs, also after ctx is cancelled;
// the returned error only carries sensor stop failures.
func (m *Mission) Run(ctx context.Context) (outcome Outcome, err error) {
	began := m.now()
	defer func() {
		err = m.shutdown(context.WithoutCancel(ctx))
		m.logger.Info("mission finished",
			"outcome", outcome,
			"iterations", humanize.Comma(int64(m.iterations)),
			"duration", m.now().Sub(began).Round(time.Second).String())
		m.setState(Done)
	}()

	m.setState(Starting)
	m.start(ctx)

	if m.launch != nil {
		m.setState(AwaitingLaunch)
		if err := m.launch.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return Interrupted, nil
			}
			m.logger.Error("launch gate failed, flying anyway", "err", err)
		}
	}

	m.setState(Flying)
	for {
		if ctx.Err() != nil {
			m.logger.Info("flight controller terminated by the user")
			return Interrupted, nil
		}
		if m.iterate(ctx) {
			m.setState(Landing)
			return Landed, nil
		}
	}
}

// start starts every sensor in order. A sensor that fails is dropped for
// the rest of the mission.
func (m *Mission) start(ctx context.Context) {
	m.active = nil
	for _, s := range m.sensors {
		if err := s.Start(ctx); err != nil {
			m.logger.Error("sensor failed to start, removed from the queue", "sensor", s.Name(), "err", err)
			continue
		}
		m.active = append(m.active, s)
	}
	m.logger.Info("sensors started", "active", len(m.active), "configured", len(m.sensors))
}

// iterate polls every active sensor once, regulates the heater and checks
// for landing.
func (m *Mission) iterate(ctx context.Context) (landed bool) {
	for _, s := range m.active {
		if ctx.Err() != nil {
			return false
		}
		if err := s.Write(ctx); err != nil {
			if ctx.Err() != nil {
				return false
			}
			m.failures[s.Name()]++
			m.logger.Warn("sensor write failed", "sensor", s.Name(), "failures", m.failures[s.Name()], "err", err)
		}
	}
	m.iterations++
	attrs := []any{"iteration", m.iterations}
	if m.freeSpace != nil {
		if free, err := m.freeSpace(); err == nil {
			attrs = append(attrs, "free", humanize.Bytes(free))
		}
	}
	m.logger.Info("data collected", attrs...)

	m.pace(ctx)
	m.regulate(ctx)
	m.pace(ctx)

	if m.landing == nil || ctx.Err() != nil {
		return false
	}
	landed, err := m.landing.Check(ctx)
	if err != nil && ctx.Err() == nil {
		m.logger.Warn("landing check failed", "err", err)
	}
	return landed
}

func (m *Mission) pace(ctx context.Context) {
	if m.indicator == nil {
		return
	}
	if err := m.indicator.Blink(ctx, m.blink); err != nil && !errors.Is(err, ctx.Err()) {
		m.logger.Warn("indicator failed", "err", err)
	}
}

// regulate reads the inside sensor and sets the heater. On any failure the
// heater keeps its state.
func (m *Mission) regulate(ctx context.Context) {
	if m.heater == nil || ctx.Err() != nil {
		return
	}
	inside := m.sensor(m.inside)
	if inside == nil {
		m.logger.Warn("heater sensor not configured", "sensor", m.inside)
		return
	}
	r, err := inside.Get(ctx)
	if err != nil {
		m.logger.Warn("the heater has failed", "sensor", m.inside, "err", err)
		return
	}
	if err := m.heater.Apply(r.Value); err != nil {
		m.logger.Warn("the heater has failed", "err", err)
	}
}

func (m *Mission) sensor(name string) sensor.Sensor {
	for _, s := range m.sensors {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// shutdown stops every active sensor, whatever the others do, then turns the
// heater and indicator off.
func (m *Mission) shutdown(ctx context.Context) error {
	m.setState(ShuttingDown)
	var err error
	for _, s := range m.active {
		if sErr := s.Stop(ctx); sErr != nil {
			m.logger.Error("sensor failed while stopping", "sensor", s.Name(), "err", sErr)
			err = multierr.Append(err, sErr)
		}
	}
	if m.heater != nil {
		if hErr := m.heater.Off(); hErr != nil {
			m.logger.Error("heater off failed", "err", hErr)
		}
	}
	if m.indicator != nil {
		if iErr := m.indicator.Off(); iErr != nil {
			m.logger.Error("indicator off failed", "err", iErr)
		}
	}
	for name, n := range m.failures {
		m.logger.Info("write failures", "sensor", name, "count", n)
	}
	return err
}
