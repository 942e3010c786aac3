// Package app builds the flight from a configuration and flies it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/balloon-flight-controller/pkg/adc"
	"github.com/ericogr/balloon-flight-controller/pkg/board"
	"github.com/ericogr/balloon-flight-controller/pkg/config"
	"github.com/ericogr/balloon-flight-controller/pkg/gate"
	"github.com/ericogr/balloon-flight-controller/pkg/led"
	"github.com/ericogr/balloon-flight-controller/pkg/mission"
	"github.com/ericogr/balloon-flight-controller/pkg/output"
	"github.com/ericogr/balloon-flight-controller/pkg/sensor"
	"github.com/ericogr/balloon-flight-controller/pkg/thermal"
)

// flight is everything built from the configuration.
type flight struct {
	board   board.Board
	sim     *board.Sim
	chips   []*adc.Chip
	outputs []output.Output
	sensors []sensor.Sensor
	// pins of counter sensors, pulsed in simulation
	counterPins []string
	mission     *mission.Mission
}

// Run flies the configured mission until landing or until ctx is cancelled.
// Only configuration and board problems are returned; sensor faults are
// logged and flown through.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	f, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing hardware", "err", err)
		}
	}()

	if f.sim != nil {
		pulses, stop := context.WithCancel(ctx)
		defer stop()
		go simulatePulses(pulses, f.sim, f.counterPins)
	}

	outcome, err := f.mission.Run(ctx)
	if err != nil {
		logger.Error("shutdown incomplete", "err", err)
	}
	if outcome == mission.Landed {
		logger.Info("payload was recovered safely", "at", time.Now().Format(time.ANSIC))
	}
	return nil
}

func build(cfg config.Config, logger *slog.Logger) (*flight, error) {
	f := &flight{}
	built := false
	defer func() {
		if !built {
			f.Close()
		}
	}()

	var err error

	switch cfg.Board {
	case config.BoardSimulation:
		f.sim = board.NewSim()
		f.board = f.sim
		for _, a := range cfg.ADCs {
			if err := f.sim.AttachADC(a.CLK, a.DOUT, a.DIN, a.CS, board.NewSimChip(nil)); err != nil {
				return nil, fmt.Errorf("simulated adc %s: %w", a.Name, err)
			}
		}
	default:
		p, err := board.NewPeriph()
		if err != nil {
			return nil, err
		}
		f.board = p
	}

	if f.outputs, err = initOutputs(cfg, logger); err != nil {
		return nil, err
	}

	chips := createChips(cfg.ADCs, f.board, logger)
	for _, c := range chips {
		f.chips = append(f.chips, c)
	}

	env := sensor.Env{Dir: cfg.DataDir, Outputs: f.outputs, Logger: logger}
	f.sensors, f.counterPins = createSensors(cfg.Sensors, chips, f.board, env, logger)

	options := []mission.Option{mission.WithLogger(logger), mission.WithFreeSpace(func() (uint64, error) {
		return freeSpace(cfg.DataDir)
	})}

	var indicator *led.Indicator
	if cfg.Indicator.Pin != "" {
		pin, err := f.board.Pin(cfg.Indicator.Pin)
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}
		indicator = led.New(pin)
	} else {
		indicator = led.New(nil)
	}
	options = append(options, mission.WithIndicator(indicator, config.Ms(cfg.Indicator.BlinkMs)))

	if cfg.Heater.Enabled {
		pin, err := f.board.Pin(cfg.Heater.Pin)
		if err != nil {
			return nil, fmt.Errorf("heater: %w", err)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("heater: %w", err)
		}
		th := thermal.New(pin, cfg.Heater.OnAtOrBelow, cfg.Heater.OffAtOrAbove, logger)
		options = append(options, mission.WithHeater(th, cfg.Heater.Sensor))
	}

	if cfg.Launch.Enabled || cfg.Landing.Enabled {
		pin, err := f.board.Pin(cfg.GatePin)
		if err != nil {
			return nil, fmt.Errorf("gate: %w", err)
		}
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("gate: %w", err)
		}
		if cfg.Launch.Enabled {
			l := gate.NewLaunch(pin, indicator, config.Ms(cfg.Launch.QuietMs), config.Ms(cfg.Launch.BlinkMs), gate.WithLogger(logger))
			options = append(options, mission.WithLaunch(l))
		}
		if cfg.Landing.Enabled {
			l := gate.NewLanding(pin, config.Ms(cfg.Landing.QuietMs), gate.WithLogger(logger))
			options = append(options, mission.WithLanding(l))
		}
		if f.sim != nil && cfg.Launch.Enabled {
			// the simulated pad switch is closed until the balloon flies
			f.sim.Set(cfg.GatePin, gpio.Low)
			options = append(options, mission.WithStateHook(func(s mission.State) {
				if s == mission.Flying {
					f.sim.Set(cfg.GatePin, gpio.High)
				}
			}))
		}
	}

	f.mission = mission.New(f.sensors, options...)
	built = true
	return f, nil
}

// Close releases outputs, chips and the board.
func (f *flight) Close() error {
	var err error
	for _, o := range f.outputs {
		err = multierr.Append(err, o.Close())
	}
	for _, c := range f.chips {
		err = multierr.Append(err, c.Close())
	}
	if f.board != nil {
		err = multierr.Append(err, f.board.Close())
	}
	return err
}

// simulatePulses feeds random falling edges to the simulated counter pins.
func simulatePulses(ctx context.Context, sim *board.Sim, pins []string) {
	if len(pins) == 0 {
		return
	}
	for {
		if err := led.Sleep(ctx, time.Duration(200+rand.Intn(600))*time.Millisecond); err != nil {
			return
		}
		for _, p := range pins {
			sim.Edge(p, gpio.Low)
		}
	}
}
