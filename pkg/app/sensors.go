package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/balloon-flight-controller/pkg/adc"
	"github.com/ericogr/balloon-flight-controller/pkg/board"
	"github.com/ericogr/balloon-flight-controller/pkg/calibration"
	"github.com/ericogr/balloon-flight-controller/pkg/config"
	"github.com/ericogr/balloon-flight-controller/pkg/gnss"
	"github.com/ericogr/balloon-flight-controller/pkg/sensor"
)

var errNoChip = errors.New("no such adc")

// createChips opens every configured ADC. A chip that cannot be set up is
// logged and left out; its sensors are dropped when they are built.
func createChips(cfgs []config.ADCConfig, b board.Board, logger *slog.Logger) map[string]*adc.Chip {
	chips := make(map[string]*adc.Chip, len(cfgs))
	for _, c := range cfgs {
		chip, err := createChip(c, b)
		if err != nil {
			logger.Error("adc unavailable", "adc", c.Name, "err", err)
			continue
		}
		chips[c.Name] = chip
	}
	return chips
}

func createChip(c config.ADCConfig, b board.Board) (*adc.Chip, error) {
	var lines [4]gpio.PinIO
	for i, name := range [4]string{c.CLK, c.DOUT, c.DIN, c.CS} {
		pin, err := b.Pin(name)
		if err != nil {
			return nil, err
		}
		lines[i] = pin
	}
	pins := adc.Pins{CLK: lines[0], DOUT: lines[1], DIN: lines[2], CS: lines[3]}
	return adc.New(pins, c.Vref,
		adc.WithSettle(time.Duration(c.SettleUs)*time.Microsecond),
		adc.WithMaxPulses(c.MaxPulses))
}

// createSensors builds the sensor queue in configuration order. A sensor
// whose configuration cannot be turned into hardware is logged and dropped,
// as if it had failed to start. It also returns the counter pins.
func createSensors(cfgs []config.SensorConfig, chips map[string]*adc.Chip, b board.Board, env sensor.Env, logger *slog.Logger) ([]sensor.Sensor, []string) {
	var out []sensor.Sensor
	var counterPins []string
	for _, c := range cfgs {
		s, err := createSensor(c, chips, b, env)
		if err != nil {
			logger.Error("sensor dropped", "sensor", c.Name, "type", c.Type, "err", err)
			continue
		}
		if c.Type == config.SensorCounter {
			counterPins = append(counterPins, c.Pin)
		}
		out = append(out, s)
	}
	return out, counterPins
}

func createSensor(c config.SensorConfig, chips map[string]*adc.Chip, b board.Board, env sensor.Env) (sensor.Sensor, error) {
	switch c.Type {
	case config.SensorAnalog:
		chip, ok := chips[c.ADC]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errNoChip, c.ADC)
		}
		addr, err := adc.ParseAddress(c.Address)
		if err != nil {
			return nil, err
		}
		cal, err := transform(c)
		if err != nil {
			return nil, err
		}
		return sensor.NewAnalog(c.Name, chip, addr, cal, env), nil

	case config.SensorCounter:
		edge, err := sensor.ParseEdge(c.Edge)
		if err != nil {
			return nil, err
		}
		pin, err := b.Pin(c.Pin)
		if err != nil {
			return nil, err
		}
		return sensor.NewCounter(c.Name, pin, edge, env), nil

	case config.SensorGNSS:
		g := c.GNSS
		if g == nil {
			g = &config.GNSSConfig{Source: config.GNSSGpsd}
		}
		var src gnss.Source
		switch g.Source {
		case config.GNSSGpsd, "":
			src = gnss.NewGPSD(g.Address)
		case config.GNSSNMEA:
			src = gnss.NewNMEA(g.Port, g.Baud)
		default:
			return nil, fmt.Errorf("unknown gnss source %q", g.Source)
		}
		return sensor.NewGNSS(c.Name, src, config.Ms(g.FixTimeoutMs), env), nil

	case config.SensorCamera:
		opts := sensor.CameraOptions{}
		if cc := c.Camera; cc != nil {
			opts.VidPeriod = cc.VidPeriod
			opts.VidLength = time.Duration(cc.VidLengthS) * time.Second
			opts.StillCommand = cc.StillCommand
			opts.VideoCommand = cc.VideoCommand
		}
		return sensor.NewCamera(c.Name, opts, env), nil
	}
	return nil, fmt.Errorf("unknown sensor type %q", c.Type)
}

// transform picks the calibration: an expression when one is given,
// otherwise slope and offset (slope defaults to 1).
func transform(c config.SensorConfig) (calibration.Transform, error) {
	if c.Expression != "" {
		return calibration.Compile(c.Expression)
	}
	slope := 1.0
	if c.Slope != nil {
		slope = *c.Slope
	}
	return calibration.Linear{Slope: slope, Offset: c.Offset}, nil
}
