package sensor

import (
	"context"

	"github.com/ericogr/balloon-flight-controller/pkg/adc"
	"github.com/ericogr/balloon-flight-controller/pkg/calibration"
	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

// ChannelReader reads the voltage on one ADC channel. *adc.Chip is one.
type ChannelReader interface {
	ReadChannel(ctx context.Context, addr adc.Address) (float64, error)
}

var _ ChannelReader = (*adc.Chip)(nil)

// Analog is a sensor on one ADC channel with a calibration applied to the
// measured voltage.
type Analog struct {
	base
	chip ChannelReader
	addr adc.Address
	cal  calibration.Transform
}

func NewAnalog(name string, chip ChannelReader, addr adc.Address, cal calibration.Transform, env Env) *Analog {
	return &Analog{base: newBase(name, KindAnalog, env), chip: chip, addr: addr, cal: cal}
}

func (a *Analog) Start(context.Context) error {
	if err := a.open(); err != nil {
		return &StartError{Sensor: a.name, Err: err}
	}
	return nil
}

// Get reads the channel and calibrates. Nothing is cached between calls.
func (a *Analog) Get(ctx context.Context) (Reading, error) {
	v, err := a.chip.ReadChannel(ctx, a.addr)
	if err != nil {
		return Reading{}, &ReadError{Sensor: a.name, Err: err}
	}
	val, err := a.cal.Apply(v)
	if err != nil {
		return Reading{}, &ReadError{Sensor: a.name, Err: err}
	}
	a.env.Logger.Debug("analog reading", "sensor", a.name, "channel", a.addr, "voltage", v, "value", val)
	return Reading{Timestamp: a.env.Now(), Value: val, Fields: []string{record.Float(val)}}, nil
}

func (a *Analog) Write(ctx context.Context) error { return a.write(ctx, a.Get) }

func (a *Analog) Stop(context.Context) error {
	a.stopped()
	return nil
}
