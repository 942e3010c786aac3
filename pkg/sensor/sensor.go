// Package sensor defines the lifecycle every payload sensor follows and the
// sensor variants flown on the payload.
package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/output"
)

type Kind string

const (
	KindAnalog  Kind = "analog"
	KindCounter Kind = "counter"
	KindGNSS    Kind = "gnss"
	KindCamera  Kind = "camera"
)

// Reading is one measurement. Fields is what gets persisted after the
// timestamp; Value is the primary scalar (used by the heater).
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Fields    []string  `json:"fields"`
}

// Sensor is the lifecycle shared by all variants. Start opens a fresh data
// file; Write takes a reading with Get and appends it; Stop releases the
// hardware.
type Sensor interface {
	Name() string
	Kind() Kind
	Start(ctx context.Context) error
	Get(ctx context.Context) (Reading, error)
	Write(ctx context.Context) error
	Stop(ctx context.Context) error
}

var (
	_ Sensor = (*Analog)(nil)
	_ Sensor = (*Counter)(nil)
	_ Sensor = (*GNSS)(nil)
	_ Sensor = (*Camera)(nil)
)

// Env is what a sensor needs from its surroundings.
type Env struct {
	// Dir receives the data files.
	Dir string
	// Outputs mirror every persisted record.
	Outputs []output.Output
	Logger  *slog.Logger
	Now     func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}
