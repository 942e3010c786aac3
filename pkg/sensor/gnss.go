package sensor

import (
	"context"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/gnss"
)

// GNSS writes one position fix per record.
type GNSS struct {
	base
	src        gnss.Source
	fixTimeout time.Duration
}

// NewGNSS returns a GNSS sensor reading from src. A zero fixTimeout waits for
// a fix for as long as the caller's context allows.
func NewGNSS(name string, src gnss.Source, fixTimeout time.Duration, env Env) *GNSS {
	return &GNSS{base: newBase(name, KindGNSS, env), src: src, fixTimeout: fixTimeout}
}

func (g *GNSS) Start(ctx context.Context) error {
	if err := g.src.Open(ctx); err != nil {
		return &StartError{Sensor: g.name, Err: err}
	}
	if err := g.open(); err != nil {
		g.src.Close()
		return &StartError{Sensor: g.name, Err: err}
	}
	return nil
}

// Get blocks for the next fix. Value is the latitude, 0 without one.
func (g *GNSS) Get(ctx context.Context) (Reading, error) {
	if g.fixTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.fixTimeout)
		defer cancel()
	}
	fix, err := g.src.Fix(ctx)
	if err != nil {
		return Reading{}, &ReadError{Sensor: g.name, Err: err}
	}
	r := Reading{Timestamp: g.env.Now(), Fields: fix.Fields()}
	if fix.Lat != nil {
		r.Value = *fix.Lat
	}
	return r, nil
}

func (g *GNSS) Write(ctx context.Context) error { return g.write(ctx, g.Get) }

func (g *GNSS) Stop(context.Context) error {
	defer g.stopped()
	if err := g.src.Close(); err != nil {
		return &StopError{Sensor: g.name, Err: err}
	}
	return nil
}
