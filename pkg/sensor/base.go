package sensor

import (
	"context"
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

var errNotStarted = errors.New("not started")

// base holds what every variant shares: identity, environment and the data
// file of the current run.
type base struct {
	name string
	kind Kind
	env  Env
	file *record.File
}

func newBase(name string, kind Kind, env Env) base {
	return base{name: name, kind: kind, env: env.withDefaults()}
}

func (b *base) Name() string { return b.name }
func (b *base) Kind() Kind   { return b.kind }

// open starts a fresh data file.
func (b *base) open() error {
	f, err := record.Create(b.env.Dir, b.name, b.env.Now())
	if err != nil {
		return err
	}
	b.file = f
	b.env.Logger.Info("sensor started", "sensor", b.name, "kind", b.kind, "file", f.Path())
	return nil
}

// persist appends r to the data file and mirrors it to the outputs. Output
// failures are logged only.
func (b *base) persist(r Reading) error {
	if b.file == nil {
		return errNotStarted
	}
	rec := record.Record{Sensor: b.name, Timestamp: r.Timestamp, Fields: r.Fields}
	if err := b.file.Append(rec); err != nil {
		return err
	}
	for _, o := range b.env.Outputs {
		if err := o.Publish(rec); err != nil {
			b.env.Logger.Warn("output publish failed", "sensor", b.name, "err", err)
		}
	}
	return nil
}

// write is the Write shared by all variants: one Get, one record.
func (b *base) write(ctx context.Context, get func(context.Context) (Reading, error)) error {
	r, err := get(ctx)
	if err != nil {
		return &WriteError{Sensor: b.name, Err: err}
	}
	if err := b.persist(r); err != nil {
		return &WriteError{Sensor: b.name, Err: err}
	}
	return nil
}

// stopped logs the completion notice.
func (b *base) stopped() {
	if b.file == nil {
		b.env.Logger.Info("sensor stopped", "sensor", b.name)
		return
	}
	attrs := []any{"sensor", b.name, "records", humanize.Comma(int64(b.file.Records())), "file", b.file.Path()}
	if size, err := b.file.Size(); err == nil {
		attrs = append(attrs, "size", humanize.Bytes(uint64(size)))
	}
	b.env.Logger.Info("sensor stopped", attrs...)
}
