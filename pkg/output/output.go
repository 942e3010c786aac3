package output

import "github.com/ericogr/balloon-flight-controller/pkg/record"

// Output mirrors sensor records somewhere other than the data files.
type Output interface {
	Publish(record.Record) error
	Close() error
}

// helper constructors are in subpackages
