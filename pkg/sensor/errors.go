package sensor

import "fmt"

// StartError means the sensor could not be brought up. The mission drops it.
type StartError struct {
	Sensor string
	Err    error
}

func (e *StartError) Error() string { return fmt.Sprintf("sensor %s: start: %v", e.Sensor, e.Err) }
func (e *StartError) Unwrap() error { return e.Err }

// ReadError means one measurement failed.
type ReadError struct {
	Sensor string
	Err    error
}

func (e *ReadError) Error() string { return fmt.Sprintf("sensor %s: read: %v", e.Sensor, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError means no record was persisted, either because the reading
// failed (Err is then a *ReadError) or the data file could not be written.
type WriteError struct {
	Sensor string
	Err    error
}

func (e *WriteError) Error() string { return fmt.Sprintf("sensor %s: write: %v", e.Sensor, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

type StopError struct {
	Sensor string
	Err    error
}

func (e *StopError) Error() string { return fmt.Sprintf("sensor %s: stop: %v", e.Sensor, e.Err) }
func (e *StopError) Unwrap() error { return e.Err }
