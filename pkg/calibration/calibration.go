// Package calibration turns a measured voltage into engineering units.
package calibration

import "fmt"

// Transform maps a voltage to a reading.
type Transform interface {
	Apply(voltage float64) (float64, error)
}

var (
	_ Transform = Linear{}
	_ Transform = (*Expression)(nil)
)

// Linear is reading = voltage*Slope - Offset. Note the offset is subtracted.
type Linear struct {
	Slope  float64
	Offset float64
}

func (l Linear) Apply(voltage float64) (float64, error) {
	return voltage*l.Slope - l.Offset, nil
}

func (l Linear) String() string {
	return fmt.Sprintf("voltage*%g - %g", l.Slope, l.Offset)
}

// Error reports a formula that cannot be compiled or evaluated.
type Error struct {
	Expr string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("calibration %q: %s", e.Expr, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }
