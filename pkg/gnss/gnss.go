// Package gnss reads position fixes from a GNSS receiver, either through a
// gpsd daemon or straight from the receiver's NMEA serial stream.
package gnss

import (
	"context"
	"strconv"
)

// NA is written for a value the receiver did not report.
const NA = "n/a"

// Fix is one position report. Unset values are nil.
type Fix struct {
	Time  string
	EPT   *float64 // time error, s
	Lat   *float64
	Lon   *float64
	Alt   *float64 // m
	EPX   *float64 // longitude error, m
	EPY   *float64 // latitude error, m
	EPV   *float64 // altitude error, m
	Track *float64 // degrees from true north
	Speed *float64 // m/s
	Climb *float64 // m/s
	EPD   *float64
	EPS   *float64
	EPC   *float64
}

// Fields returns the fix in record order: time, ept, lat, lon, alt, epx,
// epy, epv, track, speed, climb, epd, eps, epc.
func (f Fix) Fields() []string {
	out := make([]string, 0, 14)
	if f.Time == "" {
		out = append(out, NA)
	} else {
		out = append(out, f.Time)
	}
	for _, v := range []*float64{f.EPT, f.Lat, f.Lon, f.Alt, f.EPX, f.EPY, f.EPV, f.Track, f.Speed, f.Climb, f.EPD, f.EPS, f.EPC} {
		out = append(out, format(v))
	}
	return out
}

func format(v *float64) string {
	if v == nil {
		return NA
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Source delivers fixes. Fix blocks until the next fix or ctx is done.
type Source interface {
	Open(ctx context.Context) error
	Fix(ctx context.Context) (Fix, error)
	Close() error
}

var (
	_ Source = (*GPSD)(nil)
	_ Source = (*NMEA)(nil)
)

func ptr(v float64) *float64 { return &v }
