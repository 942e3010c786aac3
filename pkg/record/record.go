// Package record formats sensor records and appends them to per-sensor
// text files.
package record

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout used in records and file names.
const TimeLayout = time.ANSIC

// Record is one line of a sensor's data file.
type Record struct {
	Sensor    string
	Timestamp time.Time
	Fields    []string
}

// Line renders the record as "timestamp,field,...\n".
func (r Record) Line() string {
	var b strings.Builder
	b.WriteString(r.Timestamp.Format(TimeLayout))
	for _, f := range r.Fields {
		b.WriteByte(',')
		b.WriteString(f)
	}
	b.WriteByte('\n')
	return b.String()
}

// Float formats a reading for a record field.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
