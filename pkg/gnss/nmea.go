package gnss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

const (
	DefaultBaud = 9600
	readTimeout = 500 * time.Millisecond
	maxLine     = 256
	knotsToMS   = 0.514444

	// raw field positions after the address
	rmcSpeed  = 6
	rmcCourse = 7
	ggaAlt    = 8
)

// NMEA reads RMC and GGA sentences from a receiver on a serial port.
type NMEA struct {
	port string
	baud int
	open func(port string, baud int) (io.ReadCloser, error)

	mu   sync.Mutex
	rc   io.ReadCloser
	buf  []byte
	// last GGA seen, for the altitude of the matching RMC
	last *nmea.GGA
}

func NewNMEA(port string, baud int) *NMEA {
	if baud == 0 {
		baud = DefaultBaud
	}
	return &NMEA{port: port, baud: baud, open: openSerial}
}

func openSerial(port string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	// reads return empty on timeout so a pending Fix can notice cancellation
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serial read timeout: %w", err)
	}
	return p, nil
}

func (n *NMEA) Open(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	rc, err := n.open(n.port, n.baud)
	if err != nil {
		return err
	}
	n.rc = rc
	n.buf = n.buf[:0]
	n.last = nil
	return nil
}

// Fix returns the next valid RMC fix. Altitude comes from the latest GGA
// with the same UTC time, when there is one.
func (n *NMEA) Fix(ctx context.Context) (Fix, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rc == nil {
		return Fix{}, ErrNotOpen
	}
	for {
		line, err := n.readLine(ctx)
		if err != nil {
			return Fix{}, err
		}
		// checksum failures and sentences we do not use are skipped
		s, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		switch v := s.(type) {
		case nmea.GGA:
			n.last = &v
		case nmea.RMC:
			if v.Validity != nmea.ValidRMC {
				continue
			}
			f := rmcFix(v)
			if g := n.last; g != nil && g.Time == v.Time && g.FixQuality != nmea.Invalid && field(g.BaseSentence, ggaAlt) != "" {
				f.Alt = ptr(g.Altitude)
			}
			return f, nil
		}
	}
}

func (n *NMEA) readLine(ctx context.Context) (string, error) {
	chunk := make([]byte, 128)
	for {
		if i := bytes.IndexByte(n.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(n.buf[:i]))
			n.buf = append(n.buf[:0], n.buf[i+1:]...)
			return line, nil
		}
		if len(n.buf) > maxLine {
			// garbage without a line break
			n.buf = n.buf[:0]
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		k, err := n.rc.Read(chunk)
		n.buf = append(n.buf, chunk[:k]...)
		if err != nil {
			return "", fmt.Errorf("nmea read: %w", err)
		}
	}
}

func (n *NMEA) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rc == nil {
		return nil
	}
	err := n.rc.Close()
	n.rc = nil
	return err
}

// rmcFix converts a valid RMC. Fields the receiver left empty stay nil.
func rmcFix(m nmea.RMC) Fix {
	f := Fix{
		Time: fixTime(m.Date, m.Time),
		Lat:  ptr(m.Latitude),
		Lon:  ptr(m.Longitude),
	}
	if field(m.BaseSentence, rmcSpeed) != "" {
		f.Speed = ptr(m.Speed * knotsToMS)
	}
	if field(m.BaseSentence, rmcCourse) != "" {
		f.Track = ptr(m.Course)
	}
	return f
}

// field returns the raw sentence field i, "" when absent.
func field(s nmea.BaseSentence, i int) string {
	if i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}

// fixTime is RFC 3339 UTC, or the bare time of day without a date.
func fixTime(d nmea.Date, t nmea.Time) string {
	if !t.Valid {
		return ""
	}
	if !d.Valid {
		return t.String()
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	ts := time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, 0, time.UTC)
	return ts.Format(time.RFC3339)
}
