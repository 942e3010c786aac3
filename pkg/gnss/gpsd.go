package gnss

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	DefaultGPSDAddr = "localhost:2947"
	watchCommand    = `?WATCH={"enable":true,"json":true}` + "\n"
)

var ErrNotOpen = errors.New("gnss: source not open")

// GPSD reads TPV reports from a gpsd daemon.
type GPSD struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func NewGPSD(addr string) *GPSD {
	if addr == "" {
		addr = DefaultGPSDAddr
	}
	return &GPSD{addr: addr}
}

func (g *GPSD) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return fmt.Errorf("gpsd dial %s: %w", g.addr, err)
	}
	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		conn.Close()
		return fmt.Errorf("gpsd watch: %w", err)
	}
	g.conn = conn
	g.r = bufio.NewReader(conn)
	return nil
}

// TPV modes below this carry no position
const mode2D = 2

type report struct {
	Class  string   `json:"class"`
	Mode   int      `json:"mode"`
	Time   string   `json:"time"`
	EPT    *float64 `json:"ept"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Alt    *float64 `json:"alt"`
	AltMSL *float64 `json:"altMSL"`
	EPX    *float64 `json:"epx"`
	EPY    *float64 `json:"epy"`
	EPV    *float64 `json:"epv"`
	Track  *float64 `json:"track"`
	Speed  *float64 `json:"speed"`
	Climb  *float64 `json:"climb"`
	EPD    *float64 `json:"epd"`
	EPS    *float64 `json:"eps"`
	EPC    *float64 `json:"epc"`
}

// Fix returns the next TPV report with at least a 2D fix. Other report
// classes and TPVs without a fix are skipped.
func (g *GPSD) Fix(ctx context.Context) (Fix, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return Fix{}, ErrNotOpen
	}
	stop := context.AfterFunc(ctx, func() {
		g.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			// the deadline fired; clear it for the next call
			g.conn.SetReadDeadline(time.Time{})
		}
	}()

	for {
		line, err := g.r.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return Fix{}, ctx.Err()
			}
			return Fix{}, fmt.Errorf("gpsd read: %w", err)
		}
		var rep report
		if err := json.Unmarshal(line, &rep); err != nil {
			continue
		}
		if rep.Class != "TPV" || rep.Mode < mode2D {
			continue
		}
		alt := rep.Alt
		if alt == nil {
			// gpsd 3.20+ reports altHAE/altMSL instead
			alt = rep.AltMSL
		}
		return Fix{
			Time: rep.Time, EPT: rep.EPT,
			Lat: rep.Lat, Lon: rep.Lon, Alt: alt,
			EPX: rep.EPX, EPY: rep.EPY, EPV: rep.EPV,
			Track: rep.Track, Speed: rep.Speed, Climb: rep.Climb,
			EPD: rep.EPD, EPS: rep.EPS, EPC: rep.EPC,
		}, nil
	}
}

func (g *GPSD) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn, g.r = nil, nil
	return err
}
