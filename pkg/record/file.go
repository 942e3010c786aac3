package record

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const banner = "\nNew data.\n\n"

// File is a sensor's data file. It is opened and closed on every append so
// a long flight never holds a descriptor per sensor.
type File struct {
	mu      sync.Mutex
	path    string
	records int
}

// Name returns the data file name for a sensor started at t, e.g.
// "Light_data_Mon_Oct_19_18:10:00_2026.txt".
func Name(sensor string, t time.Time) string {
	stamp := strings.ReplaceAll(t.Format(TimeLayout), " ", "_")
	return sensor + "_data_" + stamp + ".txt"
}

// Create starts a new data file for sensor in dir and writes the session
// banner.
func Create(dir, sensor string, t time.Time) (*File, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	f := &File{path: filepath.Join(dir, Name(sensor, t))}
	if err := f.write(banner); err != nil {
		return nil, err
	}
	return f, nil
}

// Append writes one record.
func (f *File) Append(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(r.Line()); err != nil {
		return err
	}
	f.records++
	return nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Records returns how many records were appended.
func (f *File) Records() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records
}

// Size returns the file size in bytes.
func (f *File) Size() (int64, error) {
	st, err := os.Stat(f.path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (f *File) write(s string) (err error) {
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.path, err)
	}
	defer func() {
		if cErr := fh.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", f.path, cErr)
		}
	}()
	if _, err = fh.WriteString(s); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}
