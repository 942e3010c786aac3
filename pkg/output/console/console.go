package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ericogr/balloon-flight-controller/pkg/output"
	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

// ConsoleOutput prints one line per record, in the record's own timestamp
// layout.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole() output.Output { return NewConsoleWriter(os.Stdout) }

func NewConsoleWriter(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

func (c *ConsoleOutput) Publish(r record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "%s sensor=%s fields=%s\n", r.Timestamp.Format(record.TimeLayout), r.Sensor, strings.Join(r.Fields, ","))
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
