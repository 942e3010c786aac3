package console

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

func TestConsolePublish(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	ts := time.Date(2026, 10, 19, 18, 10, 0, 0, time.UTC)

	if err := c.Publish(record.Record{Sensor: "Inside_temp", Timestamp: ts, Fields: []string{"21.5"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := c.Publish(record.Record{Sensor: "GPS", Timestamp: ts, Fields: []string{"n/a", "51.5"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := "Mon Oct 19 18:10:00 2026 sensor=Inside_temp fields=21.5\n" +
		"Mon Oct 19 18:10:00 2026 sensor=GPS fields=n/a,51.5\n"
	if buf.String() != want {
		t.Fatalf("console output mismatch:\n got: %q\nwant: %q", buf.String(), want)
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsolePublishError(t *testing.T) {
	c := NewConsoleWriter(brokenWriter{})
	if err := c.Publish(record.Record{Sensor: "Light", Timestamp: time.Now()}); err == nil {
		t.Fatalf("expected write error")
	}
}
