package thermal

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestDecide(t *testing.T) {
	th := New(&gpiotest.Pin{N: "GPIO13"}, DefaultOn, DefaultOff, nil)
	tests := []struct {
		temp float64
		want bool
	}{
		{-40, true},
		{20, true},
		{21, true},
		{21.01, false},
		{23, false},
		{24.9, false},
		{25, false},
		{30, false},
	}
	for _, tt := range tests {
		if got := th.Decide(tt.temp); got != tt.want {
			t.Fatalf("Decide(%v) = %v; want %v", tt.temp, got, tt.want)
		}
	}
}

func TestApplyDrivesPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13"}
	th := New(pin, DefaultOn, DefaultOff, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := th.Apply(18.5); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if pin.Read() != gpio.High || !th.Heating() {
		t.Fatalf("heater should be on at 18.5")
	}
	if err := th.Apply(23); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if pin.Read() != gpio.Low || th.Heating() {
		t.Fatalf("heater should be off in the dead band")
	}
	th.Apply(10)
	if err := th.Off(); err != nil || pin.Read() != gpio.Low {
		t.Fatalf("Off: err=%v level=%v", err, pin.Read())
	}
}

type brokenPin struct{ gpiotest.Pin }

func (p *brokenPin) Out(gpio.Level) error { return errors.New("gpio write failed") }

func TestApplyError(t *testing.T) {
	th := New(&brokenPin{}, DefaultOn, DefaultOff, nil)
	if err := th.Apply(10); err == nil {
		t.Fatalf("expected error")
	}
	if th.Heating() {
		t.Fatalf("state must not change on a failed write")
	}
}
