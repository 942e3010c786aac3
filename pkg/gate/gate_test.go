package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/balloon-flight-controller/pkg/led"
)

// switchLine is a switch whose level is a function of fake time.
type switchLine struct {
	now   time.Duration
	level func(at time.Duration) gpio.Level
	reads []time.Duration
}

func (s *switchLine) Read() gpio.Level {
	s.reads = append(s.reads, s.now)
	return s.level(s.now)
}

func (s *switchLine) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.now += d
	return nil
}

// heldUntil is closed (low) from `from` until `until`, open otherwise.
func heldUntil(from, until time.Duration) func(time.Duration) gpio.Level {
	return func(at time.Duration) gpio.Level {
		if at >= from && at < until {
			return gpio.Low
		}
		return gpio.High
	}
}

func TestLandingHeld(t *testing.T) {
	sw := &switchLine{level: heldUntil(0, time.Hour)}
	landed, err := NewLanding(sw, LandingQuiet, WithSleep(sw.sleep)).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, landed)
	assert.Equal(t, []time.Duration{0, 10 * time.Second}, sw.reads)
}

func TestLandingReleasedBeforeQuietPeriod(t *testing.T) {
	sw := &switchLine{level: heldUntil(0, 9900*time.Millisecond)}
	landed, err := NewLanding(sw, LandingQuiet, WithSleep(sw.sleep)).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, landed)
}

func TestLandingOpenDoesNotWait(t *testing.T) {
	sw := &switchLine{level: heldUntil(time.Hour, 2*time.Hour)}
	landed, err := NewLanding(sw, LandingQuiet, WithSleep(sw.sleep)).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, landed)
	assert.Zero(t, sw.now)
}

func TestConfirmStates(t *testing.T) {
	// bounces open and closed again within the quiet period: level detection
	// still confirms
	bouncy := func(at time.Duration) gpio.Level {
		if at > time.Second && at < 1500*time.Millisecond {
			return gpio.High
		}
		return gpio.Low
	}
	sw := &switchLine{level: bouncy}
	st, err := New(sw, LaunchQuiet, WithSleep(sw.sleep)).Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sw = &switchLine{level: heldUntil(0, time.Hour)}
	st, err = New(sw, LaunchQuiet, WithSleep(sw.sleep)).Confirm(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Armed, st)
	assert.Equal(t, "armed", st.String())
}

func TestLaunchWait(t *testing.T) {
	// closed at 5s: the 2s blinks sample at 2s (open), 4s (open), 6s (closed)
	sw := &switchLine{level: heldUntil(5*time.Second, time.Hour)}
	var blinks []time.Duration
	indicator := led.New(nil, led.WithSleep(func(ctx context.Context, d time.Duration) error {
		blinks = append(blinks, d)
		return sw.sleep(ctx, d)
	}))
	l := NewLaunch(sw, indicator, LaunchQuiet, LaunchBlink, WithSleep(sw.sleep))

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second}, sw.reads)
	// three 2s blinks then five 0.2s flashes, two waits each
	require.Len(t, blinks, 16)
	assert.Equal(t, time.Second, blinks[0])
	assert.Equal(t, 100*time.Millisecond, blinks[15])
}

func TestLaunchWaitCancelled(t *testing.T) {
	sw := &switchLine{level: heldUntil(time.Hour, 2*time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	indicator := led.New(nil, led.WithSleep(func(ctx context.Context, d time.Duration) error {
		if n++; n == 7 {
			cancel()
		}
		return sw.sleep(ctx, d)
	}))
	err := NewLaunch(sw, indicator, LaunchQuiet, LaunchBlink, WithSleep(sw.sleep)).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
