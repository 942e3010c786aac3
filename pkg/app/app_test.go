package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericogr/balloon-flight-controller/pkg/board"
	"github.com/ericogr/balloon-flight-controller/pkg/calibration"
	"github.com/ericogr/balloon-flight-controller/pkg/config"
	"github.com/ericogr/balloon-flight-controller/pkg/sensor"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// simConfig is the default payload on the simulated board, without the
// sensors that need outside services.
func simConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Board = config.BoardSimulation
	cfg.DataDir = t.TempDir()
	cfg.Outputs = nil
	cfg.Sensors = append(cfg.Sensors[:4], config.SensorConfig{Name: "Geiger", Type: config.SensorCounter, Pin: "GPIO5"})
	cfg.ADCs[0].SettleUs = 1
	cfg.Indicator.BlinkMs = 10
	cfg.Launch.Enabled = false
	cfg.Landing.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func dataFile(t *testing.T, dir, sensor string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, sensor+"_data_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1, sensor)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(b)
}

func TestBuildSimulation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Board = config.BoardSimulation
	cfg.DataDir = t.TempDir()
	cfg.Outputs = []config.OutputConfig{{Type: config.OutputConsole}}

	f, err := build(cfg, quietLogger())
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.sensors, 6)
	assert.Equal(t, "Inside_temp", f.sensors[0].Name())
	assert.Equal(t, sensor.KindGNSS, f.sensors[4].Kind())
	assert.Equal(t, sensor.KindCamera, f.sensors[5].Kind())
	assert.Len(t, f.chips, 1)
	assert.Len(t, f.outputs, 1)
	assert.NotNil(t, f.sim)
}

func TestRunSimulationUntilInterrupt(t *testing.T) {
	cfg := simConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, Run(ctx, cfg, quietLogger()))

	for _, name := range []string{"Inside_temp", "Outside_temp", "Light", "Pressure", "Geiger"} {
		data := dataFile(t, cfg.DataDir, name)
		assert.True(t, strings.HasPrefix(data, "\nNew data.\n\n"), name)
		lines := strings.Split(strings.TrimSpace(data), "\n")
		assert.Greater(t, len(lines), 1, "%s has no records", name)
	}
}

func TestRunSimulationWithLaunch(t *testing.T) {
	cfg := simConfig(t)
	cfg.Launch = config.GateConfig{Enabled: true, QuietMs: 20, BlinkMs: 20}
	cfg.Landing = config.GateConfig{Enabled: true, QuietMs: 20}
	// five 0.2s acknowledgement flashes come before the first poll
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, Run(ctx, cfg, quietLogger()))
	// launched off the simulated pad, then flew until interrupted
	lines := strings.Split(strings.TrimSpace(dataFile(t, cfg.DataDir, "Light")), "\n")
	assert.Greater(t, len(lines), 1)
}

func TestRunBadOutput(t *testing.T) {
	cfg := simConfig(t)
	cfg.Outputs = []config.OutputConfig{{Type: "kafka"}}
	assert.Error(t, Run(context.Background(), cfg, quietLogger()))
}

func TestInitOutputs(t *testing.T) {
	cfg := config.Config{Outputs: []config.OutputConfig{
		{Type: "console"},
		// nothing listens on port 1
		{Type: "mqtt", MQTT: &config.MQTTConfig{Server: "tcp://127.0.0.1:1", ConnectTimeoutMs: 200}},
	}}
	outs, err := initOutputs(cfg, quietLogger())
	require.NoError(t, err)
	assert.Len(t, outs, 1)
}

func TestCreateSensorsDropsBadEntries(t *testing.T) {
	sim := board.NewSim()
	chips := createChips([]config.ADCConfig{{Name: "adc0", Vref: 5, CLK: "C", DOUT: "O", DIN: "I", CS: "S"}}, attach(t, sim), quietLogger())
	require.Len(t, chips, 1)

	cfgs := []config.SensorConfig{
		{Name: "Good", Type: config.SensorAnalog, ADC: "adc0", Address: []int{0, 0, 1}},
		{Name: "BadFormula", Type: config.SensorAnalog, ADC: "adc0", Address: []int{0, 0, 1}, Expression: "voltage ** 2"},
		{Name: "BadAddress", Type: config.SensorAnalog, ADC: "adc0", Address: []int{0, 3}},
		{Name: "NoChip", Type: config.SensorAnalog, ADC: "adc1", Address: []int{0, 0, 0}},
		{Name: "BadEdge", Type: config.SensorCounter, Pin: "GPIO5", Edge: "sideways"},
		{Name: "Geiger", Type: config.SensorCounter, Pin: "GPIO6"},
		{Name: "Serial", Type: config.SensorGNSS, GNSS: &config.GNSSConfig{Source: config.GNSSNMEA, Port: "/dev/ttyAMA0"}},
		{Name: "Carrier", Type: config.SensorGNSS, GNSS: &config.GNSSConfig{Source: "pigeon"}},
	}
	env := sensor.Env{Dir: t.TempDir(), Logger: quietLogger()}
	got, pins := createSensors(cfgs, chips, sim, env, quietLogger())

	var names []string
	for _, s := range got {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Good", "Geiger", "Serial"}, names)
	assert.Equal(t, []string{"GPIO6"}, pins)
}

// attach puts a simulated chip on the lines used by the tests above.
func attach(t *testing.T, sim *board.Sim) *board.Sim {
	t.Helper()
	require.NoError(t, sim.AttachADC("C", "O", "I", "S", board.NewSimChip(nil)))
	return sim
}

func TestTransform(t *testing.T) {
	tr, err := transform(config.SensorConfig{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, calibration.Linear{Slope: 1, Offset: 2}, tr)

	slope := 200.0
	tr, err = transform(config.SensorConfig{Slope: &slope, Offset: -250})
	require.NoError(t, err)
	v, err := tr.Apply(1.25)
	require.NoError(t, err)
	assert.Equal(t, 500.0, v)

	_, err = transform(config.SensorConfig{Expression: "pressure"})
	assert.Error(t, err)
}

func TestFreeSpace(t *testing.T) {
	free, err := freeSpace(t.TempDir())
	require.NoError(t, err)
	assert.NotZero(t, free)
}
