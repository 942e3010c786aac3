package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"console,mqtt", []string{"console", "mqtt"}},
		{" console , , mqtt ", []string{"console", "mqtt"}},
	}
	for _, tt := range tests {
		if got := parseCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseCSV(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Sensors, 6)
	assert.Equal(t, "Inside_temp", cfg.Heater.Sensor)
	assert.Equal(t, 5.09, cfg.ADCs[0].Vref)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"board", func(c *Config) { c.Board = "arduino" }},
		{"duplicate sensor", func(c *Config) { c.Sensors = append(c.Sensors, c.Sensors[0]) }},
		{"unknown adc", func(c *Config) { c.Sensors[0].ADC = "adc9" }},
		{"unknown type", func(c *Config) { c.Sensors[1].Type = "sonar" }},
		{"counter pin", func(c *Config) {
			c.Sensors = append(c.Sensors, SensorConfig{Name: "Geiger", Type: SensorCounter})
		}},
		{"heater sensor", func(c *Config) { c.Heater.Sensor = "Nowhere" }},
		{"heater thresholds", func(c *Config) { c.Heater.OnAtOrBelow = 30 }},
		{"gate pin", func(c *Config) { c.GatePin = "" }},
		{"vref", func(c *Config) { c.ADCs[0].Vref = 0 }},
		{"output", func(c *Config) { c.Outputs = []OutputConfig{{Type: "kafka"}} }},
		{"mqtt qos", func(c *Config) {
			c.Outputs = []OutputConfig{{Type: OutputMQTT, MQTT: &MQTTConfig{QoS: 3}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateHeaterDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heater.Enabled = false
	cfg.Heater.Sensor = "Nowhere"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-board", "simulation",
		"-data-dir", "/tmp/flight",
		"-outputs", "console,mqtt",
		"-mqtt-server", "tcp://broker:1883",
		"-mqtt-topic", "hab/%s",
		"-no-launch",
	})
	require.NoError(t, err)
	assert.Equal(t, BoardSimulation, cfg.Board)
	assert.Equal(t, "/tmp/flight", cfg.DataDir)
	assert.False(t, cfg.Launch.Enabled)
	assert.True(t, cfg.Landing.Enabled)
	require.Len(t, cfg.Outputs, 2)
	require.NotNil(t, cfg.Outputs[1].MQTT)
	assert.Equal(t, "tcp://broker:1883", cfg.Outputs[1].MQTT.Server)
	assert.Equal(t, "hab/%s", cfg.Outputs[1].MQTT.Topic)
}

func TestLoadFlagsAddsMQTTOutput(t *testing.T) {
	cfg, err := Load([]string{"-mqtt-server", "tcp://broker:1883"})
	require.NoError(t, err)
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, OutputConsole, cfg.Outputs[0].Type)
	assert.Equal(t, OutputMQTT, cfg.Outputs[1].Type)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load([]string{"-board", "arduino"})
	assert.Error(t, err)

	_, err = Load([]string{"-config", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.yaml")
	doc := `
board: simulation
data_dir: out
adcs:
  - name: adc0
    vref: 3.3
    clk: GPIO17
    dout: GPIO27
    din: GPIO22
    cs: GPIO23
sensors:
  - name: Inside_temp
    type: analog
    adc: adc0
    address: [0, 0, 0]
    slope: 100
    offset: 50
  - name: Geiger
    type: counter
    pin: GPIO5
    edge: falling
landing:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, BoardSimulation, cfg.Board)
	assert.Equal(t, 3.3, cfg.ADCs[0].Vref)
	// unset in the file, filled from defaults
	assert.Equal(t, 100, cfg.ADCs[0].SettleUs)
	assert.Equal(t, 256, cfg.ADCs[0].MaxPulses)
	require.Len(t, cfg.Sensors, 2)
	require.NotNil(t, cfg.Sensors[0].Slope)
	assert.Equal(t, 100.0, *cfg.Sensors[0].Slope)
	assert.Equal(t, 50.0, cfg.Sensors[0].Offset)
	assert.Equal(t, "GPIO5", cfg.Sensors[1].Pin)
	assert.False(t, cfg.Landing.Enabled)
	assert.Equal(t, 10000, cfg.Landing.QuietMs)
	assert.True(t, cfg.Launch.Enabled)
}
