package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BoardReal       = "real"
	BoardSimulation = "simulation"

	SensorAnalog  = "analog"
	SensorCounter = "counter"
	SensorGNSS    = "gnss"
	SensorCamera  = "camera"

	GNSSGpsd = "gpsd"
	GNSSNMEA = "nmea"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
)

type MQTTConfig struct {
	Server           string `json:"server" yaml:"server"`
	Username         string `json:"username" yaml:"username"`
	Password         string `json:"password" yaml:"password"`
	ClientID         string `json:"client_id" yaml:"client_id"`
	Topic            string `json:"topic" yaml:"topic"`
	QoS              byte   `json:"qos,omitempty" yaml:"qos,omitempty"`
	ConnectTimeoutMs int    `json:"connect_timeout_ms,omitempty" yaml:"connect_timeout_ms,omitempty"`
	// how long a publish may wait for the broker's ack
	PublishTimeoutMs int `json:"publish_timeout_ms,omitempty" yaml:"publish_timeout_ms,omitempty"`
}

type OutputConfig struct {
	Type string      `json:"type" yaml:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// ADCConfig describes one bit-clocked ADC chip and the four lines wired to it.
type ADCConfig struct {
	Name      string  `json:"name" yaml:"name"`
	Vref      float64 `json:"vref" yaml:"vref"`
	CLK       string  `json:"clk" yaml:"clk"`
	DOUT      string  `json:"dout" yaml:"dout"`
	DIN       string  `json:"din" yaml:"din"`
	CS        string  `json:"cs" yaml:"cs"`
	SettleUs  int     `json:"settle_us,omitempty" yaml:"settle_us,omitempty"`
	MaxPulses int     `json:"max_pulses,omitempty" yaml:"max_pulses,omitempty"`
}

type GNSSConfig struct {
	Source       string `json:"source" yaml:"source"`
	Address      string `json:"address,omitempty" yaml:"address,omitempty"`
	Port         string `json:"port,omitempty" yaml:"port,omitempty"`
	Baud         int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	FixTimeoutMs int    `json:"fix_timeout_ms,omitempty" yaml:"fix_timeout_ms,omitempty"`
}

type CameraConfig struct {
	VidPeriod    int      `json:"vid_period" yaml:"vid_period"`
	VidLengthS   int      `json:"vid_length_s" yaml:"vid_length_s"`
	StillCommand []string `json:"still_command,omitempty" yaml:"still_command,omitempty"`
	VideoCommand []string `json:"video_command,omitempty" yaml:"video_command,omitempty"`
}

// SensorConfig is one entry of the sensor queue. Which fields apply depends
// on Type.
type SensorConfig struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`

	// analog
	ADC        string   `json:"adc,omitempty" yaml:"adc,omitempty"`
	Address    []int    `json:"address,omitempty" yaml:"address,omitempty"`
	Expression string   `json:"expression,omitempty" yaml:"expression,omitempty"`
	Slope      *float64 `json:"slope,omitempty" yaml:"slope,omitempty"`
	Offset     float64  `json:"offset,omitempty" yaml:"offset,omitempty"`

	// counter
	Pin  string `json:"pin,omitempty" yaml:"pin,omitempty"`
	Edge string `json:"edge,omitempty" yaml:"edge,omitempty"`

	GNSS   *GNSSConfig   `json:"gnss,omitempty" yaml:"gnss,omitempty"`
	Camera *CameraConfig `json:"camera,omitempty" yaml:"camera,omitempty"`
}

type HeaterConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Pin          string  `json:"pin" yaml:"pin"`
	Sensor       string  `json:"sensor" yaml:"sensor"`
	OnAtOrBelow  float64 `json:"on_at_or_below" yaml:"on_at_or_below"`
	OffAtOrAbove float64 `json:"off_at_or_above" yaml:"off_at_or_above"`
}

type IndicatorConfig struct {
	Pin     string `json:"pin" yaml:"pin"`
	BlinkMs int    `json:"blink_ms" yaml:"blink_ms"`
}

type GateConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	QuietMs int  `json:"quiet_ms" yaml:"quiet_ms"`
	BlinkMs int  `json:"blink_ms,omitempty" yaml:"blink_ms,omitempty"`
}

type Config struct {
	Board     string          `json:"board" yaml:"board"`
	DataDir   string          `json:"data_dir" yaml:"data_dir"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	ADCs      []ADCConfig     `json:"adcs" yaml:"adcs"`
	Sensors   []SensorConfig  `json:"sensors" yaml:"sensors"`
	Heater    HeaterConfig    `json:"heater" yaml:"heater"`
	Indicator IndicatorConfig `json:"indicator" yaml:"indicator"`
	GatePin   string          `json:"gate_pin" yaml:"gate_pin"`
	Launch    GateConfig      `json:"launch" yaml:"launch"`
	Landing   GateConfig      `json:"landing" yaml:"landing"`
	Outputs   []OutputConfig  `json:"outputs" yaml:"outputs"`
}

// DefaultConfig is the flight configuration of the original payload: four
// analog sensors on one ADC, GPS, camera, heater driven from Inside_temp.
func DefaultConfig() Config {
	return Config{
		Board:    BoardReal,
		DataDir:  "data",
		LogLevel: "info",
		ADCs: []ADCConfig{{
			Name: "adc0", Vref: 5.09,
			CLK: "GPIO17", DOUT: "GPIO27", DIN: "GPIO22", CS: "GPIO23",
			SettleUs: 100, MaxPulses: 256,
		}},
		Sensors: []SensorConfig{
			// volts to °F, then °F to °C
			{Name: "Inside_temp", Type: SensorAnalog, ADC: "adc0", Address: []int{0, 0, 0}, Expression: "((voltage * 100) - 32) / 9 * 5"},
			{Name: "Outside_temp", Type: SensorAnalog, ADC: "adc0", Address: []int{0, 0, 1}, Expression: "(voltage - 1.25) / 0.005"},
			{Name: "Light", Type: SensorAnalog, ADC: "adc0", Address: []int{0, 1, 0}, Expression: "voltage"},
			{Name: "Pressure", Type: SensorAnalog, ADC: "adc0", Address: []int{0, 1, 1}, Expression: "(voltage - 4.57) / -0.0040"},
			{Name: "GPS", Type: SensorGNSS, GNSS: &GNSSConfig{Source: GNSSGpsd, Address: "localhost:2947"}},
			{Name: "Camera", Type: SensorCamera, Camera: &CameraConfig{VidPeriod: 10, VidLengthS: 5}},
		},
		Heater: HeaterConfig{
			Enabled: true, Pin: "GPIO13", Sensor: "Inside_temp",
			OnAtOrBelow: 21, OffAtOrAbove: 25,
		},
		Indicator: IndicatorConfig{Pin: "GPIO12", BlinkMs: 1000},
		GatePin:   "GPIO4",
		Launch:    GateConfig{Enabled: true, QuietMs: 2000, BlinkMs: 2000},
		Landing:   GateConfig{Enabled: true, QuietMs: 10000},
		Outputs:   []OutputConfig{{Type: OutputConsole}},
	}
}

// Ms converts a millisecond setting to a duration.
func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// LoadFile reads a JSON or YAML (by extension) file over the defaults.
func LoadFile(path string) (Config, error) {
	def := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read config: %w", err)
	}
	// lists in the file replace the default lists instead of merging into
	// their elements
	cfg := def
	cfg.ADCs, cfg.Sensors, cfg.Outputs = nil, nil, nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return def, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ADCs == nil {
		cfg.ADCs = def.ADCs
	}
	if cfg.Sensors == nil {
		cfg.Sensors = def.Sensors
	}
	if cfg.Outputs == nil {
		cfg.Outputs = def.Outputs
	}
	return cfg, nil
}

// LoadFromFlags loads configuration from a config file (optional) and the
// process flags. Flags override values present in the file.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadFromFlags over an explicit argument list.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("flight-controller", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagBoard := fs.String("board", "", "board: real|simulation")
	flagDataDir := fs.String("data-dir", "", "Directory for sensor data files")
	flagLogLevel := fs.String("log-level", "", "debug|info|warn|error")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic base")
	flagNoLaunch := fs.Bool("no-launch", false, "Start flying without waiting for the launch switch")
	flagNoLanding := fs.Bool("no-landing", false, "Ignore the landing switch; run until interrupted")
	flagHeaterSensor := fs.String("heater-sensor", "", "Sensor that drives the heater")

	if err := fs.Parse(args); err != nil {
		return DefaultConfig(), err
	}

	cfg := DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = LoadFile(*cfgPath); err != nil {
			return cfg, err
		}
	}

	if *flagBoard != "" {
		cfg.Board = *flagBoard
	}
	if *flagDataDir != "" {
		cfg.DataDir = *flagDataDir
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p})
		}
		cfg.Outputs = outs
	}
	// map mqtt flags into the mqtt outputs (create one if missing)
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		apply := func(m *MQTTConfig) {
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.Topic = *flagTopic
			}
		}
		applied := false
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == OutputMQTT {
				if cfg.Outputs[i].MQTT == nil {
					cfg.Outputs[i].MQTT = &MQTTConfig{}
				}
				apply(cfg.Outputs[i].MQTT)
				applied = true
			}
		}
		if !applied {
			mqttOut := OutputConfig{Type: OutputMQTT, MQTT: &MQTTConfig{}}
			apply(mqttOut.MQTT)
			cfg.Outputs = append(cfg.Outputs, mqttOut)
		}
	}
	if *flagNoLaunch {
		cfg.Launch.Enabled = false
	}
	if *flagNoLanding {
		cfg.Landing.Enabled = false
	}
	if *flagHeaterSensor != "" {
		cfg.Heater.Sensor = *flagHeaterSensor
	}

	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ensureDefaults fills settings a partial file may leave at zero.
func (c *Config) ensureDefaults() {
	def := DefaultConfig()
	if c.Board == "" {
		c.Board = def.Board
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	for i := range c.ADCs {
		if c.ADCs[i].SettleUs == 0 {
			c.ADCs[i].SettleUs = def.ADCs[0].SettleUs
		}
		if c.ADCs[i].MaxPulses == 0 {
			c.ADCs[i].MaxPulses = def.ADCs[0].MaxPulses
		}
	}
	if c.Heater.OnAtOrBelow == 0 && c.Heater.OffAtOrAbove == 0 {
		c.Heater.OnAtOrBelow = def.Heater.OnAtOrBelow
		c.Heater.OffAtOrAbove = def.Heater.OffAtOrAbove
	}
	if c.Indicator.BlinkMs == 0 {
		c.Indicator.BlinkMs = def.Indicator.BlinkMs
	}
	if c.Launch.QuietMs == 0 {
		c.Launch.QuietMs = def.Launch.QuietMs
	}
	if c.Launch.BlinkMs == 0 {
		c.Launch.BlinkMs = def.Launch.BlinkMs
	}
	if c.Landing.QuietMs == 0 {
		c.Landing.QuietMs = def.Landing.QuietMs
	}
}

// Validate checks the structure of the configuration. Per-sensor problems
// that only show at build time (a bad formula, a missing device) are left to
// the mission, which drops the sensor instead of refusing to fly.
func (c *Config) Validate() error {
	var errs []error
	switch c.Board {
	case BoardReal, BoardSimulation:
	default:
		errs = append(errs, fmt.Errorf("board must be %s or %s, got %q", BoardReal, BoardSimulation, c.Board))
	}

	adcs := make(map[string]bool, len(c.ADCs))
	for i, a := range c.ADCs {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("adcs[%d]: name is required", i))
		}
		if adcs[a.Name] {
			errs = append(errs, fmt.Errorf("adcs[%d]: duplicate name %q", i, a.Name))
		}
		adcs[a.Name] = true
		if a.Vref <= 0 {
			errs = append(errs, fmt.Errorf("adc %q: vref must be > 0", a.Name))
		}
		if a.CLK == "" || a.DOUT == "" || a.DIN == "" || a.CS == "" {
			errs = append(errs, fmt.Errorf("adc %q: clk, dout, din and cs pins are required", a.Name))
		}
	}

	names := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sensors[%d]: name is required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("sensors[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		switch s.Type {
		case SensorAnalog:
			if !adcs[s.ADC] {
				errs = append(errs, fmt.Errorf("sensor %q: unknown adc %q", s.Name, s.ADC))
			}
		case SensorCounter:
			if s.Pin == "" {
				errs = append(errs, fmt.Errorf("sensor %q: pin is required", s.Name))
			}
		case SensorGNSS, SensorCamera:
		default:
			errs = append(errs, fmt.Errorf("sensor %q: unknown type %q", s.Name, s.Type))
		}
	}

	if c.Heater.Enabled {
		if c.Heater.Pin == "" {
			errs = append(errs, errors.New("heater: pin is required"))
		}
		if !names[c.Heater.Sensor] {
			errs = append(errs, fmt.Errorf("heater: unknown sensor %q", c.Heater.Sensor))
		}
		if c.Heater.OnAtOrBelow >= c.Heater.OffAtOrAbove {
			errs = append(errs, errors.New("heater: on threshold must be below off threshold"))
		}
	}
	if (c.Launch.Enabled || c.Landing.Enabled) && c.GatePin == "" {
		errs = append(errs, errors.New("gate_pin is required when launch or landing is enabled"))
	}
	for i, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT != nil && o.MQTT.QoS > 2 {
				errs = append(errs, fmt.Errorf("outputs[%d]: mqtt qos must be 0, 1 or 2, got %d", i, o.MQTT.QoS))
			}
		default:
			errs = append(errs, fmt.Errorf("outputs[%d]: unknown type %q", i, o.Type))
		}
	}
	return errors.Join(errs...)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
