package config

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalConfigJSON(t *testing.T) {
	js := `{
        "board": "real",
        "data_dir": "/var/lib/flight",
        "outputs": [{"type":"console"}, {"type":"mqtt","mqtt":{"server":"tcp://localhost:1883","topic":"hab/%s","qos":1}}],
        "sensors": [
            {"name": "Outside_temp", "type": "analog", "adc": "adc0", "address": [0,0,1], "expression": "(voltage - 1.25) / 0.005"},
            {"name": "GPS", "type": "gnss", "gnss": {"source": "nmea", "port": "/dev/ttyS0", "baud": 9600}},
            {"name": "Camera", "type": "camera", "camera": {"vid_period": 4, "vid_length_s": 3}}
        ],
        "heater": {"enabled": true, "pin": "GPIO13", "sensor": "Outside_temp", "on_at_or_below": 21, "off_at_or_above": 25}
    }`

	var cfg Config
	if err := json.Unmarshal([]byte(js), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Board != BoardReal {
		t.Fatalf("board: got %q", cfg.Board)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].MQTT == nil || cfg.Outputs[1].MQTT.QoS != 1 {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if len(cfg.Sensors) != 3 {
		t.Fatalf("sensors len: %d", len(cfg.Sensors))
	}
	if s := cfg.Sensors[0]; s.Expression != "(voltage - 1.25) / 0.005" || len(s.Address) != 3 || s.Address[2] != 1 {
		t.Fatalf("sensor0 incorrect: %+v", s)
	}
	if g := cfg.Sensors[1].GNSS; g == nil || g.Source != GNSSNMEA || g.Baud != 9600 {
		t.Fatalf("sensor1 incorrect: %+v", cfg.Sensors[1])
	}
	if c := cfg.Sensors[2].Camera; c == nil || c.VidPeriod != 4 || c.VidLengthS != 3 {
		t.Fatalf("sensor2 incorrect: %+v", cfg.Sensors[2])
	}
	if cfg.Heater.Sensor != "Outside_temp" || cfg.Heater.OffAtOrAbove != 25 {
		t.Fatalf("heater incorrect: %+v", cfg.Heater)
	}
}
