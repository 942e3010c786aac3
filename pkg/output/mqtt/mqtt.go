package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/balloon-flight-controller/pkg/config"
	"github.com/ericogr/balloon-flight-controller/pkg/output"
	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

const (
	// defaults
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "balloon-payload"
	DefaultTopic    = "balloon"
	perSensorTopic  = "%s/%s"
	statusSuffix    = "/status"
	statusOnline    = "online"
	statusOffline   = "offline"
	disconnectQuiet = 250 // ms
	// payload keys
	keySensor    = "sensor"
	keyTimestamp = "timestamp"
	keyFields    = "fields"
)

// a silent broker must not stall the sensor that publishes
const defaultPublishTimeoutMs = 1000

type MQTTOutput struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	cfg = withDefaults(cfg)
	status := statusTopic(cfg.Topic)
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	// the downlink comes and goes with altitude
	opts.SetAutoReconnect(true)
	opts.SetWill(status, statusOffline, cfg.QoS, true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: timed out after %dms", cfg.ConnectTimeoutMs)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	m := &MQTTOutput{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.PublishTimeoutMs) * time.Millisecond,
	}
	if err := m.PublishRaw(status, []byte(statusOnline), true); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt status: %w", err)
	}
	return m, nil
}

func (m *MQTTOutput) Publish(r record.Record) error {
	b, err := payload(r)
	if err != nil {
		return err
	}
	return m.PublishRaw(sensorTopic(m.topic, r.Sensor), b, false)
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		_ = m.PublishRaw(statusTopic(m.topic), []byte(statusOffline), true)
		m.client.Disconnect(disconnectQuiet)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for status messages. It gives up after the
// publish timeout; paho may still deliver the message later.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, m.qos, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt publish to %s: no ack after %s", topic, m.timeout)
	}
	return token.Error()
}

func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ConnectTimeoutMs <= 0 {
		cfg.ConnectTimeoutMs = 5000
	}
	if cfg.PublishTimeoutMs <= 0 {
		cfg.PublishTimeoutMs = defaultPublishTimeoutMs
	}
	return cfg
}

// helper: topic for a sensor; a "%s" in base is replaced by the sensor name,
// otherwise the name is appended
func sensorTopic(base, sensor string) string {
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, sensor)
	}
	return fmt.Sprintf(perSensorTopic, strings.TrimSuffix(base, "/"), sensor)
}

func statusTopic(base string) string {
	if i := strings.Index(base, "%s"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + statusSuffix
}

// helper: marshal a record as JSON
func payload(r record.Record) ([]byte, error) {
	fields := r.Fields
	if fields == nil {
		fields = []string{}
	}
	return json.Marshal(map[string]interface{}{
		keySensor:    r.Sensor,
		keyTimestamp: r.Timestamp.UTC().Format(time.RFC3339),
		keyFields:    fields,
	})
}
