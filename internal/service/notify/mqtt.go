package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"facewatch/internal/model"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
}

type mqttPayload struct {
	Text      string           `json:"text"`
	ImagePath string           `json:"image_path,omitempty"`
	Event     model.AlertEvent `json:"event"`
}

// MQTT publishes alerts as JSON to a broker topic. It connects on first use
// and relies on the client's auto-reconnect afterwards.
type MQTT struct {
	cfg MQTTConfig

	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MQTT{cfg: cfg}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) connect() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	if m.client == nil {
		opts := mqtt.NewClientOptions().
			AddBroker(m.cfg.Broker).
			SetClientID(m.cfg.ClientID).
			SetAutoReconnect(true).
			SetConnectRetry(false).
			SetConnectTimeout(m.cfg.Timeout)
		if m.cfg.Username != "" {
			opts.SetUsername(m.cfg.Username)
			opts.SetPassword(m.cfg.Password)
		}
		m.client = mqtt.NewClient(opts)
	}

	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s timed out", m.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", m.cfg.Broker, err)
	}
	return m.client, nil
}

func (m *MQTT) Send(ctx context.Context, n Notification) error {
	if m.cfg.Broker == "" {
		return errors.New("mqtt broker not configured")
	}
	client, err := m.connect()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(mqttPayload{Text: n.Text, ImagePath: n.ImagePath, Event: n.Event})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	token := client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	timeout := m.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s timed out", m.cfg.Topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
