package inject

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hex20/telemetry-health/monitor/internal/config"
	"github.com/hex20/telemetry-health/pkg/types"
)

// publisher is the slice of mqtt.Client MQTTInjector needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTInjector publishes injection commands to a broker topic.
type MQTTInjector struct {
	pub   publisher
	conn  mqtt.Client
	topic string
	qos   byte
}

// NewMQTTInjector connects to the broker in cfg.
func NewMQTTInjector(cfg config.MQTTConfig) (*MQTTInjector, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password())
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("inject: mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("inject: mqtt connection lost", "broker", cfg.Broker, "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("inject: connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	return &MQTTInjector{pub: client, conn: client, topic: cfg.Topic, qos: cfg.QoS}, nil
}

// InjectAnomaly publishes {"type": kind} and waits for the broker to
// acknowledge it or ctx to end.
func (m *MQTTInjector) InjectAnomaly(ctx context.Context, kind types.AnomalyKind) error {
	payload, err := json.Marshal(types.InjectCommand{Type: kind})
	if err != nil {
		return fmt.Errorf("inject: encode command: %w", err)
	}

	token := m.pub.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("inject: publish to %s: %w", m.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("inject: publish to %s: %w", m.topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (m *MQTTInjector) Close() {
	if m.conn != nil {
		m.conn.Disconnect(250)
	}
}
