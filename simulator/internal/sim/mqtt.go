package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hex20/telemetry-health/pkg/types"
	"github.com/hex20/telemetry-health/simulator/internal/config"
)

// Subscriber applies injection commands received on an MQTT topic.
type Subscriber struct {
	client mqtt.Client
	topic  string
}

// Subscribe connects to the broker in cfg and injects every valid command
// published on cfg.Topic into s. Subscriptions are restored on reconnect.
func Subscribe(cfg config.MQTTConfig, s *Simulator) (*Subscriber, error) {
	handler := CommandHandler(s)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password())
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		slog.Info("sim: mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)
		if token := c.Subscribe(cfg.Topic, cfg.QoS, handler); token.Wait() && token.Error() != nil {
			slog.Error("sim: mqtt subscribe failed", "topic", cfg.Topic, "err", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("sim: mqtt connection lost", "broker", cfg.Broker, "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sim: connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}
	return &Subscriber{client: client, topic: cfg.Topic}, nil
}

// Close unsubscribes and disconnects.
func (sub *Subscriber) Close() {
	sub.client.Unsubscribe(sub.topic).WaitTimeout(time.Second)
	sub.client.Disconnect(250)
}

// CommandHandler decodes {"type": kind} payloads and injects them into s.
// Malformed or unknown commands are logged and dropped.
func CommandHandler(s *Simulator) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var cmd types.InjectCommand
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			slog.Warn("sim: bad inject command", "topic", msg.Topic(), "err", err)
			return
		}
		kind, err := types.ParseAnomalyKind(string(cmd.Type))
		if err != nil {
			slog.Warn("sim: bad inject command", "topic", msg.Topic(), "err", err)
			return
		}
		s.Inject(kind)
		slog.Info("sim: anomaly injected via mqtt", "type", kind)
	}
}
