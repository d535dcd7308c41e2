// Package mqtt publishes snapshot events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/justapithecus/pulse/notify"
)

// DefaultTopic is the default publish topic.
const DefaultTopic = "pulse/snapshot_completed"

// DefaultTimeout bounds connect and each publish acknowledgement.
const DefaultTimeout = 10 * time.Second

// Config configures the MQTT notifier.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883 (required).
	Broker string
	// Topic is the publish topic (default pulse/snapshot_completed).
	Topic string
	// ClientID identifies this client to the broker (default pulse-<unix nanos>).
	ClientID string
	// Username and Password authenticate to the broker.
	Username string
	Password string
	// QoS is the publish quality of service, 0 to 2 (default 1).
	QoS *byte
	// Retained asks the broker to keep the last event for new subscribers.
	Retained bool
	// Timeout bounds connect and publish acknowledgement (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first.
	Retries int
}

// client is the subset of paho.Client the notifier uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// Notifier publishes snapshot events to an MQTT topic.
type Notifier struct {
	config Config
	qos    byte
	client client
}

// New connects to the broker. Returns an error if the broker is empty,
// the QoS is invalid, or the connection cannot be established in time.
func New(cfg Config) (*Notifier, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt notifier requires a broker URL")
	}
	cfg, qos, err := normalize(cfg)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return newWithClient(cfg, qos, c), nil
}

func normalize(cfg Config) (Config, byte, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("pulse-%d", time.Now().UnixNano())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return cfg, 0, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	qos := byte(1)
	if cfg.QoS != nil {
		qos = *cfg.QoS
	}
	if qos > 2 {
		return cfg, 0, fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", qos)
	}
	return cfg, qos, nil
}

func newWithClient(cfg Config, qos byte, c client) *Notifier {
	return &Notifier{config: cfg, qos: qos, client: c}
}

// Publish sends the event as JSON and waits for the broker acknowledgement
// required by the configured QoS.
func (n *Notifier) Publish(ctx context.Context, event *notify.SnapshotEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mqtt: marshal event: %w", err)
	}

	return notify.Retry(ctx, "mqtt", n.config.Retries, func(ctx context.Context) error {
		token := n.client.Publish(n.config.Topic, n.qos, n.config.Retained, body)
		timer := time.NewTimer(n.config.Timeout)
		defer timer.Stop()
		select {
		case <-token.Done():
			return token.Error()
		case <-timer.C:
			return fmt.Errorf("publish to %s: timed out after %s", n.config.Topic, n.config.Timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (n *Notifier) Close() error {
	n.client.Disconnect(250)
	return nil
}

var _ notify.Notifier = (*Notifier)(nil)
