// Package config handles YAML config file loading for pulse.
package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/pulse/archive"
	"github.com/justapithecus/pulse/cache"
	"github.com/justapithecus/pulse/integration"
	"github.com/justapithecus/pulse/notify/mqtt"
	"github.com/justapithecus/pulse/notify/redis"
	"github.com/justapithecus/pulse/notify/webhook"
	"github.com/justapithecus/pulse/types"
)

// DefaultTimeout is the per-view timeout when neither flag nor config sets one.
const DefaultTimeout = 10 * time.Second

// Config represents a pulse config.yaml file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Timeout Duration      `yaml:"timeout"`
	Views   ViewsConfig   `yaml:"views"`
	Cache   CacheConfig   `yaml:"cache"`
	Archive ArchiveConfig `yaml:"archive"`
	Notify  NotifyConfig  `yaml:"notify"`

	integration.Config `yaml:",inline"`
}

// ViewsConfig holds the default selection.
type ViewsConfig struct {
	// Disabled views are left out unless --all or --only names them.
	Disabled []string `yaml:"disabled"`
	Only     []string `yaml:"only"`
	Except   []string `yaml:"except"`
}

// DisabledIDs returns Disabled as view IDs.
func (v ViewsConfig) DisabledIDs() []types.ViewID {
	return types.ViewIDs(v.Disabled...)
}

// CacheConfig holds the optional read-through cache settings.
type CacheConfig struct {
	cache.Config `yaml:",inline"`
	TTL          Duration `yaml:"ttl"`
}

// ArchiveConfig holds the optional snapshot archive settings.
type ArchiveConfig struct {
	// Enabled archives every run without --archive.
	Enabled        bool `yaml:"enabled"`
	archive.Config `yaml:",inline"`
}

// NotifyConfig holds the optional notifier settings.
// Each configured block adds one notifier.
type NotifyConfig struct {
	// Enabled publishes after every run without --notify.
	Enabled bool           `yaml:"enabled"`
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	MQTT    *MQTTConfig    `yaml:"mqtt,omitempty"`
}

// Configured reports whether any notifier block is present.
func (n NotifyConfig) Configured() bool {
	return n.Webhook != nil || n.Redis != nil || n.MQTT != nil
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Notifier converts to the webhook package config.
func (c WebhookConfig) Notifier() webhook.Config {
	return webhook.Config{
		URL:     c.URL,
		Headers: c.Headers,
		Timeout: c.Timeout.Duration,
		Retries: retries(c.Retries, webhook.DefaultRetries),
	}
}

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`
}

// Notifier converts to the redis package config.
func (c RedisConfig) Notifier() redis.Config {
	return redis.Config{
		URL:     c.URL,
		Channel: c.Channel,
		Timeout: c.Timeout.Duration,
		Retries: retries(c.Retries, DefaultRetries),
	}
}

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string   `yaml:"broker"`
	Topic    string   `yaml:"topic,omitempty"`
	ClientID string   `yaml:"client_id,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	QoS      *byte    `yaml:"qos,omitempty"`
	Retained bool     `yaml:"retained,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  *int     `yaml:"retries,omitempty"`
}

// Notifier converts to the mqtt package config.
func (c MQTTConfig) Notifier() mqtt.Config {
	return mqtt.Config{
		Broker:   c.Broker,
		Topic:    c.Topic,
		ClientID: c.ClientID,
		Username: c.Username,
		Password: c.Password,
		QoS:      c.QoS,
		Retained: c.Retained,
		Timeout:  c.Timeout.Duration,
		Retries:  retries(c.Retries, DefaultRetries),
	}
}

// DefaultRetries applies to notifiers whose retries field is omitted.
const DefaultRetries = 3

func retries(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
