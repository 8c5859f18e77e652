package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config is the daemon configuration.
type Config struct {
	Address        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	LogLevel       string
	LogFormat      string
	MetricsListen  string
	MQTT           MQTTConfig
	Snapshot       SnapshotConfig
}

// MQTTConfig configures the MQTT bridge. An empty Broker disables it.
type MQTTConfig struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	Discovery       bool
	DiscoveryPrefix string
	RateLimit       float64
	RateBurst       int
}

// SnapshotConfig configures the snapshot forwarder.
type SnapshotConfig struct {
	Enabled  bool
	Interval time.Duration
	Silent   bool
	Stamp    bool
	Topic    string
}

const (
	envPrefix = "KAROTZ"

	defaultConfigPath      = "~/.config/karotz/config.toml"
	defaultRequestTimeout  = 10 * time.Second
	defaultPollInterval    = 10 * time.Second
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultClientID        = "karotzd"
	defaultTopicPrefix     = "karotz"
	defaultDiscoveryPrefix = "homeassistant"
	defaultRateLimit       = 2.0
	defaultRateBurst       = 5
	defaultSnapshotEvery   = 5 * time.Minute
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		RequestTimeout: defaultRequestTimeout,
		PollInterval:   defaultPollInterval,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		MQTT: MQTTConfig{
			ClientID:        defaultClientID,
			TopicPrefix:     defaultTopicPrefix,
			Discovery:       true,
			DiscoveryPrefix: defaultDiscoveryPrefix,
			RateLimit:       defaultRateLimit,
			RateBurst:       defaultRateBurst,
		},
		Snapshot: SnapshotConfig{
			Interval: defaultSnapshotEvery,
			Silent:   true,
			Stamp:    true,
		},
	}
}

type rawConfig struct {
	Address        string `toml:"address"`
	RequestTimeout string `toml:"request_timeout"`
	PollInterval   string `toml:"poll_interval"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	MetricsListen  string `toml:"metrics_listen"`
	MQTT           struct {
		Broker          string   `toml:"broker"`
		ClientID        string   `toml:"client_id"`
		Username        string   `toml:"username"`
		Password        string   `toml:"password"`
		TopicPrefix     string   `toml:"topic_prefix"`
		Discovery       *bool    `toml:"discovery"`
		DiscoveryPrefix string   `toml:"discovery_prefix"`
		RateLimit       *float64 `toml:"rate_limit"`
		RateBurst       *int     `toml:"rate_burst"`
	} `toml:"mqtt"`
	Snapshot struct {
		Enabled  bool   `toml:"enabled"`
		Interval string `toml:"interval"`
		Silent   *bool  `toml:"silent"`
		Stamp    *bool  `toml:"stamp"`
		Topic    string `toml:"topic"`
	} `toml:"snapshot"`
}

// Load reads the config file at path (the default location when empty),
// falling back to defaults when the file is missing, then applies KAROTZ_*
// environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw rawConfig
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.apply(raw); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration the daemon cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("address is required (set it in the config file or KAROTZ_ADDRESS)")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Snapshot.Enabled && c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot.interval must not be negative")
	}
	if c.MQTT.RateLimit < 0 || c.MQTT.RateBurst < 0 {
		return fmt.Errorf("mqtt rate limit must not be negative")
	}
	return nil
}

// SnapshotTopic returns the topic snapshots are published on.
func (c Config) SnapshotTopic() string {
	if topic := strings.TrimSpace(c.Snapshot.Topic); topic != "" {
		return topic
	}
	return c.MQTT.TopicPrefix + "/snapshot"
}

func (c *Config) apply(raw rawConfig) error {
	setString(&c.Address, raw.Address)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.LogFormat, raw.LogFormat)
	setString(&c.MetricsListen, raw.MetricsListen)
	if err := setDuration(&c.RequestTimeout, "request_timeout", raw.RequestTimeout); err != nil {
		return err
	}
	if err := setDuration(&c.PollInterval, "poll_interval", raw.PollInterval); err != nil {
		return err
	}

	setString(&c.MQTT.Broker, raw.MQTT.Broker)
	setString(&c.MQTT.ClientID, raw.MQTT.ClientID)
	setString(&c.MQTT.Username, raw.MQTT.Username)
	c.MQTT.Password = raw.MQTT.Password
	setString(&c.MQTT.TopicPrefix, raw.MQTT.TopicPrefix)
	setString(&c.MQTT.DiscoveryPrefix, raw.MQTT.DiscoveryPrefix)
	if raw.MQTT.Discovery != nil {
		c.MQTT.Discovery = *raw.MQTT.Discovery
	}
	if raw.MQTT.RateLimit != nil {
		c.MQTT.RateLimit = *raw.MQTT.RateLimit
	}
	if raw.MQTT.RateBurst != nil {
		c.MQTT.RateBurst = *raw.MQTT.RateBurst
	}

	c.Snapshot.Enabled = raw.Snapshot.Enabled
	if err := setDuration(&c.Snapshot.Interval, "snapshot.interval", raw.Snapshot.Interval); err != nil {
		return err
	}
	if raw.Snapshot.Silent != nil {
		c.Snapshot.Silent = *raw.Snapshot.Silent
	}
	if raw.Snapshot.Stamp != nil {
		c.Snapshot.Stamp = *raw.Snapshot.Stamp
	}
	setString(&c.Snapshot.Topic, raw.Snapshot.Topic)
	return nil
}

// applyEnv overlays KAROTZ_* variables, e.g. KAROTZ_ADDRESS or
// KAROTZ_MQTT_BROKER.
func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	keys := []string{
		"address", "request_timeout", "poll_interval", "log_level", "log_format", "metrics_listen",
		"mqtt.broker", "mqtt.client_id", "mqtt.username", "mqtt.password", "mqtt.topic_prefix",
		"mqtt.discovery", "mqtt.discovery_prefix", "mqtt.rate_limit", "mqtt.rate_burst",
		"snapshot.enabled", "snapshot.interval", "snapshot.silent", "snapshot.stamp", "snapshot.topic",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	strs := map[string]*string{
		"address":               &c.Address,
		"log_level":             &c.LogLevel,
		"log_format":            &c.LogFormat,
		"metrics_listen":        &c.MetricsListen,
		"mqtt.broker":           &c.MQTT.Broker,
		"mqtt.client_id":        &c.MQTT.ClientID,
		"mqtt.username":         &c.MQTT.Username,
		"mqtt.password":         &c.MQTT.Password,
		"mqtt.topic_prefix":     &c.MQTT.TopicPrefix,
		"mqtt.discovery_prefix": &c.MQTT.DiscoveryPrefix,
		"snapshot.topic":        &c.Snapshot.Topic,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			setString(dst, v.GetString(key))
		}
	}

	durations := map[string]*time.Duration{
		"request_timeout":   &c.RequestTimeout,
		"poll_interval":     &c.PollInterval,
		"snapshot.interval": &c.Snapshot.Interval,
	}
	for key, dst := range durations {
		if v.IsSet(key) {
			if err := setDuration(dst, key, v.GetString(key)); err != nil {
				return err
			}
		}
	}

	bools := map[string]*bool{
		"mqtt.discovery":   &c.MQTT.Discovery,
		"snapshot.enabled": &c.Snapshot.Enabled,
		"snapshot.silent":  &c.Snapshot.Silent,
		"snapshot.stamp":   &c.Snapshot.Stamp,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	if v.IsSet("mqtt.rate_limit") {
		c.MQTT.RateLimit = v.GetFloat64("mqtt.rate_limit")
	}
	if v.IsSet("mqtt.rate_burst") {
		c.MQTT.RateBurst = v.GetInt("mqtt.rate_burst")
	}
	if prefix := strings.Trim(c.MQTT.TopicPrefix, "/"); prefix != "" {
		c.MQTT.TopicPrefix = prefix
	} else {
		c.MQTT.TopicPrefix = defaultTopicPrefix
	}
	return nil
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func setDuration(dst *time.Duration, key, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
