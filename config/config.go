// Package config holds the bridge's configuration surface: defaults,
// an optional YAML file, and DLT_BRIDGE_* environment overrides, in
// that precedence order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dlt-bridge-server/relay"
)

const envPrefix = "DLT_BRIDGE_"

type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Server   ServerConfig   `yaml:"server"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
}

// UpstreamConfig locates the dlt-daemon TCP endpoint.
type UpstreamConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ReconnectDelay is the fixed backoff between connection attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// ServerConfig is the consumer-facing HTTP/WebSocket endpoint.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RelayConfig struct {
	QueueSize      int    `yaml:"queue_size"`
	OverflowPolicy string `yaml:"overflow_policy"`
	// ConsumerBuffer is the per-consumer send buffer, in frames; a
	// consumer that falls this far behind is treated as failed.
	ConsumerBuffer int `yaml:"consumer_buffer"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Upstream: UpstreamConfig{
			Host:           "localhost",
			Port:           3490,
			ReconnectDelay: 5 * time.Second,
		},
		Server: ServerConfig{
			Port:            8765,
			ShutdownTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			QueueSize:      1024,
			OverflowPolicy: string(relay.DropOldest),
			ConsumerBuffer: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. path may be empty; a
// missing file at a non-empty path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	setString(&c.Upstream.Host, "UPSTREAM_HOST")
	err = errors.Join(err,
		setInt(&c.Upstream.Port, "UPSTREAM_PORT"),
		setDuration(&c.Upstream.ReconnectDelay, "RECONNECT_DELAY"),
		setInt(&c.Server.Port, "PORT"),
		setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		setInt(&c.Relay.QueueSize, "QUEUE_SIZE"),
		setInt(&c.Relay.ConsumerBuffer, "CONSUMER_BUFFER"),
	)
	setString(&c.Relay.OverflowPolicy, "OVERFLOW_POLICY")
	setString(&c.Log.Level, "LOG_LEVEL")
	return err
}

func (c Config) Validate() error {
	if c.Upstream.Host == "" {
		return errors.New("config: upstream host must not be empty")
	}
	if c.Upstream.Port <= 0 || c.Upstream.Port > 65535 {
		return fmt.Errorf("config: invalid upstream port %d", c.Upstream.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Upstream.ReconnectDelay <= 0 {
		return fmt.Errorf("config: invalid reconnect delay %s", c.Upstream.ReconnectDelay)
	}
	if c.Relay.QueueSize <= 0 {
		return fmt.Errorf("config: invalid queue size %d", c.Relay.QueueSize)
	}
	if c.Relay.ConsumerBuffer <= 0 {
		return fmt.Errorf("config: invalid consumer buffer %d", c.Relay.ConsumerBuffer)
	}
	if _, err := relay.ParseOverflowPolicy(c.Relay.OverflowPolicy); err != nil {
		return err
	}
	return nil
}

// Addr is the upstream endpoint in host:port form.
func (u UpstreamConfig) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
