package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Output names accepted in Outputs.
const (
	OutputKeyboard = "keyboard"
	OutputStdout   = "stdout"
	OutputMQTT     = "mqtt"
)

// minDuration is the smallest accepted debounce or poll interval.
const minDuration = time.Millisecond

// Config holds the runtime configuration. It is read once at startup.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Debounce is the pause after a successful read, PausePoll the re-check
	// interval while the loop is stopped. Both are duration strings ("2s",
	// "50ms"); a bare number would be read as nanoseconds and is rejected.
	Debounce  time.Duration `yaml:"debounce"`
	PausePoll time.Duration `yaml:"pause_poll"`

	Outputs    []string   `yaml:"outputs"`
	LineEnding string     `yaml:"line_ending"` // appended by the stdout output
	MQTT       MQTTConfig `yaml:"mqtt"`

	CrashReporting bool   `yaml:"crash_reporting"`
	SentryDSN      string `yaml:"sentry_dsn"`
	LogLevel       string `yaml:"log_level"`
}

// MQTTConfig holds MQTT broker settings for the mqtt output.
type MQTTConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Topic      string `yaml:"topic"`
	ClientID   string `yaml:"client_id"` // empty: generated per process
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:       "127.0.0.1",
		Port:       32146,
		Debounce:   2 * time.Second,
		PausePoll:  50 * time.Millisecond,
		Outputs:    []string{OutputKeyboard},
		LineEnding: "\n",
		MQTT: MQTTConfig{
			Topic: "nfc-wedge/uid",
		},
		LogLevel: "info",
	}
}

// DefaultPath returns <UserConfigDir>/nfc-wedge/config.yaml.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "nfc-wedge", "config.yaml"), nil
}

// Load builds the configuration from defaults, the YAML file at path (the
// default path when empty) and NFC_WEDGE_* environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("NFC_WEDGE_HOST"); ok {
		c.Host = v
	}
	if v, ok := lookup("NFC_WEDGE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NFC_WEDGE_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("NFC_WEDGE_OUTPUTS"); ok {
		c.Outputs = splitList(v)
	}
	if v, ok := lookup("NFC_WEDGE_DEBOUNCE_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NFC_WEDGE_DEBOUNCE_MS: %w", err)
		}
		c.Debounce = time.Duration(ms) * time.Millisecond
	}
	if v, ok := lookup("NFC_WEDGE_MQTT_HOST"); ok {
		c.MQTT.Host = v
	}
	if v, ok := lookup("NFC_WEDGE_MQTT_TOPIC"); ok {
		c.MQTT.Topic = v
	}
	if v, ok := lookup("NFC_WEDGE_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks ranges and output names.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative: %s", c.Debounce)
	}
	if c.Debounce > 0 && c.Debounce < minDuration {
		return fmt.Errorf("debounce %s is below %s, use a unit such as \"2s\"", c.Debounce, minDuration)
	}
	if c.PausePoll <= 0 {
		return fmt.Errorf("pause_poll must be positive: %s", c.PausePoll)
	}
	if c.PausePoll < minDuration {
		return fmt.Errorf("pause_poll %s is below %s, use a unit such as \"50ms\"", c.PausePoll, minDuration)
	}
	for _, o := range c.Outputs {
		switch o {
		case OutputKeyboard, OutputStdout, OutputMQTT:
		default:
			return fmt.Errorf("unknown output %q", o)
		}
	}
	if c.HasOutput(OutputMQTT) {
		if c.MQTT.Host == "" {
			return errors.New("mqtt output needs mqtt.host")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt output needs mqtt.topic")
		}
	}
	return nil
}

// Address returns host:port for the local API server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasOutput reports whether name is among the configured outputs.
func (c *Config) HasOutput(name string) bool {
	for _, o := range c.Outputs {
		if o == name {
			return true
		}
	}
	return false
}
