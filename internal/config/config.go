// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Reader backends.
const (
	BackendCdev     = "cdev"     // Linux GPIO character device (go-gpiocdev)
	BackendRPi      = "rpio"     // Raspberry Pi memory-mapped GPIO (go-rpio)
	BackendMCP23017 = "mcp23017" // two MCP23017 I2C port expanders
)

// Pin bias settings for the pin backends.
const (
	BiasDisabled = "disabled"
	BiasPullUp   = "pull-up"
	BiasPullDown = "pull-down"
	BiasAsIs     = "as-is"
)

// ReaderConfig selects and configures the group reader.
type ReaderConfig struct {
	Backend string `yaml:"backend"`
	Bias    string `yaml:"bias"`

	// Chip is the gpiochip name for the cdev backend.
	Chip string `yaml:"chip"`

	// Groups maps group letter ("A".."D") to 8 line offsets (BCM numbers for
	// rpio). Offset i carries bit i of the group byte.
	Groups map[string][]int `yaml:"groups"`

	// I2CBus names the periph I2C bus for the mcp23017 backend ("" = first bus).
	I2CBus string `yaml:"i2c_bus"`
	// Expanders holds the two expander addresses: groups A/B then C/D.
	Expanders []uint8 `yaml:"expanders"`
}

// SamplingConfig controls the sampling loop.
type SamplingConfig struct {
	// IntervalUs is the delay between iterations in microseconds; 0 spins.
	IntervalUs int64 `yaml:"interval_us"`
}

// MQTTConfig configures counter reporting over MQTT.
type MQTTConfig struct {
	Broker           string `yaml:"broker"`
	ClientID         string `yaml:"client_id"`
	ReportIntervalMs int64  `yaml:"report_interval_ms"`
	HeartbeatMs      int64  `yaml:"heartbeat_ms"`
	BufferSize       int    `yaml:"buffer_size"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SerialConfig configures the register bus on a serial port.
type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config aggregates all daemon configuration.
type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	Sampling SamplingConfig `yaml:"sampling"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Serial   SerialConfig   `yaml:"serial"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is given. Groups A-D
// map to line offsets 0-7, 8-15, 16-23 and 24-31 of gpiochip0.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Backend: BackendCdev,
			Bias:    BiasDisabled,
			Chip:    "gpiochip0",
			Groups: map[string][]int{
				"A": {0, 1, 2, 3, 4, 5, 6, 7},
				"B": {8, 9, 10, 11, 12, 13, 14, 15},
				"C": {16, 17, 18, 19, 20, 21, 22, 23},
				"D": {24, 25, 26, 27, 28, 29, 30, 31},
			},
			Expanders: []uint8{0x20, 0x21},
		},
		MQTT: MQTTConfig{
			Broker:           "tcp://192.168.1.200:1883",
			ClientID:         "quad-decoder",
			ReportIntervalMs: 1000,
			HeartbeatMs:      (15 * time.Minute).Milliseconds(),
			BufferSize:       100,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Serial: SerialConfig{
			Baud:          115200,
			ReadTimeoutMs: 100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Groups replace the defaults wholesale rather than merging per key.
	var probe struct {
		Reader struct {
			Groups map[string][]int `yaml:"groups"`
		} `yaml:"reader"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if probe.Reader.Groups != nil {
		cfg.Reader.Groups = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in zero-valued defaults.
func (c *Config) Validate() error {
	switch c.Reader.Backend {
	case BackendCdev, BackendRPi:
		if err := c.validatePins(); err != nil {
			return err
		}
	case BackendMCP23017:
		if len(c.Reader.Expanders) != 2 {
			return fmt.Errorf("reader.expanders must list 2 addresses, got %d", len(c.Reader.Expanders))
		}
		if c.Reader.Expanders[0] == c.Reader.Expanders[1] {
			return fmt.Errorf("reader.expanders must be distinct, got 0x%02x twice", c.Reader.Expanders[0])
		}
		for _, a := range c.Reader.Expanders {
			if a < 0x20 || a > 0x27 {
				return fmt.Errorf("reader.expanders: address 0x%02x outside 0x20-0x27", a)
			}
		}
	default:
		return fmt.Errorf("reader.backend: unknown backend %q", c.Reader.Backend)
	}

	switch c.Reader.Bias {
	case "":
		c.Reader.Bias = BiasDisabled
	case BiasDisabled, BiasPullUp, BiasPullDown, BiasAsIs:
	default:
		return fmt.Errorf("reader.bias: unknown bias %q", c.Reader.Bias)
	}

	if c.Sampling.IntervalUs < 0 {
		return fmt.Errorf("sampling.interval_us must be >= 0, got %d", c.Sampling.IntervalUs)
	}
	if c.MQTT.ReportIntervalMs < 0 {
		return fmt.Errorf("mqtt.report_interval_ms must be >= 0, got %d", c.MQTT.ReportIntervalMs)
	}
	if c.MQTT.HeartbeatMs < 0 {
		return fmt.Errorf("mqtt.heartbeat_ms must be >= 0, got %d", c.MQTT.HeartbeatMs)
	}
	if c.MQTT.BufferSize <= 0 {
		c.MQTT.BufferSize = 100
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "quad-decoder"
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = 115200
	}
	if c.Serial.ReadTimeoutMs <= 0 {
		c.Serial.ReadTimeoutMs = 100
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) validatePins() error {
	if c.Reader.Backend == BackendCdev && c.Reader.Chip == "" {
		return fmt.Errorf("reader.chip is required for the %s backend", BackendCdev)
	}
	if len(c.Reader.Groups) != 4 {
		return fmt.Errorf("reader.groups must define groups A-D, got %d groups", len(c.Reader.Groups))
	}
	seen := make(map[int]string)
	for _, name := range []string{"A", "B", "C", "D"} {
		offsets, ok := c.Reader.Groups[name]
		if !ok {
			return fmt.Errorf("reader.groups: missing group %s", name)
		}
		if len(offsets) != 8 {
			return fmt.Errorf("reader.groups.%s: need 8 offsets, got %d", name, len(offsets))
		}
		for _, o := range offsets {
			if o < 0 {
				return fmt.Errorf("reader.groups.%s: negative offset %d", name, o)
			}
			if other, dup := seen[o]; dup {
				return fmt.Errorf("reader.groups.%s: offset %d already used by group %s", name, o, other)
			}
			seen[o] = name
		}
	}
	return nil
}

// SampleInterval returns the delay between sampling iterations (0 = spin).
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Sampling.IntervalUs) * time.Microsecond
}

// ReportInterval returns the MQTT counter report interval (0 = disabled).
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.MQTT.ReportIntervalMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval (0 = disabled).
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.MQTT.HeartbeatMs) * time.Millisecond
}

// SerialReadTimeout returns the register bus read timeout.
func (c *Config) SerialReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

// GroupOffsets returns the line offsets of groups A-D in sampling order.
func (c *Config) GroupOffsets() [4][]int {
	var out [4][]int
	for i, name := range []string{"A", "B", "C", "D"} {
		out[i] = c.Reader.Groups[name]
	}
	return out
}
