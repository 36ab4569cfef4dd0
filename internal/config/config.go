// Package config holds the receiver's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sweeney/rf-receiver/internal/gpio"
	"github.com/sweeney/rf-receiver/internal/logic"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "config/rf-receiver.yaml"

// Config represents the receiver configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Sampler SamplerConfig `yaml:"sampler"`
	Report  ReportConfig  `yaml:"report"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.GPIO.Validate(); err != nil {
		return fmt.Errorf("gpio: %w", err)
	}
	if err := c.Sampler.Validate(); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate validates the logging configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.Required, validation.In("text", "json")),
	)
}

// SlogLevel converts Level to a slog.Level. Unknown values map to info.
func (c *LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// GPIO modes.
const (
	GPIOModeEdge = "edge"
	GPIOModePoll = "poll"
)

// GPIOConfig holds the input line configuration.
//
// Mode controls how edges are detected:
//   - "edge" (default): the kernel reports both edges and applies Debounce.
//   - "poll": lines are read every Poll interval and debounced in software.
type GPIOConfig struct {
	Chip      string         `yaml:"chip"`
	Mode      string         `yaml:"mode"`
	Debounce  time.Duration  `yaml:"debounce"`
	Poll      time.Duration  `yaml:"poll"`
	Bias      string         `yaml:"bias"`
	ActiveLow bool           `yaml:"active_low"`
	Lines     map[string]int `yaml:"lines"`
}

// Validate validates the GPIO configuration.
func (c *GPIOConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Chip, validation.Required),
		validation.Field(&c.Mode, validation.Required, validation.In(GPIOModeEdge, GPIOModePoll)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.Poll,
			validation.When(c.Mode == GPIOModePoll, validation.Required, validation.Min(time.Millisecond))),
		validation.Field(&c.Bias, validation.Required,
			validation.In(string(gpio.BiasPullDown), string(gpio.BiasPullUp), string(gpio.BiasDisabled))),
		validation.Field(&c.Lines, validation.Required, validation.By(validateLines)),
	)
}

func validateLines(value interface{}) error {
	lines, _ := value.(map[string]int)
	_, err := channelLines(lines)
	return err
}

// ChannelLines resolves the configured wiring to channels.
func (c *GPIOConfig) ChannelLines() (map[logic.Channel]int, error) {
	return channelLines(c.Lines)
}

func channelLines(lines map[string]int) (map[logic.Channel]int, error) {
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[logic.Channel]int, len(lines))
	seen := make(map[int]string, len(lines))
	var errs []error
	for _, name := range names {
		line := lines[name]
		c, err := logic.ParseChannel(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if line < 0 {
			errs = append(errs, fmt.Errorf("%w: %s: invalid line %d", logic.ErrConfiguration, name, line))
			continue
		}
		if other, ok := seen[line]; ok {
			errs = append(errs, fmt.Errorf("%w: line %d used by %s and %s", logic.ErrConfiguration, line, other, name))
			continue
		}
		seen[line] = name
		out[c] = line
	}
	return out, errors.Join(errs...)
}

// Options converts the config into gpio source options.
func (c *GPIOConfig) Options(offsets []int, logger *slog.Logger) gpio.Options {
	opts := gpio.Options{
		Chip:      c.Chip,
		Lines:     offsets,
		Debounce:  c.Debounce,
		Bias:      gpio.Bias(c.Bias),
		ActiveLow: c.ActiveLow,
		Logger:    logger,
	}
	if c.Mode == GPIOModePoll {
		opts.Poll = c.Poll
	}
	return opts
}

// SamplerConfig holds history sampling configuration.
type SamplerConfig struct {
	Mode     string        `yaml:"mode"`
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the sampler configuration.
func (c *SamplerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In("tick", "edge")),
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Millisecond)),
	)
}

// ReportConfig holds the exit report configuration.
type ReportConfig struct {
	Format string `yaml:"format"`
	Output string `yaml:"output"` // empty = stdout
	Width  int    `yaml:"width"`
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.Required, validation.In("text", "csv", "none")),
		validation.Field(&c.Width, validation.Min(10), validation.Max(1000)),
	)
}

// HTTPConfig holds the status server configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// Enabled reports whether the status server should run.
func (c *HTTPConfig) Enabled() bool {
	return c.Addr != ""
}

// MQTTConfig holds the optional MQTT notifier configuration.
type MQTTConfig struct {
	Broker      string        `yaml:"broker"` // empty disables MQTT
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
}

// Enabled reports whether MQTT publishing is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Validate validates the MQTT configuration.
func (c *MQTTConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ClientID, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.TopicPrefix, validation.When(c.Enabled(), validation.Required),
			validation.By(func(v interface{}) error {
				if s, _ := v.(string); strings.HasSuffix(s, "/") {
					return errors.New("must not end with /")
				}
				return nil
			})),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a Config wired like the original receiver board.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			Mode:     GPIOModeEdge,
			Debounce: gpio.DefaultDebounce,
			Poll:     5 * time.Millisecond,
			Bias:     string(gpio.BiasPullDown),
			Lines: map[string]int{
				"north":  gpio.DefaultPinNorth,
				"south":  gpio.DefaultPinSouth,
				"east":   gpio.DefaultPinEast,
				"west":   gpio.DefaultPinWest,
				"common": gpio.DefaultPinCommon,
			},
		},
		Sampler: SamplerConfig{
			Mode:     "tick",
			Interval: 50 * time.Millisecond,
		},
		Report: ReportConfig{
			Format: "text",
			Width:  72,
		},
		MQTT: MQTTConfig{
			ClientID:    "rf-receiver",
			TopicPrefix: "rf/receiver",
			Heartbeat:   15 * time.Minute,
		},
	}
}
