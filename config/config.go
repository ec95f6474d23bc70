// Package config loads client settings from a TOML file with environment
// variable overrides. Precedence: environment > file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/gousb"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"github.com/looperkit/gl100/playback"
	"github.com/looperkit/gl100/protocol"
	"github.com/looperkit/gl100/transfer"
	"github.com/looperkit/gl100/usb"
)

// envPrefix is prepended to every environment override key.
const envPrefix = "GL100_"

// Duration is a time.Duration that unmarshals from TOML strings like "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds every tunable of the client.
type Config struct {
	// VendorID and ProductID select which attached device to open.
	VendorID  uint16 `toml:"vendor_id"`
	ProductID uint16 `toml:"product_id"`

	// Variant selects the command header layout: "standard" or "compact".
	Variant string `toml:"variant"`

	LogLevel string `toml:"log_level"`

	// ShortTimeout bounds command and acknowledgment I/O.
	ShortTimeout Duration `toml:"short_timeout"`
	// ChunkTimeout bounds each bulk data chunk.
	ChunkTimeout Duration `toml:"chunk_timeout"`
	// SettleDelay is the pause granted to the device around uploads.
	SettleDelay Duration `toml:"settle_delay"`

	// QueueDepth and StallTimeout tune streaming playback.
	QueueDepth   int      `toml:"queue_depth"`
	StallTimeout Duration `toml:"stall_timeout"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		VendorID:     usb.DefaultVendorID,
		ProductID:    usb.DefaultProductID,
		Variant:      "standard",
		LogLevel:     "info",
		ShortTimeout: Duration(1 * time.Second),
		ChunkTimeout: Duration(5 * time.Second),
		SettleDelay:  Duration(1 * time.Second),
		QueueDepth:   16,
		StallTimeout: Duration(3 * time.Second),
	}
}

// Load builds the effective configuration. A missing file is not an error;
// defaults and environment overrides still apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file loaded")
		case os.IsNotExist(err):
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file not found, using defaults")
		default:
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(envPrefix + "VENDOR_ID"); v != "" {
		id, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid %sVENDOR_ID %q: %w", envPrefix, v, err)
		}
		cfg.VendorID = uint16(id)
	}
	if v := os.Getenv(envPrefix + "PRODUCT_ID"); v != "" {
		id, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid %sPRODUCT_ID %q: %w", envPrefix, v, err)
		}
		cfg.ProductID = uint16(id)
	}
	if v := os.Getenv(envPrefix + "VARIANT"); v != "" {
		cfg.Variant = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "QUEUE_DEPTH"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sQUEUE_DEPTH %q: %w", envPrefix, v, err)
		}
		cfg.QueueDepth = depth
	}
	for key, dst := range map[string]*Duration{
		"SHORT_TIMEOUT": &cfg.ShortTimeout,
		"CHUNK_TIMEOUT": &cfg.ChunkTimeout,
		"SETTLE_DELAY":  &cfg.SettleDelay,
		"STALL_TIMEOUT": &cfg.StallTimeout,
	} {
		if v := os.Getenv(envPrefix + key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
		}
	}
	return nil
}

// Validate checks enumerated and ranged fields.
func (c Config) Validate() error {
	if _, err := c.ProtocolVariant(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue depth must be positive, got %d", c.QueueDepth)
	}
	return nil
}

// ProtocolVariant maps the variant name to its protocol constant.
func (c Config) ProtocolVariant() (protocol.Variant, error) {
	switch c.Variant {
	case "standard":
		return protocol.VariantStandard, nil
	case "compact":
		return protocol.VariantCompact, nil
	default:
		return 0, fmt.Errorf("unknown protocol variant %q (want standard or compact)", c.Variant)
	}
}

// USBOptions builds the device open options.
func (c Config) USBOptions() (usb.Options, error) {
	variant, err := c.ProtocolVariant()
	if err != nil {
		return usb.Options{}, err
	}
	return usb.Options{
		VendorID:  gousb.ID(c.VendorID),
		ProductID: gousb.ID(c.ProductID),
		Variant:   variant,
	}, nil
}

// TransferConfig builds the transfer engine timing parameters.
func (c Config) TransferConfig() transfer.Config {
	return transfer.Config{
		ShortTimeout: time.Duration(c.ShortTimeout),
		ChunkTimeout: time.Duration(c.ChunkTimeout),
		SettleDelay:  time.Duration(c.SettleDelay),
	}
}

// PlaybackConfig builds the streaming playback parameters.
func (c Config) PlaybackConfig() playback.Config {
	return playback.Config{
		QueueDepth:   c.QueueDepth,
		StallTimeout: time.Duration(c.StallTimeout),
	}
}

// SetupLogging applies the configured log level to the process logger.
func (c Config) SetupLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logrus.SetLevel(level)
	return nil
}
