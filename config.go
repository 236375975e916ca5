package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings shared by the test command. Flags override the
// environment, which overrides hdvalidator.yaml.
type Config struct {
	GridColumns   int    `mapstructure:"grid_columns"`
	GridRows      int    `mapstructure:"grid_rows"`
	MaxTransfer   string `mapstructure:"max_transfer"`
	LargeTransfer string `mapstructure:"large_transfer"`
	LogDir        string `mapstructure:"log_dir"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
	MetricsPush   string `mapstructure:"metrics_push"`
	UI            bool   `mapstructure:"ui"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"grid-columns":   "grid_columns",
	"grid-rows":      "grid_rows",
	"max-transfer":   "max_transfer",
	"large-transfer": "large_transfer",
	"log-dir":        "log_dir",
	"metrics-addr":   "metrics_addr",
	"metrics-push":   "metrics_push",
	"ui":             "ui",
	"log-level":      "log_level",
	"log-format":     "log_format",
}

var errBadGrid = errors.New("grid dimensions must be positive")

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("hdvalidator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.hdvalidator")
	v.AddConfigPath("/etc/hdvalidator")

	v.SetDefault("grid_columns", 50)
	v.SetDefault("grid_rows", 50)
	v.SetDefault("max_transfer", "")
	v.SetDefault("large_transfer", "64MiB")
	v.SetDefault("log_dir", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("metrics_push", "")
	v.SetDefault("ui", true)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("HDV")
	v.AutomaticEnv()
	return v
}

// loadConfig reads the config file, explicit or searched, and binds flags.
func loadConfig(v *viper.Viper, file string, flags *pflag.FlagSet) (*Config, error) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.GridColumns <= 0 || cfg.GridRows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", errBadGrid, cfg.GridColumns, cfg.GridRows)
	}
	return &cfg, nil
}

// parseSize accepts humanized sizes such as 1MiB or 65536. Empty means 0.
func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int(n), nil
}

// Blocks returns the number of grid cells.
func (c *Config) Blocks() int { return c.GridColumns * c.GridRows }
