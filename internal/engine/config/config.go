// Package config loads the matching core's configuration: per-shard book
// geometry, risk bounds, and queue/pool sizing, read from YAML plus
// environment overrides.
//
// Grounded on internal/config/config.go's viper wiring: same viper.New,
// AutomaticEnv/SetEnvPrefix, and mapstructure-tagged struct shape, scaled
// down to the fields the matching core actually needs instead of the
// teacher's whole-application config surface (auth, websocket, database).
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/quantedge/matchcore/internal/engine/errs"
)

// SymbolConfig is one symbol's book geometry and risk overrides.
type SymbolConfig struct {
	Symbol      uint64  `mapstructure:"symbol"`
	MinPrice    int64   `mapstructure:"min_price"`
	MaxPrice    int64   `mapstructure:"max_price"`
	TickSize    int64   `mapstructure:"tick_size"`
	MaxQty      int64   `mapstructure:"max_qty"`
	MaxNotional uint64  `mapstructure:"max_notional"`
}

// ShardConfig configures one shard worker.
type ShardConfig struct {
	PoolCapacity int            `mapstructure:"pool_capacity"`
	QueueSize    int            `mapstructure:"queue_size"`
	Symbols      []SymbolConfig `mapstructure:"symbols"`
}

// RiskConfig holds the risk gate's global bounds and rate limit.
type RiskConfig struct {
	GlobalMaxQty      int64   `mapstructure:"global_max_qty"`
	GlobalMaxNotional uint64  `mapstructure:"global_max_notional"`
	RatePerSec        float64 `mapstructure:"rate_per_sec"`
	Burst             int     `mapstructure:"burst"`
}

// ClockConfig configures the timestamp source.
type ClockConfig struct {
	UseCalibrated  bool   `mapstructure:"use_calibrated"`
	CalibrationFile string `mapstructure:"calibration_file"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the matching core's top-level configuration.
type Config struct {
	Shards []ShardConfig `mapstructure:"shards"`
	Risk   RiskConfig    `mapstructure:"risk"`
	Clock  ClockConfig   `mapstructure:"clock"`
	Log    LogConfig     `mapstructure:"log"`
}

// Default returns a single-shard, single-symbol configuration suitable for
// development and tests.
func Default() *Config {
	return &Config{
		Shards: []ShardConfig{
			{
				PoolCapacity: 1 << 20,
				QueueSize:    1 << 17,
				Symbols: []SymbolConfig{
					{Symbol: 1, MinPrice: 1, MaxPrice: 1_000_000, TickSize: 1, MaxQty: 1_000_000, MaxNotional: 1_000_000_000_000},
				},
			},
		},
		Risk: RiskConfig{
			GlobalMaxQty:      1_000_000,
			GlobalMaxNotional: 1_000_000_000_000,
			RatePerSec:        100_000,
			Burst:             10_000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from configPath (a directory to search, or ""
// for the working directory and /etc/matchcore), falling back to Default
// for any field the file and environment don't set. Environment variables
// use the MATCHCORE_ prefix with dots replaced by underscores, e.g.
// MATCHCORE_RISK_RATE_PER_SEC; they override only keys that the config file
// also sets, and without a config file Default is returned unchanged.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("matchcore")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/matchcore")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errs.Wrap(err, errs.CodeConfig, "read config file")
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfig, "unmarshal config")
	}

	return cfg, nil
}
