// Package config loads x1-token settings from defaults, an optional config
// file and X1TOKEN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "X1TOKEN"

// MemoryDataDir selects the in-memory account store instead of Badger.
const MemoryDataDir = ":memory:"

// Config is the complete x1-token configuration.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// GeneralConfig holds storage and logging settings.
type GeneralConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	// InMemory keeps Badger's files in memory. It is ignored when DataDir
	// is MemoryDataDir.
	InMemory bool `mapstructure:"in_memory"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RuntimeConfig holds execution parameters.
type RuntimeConfig struct {
	ComputeUnits        uint64 `mapstructure:"compute_units"`
	LamportsPerByteYear uint64 `mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  uint64 `mapstructure:"exemption_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	rent := types.DefaultRent()
	return Config{
		General: GeneralConfig{
			DataDir:  "/var/lib/x1-token",
			LogLevel: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Runtime: RuntimeConfig{
			ComputeUnits:        runtime.DefaultComputeUnits,
			LamportsPerByteYear: rent.LamportsPerByteYear,
			ExemptionThreshold:  rent.ExemptionThreshold,
		},
	}
}

// keys lists every setting so each can be bound to its environment variable;
// viper's AutomaticEnv alone does not see nested keys during Unmarshal.
var keys = []string{
	"general.data_dir",
	"general.log_level",
	"general.in_memory",
	"metrics.enabled",
	"metrics.addr",
	"runtime.compute_units",
	"runtime.lamports_per_byte_year",
	"runtime.exemption_threshold",
}

// New returns a viper instance carrying the defaults and environment
// bindings. general.data_dir is read from X1TOKEN_GENERAL_DATA_DIR.
func New() *viper.Viper {
	v := viper.New()
	def := Default()
	v.SetDefault("general.data_dir", def.General.DataDir)
	v.SetDefault("general.log_level", def.General.LogLevel)
	v.SetDefault("general.in_memory", def.General.InMemory)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.addr", def.Metrics.Addr)
	v.SetDefault("runtime.compute_units", def.Runtime.ComputeUnits)
	v.SetDefault("runtime.lamports_per_byte_year", def.Runtime.LamportsPerByteYear)
	v.SetDefault("runtime.exemption_threshold", def.Runtime.ExemptionThreshold)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads configuration into a Config. An empty path uses defaults and
// environment only. A path that does not exist is an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable zero value.
func (c Config) Validate() error {
	if c.General.DataDir == "" {
		return errors.New("general.data_dir must be set")
	}
	if _, err := zapcore.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("general.log_level: %w", err)
	}
	if c.Runtime.ComputeUnits == 0 {
		return errors.New("runtime.compute_units must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// Rent returns the configured rent parameters.
func (c Config) Rent() types.Rent {
	return types.Rent{
		LamportsPerByteYear: c.Runtime.LamportsPerByteYear,
		ExemptionThreshold:  c.Runtime.ExemptionThreshold,
	}
}

// UseMemoryStore reports whether accounts live in a MemoryDB.
func (c Config) UseMemoryStore() bool {
	return c.General.DataDir == MemoryDataDir
}

// NewLogger builds a production zap logger at the configured level, writing
// to stderr.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.General.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
