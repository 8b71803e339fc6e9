package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/consentcore/consentcore/internal/domain/consent"
)

// Config is the process configuration for hosts embedding the engine. All
// keys bind to environment variables; a .env file is honored when present.
type Config struct {
	Env                    string  `mapstructure:"ENV"`
	EngineID               string  `mapstructure:"ENGINE_ID"`
	LogLevel               string  `mapstructure:"LOG_LEVEL"`
	MinimumMatchThreshold  float64 `mapstructure:"MINIMUM_MATCH_THRESHOLD"`
	ReuseThreshold         float64 `mapstructure:"REUSE_THRESHOLD"`
	EmergencyCapHours      int     `mapstructure:"EMERGENCY_CAP_HOURS"`
	MaxProvisionNodes      int     `mapstructure:"MAX_PROVISION_NODES"`
	MaxProvisionDepth      int     `mapstructure:"MAX_PROVISION_DEPTH"`
	StrictTimestampParsing bool    `mapstructure:"STRICT_TIMESTAMP_PARSING"`
	AllowPending           bool    `mapstructure:"ALLOW_PENDING"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("ENGINE_ID", "consentcore")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MINIMUM_MATCH_THRESHOLD", 0.7)
	v.SetDefault("REUSE_THRESHOLD", 0.8)
	v.SetDefault("EMERGENCY_CAP_HOURS", 24)
	v.SetDefault("MAX_PROVISION_NODES", 256)
	v.SetDefault("MAX_PROVISION_DEPTH", 16)
	v.SetDefault("STRICT_TIMESTAMP_PARSING", true)
	v.SetDefault("ALLOW_PENDING", false)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("ENGINE_ID")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("MINIMUM_MATCH_THRESHOLD")
	v.BindEnv("REUSE_THRESHOLD")
	v.BindEnv("EMERGENCY_CAP_HOURS")
	v.BindEnv("MAX_PROVISION_NODES")
	v.BindEnv("MAX_PROVISION_DEPTH")
	v.BindEnv("STRICT_TIMESTAMP_PARSING")
	v.BindEnv("ALLOW_PENDING")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.EngineOptions().Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions() consent.Options {
	opts := consent.DefaultOptions()
	opts.MinimumMatchThreshold = c.MinimumMatchThreshold
	opts.ReuseThreshold = c.ReuseThreshold
	opts.EmergencyCapHours = c.EmergencyCapHours
	opts.MaxProvisionNodes = c.MaxProvisionNodes
	opts.MaxProvisionDepth = c.MaxProvisionDepth
	opts.StrictTimestampParsing = c.StrictTimestampParsing
	opts.AllowPending = c.AllowPending
	opts.EngineID = c.EngineID
	return opts
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
