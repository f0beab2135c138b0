package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server  ServerConfig
	Poll    PollConfig
	Health  HealthConfig
	Push    PushConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type ServerConfig struct {
	URL           string
	Username      string
	Password      string
	TwoFactorCode string
	MinVersion    string
	DeviceID      string
}

type PollConfig struct {
	Interval            int // Seconds
	GraceWindow         int // Seconds
	RequestTimeout      int // Seconds
	ActiveWithinSeconds int
}

type HealthConfig struct {
	Interval         int // Seconds
	FailureThreshold int
	BackoffBase      int // Seconds
	BackoffCap       int // Seconds
}

type PushConfig struct {
	Enabled bool
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type LogConfig struct {
	Level string
}

// Load reads config.json from UC_CONFIG_HOME (falling back to the working
// directory), applies UC_JELLYFIN_* environment overrides, and validates.
// A missing config file is not an error: everything can come from the
// environment.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	if home := os.Getenv("UC_CONFIG_HOME"); home != "" {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("UC_JELLYFIN")

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *PollConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c *PollConfig) GraceWindowDuration() time.Duration {
	return time.Duration(c.GraceWindow) * time.Second
}

func (c *PollConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *HealthConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c *HealthConfig) BackoffBaseDuration() time.Duration {
	return time.Duration(c.BackoffBase) * time.Second
}

func (c *HealthConfig) BackoffCapDuration() time.Duration {
	return time.Duration(c.BackoffCap) * time.Second
}
