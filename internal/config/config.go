package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	HistoryCap    int           `mapstructure:"history_cap"`
	JoinHistory   int           `mapstructure:"join_history"`
	TokenBytes    int           `mapstructure:"token_bytes"`

	SendRate     float64 `mapstructure:"send_rate"`
	SendBurst    int     `mapstructure:"send_burst"`
	Backpressure string  `mapstructure:"backpressure"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). RELAY_*
// environment variables override file values.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file. A missing file falls back to
// defaults.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("retention", "1h")
	v.SetDefault("sweep_interval", "5m")
	v.SetDefault("history_cap", 1000)
	v.SetDefault("join_history", 50)
	v.SetDefault("token_bytes", 16)
	v.SetDefault("send_rate", 10)
	v.SetDefault("send_burst", 20)
	v.SetDefault("backpressure", "kick")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Dur("retention", cfg.Retention).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Retention <= 0 {
		errs = append(errs, errors.New("retention must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.TokenBytes < 8 {
		errs = append(errs, fmt.Errorf("token_bytes %d is too short to be unguessable", c.TokenBytes))
	}
	if c.JoinHistory < 0 {
		errs = append(errs, errors.New("join_history must not be negative"))
	}
	if c.SendRate <= 0 || c.SendBurst <= 0 {
		errs = append(errs, errors.New("send_rate and send_burst must be positive"))
	}
	if c.Backpressure != "kick" && c.Backpressure != "drop" {
		errs = append(errs, fmt.Errorf("backpressure must be kick or drop, got %q", c.Backpressure))
	}
	return errors.Join(errs...)
}
