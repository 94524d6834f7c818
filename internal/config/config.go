package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
	GenerationDays   int      `mapstructure:"GENERATION_DAYS"`
	SweepSchedule    string   `mapstructure:"SWEEP_SCHEDULE"`
	PromotionRetries int      `mapstructure:"PROMOTION_RETRIES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("GENERATION_DAYS", 14)
	v.SetDefault("SWEEP_SCHEDULE", "*/5 * * * *")
	v.SetDefault("PROMOTION_RETRIES", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("GENERATION_DAYS")
	v.BindEnv("SWEEP_SCHEDULE")
	v.BindEnv("PROMOTION_RETRIES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is internally consistent.
// The sweep schedule is parsed up front so a bad cron expression fails
// at startup rather than when the sweeper is first scheduled.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.GenerationDays < 1 {
		return fmt.Errorf("GENERATION_DAYS must be at least 1, got %d", c.GenerationDays)
	}
	if c.PromotionRetries < 1 {
		return fmt.Errorf("PROMOTION_RETRIES must be at least 1, got %d", c.PromotionRetries)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.SweepSchedule); err != nil {
		return fmt.Errorf("SWEEP_SCHEDULE is not a valid cron expression: %w", err)
	}
	return nil
}
