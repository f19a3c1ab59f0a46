package config

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	BettingWindow time.Duration
	AutoRepeat    bool
	RepeatDelay   time.Duration
	AutoStart     bool

	RedisURL           string
	RedisPass          string
	RedisDB            int
	RedisEventsChannel string
	BetRateLimit       int

	AdminJWTSecret string
}

const (
	Port               = "PORT"
	Env                = "ENV"
	LogLevel           = "LOG_LEVEL"
	BettingWindow      = "BETTING_WINDOW"
	AutoRepeat         = "AUTO_REPEAT"
	RepeatDelay        = "REPEAT_DELAY"
	AutoStart          = "AUTO_START"
	RedisURL           = "REDIS_URL"
	RedisPassword      = "REDIS_PASSWORD"
	RedisDB            = "REDIS_DB"
	RedisEventsChannel = "REDIS_EVENTS_CHANNEL"
	BetRateLimit       = "BET_RATE_LIMIT"
	AdminJWTSecret     = "ADMIN_JWT_SECRET"

	defaultPort               = "8080"
	defaultEnv                = "development"
	defaultLogLevel           = "info"
	defaultBettingWindow      = 10 * time.Second
	defaultRepeatDelay        = 3 * time.Second
	defaultRedisEventsChannel = "game:events"
	defaultBetRateLimit       = 30
)

// Load reads the configuration from the environment. Unset or empty
// variables take their defaults; malformed ones are an error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(Port, defaultPort)
	v.SetDefault(Env, defaultEnv)
	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(BettingWindow, defaultBettingWindow)
	v.SetDefault(AutoRepeat, false)
	v.SetDefault(RepeatDelay, defaultRepeatDelay)
	v.SetDefault(AutoStart, false)
	v.SetDefault(RedisDB, 0)
	v.SetDefault(RedisEventsChannel, defaultRedisEventsChannel)
	v.SetDefault(BetRateLimit, defaultBetRateLimit)

	cfg := &Config{
		Port:               v.GetString(Port),
		Env:                v.GetString(Env),
		LogLevel:           v.GetString(LogLevel),
		RedisURL:           v.GetString(RedisURL),
		RedisPass:          v.GetString(RedisPassword),
		RedisEventsChannel: v.GetString(RedisEventsChannel),
		AdminJWTSecret:     v.GetString(AdminJWTSecret),
	}

	var err error
	if cfg.BettingWindow, err = cast.ToDurationE(v.Get(BettingWindow)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", BettingWindow, err)
	}
	if cfg.RepeatDelay, err = cast.ToDurationE(v.Get(RepeatDelay)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", RepeatDelay, err)
	}
	if cfg.AutoRepeat, err = cast.ToBoolE(v.Get(AutoRepeat)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", AutoRepeat, err)
	}
	if cfg.AutoStart, err = cast.ToBoolE(v.Get(AutoStart)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", AutoStart, err)
	}
	if cfg.RedisDB, err = cast.ToIntE(v.Get(RedisDB)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", RedisDB, err)
	}
	if cfg.BetRateLimit, err = cast.ToIntE(v.Get(BetRateLimit)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", BetRateLimit, err)
	}

	if cfg.BettingWindow <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", BettingWindow, cfg.BettingWindow)
	}
	if cfg.RepeatDelay < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %s", RepeatDelay, cfg.RepeatDelay)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
