package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	StaticDir       string
	CatalogPath     string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	EventsChannel   string
	StrictEmail     bool
	RateLimitMax    int
	RateLimitWindow time.Duration
	ShutdownTimeout time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Activities API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.static_dir", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("events.channel", "gema:activities")
	v.SetDefault("enrollment.strict_email", false)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("shutdown_timeout", "5s")

	window, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	shutdownTimeout, err := parseDuration(v.GetString("shutdown_timeout"), 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		StaticDir:       strings.TrimSpace(v.GetString("app.static_dir")),
		CatalogPath:     strings.TrimSpace(v.GetString("catalog.path")),
		DatabaseURL:     strings.TrimSpace(v.GetString("database.url")),
		RedisURL:        strings.TrimSpace(v.GetString("redis.url")),
		NATSURL:         strings.TrimSpace(v.GetString("nats.url")),
		EventsChannel:   strings.TrimSpace(v.GetString("events.channel")),
		StrictEmail:     v.GetBool("enrollment.strict_email"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: window,
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.AppPort == "" {
		return Config{}, fmt.Errorf("app port must be provided")
	}

	if cfg.RateLimitMax < 0 {
		cfg.RateLimitMax = 0
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
