package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	RedisAddr         string
	RedisPassword     string
	RedisStream       string
	// AppTimezone is the canonical IANA time zone all timing rules are
	// evaluated in.
	AppTimezone    string
	ScanInterval   time.Duration
	DispatchWindow time.Duration
	LogLevel       string
	ServiceName    string
}

func Load() (*Config, error) {
	scanInterval, err := getEnvSeconds("SCAN_INTERVAL_SEC", 60)
	if err != nil {
		return nil, err
	}
	dispatchWindow, err := getEnvMinutes("DISPATCH_WINDOW_MIN", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisStream:       getEnv("REDIS_STREAM", "bot-runs"),
		AppTimezone:       getEnv("APP_TZ", "Europe/Amsterdam"),
		ScanInterval:      scanInterval,
		DispatchWindow:    dispatchWindow,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServiceName:       getEnv("SERVICE_NAME", ""),
	}

	return cfg, nil
}

// Validate checks the settings the named service cannot run without.
func (c *Config) Validate(service string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", service)
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("%s: invalid APP_TZ %q: %w", service, c.AppTimezone, err)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("%s: SCAN_INTERVAL_SEC must be positive", service)
	}
	if c.DispatchWindow <= 0 {
		return fmt.Errorf("%s: DISPATCH_WINDOW_MIN must be positive", service)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func getEnvMinutes(key string, fallback int) (time.Duration, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Minute, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
