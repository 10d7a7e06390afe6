package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables holding process-wide credentials and server options.
const (
	EnvAPIKey            = "PPLX_API_KEY"
	EnvProviderCookies   = "PPLX_COOKIES"
	EnvEmailCookies      = "EMAILNATOR_COOKIES"
	EnvHost              = "PLEXGATE_HOST"
	EnvPort              = "PLEXGATE_PORT"
	EnvVerbose           = "PLEXGATE_VERBOSE"
	EnvRequestTimeout    = "PLEXGATE_TIMEOUT"
	DefaultRequestBudget = 60 * time.Second
)

// ServerConfig holds all server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	Verbose        bool
	RequestTimeout time.Duration
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	cfg := &ServerConfig{
		Host:           envOrDefault(EnvHost, "127.0.0.1"),
		Port:           8000,
		Verbose:        envBool(EnvVerbose),
		RequestTimeout: DefaultRequestBudget,
	}
	if v := os.Getenv(EnvPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
