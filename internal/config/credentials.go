package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ConfigError marks a missing or malformed credential value. Requests that
// depend on credentials fail with a configuration error until the process is
// restarted with a fixed environment; rotation without restart is not
// supported.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}

// Credentials holds the process-wide secrets, loaded once at startup and
// never mutated afterwards. Safe for concurrent reads.
type Credentials struct {
	// APIKey is the secret inbound clients must present.
	APIKey string

	// ProviderCookies is the downstream session identity.
	ProviderCookies map[string]string

	// EmailCookies is only required by the account-creation capability.
	EmailCookies map[string]string
}

// LoadCredentials reads and validates credentials from the environment.
func LoadCredentials() (*Credentials, error) {
	return loadCredentials(os.Getenv)
}

// loadCredentials is the testable core of LoadCredentials.
func loadCredentials(getenv func(string) string) (*Credentials, error) {
	apiKey := strings.TrimSpace(getenv(EnvAPIKey))
	if apiKey == "" {
		return nil, &ConfigError{Key: EnvAPIKey, Reason: "environment variable is not set"}
	}

	provider, err := parseCookieJSON(EnvProviderCookies, getenv(EnvProviderCookies), true)
	if err != nil {
		return nil, err
	}

	email, err := parseCookieJSON(EnvEmailCookies, getenv(EnvEmailCookies), false)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		APIKey:          apiKey,
		ProviderCookies: provider,
		EmailCookies:    email,
	}, nil
}

// parseCookieJSON decodes a cookie environment value. The value must be a
// JSON object of string values; arrays, scalars and invalid JSON are
// configuration errors.
func parseCookieJSON(key, raw string, required bool) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return nil, &ConfigError{Key: key, Reason: "environment variable is not set"}
		}
		return nil, nil
	}

	var probe any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, &ConfigError{Key: key, Reason: "must be valid JSON"}
	}
	obj, ok := probe.(map[string]any)
	if !ok {
		return nil, &ConfigError{Key: key, Reason: "must deserialize to a JSON object of cookies"}
	}

	cookies := make(map[string]string, len(obj))
	for name, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("cookie %q must be a string value", name)}
		}
		cookies[name] = s
	}
	return cookies, nil
}
