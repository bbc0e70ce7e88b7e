package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"/etc/strava-broker/config.yaml",
}

// Load reads the configuration in three layers: built-in defaults, an
// optional YAML file, then environment variables.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(s); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	if s.Strava.ClientID == "" || s.Strava.ClientSecret == "" || s.Strava.RedirectURI == "" {
		warnings = append(warnings, "STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REDIRECT_URI must all be set; OAuth routes will fail")
	}
	if s.Security.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		s.Security.SessionSecret = secret
		warnings = append(warnings, "SESSION_SECRET not set; using an ephemeral secret, sessions will not survive a restart")
	}

	c := New(s).(mainConfig)
	c.warnings = warnings
	return c, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(s Settings) error {
	return validate.Struct(s)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.allowed_origins",
}

// processSliceFields splits comma-separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := []string{}
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":     "server.port",
	"app_name": "server.app_name",
	"env":      "server.env",

	"log_level":  "logging.level",
	"log_format": "logging.format",

	"strava_client_id":       "strava.client_id",
	"strava_client_secret":   "strava.client_secret",
	"strava_redirect_uri":    "strava.redirect_uri",
	"strava_scope":           "strava.scope",
	"strava_auth_url":        "strava.auth_url",
	"strava_token_url":       "strava.token_url",
	"strava_api_base_url":    "strava.api_base_url",
	"strava_http_timeout":    "strava.http_timeout",
	"strava_per_page":        "strava.per_page",
	"strava_activity_window": "strava.activity_window",
	"strava_breaker_trips":   "strava.breaker_trips",
	"strava_breaker_timeout": "strava.breaker_timeout",

	"session_secret":    "security.session_secret",
	"cookie_secure":     "security.cookie_secure",
	"session_lifetime":  "security.session_lifetime",
	"state_lifetime":    "security.state_lifetime",
	"token_expiry_skew": "security.token_expiry_skew",
	"allowed_origins":   "security.allowed_origins",
	"tasks_token":       "security.tasks_token",

	"cache_ttl_seconds": "cache.ttl_seconds",

	"store_backend": "store.backend",
	"session_ttl":   "store.session_ttl",
	"badger_path":   "store.badger_path",
	"nats_url":      "store.nats_url",
	"nats_bucket":   "store.nats_bucket",

	"refresh_interval":    "refresh.interval",
	"refresh_concurrency": "refresh.concurrency",
	"refresh_rate":        "refresh.rate",

	"rate_limit_enabled":  "rate_limit.enabled",
	"rate_limit_requests": "rate_limit.requests",
	"rate_limit_window":   "rate_limit.window",
}

// envTransformFunc maps known environment variables to config paths and
// drops everything else.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
