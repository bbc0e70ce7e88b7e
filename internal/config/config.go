package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	CacheConfig
	StoreConfig
	RefreshConfig
	RateLimitConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type CacheConfig interface {
	GetCacheTTL() time.Duration
}

type StoreConfig interface {
	GetStoreBackend() string
	GetSessionTTL() time.Duration
	GetBadgerPath() string
	GetNATSURL() string
	GetNATSBucket() string
}

type RefreshConfig interface {
	GetRefreshInterval() time.Duration
	GetRefreshConcurrency() int
	GetRefreshRate() float64
	GetTasksToken() string
}

type RateLimitConfig interface {
	GetRateLimitEnabled() bool
	GetRateLimitRequests() int
	GetRateLimitWindow() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Cache
	Store
	Refresh
	RateLimit

	warnings []string
}

var _ Config = mainConfig{}

// New builds a Config over already-loaded settings.
func New(s Settings) Config {
	return mainConfig{
		EnvVars:   EnvVars{server: s.Server, logging: s.Logging},
		Cors:      Cors{origins: newAllowedOrigins(s.Security.AllowedOrigins)},
		OAuth:     OAuth{strava: s.Strava},
		Security:  Security{security: s.Security},
		Cache:     Cache{cache: s.Cache},
		Store:     Store{store: s.Store},
		Refresh:   Refresh{refresh: s.Refresh, tasksToken: s.Security.TasksToken},
		RateLimit: RateLimit{limit: s.RateLimit},
	}
}

// Warnings lists non-fatal configuration problems found at load time.
func Warnings(c Config) []string {
	if m, ok := c.(mainConfig); ok {
		return append([]string(nil), m.warnings...)
	}
	return nil
}
