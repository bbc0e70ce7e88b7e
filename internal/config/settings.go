package config

import "time"

// Settings is the raw, file- and env-loadable form of the configuration.
type Settings struct {
	Server    ServerSettings    `koanf:"server"`
	Logging   LoggingSettings   `koanf:"logging"`
	Strava    StravaSettings    `koanf:"strava"`
	Security  SecuritySettings  `koanf:"security"`
	Cache     CacheSettings     `koanf:"cache"`
	Store     StoreSettings     `koanf:"store"`
	Refresh   RefreshSettings   `koanf:"refresh"`
	RateLimit RateLimitSettings `koanf:"rate_limit"`
}

type ServerSettings struct {
	Port    int    `koanf:"port" validate:"min=1,max=65535"`
	AppName string `koanf:"app_name" validate:"required"`
	Env     string `koanf:"env" validate:"required"`
}

type LoggingSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type StravaSettings struct {
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	RedirectURI    string        `koanf:"redirect_uri" validate:"omitempty,url"`
	Scope          string        `koanf:"scope" validate:"required"`
	AuthURL        string        `koanf:"auth_url" validate:"required,url"`
	TokenURL       string        `koanf:"token_url" validate:"required,url"`
	APIBaseURL     string        `koanf:"api_base_url" validate:"required,url"`
	HTTPTimeout    time.Duration `koanf:"http_timeout" validate:"min=0"`
	PerPage        int           `koanf:"per_page" validate:"min=1,max=200"`
	ActivityWindow time.Duration `koanf:"activity_window" validate:"min=0"`
	BreakerTrips   uint32        `koanf:"breaker_trips"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"min=0"`
}

type SecuritySettings struct {
	SessionSecret   string        `koanf:"session_secret"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	SessionLifetime time.Duration `koanf:"session_lifetime" validate:"min=0"`
	StateLifetime   time.Duration `koanf:"state_lifetime" validate:"min=0"`
	TokenExpirySkew time.Duration `koanf:"token_expiry_skew" validate:"min=0"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	TasksToken      string        `koanf:"tasks_token"`
}

type CacheSettings struct {
	TTLSeconds int `koanf:"ttl_seconds" validate:"min=0"`
}

type StoreSettings struct {
	Backend    string        `koanf:"backend" validate:"oneof=memory badger nats"`
	SessionTTL time.Duration `koanf:"session_ttl" validate:"min=0"`
	BadgerPath string        `koanf:"badger_path"`
	NATSURL    string        `koanf:"nats_url"`
	NATSBucket string        `koanf:"nats_bucket"`
}

type RefreshSettings struct {
	Interval    time.Duration `koanf:"interval" validate:"min=0"`
	Concurrency int           `koanf:"concurrency" validate:"min=1"`
	Rate        float64       `koanf:"rate" validate:"min=0"`
}

type RateLimitSettings struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests" validate:"min=1"`
	Window   time.Duration `koanf:"window" validate:"min=0"`
}

func Defaults() Settings {
	return Settings{
		Server: ServerSettings{
			Port:    8080,
			AppName: "Strava Broker",
			Env:     "DEV",
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
		Strava: StravaSettings{
			Scope:          "read,activity:read_all",
			AuthURL:        "https://www.strava.com/oauth/authorize",
			TokenURL:       "https://www.strava.com/oauth/token",
			APIBaseURL:     "https://www.strava.com/api/v3",
			HTTPTimeout:    10 * time.Second,
			PerPage:        200,
			BreakerTrips:   5,
			BreakerTimeout: 30 * time.Second,
		},
		Security: SecuritySettings{
			CookieSecure:    true,
			SessionLifetime: 60 * 24 * time.Hour,
			StateLifetime:   10 * time.Minute,
			TokenExpirySkew: 60 * time.Second,
		},
		Cache: CacheSettings{
			TTLSeconds: 3600,
		},
		Store: StoreSettings{
			Backend:    "memory",
			SessionTTL: 60 * 24 * time.Hour,
			BadgerPath: "./data/sessions",
			NATSURL:    "nats://127.0.0.1:4222",
			NATSBucket: "strava_sessions",
		},
		Refresh: RefreshSettings{
			Interval:    30 * time.Minute,
			Concurrency: 4,
			Rate:        5,
		},
		RateLimit: RateLimitSettings{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
	}
}
