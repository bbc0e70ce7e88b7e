package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetCookieSecure() bool
	GetSessionLifetime() time.Duration
	GetStateLifetime() time.Duration
	GetTokenExpirySkew() time.Duration
}

type Security struct {
	security SecuritySettings
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionSecret() string {
	return s.security.SessionSecret
}

func (s Security) GetCookieSecure() bool {
	return s.security.CookieSecure
}

func (s Security) GetSessionLifetime() time.Duration {
	return s.security.SessionLifetime
}

func (s Security) GetStateLifetime() time.Duration {
	return s.security.StateLifetime
}

// GetTokenExpirySkew is how long before the provider's expiry a token is
// already treated as expired.
func (s Security) GetTokenExpirySkew() time.Duration {
	return s.security.TokenExpirySkew
}
