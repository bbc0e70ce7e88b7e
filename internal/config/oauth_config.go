package config

import "time"

type OAuthConfig interface {
	GetStravaClientID() string
	GetStravaClientSecret() string
	GetStravaRedirectURI() string
	GetStravaScope() string
	GetStravaAuthURL() string
	GetStravaTokenURL() string
	GetStravaAPIBaseURL() string
	GetStravaHTTPTimeout() time.Duration
	GetStravaPerPage() int
	GetStravaActivityWindow() time.Duration
	GetStravaBreakerTrips() uint32
	GetStravaBreakerTimeout() time.Duration
}

type OAuth struct {
	strava StravaSettings
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetStravaClientID() string     { return o.strava.ClientID }
func (o OAuth) GetStravaClientSecret() string { return o.strava.ClientSecret }
func (o OAuth) GetStravaRedirectURI() string  { return o.strava.RedirectURI }
func (o OAuth) GetStravaScope() string        { return o.strava.Scope }
func (o OAuth) GetStravaAuthURL() string      { return o.strava.AuthURL }
func (o OAuth) GetStravaTokenURL() string     { return o.strava.TokenURL }
func (o OAuth) GetStravaAPIBaseURL() string   { return o.strava.APIBaseURL }

func (o OAuth) GetStravaHTTPTimeout() time.Duration {
	return o.strava.HTTPTimeout
}

// GetStravaPerPage is the page size for the activity listing (200 is Strava's maximum).
func (o OAuth) GetStravaPerPage() int {
	return o.strava.PerPage
}

// GetStravaActivityWindow limits the listing to activities newer than now minus
// the window. Zero means no limit.
func (o OAuth) GetStravaActivityWindow() time.Duration {
	return o.strava.ActivityWindow
}

func (o OAuth) GetStravaBreakerTrips() uint32 {
	return o.strava.BreakerTrips
}

func (o OAuth) GetStravaBreakerTimeout() time.Duration {
	return o.strava.BreakerTimeout
}
