package stravamodel

import "time"

// TokenGrant is the normalized result of an authorization-code or
// refresh-token exchange with Strava.
type TokenGrant struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>" to the API.
	// Lifespan: six hours
	AccessToken string

	// RefreshToken obtains a new access token once the current one expires.
	// Strava may rotate it on every refresh. When a refresh response omits it
	// the previous value stays valid and is carried forward.
	RefreshToken string

	// ExpiresAt is the absolute expiry of AccessToken as reported by Strava.
	ExpiresAt time.Time

	// Athlete is only present on the authorization-code exchange.
	Athlete *Athlete
}
