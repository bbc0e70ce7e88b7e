package stravamodel

// Athlete is the summary of the authorizing Strava athlete returned with the
// authorization-code exchange.
type Athlete struct {
	// ID is Strava's numeric athlete id.
	// Example: 134815
	ID int64 `json:"id"`

	// Username is the athlete's public profile slug. May be empty.
	Username string `json:"username,omitempty"`

	// Firstname and Lastname as shown on the profile.
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`

	// City and Country of the profile. Strava returns null when unset.
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`

	// Profile is the URL of the large avatar image.
	Profile string `json:"profile,omitempty"`
}
