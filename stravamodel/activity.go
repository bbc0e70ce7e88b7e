package stravamodel

import "time"

// Activity is the compact, map-ready projection of a Strava activity sent to the browser.
type Activity struct {
	// ID is Strava's activity id.
	ID int64 `json:"id"`

	// Name is the athlete-chosen title.
	// Example: "Morning Ride"
	Name string `json:"name"`

	// Type is the sport type.
	// Example: "Ride", "Run", "Hike"
	Type string `json:"type"`

	// StartDate is the ISO-8601 UTC start time, passed through unchanged.
	// Example: "2024-05-01T06:30:00Z"
	StartDate string `json:"start_date"`

	// Distance in meters.
	Distance float64 `json:"distance"`

	// Coordinates is the [latitude, longitude] pair used to place the marker.
	// Always present: activities without a position are never emitted.
	Coordinates [2]float64 `json:"coordinates"`

	// City and Country are empty strings when Strava has no value.
	City    string `json:"city"`
	Country string `json:"country"`
}

// ActivityPayload is the body of GET /activities and the unit stored in the
// per-session activity cache.
type ActivityPayload struct {
	// UpdatedAt is when the listing was fetched from Strava.
	UpdatedAt time.Time `json:"updatedAt"`

	// Activities is never nil so it always encodes as a JSON array.
	Activities []Activity `json:"activities"`
}

// NewActivityPayload wraps activities, replacing nil with an empty slice.
func NewActivityPayload(updatedAt time.Time, activities []Activity) ActivityPayload {
	if activities == nil {
		activities = []Activity{}
	}
	return ActivityPayload{UpdatedAt: updatedAt.UTC(), Activities: activities}
}
