package stravamodel

// RawActivity is the subset of Strava's SummaryActivity the broker reads.
// Pointer fields are null-able in the upstream response.
type RawActivity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	SportType   string    `json:"sport_type"`
	StartDate   string    `json:"start_date"`
	Distance    float64   `json:"distance"`
	StartLatLng []float64 `json:"start_latlng"`
	EndLatLng   []float64 `json:"end_latlng"`

	LocationCity    *string `json:"location_city"`
	LocationCountry *string `json:"location_country"`
}
