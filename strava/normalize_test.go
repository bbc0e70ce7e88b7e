package strava_test

import (
	"testing"

	"github.com/jrsteele09/go-strava-broker/internal/utils"
	"github.com/jrsteele09/go-strava-broker/strava"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	raw := []stravamodel.RawActivity{
		{ID: 1, Name: "Ride", Type: "Ride", StartDate: "2024-05-01T06:30:00Z", Distance: 1000, StartLatLng: []float64{1, 2}, EndLatLng: []float64{3, 4}, LocationCity: utils.Ptr("Leeds"), LocationCountry: utils.Ptr("UK")},
		{ID: 2, Name: "Indoor", Type: "VirtualRide"},
		{ID: 3, Name: "End only", SportType: "Hike", EndLatLng: []float64{5, 6}},
		{ID: 4, Name: "Malformed", StartLatLng: []float64{7}},
	}

	got := strava.Normalize(raw)
	require.Equal(t, []stravamodel.Activity{
		{ID: 1, Name: "Ride", Type: "Ride", StartDate: "2024-05-01T06:30:00Z", Distance: 1000, Coordinates: [2]float64{1, 2}, City: "Leeds", Country: "UK"},
		{ID: 3, Name: "End only", Type: "Hike", Coordinates: [2]float64{5, 6}},
	}, got)
}

func TestNormalizeNeverReturnsNil(t *testing.T) {
	require.NotNil(t, strava.Normalize(nil))
}
