package strava

import (
	"github.com/jrsteele09/go-strava-broker/internal/utils"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
)

// Normalize projects raw activities onto the map model. The position is the
// start coordinate, falling back to the end coordinate; activities with
// neither are dropped.
func Normalize(raw []stravamodel.RawActivity) []stravamodel.Activity {
	activities := make([]stravamodel.Activity, 0, len(raw))
	for _, r := range raw {
		coords, ok := position(r)
		if !ok {
			continue
		}
		activities = append(activities, stravamodel.Activity{
			ID:          r.ID,
			Name:        r.Name,
			Type:        utils.Coalesce(r.Type, r.SportType),
			StartDate:   r.StartDate,
			Distance:    r.Distance,
			Coordinates: coords,
			City:        utils.Value(r.LocationCity),
			Country:     utils.Value(r.LocationCountry),
		})
	}
	return activities
}

func position(r stravamodel.RawActivity) ([2]float64, bool) {
	for _, latlng := range [][]float64{r.StartLatLng, r.EndLatLng} {
		if len(latlng) == 2 {
			return [2]float64{latlng[0], latlng[1]}, true
		}
	}
	return [2]float64{}, false
}
