package strava

import "fmt"

// UpstreamStatusError is a non-2xx answer from Strava.
type UpstreamStatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("strava %s: unexpected status %d", e.Endpoint, e.StatusCode)
}

// ClientError reports a 4xx answer, which is about the caller's credentials
// rather than Strava's health.
func (e *UpstreamStatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
