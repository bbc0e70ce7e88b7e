package strava

import (
	"context"
	"time"

	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

const breakerName = "strava-activities"

// BreakerFetcher fails fast once Strava keeps failing, instead of holding
// every visitor request for the full HTTP timeout.
type BreakerFetcher struct {
	next ActivityFetcher
	cb   *gobreaker.CircuitBreaker[*stravamodel.ActivityPayload]
}

var _ ActivityFetcher = (*BreakerFetcher)(nil)

// NewBreakerFetcher opens after trips consecutive failures and probes again after timeout.
func NewBreakerFetcher(next ActivityFetcher, trips uint32, timeout time.Duration) *BreakerFetcher {
	if trips == 0 {
		trips = 5
	}
	metrics.SetCircuitBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*stravamodel.ActivityPayload](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateToFloat(to))
		},
	})
	return &BreakerFetcher{next: next, cb: cb}
}

func (b *BreakerFetcher) FetchActivities(ctx context.Context, accessToken string) (*stravamodel.ActivityPayload, error) {
	payload, err := b.cb.Execute(func() (*stravamodel.ActivityPayload, error) {
		return b.next.FetchActivities(ctx, accessToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Mark(errors.ErrUpstreamFetch, err)
	}
	return payload, err
}

// State exposes the breaker state for diagnostics.
func (b *BreakerFetcher) State() gobreaker.State {
	return b.cb.State()
}

// isBreakerSuccess does not count a rejected token or a cancelled caller
// against Strava's health.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *UpstreamStatusError
	return errors.As(err, &statusErr) && statusErr.ClientError() && statusErr.StatusCode != 429
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
