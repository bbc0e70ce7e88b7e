package supervisor

import (
	"context"
	"time"

	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Refresher runs one bulk refresh over every stored session.
type Refresher interface {
	RefreshAll(ctx context.Context) (broker.RefreshReport, error)
}

// RefreshService triggers a bulk refresh on a fixed interval.
type RefreshService struct {
	refresher Refresher
	interval  time.Duration
	logger    zerolog.Logger
}

func NewRefreshService(refresher Refresher, interval time.Duration, logger zerolog.Logger) *RefreshService {
	return &RefreshService{refresher: refresher, interval: interval, logger: logger}
}

// Serve refreshes once per interval until ctx is cancelled. A non-positive
// interval disables the scheduler for the life of the process.
func (s *RefreshService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info().Msg("scheduled refresh disabled")
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.refresher.RefreshAll(ctx)
			if err != nil {
				// A store outage is retried on the next tick.
				s.logger.Error().Err(err).Msg("scheduled refresh failed")
				continue
			}
			s.logger.Info().
				Str("run_id", report.RunID).
				Int("total", report.Total).
				Int("refreshed", report.Refreshed).
				Int("skipped", report.Skipped).
				Int("failed", report.Failed).
				Msg("scheduled refresh finished")
		}
	}
}

func (s *RefreshService) String() string {
	return "refresh-scheduler"
}
