package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// RefreshReport summarises one bulk refresh run.
type RefreshReport struct {
	RunID     string
	Total     int
	Refreshed int
	Skipped   int
	Failed    int
}

func (r *RefreshReport) record(outcome string) {
	switch outcome {
	case metrics.OutcomeSuccess:
		r.Refreshed++
	case metrics.OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// RefreshAll re-fetches the activity listing of every authorized session,
// refreshing tokens that are about to expire. A failing session is logged and
// counted; it never stops the others. The error is non-nil only when the
// sessions cannot be listed.
func (b *TokenBroker) RefreshAll(ctx context.Context) (RefreshReport, error) {
	start := b.nowTime()
	report := RefreshReport{RunID: uuid.NewString()}
	logger := b.logger.With().Str("run_id", report.RunID).Logger()

	entries, err := b.deps.Store.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("bulk refresh: listing sessions failed")
		return report, errors.Wrapf(err, "list sessions")
	}
	report.Total = len(entries)

	var limiter *rate.Limiter
	if b.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.rate), 1)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.concurrency)

	for i, entry := range entries {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				logger.Warn().Err(err).Int("remaining", len(entries)-i).Msg("bulk refresh: stopped early")
				mu.Lock()
				report.Failed += len(entries) - i
				mu.Unlock()
				break
			}
		}

		g.Go(func() error {
			outcome := b.refreshSession(ctx, entry)
			metrics.RecordBulkRefreshSession(outcome)
			mu.Lock()
			report.record(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start)
	metrics.RecordBulkRefreshRun(duration)
	logger.Info().
		Int("total", report.Total).
		Int("refreshed", report.Refreshed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("bulk refresh complete")
	return report, nil
}

// refreshSession reloads the record so it starts from the latest stored copy,
// not the listing snapshot.
func (b *TokenBroker) refreshSession(ctx context.Context, entry tokenstore.Entry) string {
	logger := b.logger.With().Str("session", sessionRef(entry.ID)).Logger()

	record, err := b.load(ctx, entry.ID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return metrics.OutcomeSkipped
	}
	if err != nil {
		logger.Error().Err(err).Msg("bulk refresh: load failed")
		return metrics.OutcomeError
	}
	if !record.Authorized() {
		return metrics.OutcomeSkipped
	}

	if err := b.ensureFresh(ctx, entry.ID, record); err != nil {
		logger.Error().Err(err).Msg("bulk refresh: token refresh failed")
		return metrics.OutcomeError
	}

	payload, err := b.deps.Activities.FetchActivities(ctx, record.AccessToken)
	if err != nil {
		logger.Error().Err(err).Msg("bulk refresh: activity fetch failed")
		return metrics.OutcomeError
	}

	if b.cacheTTL > 0 {
		now := b.nowTime()
		record.ActivityCache = &tokenstore.ActivityCache{Payload: *payload, ExpiresAt: now.Add(b.cacheTTL).UTC()}
		record.UpdatedAt = now.UTC()
		if err := b.save(ctx, entry.ID, record); err != nil {
			logger.Error().Err(err).Msg("bulk refresh: save failed")
			return metrics.OutcomeError
		}
	}
	logger.Debug().Int("activities", len(payload.Activities)).Msg("bulk refresh: session refreshed")
	return metrics.OutcomeSuccess
}

// sessionRef shortens a session id for logging.
func sessionRef(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
