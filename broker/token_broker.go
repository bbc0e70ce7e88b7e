// Package broker owns the per-session OAuth lifecycle: starting and completing
// authorization, keeping the access token fresh and serving the cached
// activity listing.
package broker

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
	"github.com/jrsteele09/go-strava-broker/strava"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the subset of configuration the broker reads.
type Config interface {
	config.CacheConfig
	GetTokenExpirySkew() time.Duration
	GetRefreshConcurrency() int
	GetRefreshRate() float64
}

// Deps holds the broker's collaborators.
type Deps struct {
	Store      tokenstore.Repo
	OAuth      strava.TokenExchanger
	Activities strava.ActivityFetcher
}

type TokenBroker struct {
	deps        Deps
	cacheTTL    time.Duration
	skew        time.Duration
	concurrency int
	rate        float64
	nowTime     func() time.Time
	logger      zerolog.Logger
}

type Option func(*TokenBroker)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *TokenBroker) {
		b.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *TokenBroker) {
		b.logger = logger
	}
}

func New(deps Deps, cfg Config, opts ...Option) (*TokenBroker, error) {
	if deps.Store == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[broker.New] store is required")
	}
	if deps.OAuth == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[broker.New] oauth client is required")
	}
	if deps.Activities == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[broker.New] activity fetcher is required")
	}

	b := &TokenBroker{
		deps:        deps,
		cacheTTL:    cfg.GetCacheTTL(),
		skew:        cfg.GetTokenExpirySkew(),
		concurrency: cfg.GetRefreshConcurrency(),
		rate:        cfg.GetRefreshRate(),
		nowTime:     time.Now,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.concurrency < 1 {
		b.concurrency = 1
	}
	return b, nil
}

// Authorization is where to send the browser to grant access.
type Authorization struct {
	URL   string
	State string
}

// StartAuthorization records a fresh anti-CSRF state on the session and
// returns the provider URL carrying it.
func (b *TokenBroker) StartAuthorization(ctx context.Context, sessionID string) (*Authorization, error) {
	if !b.deps.OAuth.Configured() {
		return nil, errors.ErrConfig
	}
	if sessionID == "" {
		return nil, errors.Wrapf(errors.ErrInternal, "session id is required")
	}

	record, err := b.load(ctx, sessionID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		record = &tokenstore.Record{}
	} else if err != nil {
		return nil, err
	}

	state := uuid.NewString()
	record.OAuthState = state
	record.UpdatedAt = b.nowTime().UTC()
	if err := b.save(ctx, sessionID, record); err != nil {
		return nil, err
	}

	return &Authorization{URL: b.deps.OAuth.AuthorizeURL(state), State: state}, nil
}

// Callback is what the provider redirect brought back.
type Callback struct {
	SessionID string
	Code      string
	State     string

	// CookieState is the state from the signed state cookie.
	CookieState string

	// ProviderError is the provider's "error" query parameter, e.g. access_denied.
	ProviderError string
}

// CompleteAuthorization validates the callback against the stored state and
// exchanges the code. Nothing is written unless the exchange succeeds.
func (b *TokenBroker) CompleteAuthorization(ctx context.Context, cb Callback) (*stravamodel.Athlete, error) {
	athlete, err := b.completeAuthorization(ctx, cb)
	metrics.RecordAuthorization(err)
	return athlete, err
}

func (b *TokenBroker) completeAuthorization(ctx context.Context, cb Callback) (*stravamodel.Athlete, error) {
	if cb.ProviderError != "" {
		return nil, errors.Wrapf(errors.ErrAuthorizationDenied, "provider returned %q", cb.ProviderError)
	}
	if !b.deps.OAuth.Configured() {
		return nil, errors.ErrConfig
	}
	if cb.SessionID == "" || cb.Code == "" || cb.State == "" {
		return nil, errors.Wrapf(errors.ErrInvalidOAuthState, "missing session, code or state")
	}
	if !equalState(cb.CookieState, cb.State) {
		return nil, errors.Wrapf(errors.ErrInvalidOAuthState, "state cookie mismatch")
	}

	record, err := b.load(ctx, cb.SessionID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrInvalidOAuthState, "no pending authorization")
	}
	if err != nil {
		return nil, err
	}
	if !equalState(record.OAuthState, cb.State) {
		return nil, errors.Wrapf(errors.ErrInvalidOAuthState, "stored state mismatch")
	}

	grant, err := b.deps.OAuth.ExchangeCode(ctx, cb.Code)
	if err != nil {
		return nil, markAs(errors.ErrUpstreamAuth, err)
	}

	applyGrant(record, grant)
	record.OAuthState = ""
	record.ActivityCache = nil
	record.UpdatedAt = b.nowTime().UTC()
	if err := b.save(ctx, cb.SessionID, record); err != nil {
		return nil, err
	}
	return record.Athlete, nil
}

// FetchActivities returns the session's activity listing, refreshing the
// access token and the cache as needed.
func (b *TokenBroker) FetchActivities(ctx context.Context, sessionID string) (*stravamodel.ActivityPayload, error) {
	if sessionID == "" {
		return nil, errors.ErrUnauthenticated
	}
	record, err := b.load(ctx, sessionID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, errors.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !record.Authorized() {
		return nil, errors.ErrUnauthenticated
	}

	if err := b.ensureFresh(ctx, sessionID, record); err != nil {
		return nil, err
	}

	now := b.nowTime()
	if record.ActivityCache.Live(now) {
		metrics.RecordCacheLookup(true)
		payload := record.ActivityCache.Payload
		return &payload, nil
	}
	metrics.RecordCacheLookup(false)

	return b.fetchAndCache(ctx, sessionID, record)
}

// ensureFresh refreshes and persists the token triplet when the access token
// is within the expiry skew. On failure the stored record is left untouched.
func (b *TokenBroker) ensureFresh(ctx context.Context, sessionID string, record *tokenstore.Record) error {
	if !b.expiring(record) {
		return nil
	}
	if record.RefreshToken == "" {
		return errors.Wrapf(errors.ErrUnauthenticated, "access token expired and no refresh token")
	}

	grant, err := b.deps.OAuth.Refresh(ctx, record.RefreshToken)
	metrics.RecordTokenRefresh(err)
	if err != nil {
		return markAs(errors.ErrRefreshFailed, err)
	}

	applyGrant(record, grant)
	record.UpdatedAt = b.nowTime().UTC()
	return b.save(ctx, sessionID, record)
}

func (b *TokenBroker) fetchAndCache(ctx context.Context, sessionID string, record *tokenstore.Record) (*stravamodel.ActivityPayload, error) {
	payload, err := b.deps.Activities.FetchActivities(ctx, record.AccessToken)
	if err != nil {
		return nil, markAs(errors.ErrUpstreamFetch, err)
	}
	if payload.Activities == nil {
		payload.Activities = []stravamodel.Activity{}
	}

	if b.cacheTTL > 0 {
		now := b.nowTime()
		record.ActivityCache = &tokenstore.ActivityCache{
			Payload:   *payload,
			ExpiresAt: now.Add(b.cacheTTL).UTC(),
		}
		record.UpdatedAt = now.UTC()
		if err := b.save(ctx, sessionID, record); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// expiring reports whether the access token expires within the skew.
func (b *TokenBroker) expiring(record *tokenstore.Record) bool {
	return !record.ExpiresAt.After(b.nowTime().Add(b.skew))
}

func (b *TokenBroker) load(ctx context.Context, sessionID string) (*tokenstore.Record, error) {
	record, err := b.deps.Store.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return nil, errors.Wrapf(err, "load session")
	}
	return record, err
}

func (b *TokenBroker) save(ctx context.Context, sessionID string, record *tokenstore.Record) error {
	return errors.Wrapf(b.deps.Store.Set(ctx, sessionID, record), "save session")
}

func applyGrant(record *tokenstore.Record, grant *stravamodel.TokenGrant) {
	record.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		record.RefreshToken = grant.RefreshToken
	}
	record.ExpiresAt = grant.ExpiresAt.UTC()
	if grant.Athlete != nil {
		record.Athlete = grant.Athlete
	}
}

func markAs(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return errors.Mark(kind, err)
}

func equalState(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
