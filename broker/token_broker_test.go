package broker_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeOAuth struct {
	mu            sync.Mutex
	configured    bool
	grant         *stravamodel.TokenGrant
	exchangeErr   error
	refreshErrs   map[string]error
	exchangeCalls int
	refreshCalls  int
	now           func() time.Time
}

func (f *fakeOAuth) Configured() bool { return f.configured }

func (f *fakeOAuth) AuthorizeURL(state string) string {
	return "https://www.strava.com/oauth/authorize?state=" + state
}

func (f *fakeOAuth) ExchangeCode(_ context.Context, code string) (*stravamodel.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	g := *f.grant
	return &g, nil
}

func (f *fakeOAuth) Refresh(_ context.Context, refreshToken string) (*stravamodel.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if err := f.refreshErrs[refreshToken]; err != nil {
		return nil, err
	}
	return &stravamodel.TokenGrant{
		AccessToken:  "refreshed-" + refreshToken,
		RefreshToken: "rotated-" + refreshToken,
		ExpiresAt:    f.now().Add(6 * time.Hour),
	}, nil
}

func (f *fakeOAuth) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.refreshCalls
}

type fakeFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	err    error
	now    func() time.Time
	tokens []string
}

func (f *fakeFetcher) FetchActivities(_ context.Context, accessToken string) (*stravamodel.ActivityPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[accessToken]++
	f.tokens = append(f.tokens, accessToken)
	if f.err != nil {
		return nil, f.err
	}
	payload := stravamodel.NewActivityPayload(f.now(), []stravamodel.Activity{
		{ID: int64(f.calls[accessToken]), Name: "Ride for " + accessToken, Type: "Ride", Coordinates: [2]float64{51.5, -0.12}},
	})
	return &payload, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type testFixture struct {
	broker  *broker.TokenBroker
	store   *tokenstore.InMemoryRepo
	oauth   *fakeOAuth
	fetcher *fakeFetcher
	now     time.Time
	logs    *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func setupTestFixture(t *testing.T, mutate ...func(*config.Settings)) *testFixture {
	t.Helper()
	f := &testFixture{
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		logs: &syncBuffer{},
	}
	nowFn := func() time.Time { return f.now }

	f.store = tokenstore.NewInMemoryRepo()
	f.oauth = &fakeOAuth{
		configured: true,
		grant: &stravamodel.TokenGrant{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    f.now.Add(6 * time.Hour),
			Athlete:      &stravamodel.Athlete{ID: 42, Firstname: "Ada"},
		},
		refreshErrs: map[string]error{},
		now:         nowFn,
	}
	f.fetcher = &fakeFetcher{calls: map[string]int{}, now: nowFn}

	s := config.Defaults()
	s.Refresh.Rate = 0
	for _, m := range mutate {
		m(&s)
	}

	b, err := broker.New(
		broker.Deps{Store: f.store, OAuth: f.oauth, Activities: f.fetcher},
		config.New(s),
		broker.WithNowTime(nowFn),
		broker.WithLogger(zerolog.New(f.logs)),
	)
	require.NoError(t, err)
	f.broker = b
	return f
}

func (f *testFixture) seed(t *testing.T, id string, record *tokenstore.Record) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), id, record))
}

func (f *testFixture) record(t *testing.T, id string) *tokenstore.Record {
	t.Helper()
	r, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

// authorize runs a full start/callback round trip for id.
func (f *testFixture) authorize(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	auth, err := f.broker.StartAuthorization(ctx, id)
	require.NoError(t, err)
	_, err = f.broker.CompleteAuthorization(ctx, broker.Callback{SessionID: id, Code: "code", State: auth.State, CookieState: auth.State})
	require.NoError(t, err)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := broker.New(broker.Deps{}, config.New(config.Defaults()))
	require.Error(t, err)
}

func TestFetchActivitiesUnauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.broker.FetchActivities(ctx, "nobody")
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
		require.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(err))
	})

	t.Run("no session id", func(t *testing.T) {
		_, err := f.broker.FetchActivities(ctx, "")
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	t.Run("authorization pending", func(t *testing.T) {
		_, err := f.broker.StartAuthorization(ctx, "pending")
		require.NoError(t, err)
		_, err = f.broker.FetchActivities(ctx, "pending")
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	require.Zero(t, f.fetcher.total())
}

func TestStartAuthorization(t *testing.T) {
	t.Run("fresh visitor", func(t *testing.T) {
		f := setupTestFixture(t)
		auth, err := f.broker.StartAuthorization(context.Background(), "visitor")
		require.NoError(t, err)
		require.NotEmpty(t, auth.State)
		require.Contains(t, auth.URL, "state="+auth.State)

		r := f.record(t, "visitor")
		require.Equal(t, auth.State, r.OAuthState)
		require.Empty(t, r.AccessToken)
	})

	t.Run("each start issues a new state", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.broker.StartAuthorization(context.Background(), "visitor")
		require.NoError(t, err)
		second, err := f.broker.StartAuthorization(context.Background(), "visitor")
		require.NoError(t, err)
		require.NotEqual(t, first.State, second.State)
		require.Equal(t, second.State, f.record(t, "visitor").OAuthState)
	})

	t.Run("keeps existing tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.authorize(t, "visitor")
		_, err := f.broker.StartAuthorization(context.Background(), "visitor")
		require.NoError(t, err)
		require.Equal(t, "access-1", f.record(t, "visitor").AccessToken)
	})

	t.Run("unconfigured", func(t *testing.T) {
		f := setupTestFixture(t)
		f.oauth.configured = false
		_, err := f.broker.StartAuthorization(context.Background(), "visitor")
		require.ErrorIs(t, err, errors.ErrConfig)
		require.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))

		_, err = f.store.Get(context.Background(), "visitor")
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
	})
}

func TestCompleteAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		auth, err := f.broker.StartAuthorization(ctx, "visitor")
		require.NoError(t, err)

		athlete, err := f.broker.CompleteAuthorization(ctx, broker.Callback{SessionID: "visitor", Code: "code", State: auth.State, CookieState: auth.State})
		require.NoError(t, err)
		require.Equal(t, int64(42), athlete.ID)

		r := f.record(t, "visitor")
		require.Equal(t, "access-1", r.AccessToken)
		require.Equal(t, "refresh-1", r.RefreshToken)
		require.Equal(t, f.now.Add(6*time.Hour), r.ExpiresAt)
		require.Empty(t, r.OAuthState, "state is single use")
		require.Equal(t, int64(42), r.Athlete.ID)
	})

	t.Run("state is single use", func(t *testing.T) {
		f := setupTestFixture(t)
		auth, err := f.broker.StartAuthorization(ctx, "visitor")
		require.NoError(t, err)
		cb := broker.Callback{SessionID: "visitor", Code: "code", State: auth.State, CookieState: auth.State}

		_, err = f.broker.CompleteAuthorization(ctx, cb)
		require.NoError(t, err)
		_, err = f.broker.CompleteAuthorization(ctx, cb)
		require.ErrorIs(t, err, errors.ErrInvalidOAuthState)

		exchanges, _ := f.oauth.calls()
		require.Equal(t, 1, exchanges)
	})

	rejected := []struct {
		name   string
		mutate func(cb *broker.Callback)
	}{
		{"wrong state", func(cb *broker.Callback) { cb.State = "forged"; cb.CookieState = "forged" }},
		{"cookie mismatch", func(cb *broker.Callback) { cb.CookieState = "other" }},
		{"missing cookie", func(cb *broker.Callback) { cb.CookieState = "" }},
		{"missing code", func(cb *broker.Callback) { cb.Code = "" }},
		{"missing state", func(cb *broker.Callback) { cb.State = "" }},
		{"unknown session", func(cb *broker.Callback) { cb.SessionID = "someone-else" }},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			auth, err := f.broker.StartAuthorization(ctx, "visitor")
			require.NoError(t, err)

			cb := broker.Callback{SessionID: "visitor", Code: "code", State: auth.State, CookieState: auth.State}
			tc.mutate(&cb)
			_, err = f.broker.CompleteAuthorization(ctx, cb)
			require.ErrorIs(t, err, errors.ErrInvalidOAuthState)
			require.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

			r := f.record(t, "visitor")
			require.Equal(t, auth.State, r.OAuthState, "stored state unchanged")
			require.Empty(t, r.AccessToken)
			exchanges, _ := f.oauth.calls()
			require.Zero(t, exchanges)
		})
	}

	t.Run("provider denied", func(t *testing.T) {
		f := setupTestFixture(t)
		auth, err := f.broker.StartAuthorization(ctx, "visitor")
		require.NoError(t, err)

		_, err = f.broker.CompleteAuthorization(ctx, broker.Callback{SessionID: "visitor", State: auth.State, CookieState: auth.State, ProviderError: "access_denied"})
		require.ErrorIs(t, err, errors.ErrAuthorizationDenied)
		require.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
		require.Equal(t, auth.State, f.record(t, "visitor").OAuthState)
	})

	t.Run("exchange failure writes nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.oauth.exchangeErr = errors.Mark(errors.ErrUpstreamAuth, stderrors.New("400"))
		auth, err := f.broker.StartAuthorization(ctx, "visitor")
		require.NoError(t, err)

		_, err = f.broker.CompleteAuthorization(ctx, broker.Callback{SessionID: "visitor", Code: "code", State: auth.State, CookieState: auth.State})
		require.ErrorIs(t, err, errors.ErrUpstreamAuth)
		require.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))

		r := f.record(t, "visitor")
		require.Equal(t, auth.State, r.OAuthState)
		require.Empty(t, r.AccessToken)
	})

	t.Run("re-authorization clears the activity cache", func(t *testing.T) {
		f := setupTestFixture(t)
		f.authorize(t, "visitor")
		_, err := f.broker.FetchActivities(ctx, "visitor")
		require.NoError(t, err)
		require.NotNil(t, f.record(t, "visitor").ActivityCache)

		f.authorize(t, "visitor")
		require.Nil(t, f.record(t, "visitor").ActivityCache)
	})
}

func TestFetchActivitiesCache(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.authorize(t, "visitor")

	first, err := f.broker.FetchActivities(ctx, "visitor")
	require.NoError(t, err)
	second, err := f.broker.FetchActivities(ctx, "visitor")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, f.fetcher.total(), "second call served from cache")

	cache := f.record(t, "visitor").ActivityCache
	require.Equal(t, f.now.Add(time.Hour), cache.ExpiresAt)

	f.now = f.now.Add(time.Hour)
	third, err := f.broker.FetchActivities(ctx, "visitor")
	require.NoError(t, err)
	require.Equal(t, 2, f.fetcher.total(), "expired cache refetches")
	require.Equal(t, int64(2), third.Activities[0].ID)
}

func TestFetchActivitiesCacheDisabled(t *testing.T) {
	f := setupTestFixture(t, func(s *config.Settings) { s.Cache.TTLSeconds = 0 })
	ctx := context.Background()
	f.authorize(t, "visitor")

	for i := 0; i < 3; i++ {
		_, err := f.broker.FetchActivities(ctx, "visitor")
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.fetcher.total())
	require.Nil(t, f.record(t, "visitor").ActivityCache)
}

func TestFetchActivitiesUpstreamFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.authorize(t, "visitor")

	_, err := f.broker.FetchActivities(ctx, "visitor")
	require.NoError(t, err)
	cached := f.record(t, "visitor").ActivityCache

	f.now = f.now.Add(2 * time.Hour)
	f.fetcher.err = stderrors.New("connection reset")
	_, err = f.broker.FetchActivities(ctx, "visitor")
	require.ErrorIs(t, err, errors.ErrUpstreamFetch)
	require.Equal(t, http.StatusBadGateway, errors.HTTPStatus(err))
	require.Equal(t, cached, f.record(t, "visitor").ActivityCache, "cache untouched on failure")
}

func TestFetchActivitiesRefreshBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("expires within skew", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, "visitor", &tokenstore.Record{AccessToken: "old", RefreshToken: "r1", ExpiresAt: f.now.Add(30 * time.Second)})

		_, err := f.broker.FetchActivities(ctx, "visitor")
		require.NoError(t, err)

		_, refreshes := f.oauth.calls()
		require.Equal(t, 1, refreshes)
		r := f.record(t, "visitor")
		require.Equal(t, "refreshed-r1", r.AccessToken)
		require.Equal(t, "rotated-r1", r.RefreshToken)
		require.Equal(t, f.now.Add(6*time.Hour), r.ExpiresAt)
		require.Equal(t, 1, f.fetcher.calls["refreshed-r1"], "fetch uses the new token")
	})

	t.Run("outside skew", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, "visitor", &tokenstore.Record{AccessToken: "old", RefreshToken: "r1", ExpiresAt: f.now.Add(120 * time.Second)})

		_, err := f.broker.FetchActivities(ctx, "visitor")
		require.NoError(t, err)

		_, refreshes := f.oauth.calls()
		require.Zero(t, refreshes)
		require.Equal(t, 1, f.fetcher.calls["old"])
	})

	t.Run("refresh happens even on a cache hit", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, "visitor", &tokenstore.Record{
			AccessToken:  "old",
			RefreshToken: "r1",
			ExpiresAt:    f.now.Add(10 * time.Second),
			ActivityCache: &tokenstore.ActivityCache{
				Payload:   stravamodel.NewActivityPayload(f.now, nil),
				ExpiresAt: f.now.Add(time.Minute),
			},
		})

		payload, err := f.broker.FetchActivities(ctx, "visitor")
		require.NoError(t, err)
		require.Empty(t, payload.Activities)
		require.Zero(t, f.fetcher.total())
		require.Equal(t, "refreshed-r1", f.record(t, "visitor").AccessToken)
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, "visitor", &tokenstore.Record{AccessToken: "old", ExpiresAt: f.now.Add(-time.Minute)})

		_, err := f.broker.FetchActivities(ctx, "visitor")
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
		require.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(err))
	})
}

func TestFetchActivitiesRefreshFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	seeded := &tokenstore.Record{AccessToken: "old", RefreshToken: "revoked", ExpiresAt: f.now.Add(-time.Minute)}
	f.seed(t, "visitor", seeded)
	f.oauth.refreshErrs["revoked"] = errors.Mark(errors.ErrUpstreamAuth, stderrors.New("401"))

	_, err := f.broker.FetchActivities(ctx, "visitor")
	require.ErrorIs(t, err, errors.ErrRefreshFailed)
	require.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))
	require.Equal(t, "Failed to refresh Strava credentials.", errors.PublicMessage(err))

	r := f.record(t, "visitor")
	require.Equal(t, seeded, r, "record untouched")
	require.Zero(t, f.fetcher.total())
}

func (f *testFixture) brokerWithStore(t *testing.T, store tokenstore.Repo) *broker.TokenBroker {
	t.Helper()
	b, err := broker.New(
		broker.Deps{Store: store, OAuth: f.oauth, Activities: f.fetcher},
		config.New(config.Defaults()),
		broker.WithNowTime(func() time.Time { return f.now }),
		broker.WithLogger(zerolog.New(f.logs)),
	)
	require.NoError(t, err)
	return b
}
