package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
)

const endpointActivities = "activities"

// ActivityFetcher returns the normalized activity listing for an access token.
type ActivityFetcher interface {
	FetchActivities(ctx context.Context, accessToken string) (*stravamodel.ActivityPayload, error)
}

type ActivityClient struct {
	baseURL    string
	perPage    int
	window     time.Duration
	httpClient *http.Client
	now        func() time.Time
}

var _ ActivityFetcher = (*ActivityClient)(nil)

type ActivityOption func(*ActivityClient)

func WithActivityHTTPClient(client *http.Client) ActivityOption {
	return func(c *ActivityClient) {
		c.httpClient = client
	}
}

func WithActivityNowTime(now func() time.Time) ActivityOption {
	return func(c *ActivityClient) {
		c.now = now
	}
}

func NewActivityClient(cfg config.OAuthConfig, opts ...ActivityOption) *ActivityClient {
	c := &ActivityClient{
		baseURL:    strings.TrimRight(cfg.GetStravaAPIBaseURL(), "/"),
		perPage:    cfg.GetStravaPerPage(),
		window:     cfg.GetStravaActivityWindow(),
		httpClient: &http.Client{Timeout: cfg.GetStravaHTTPTimeout()},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchActivities lists the athlete's activities and keeps the ones with a position.
func (c *ActivityClient) FetchActivities(ctx context.Context, accessToken string) (*stravamodel.ActivityPayload, error) {
	start := c.now()
	raw, err := c.list(ctx, accessToken)
	metrics.RecordUpstreamRequest(endpointActivities, time.Since(start), err)
	if err != nil {
		return nil, errors.Mark(errors.ErrUpstreamFetch, err)
	}

	payload := stravamodel.NewActivityPayload(c.now(), Normalize(raw))
	return &payload, nil
}

func (c *ActivityClient) list(ctx context.Context, accessToken string) ([]stravamodel.RawActivity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build activities request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava activities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamStatusError{Endpoint: endpointActivities, StatusCode: resp.StatusCode}
	}

	var raw []stravamodel.RawActivity
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return raw, nil
}

func (c *ActivityClient) listURL() string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	if c.window > 0 {
		q.Set("after", strconv.FormatInt(c.now().Add(-c.window).Unix(), 10))
	}
	return c.baseURL + "/athlete/activities?" + q.Encode()
}
