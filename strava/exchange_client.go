// Package strava talks to the Strava OAuth and REST APIs.
package strava

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"golang.org/x/oauth2"
)

const (
	endpointToken   = "token"
	endpointRefresh = "refresh"

	// fallbackLifetime applies when Strava reports neither expires_at nor expires_in.
	fallbackLifetime = time.Hour
)

// TokenExchanger performs the two grants the broker needs.
type TokenExchanger interface {
	Configured() bool
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*stravamodel.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (*stravamodel.TokenGrant, error)
}

type OAuthClient struct {
	cfg        oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

var _ TokenExchanger = (*OAuthClient)(nil)

type OAuthOption func(*OAuthClient)

func WithHTTPClient(client *http.Client) OAuthOption {
	return func(c *OAuthClient) {
		c.httpClient = client
	}
}

func WithOAuthNowTime(now func() time.Time) OAuthOption {
	return func(c *OAuthClient) {
		c.now = now
	}
}

func NewOAuthClient(cfg config.OAuthConfig, opts ...OAuthOption) *OAuthClient {
	c := &OAuthClient{
		cfg: oauth2.Config{
			ClientID:     cfg.GetStravaClientID(),
			ClientSecret: cfg.GetStravaClientSecret(),
			RedirectURL:  cfg.GetStravaRedirectURI(),
			// Strava expects a comma-separated scope list in a single parameter.
			Scopes: []string{cfg.GetStravaScope()},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.GetStravaAuthURL(),
				TokenURL:  cfg.GetStravaTokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: cfg.GetStravaHTTPTimeout()},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether client id, secret and redirect URI are all set.
func (c *OAuthClient) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.RedirectURL != ""
}

func (c *OAuthClient) AuthorizeURL(state string) string {
	return c.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// ExchangeCode trades an authorization code for tokens and the athlete summary.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*stravamodel.TokenGrant, error) {
	start := c.now()
	tok, err := c.cfg.Exchange(c.clientContext(ctx), code)
	metrics.RecordUpstreamRequest(endpointToken, time.Since(start), err)
	if err != nil {
		return nil, errors.Mark(errors.ErrUpstreamAuth, describe(err))
	}
	return c.grant(tok, "")
}

// Refresh obtains a new access token. When Strava does not rotate the refresh
// token the previous one is returned unchanged.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*stravamodel.TokenGrant, error) {
	start := c.now()
	tok, err := c.cfg.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	metrics.RecordUpstreamRequest(endpointRefresh, time.Since(start), err)
	if err != nil {
		return nil, errors.Mark(errors.ErrUpstreamAuth, describe(err))
	}
	return c.grant(tok, refreshToken)
}

func (c *OAuthClient) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) grant(tok *oauth2.Token, previousRefresh string) (*stravamodel.TokenGrant, error) {
	if tok.AccessToken == "" {
		return nil, errors.Mark(errors.ErrUpstreamAuth, fmt.Errorf("token response has no access_token"))
	}

	g := &stravamodel.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok),
		Athlete:      athleteFrom(tok.Extra("athlete")),
	}
	if g.RefreshToken == "" {
		g.RefreshToken = previousRefresh
	}
	return g, nil
}

// expiry prefers Strava's absolute expires_at over the relative expires_in.
func (c *OAuthClient) expiry(tok *oauth2.Token) time.Time {
	switch v := tok.Extra("expires_at").(type) {
	case float64:
		if v > 0 {
			return time.Unix(int64(v), 0).UTC()
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return time.Unix(n, 0).UTC()
		}
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.UTC()
	}
	return c.now().Add(fallbackLifetime).UTC()
}

func athleteFrom(raw interface{}) *stravamodel.Athlete {
	if raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var a stravamodel.Athlete
	if err := json.Unmarshal(b, &a); err != nil || a.ID == 0 {
		return nil
	}
	return &a
}

// describe keeps the status code of a token endpoint failure and drops the body.
func describe(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &UpstreamStatusError{Endpoint: endpointToken, StatusCode: re.Response.StatusCode}
	}
	return err
}
