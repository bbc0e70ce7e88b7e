// Package tokenstore persists the per-visitor session record: OAuth tokens,
// the pending authorization state and the cached activity listing.
package tokenstore

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
)

// ErrNotFound is returned by Get when no live record exists for the id.
var ErrNotFound = errors.ErrNotFound

// ActivityCache is a cached activity listing with its absolute expiry.
type ActivityCache struct {
	Payload   stravamodel.ActivityPayload `json:"payload"`
	ExpiresAt time.Time                   `json:"expiresAt"`
}

// Live reports whether the cache can still be served at now.
func (c *ActivityCache) Live(now time.Time) bool {
	return c != nil && now.Before(c.ExpiresAt)
}

// Record is everything the broker keeps for one session id.
type Record struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`

	// OAuthState is set by a start and consumed by the matching callback.
	OAuthState string `json:"oauthState,omitempty"`

	Athlete       *stravamodel.Athlete `json:"athlete,omitempty"`
	ActivityCache *ActivityCache       `json:"activityCache,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Authorized reports whether the record holds an access token.
func (r *Record) Authorized() bool {
	return r != nil && r.AccessToken != ""
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Athlete != nil {
		athlete := *r.Athlete
		c.Athlete = &athlete
	}
	if r.ActivityCache != nil {
		cache := *r.ActivityCache
		cache.Payload.Activities = append([]stravamodel.Activity{}, r.ActivityCache.Payload.Activities...)
		c.ActivityCache = &cache
	}
	return &c
}

// Entry pairs a record with its session id.
type Entry struct {
	ID     string
	Record *Record
}

// Repo is the session store. Implementations must be safe for concurrent use.
// Writes are whole-record replacements: concurrent writers to the same id
// are last-writer-wins.
type Repo interface {
	Get(ctx context.Context, id string) (*Record, error)
	Set(ctx context.Context, id string, record *Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
}

// Marshal encodes a record for the durable backends.
func Marshal(r *Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal session record")
	}
	return b, nil
}

func Unmarshal(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrapf(err, "unmarshal session record")
	}
	return &r, nil
}
