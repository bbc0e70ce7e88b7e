// Package storetest is a behavioural test suite shared by every tokenstore.Repo backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-strava-broker/stravamodel"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/stretchr/testify/require"
)

// SampleRecord returns an authorized record with a populated activity cache.
func SampleRecord() *tokenstore.Record {
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &tokenstore.Record{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    updated.Add(6 * time.Hour),
		Athlete:      &stravamodel.Athlete{ID: 42, Firstname: "Ada"},
		ActivityCache: &tokenstore.ActivityCache{
			Payload: stravamodel.NewActivityPayload(updated, []stravamodel.Activity{
				{ID: 1, Name: "Morning Ride", Type: "Ride", StartDate: "2024-05-01T06:30:00Z", Distance: 1200, Coordinates: [2]float64{51.5, -0.12}, City: "London", Country: "UK"},
			}),
			ExpiresAt: updated.Add(time.Hour),
		},
		UpdatedAt: updated,
	}
}

// Run exercises the Repo contract against a fresh store from newRepo.
func Run(t *testing.T, newRepo func(t *testing.T) tokenstore.Repo) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "missing")
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		repo := newRepo(t)
		record := SampleRecord()
		require.NoError(t, repo.Set(ctx, "abc", record))

		got, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, record, got)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Set(ctx, "abc", SampleRecord()))

		got, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		got.AccessToken = "mutated"
		got.ActivityCache.Payload.Activities[0].Name = "mutated"

		again, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "access", again.AccessToken)
		require.Equal(t, "Morning Ride", again.ActivityCache.Payload.Activities[0].Name)
	})

	t.Run("set replaces", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Set(ctx, "abc", SampleRecord()))
		require.NoError(t, repo.Set(ctx, "abc", &tokenstore.Record{OAuthState: "state"}))

		got, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "state", got.OAuthState)
		require.Empty(t, got.AccessToken)
		require.Nil(t, got.ActivityCache)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Set(ctx, "abc", SampleRecord()))
		require.NoError(t, repo.Delete(ctx, "abc"))
		require.NoError(t, repo.Delete(ctx, "abc"))

		_, err := repo.Get(ctx, "abc")
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		repo := newRepo(t)
		entries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Empty(t, entries)

		require.NoError(t, repo.Set(ctx, "b", SampleRecord()))
		require.NoError(t, repo.Set(ctx, "a", &tokenstore.Record{OAuthState: "pending"}))

		entries, err = repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byID := map[string]*tokenstore.Record{}
		for _, e := range entries {
			byID[e.ID] = e.Record
		}
		require.Equal(t, "pending", byID["a"].OAuthState)
		require.Equal(t, "access", byID["b"].AccessToken)
	})

	t.Run("concurrent writers on distinct ids", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("session-%02d", i)
				errs <- repo.Set(ctx, id, &tokenstore.Record{AccessToken: id})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		entries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 20)
	})
}
