package tokenstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/jrsteele09/go-strava-broker/tokenstore/storetest"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tokenstore.Repo {
		return tokenstore.NewInMemoryRepo()
	})
}

func TestInMemoryRepoTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := tokenstore.NewInMemoryRepo(
		tokenstore.WithTTL(time.Hour),
		tokenstore.WithNowTime(func() time.Time { return now }),
	)

	require.NoError(t, repo.Set(ctx, "abc", storetest.SampleRecord()))

	now = now.Add(59 * time.Minute)
	_, err := repo.Get(ctx, "abc")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = repo.Get(ctx, "abc")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInMemoryRepoRequiresID(t *testing.T) {
	repo := tokenstore.NewInMemoryRepo()
	require.Error(t, repo.Set(context.Background(), "", &tokenstore.Record{}))
	_, err := repo.Get(context.Background(), "")
	require.Error(t, err)
}

func TestRecordCodec(t *testing.T) {
	record := storetest.SampleRecord()
	b, err := tokenstore.Marshal(record)
	require.NoError(t, err)
	require.Contains(t, string(b), `"coordinates":[51.5,-0.12]`)

	decoded, err := tokenstore.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, record, decoded)

	_, err = tokenstore.Unmarshal([]byte("{"))
	require.Error(t, err)
}

func TestActivityCacheLive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var missing *tokenstore.ActivityCache
	require.False(t, missing.Live(now))
	require.True(t, (&tokenstore.ActivityCache{ExpiresAt: now.Add(time.Second)}).Live(now))
	require.False(t, (&tokenstore.ActivityCache{ExpiresAt: now}).Live(now))
}
