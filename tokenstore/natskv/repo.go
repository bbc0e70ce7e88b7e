// Package natskv is a tokenstore.Repo on a NATS JetStream key-value bucket.
// The bucket TTL is the session lifetime; each Put restarts a key's age.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const DefaultBucket = "strava_sessions"

type Repo struct {
	kv jetstream.KeyValue
}

var _ tokenstore.Repo = (*Repo)(nil)

// New creates or updates bucket on the connection's JetStream context.
func New(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*Repo, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Strava broker session records",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create key-value bucket %s: %w", bucket, err)
	}
	return &Repo{kv: kv}, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*tokenstore.Record, error) {
	entry, err := r.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, tokenstore.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return tokenstore.Unmarshal(entry.Value())
}

func (r *Repo) Set(ctx context.Context, id string, record *tokenstore.Record) error {
	data, err := tokenstore.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := r.kv.Put(ctx, id, data); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.kv.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context) ([]tokenstore.Entry, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var ids []string
	for id := range lister.Keys() {
		ids = append(ids, id)
	}

	entries := make([]tokenstore.Entry, 0, len(ids))
	for _, id := range ids {
		record, err := r.Get(ctx, id)
		if errors.Is(err, tokenstore.ErrNotFound) {
			continue // expired or deleted since listing
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, tokenstore.Entry{ID: id, Record: record})
	}
	return entries, nil
}
