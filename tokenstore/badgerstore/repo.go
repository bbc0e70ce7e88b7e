// Package badgerstore is a tokenstore.Repo on an embedded BadgerDB. Every write
// carries the session TTL so idle sessions expire without a sweeper.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
)

const sessionKeyPrefix = "session:"

type Repo struct {
	db  *badger.DB
	ttl time.Duration
}

var _ tokenstore.Repo = (*Repo)(nil)

// New wraps an open database. A zero ttl keeps records until deleted.
func New(db *badger.DB, ttl time.Duration) *Repo {
	return &Repo{db: db, ttl: ttl}
}

// Open opens (or creates) a database at path.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

func key(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func (r *Repo) Get(_ context.Context, id string) (*tokenstore.Record, error) {
	var record *tokenstore.Record
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return tokenstore.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			record, err = tokenstore.Unmarshal(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *Repo) Set(_ context.Context, id string, record *tokenstore.Record) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	data, err := tokenstore.Marshal(record)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(id), data)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
}

func (r *Repo) Delete(_ context.Context, id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

func (r *Repo) List(ctx context.Context) ([]tokenstore.Entry, error) {
	var entries []tokenstore.Entry
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				record, err := tokenstore.Unmarshal(val)
				if err != nil {
					return err
				}
				entries = append(entries, tokenstore.Entry{ID: id, Record: record})
				return nil
			})
			if err != nil {
				return fmt.Errorf("read session %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return entries, nil
}
