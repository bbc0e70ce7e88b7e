package tokenstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type storedRecord struct {
	record    *Record
	expiresAt time.Time
}

// InMemoryRepo keeps records in a map. Expired records are dropped lazily on read.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	ttl     time.Duration
	now     func() time.Time
}

type InMemoryOption func(*InMemoryRepo)

// WithTTL expires records ttl after their last write. Zero keeps them forever.
func WithTTL(ttl time.Duration) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

func WithNowTime(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.now = now
	}
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo(opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		records: make(map[string]storedRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Get(_ context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	r.mu.RLock()
	stored, ok := r.records[id]
	r.mu.RUnlock()

	if !ok || r.expired(stored) {
		return nil, ErrNotFound
	}
	return stored.record.Clone(), nil
}

func (r *InMemoryRepo) Set(_ context.Context, id string, record *Record) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if record == nil {
		return fmt.Errorf("record is required")
	}

	stored := storedRecord{record: record.Clone()}
	if r.ttl > 0 {
		stored.expiresAt = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = stored
	return nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

// List returns live records ordered by id and evicts expired ones.
func (r *InMemoryRepo) List(_ context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.records))
	for id, stored := range r.records {
		if r.expired(stored) {
			delete(r.records, id)
			continue
		}
		entries = append(entries, Entry{ID: id, Record: stored.record.Clone()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (r *InMemoryRepo) expired(s storedRecord) bool {
	return !s.expiresAt.IsZero() && !r.now().Before(s.expiresAt)
}
