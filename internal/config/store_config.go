package config

import "time"

type Cache struct {
	cache CacheSettings
}

var _ CacheConfig = Cache{}

func (c Cache) GetCacheTTL() time.Duration {
	return time.Duration(c.cache.TTLSeconds) * time.Second
}

type Store struct {
	store StoreSettings
}

var _ StoreConfig = Store{}

// GetStoreBackend is one of memory, badger or nats.
func (s Store) GetStoreBackend() string      { return s.store.Backend }
func (s Store) GetSessionTTL() time.Duration { return s.store.SessionTTL }
func (s Store) GetBadgerPath() string        { return s.store.BadgerPath }
func (s Store) GetNATSURL() string           { return s.store.NATSURL }
func (s Store) GetNATSBucket() string        { return s.store.NATSBucket }

type Refresh struct {
	refresh    RefreshSettings
	tasksToken string
}

var _ RefreshConfig = Refresh{}

// GetRefreshInterval is the period of the background bulk refresh. Zero disables it.
func (r Refresh) GetRefreshInterval() time.Duration {
	return r.refresh.Interval
}

func (r Refresh) GetRefreshConcurrency() int {
	return r.refresh.Concurrency
}

// GetRefreshRate caps bulk-refresh sessions started per second. Zero means unpaced.
func (r Refresh) GetRefreshRate() float64 {
	return r.refresh.Rate
}

func (r Refresh) GetTasksToken() string {
	return r.tasksToken
}

type RateLimit struct {
	limit RateLimitSettings
}

var _ RateLimitConfig = RateLimit{}

func (r RateLimit) GetRateLimitEnabled() bool {
	return r.limit.Enabled
}

func (r RateLimit) GetRateLimitRequests() int {
	return r.limit.Requests
}

func (r RateLimit) GetRateLimitWindow() time.Duration {
	return r.limit.Window
}
