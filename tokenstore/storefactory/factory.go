// Package storefactory builds the configured tokenstore.Repo backend.
package storefactory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/tokenstore"
	"github.com/jrsteele09/go-strava-broker/tokenstore/badgerstore"
	"github.com/jrsteele09/go-strava-broker/tokenstore/natskv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendNATS   = "nats"
)

// CloseFunc releases whatever the backend holds open.
type CloseFunc func() error

func noopClose() error { return nil }

// New returns the repo selected by cfg.GetStoreBackend.
func New(ctx context.Context, cfg config.StoreConfig) (tokenstore.Repo, CloseFunc, error) {
	switch cfg.GetStoreBackend() {
	case BackendMemory, "":
		log.Warn().Msg("using the in-memory session store; sessions are lost on restart")
		return tokenstore.NewInMemoryRepo(tokenstore.WithTTL(cfg.GetSessionTTL())), noopClose, nil

	case BackendBadger:
		if err := os.MkdirAll(filepath.Clean(cfg.GetBadgerPath()), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create badger dir: %w", err)
		}
		db, err := badgerstore.Open(cfg.GetBadgerPath())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.GetBadgerPath()).Msg("using badger session store")
		return badgerstore.New(db, cfg.GetSessionTTL()), db.Close, nil

	case BackendNATS:
		nc, err := nats.Connect(cfg.GetNATSURL(), nats.Name("strava-broker"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats at %s: %w", cfg.GetNATSURL(), err)
		}
		repo, err := natskv.New(ctx, nc, cfg.GetNATSBucket(), cfg.GetSessionTTL())
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		log.Info().Str("url", cfg.GetNATSURL()).Str("bucket", cfg.GetNATSBucket()).Msg("using nats key-value session store")
		return repo, func() error { return nc.Drain() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.GetStoreBackend())
	}
}
