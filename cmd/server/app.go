package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/logging"
	"github.com/jrsteele09/go-strava-broker/sessions"
	"github.com/jrsteele09/go-strava-broker/strava"
	"github.com/jrsteele09/go-strava-broker/tokenstore/storefactory"
	"github.com/rs/zerolog"
)

// app holds the components shared by every command.
type app struct {
	config   config.Config
	logger   zerolog.Logger
	broker   *broker.TokenBroker
	identity *sessions.Identity
	close    storefactory.CloseFunc
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.Init(logging.Config{Level: cfg.GetLogLevel(), Format: cfg.GetLogFormat()})
	for _, warning := range config.Warnings(cfg) {
		logger.Warn().Msg(warning)
	}

	store, closeStore, err := storefactory.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	var activities strava.ActivityFetcher = strava.NewActivityClient(cfg)
	if trips := cfg.GetStravaBreakerTrips(); trips > 0 {
		activities = strava.NewBreakerFetcher(activities, trips, cfg.GetStravaBreakerTimeout())
	}

	tokenBroker, err := broker.New(
		broker.Deps{
			Store:      store,
			OAuth:      strava.NewOAuthClient(cfg),
			Activities: activities,
		},
		cfg,
		broker.WithLogger(logger),
	)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("create broker: %w", err)
	}

	identity, err := sessions.NewIdentity(cfg)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("create session identity: %w", err)
	}

	return &app{
		config:   cfg,
		logger:   logger,
		broker:   tokenBroker,
		identity: identity,
		close: func() error {
			if err := closeStore(); err != nil {
				logger.Error().Err(err).Msg("closing session store")
				return err
			}
			return nil
		},
	}, nil
}
