package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/internal/supervisor"
	"github.com/jrsteele09/go-strava-broker/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "strava-broker",
		Short:         "Strava OAuth token broker and activity cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				return os.Setenv(config.ConfigPathEnvVar, cfgFile)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(serve)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml when present)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP broker and the refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(serve)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refresh every stored session once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(refreshOnce)
		},
	})
	return cmd
}

func runGuarded(run func(ctx context.Context) error) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return err
	}
	return nil
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.config.GetEnv() == "DEV" {
		displayAppname(a.config.GetAppName())
	}

	handler, err := server.New(a.config, a.broker, a.identity, server.WithLogger(a.logger))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              a.config.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree("strava-broker", a.logger, supervisor.TreeConfig{ShutdownTimeout: 2 * shutdownTimeout})
	tree.Add(supervisor.NewHTTPService(httpServer, shutdownTimeout, a.logger))
	tree.Add(supervisor.NewRefreshService(a.broker, a.config.GetRefreshInterval(), a.logger))

	a.logger.Info().
		Str("addr", httpServer.Addr).
		Str("store", a.config.GetStoreBackend()).
		Dur("refresh_interval", a.config.GetRefreshInterval()).
		Msg("server listening")

	err = tree.Serve(ctx)
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		a.logger.Warn().Int("count", len(unstopped)).Msg("services did not stop in time")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

func refreshOnce(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.broker.RefreshAll(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("run_id", report.RunID).
		Int("total", report.Total).
		Int("refreshed", report.Refreshed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("refresh finished")
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d sessions failed to refresh", report.Failed, report.Total)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
