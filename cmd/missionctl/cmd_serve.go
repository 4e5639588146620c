package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dehyl/missionctl/internal/auth"
	"github.com/dehyl/missionctl/internal/config"
	"github.com/dehyl/missionctl/internal/gateway"
	httpapi "github.com/dehyl/missionctl/internal/http"
	"github.com/dehyl/missionctl/internal/metrics"
	"github.com/dehyl/missionctl/internal/server"
	"github.com/dehyl/missionctl/internal/storage/sqlite"
	"github.com/dehyl/missionctl/internal/ws"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Mission Control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("addr", cfg.ListenAddr).
		Str("db", cfg.DBPath).
		Bool("gateway_enabled", cfg.GatewayEnabled()).
		Msg("starting missionctl")

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("store init failed")
	}
	defer store.Close()

	keysFile := cfg.KeysFile
	if keysFile == "" {
		keysFile = auth.ResolveKeysPath()
	}
	keyring, err := auth.LoadKeyring(keysFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("auth init failed")
	}

	hub := ws.NewHub()
	met := metrics.New()
	gw := gateway.New(cfg.GatewayURL, cfg.GatewayToken)

	svc := httpapi.NewService(store).
		WithBroadcaster(hub).
		WithGateway(gw).
		WithConfig(cfg).
		WithMetrics(met)

	router := httpapi.NewRouter(svc, hub.Handler(), met.Handler(), auth.Middleware(keyring))

	srv, err := server.New(server.Config{
		Addr:       cfg.ListenAddr,
		SocketPath: cfg.SocketPath,
		Handler:    met.Middleware(router),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("server init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := sqlite.NewSweeper(store, hub, cfg.SweepInterval, cfg.HeartbeatGrace)
	sweeper.SetOnlineGauge(met.AgentsOnline)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return err
	}
	return nil
}
