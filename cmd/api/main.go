package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Farras8/cek-pohon-app/internal/api"
	"github.com/Farras8/cek-pohon-app/internal/buildinfo"
	"github.com/Farras8/cek-pohon-app/internal/config"
	"github.com/Farras8/cek-pohon-app/internal/logging"
	"github.com/Farras8/cek-pohon-app/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.Configure(cfg.LogLevel, cfg.LogFormat)
	logging.SetDefault(log)
	metrics.RegisterDefault()

	ctx := context.Background()
	srvDeps, err := api.NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init server")
	}
	defer func() { _ = srvDeps.Close() }()

	if srvDeps.Notifier != nil {
		srvDeps.Notifier.Start()
	}

	addr := ":" + cfg.Port
	// Uploads of up to UPLOAD_MAX_BYTES must fit in the read timeout.
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Interface("build", buildinfo.Info()).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("API stopped")
}
