// Package api implements the HTTP surface of the tree check service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Farras8/cek-pohon-app/internal/archive"
	"github.com/Farras8/cek-pohon-app/internal/auth"
	"github.com/Farras8/cek-pohon-app/internal/config"
	"github.com/Farras8/cek-pohon-app/internal/events"
	"github.com/Farras8/cek-pohon-app/internal/normalize"
	"github.com/Farras8/cek-pohon-app/internal/pipeline"
	"github.com/Farras8/cek-pohon-app/internal/report"
	"github.com/Farras8/cek-pohon-app/internal/store"
	"github.com/Farras8/cek-pohon-app/internal/webhooks"
)

type Server struct {
	Config    config.Config
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Reports   *report.Service
	Broker    events.Broker
	Auth      *auth.Verifier
	Limiter   *rate.Limiter
	MaxUpload int64
	Notifier  *webhooks.Notifier
	Log       zerolog.Logger

	redis *redis.Client
}

// NewServer wires a Server from cfg. Storage is Postgres when DATABASE_URL is
// set, SQLite when SQLITE_PATH is set, in-memory otherwise. REDIS_URL switches
// the upload lock and the event broker to Redis.
func NewServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	aliases := normalize.DefaultAliases()
	if cfg.AliasesFile != "" {
		if aliases, err = normalize.LoadAliases(cfg.AliasesFile); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("load aliases: %w", err)
		}
	}

	s := &Server{
		Config:    cfg,
		Store:     st,
		Reports:   report.NewService(st),
		Broker:    events.NewMemory(),
		Auth:      auth.NewVerifier(cfg.AuthMode, cfg.AuthSecret),
		MaxUpload: cfg.UploadMaxBytes,
		Log:       log,
	}
	if s.MaxUpload <= 0 {
		s.MaxUpload = 50 << 20
	}
	if cfg.UploadRateRPS > 0 {
		burst := cfg.UploadRateBurst
		if burst <= 0 {
			burst = 1
		}
		s.Limiter = rate.NewLimiter(rate.Limit(cfg.UploadRateRPS), burst)
	}

	p := pipeline.New(st, normalize.New(aliases), log.With().Str("component", "pipeline").Logger())
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opt)
		s.Broker = events.NewRedis(s.redis)
		p.Locker = pipeline.NewRedisLocker(s.redis, cfg.LockTTL)
	}
	p.Events = s.Broker

	if cfg.ArchiveEndpoint != "" {
		b, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("archive disabled")
		} else {
			p.Archive = b
		}
	}
	if cfg.NotifyURL != "" {
		s.Notifier = webhooks.NewNotifier(cfg.NotifyURL, cfg.NotifySecret, cfg.NotifyMaxAttempts, log.With().Str("component", "webhooks").Logger())
		p.Notifier = s.Notifier
	}
	s.Pipeline = p
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		sp, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.Migrate {
			if err := sp.Migrate(ctx); err != nil {
				_ = sp.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return sp, nil
	case strings.TrimSpace(cfg.SQLitePath) != "":
		return store.NewSQLite(ctx, cfg.SQLitePath)
	}
	return store.NewMemory(), nil
}

// Routes returns the service mux wrapped in logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/trees/upload", s.UploadHandler)
	mux.HandleFunc("/v1/trees/missing", s.MissingHandler)
	mux.HandleFunc("/v1/trees/duplicates", s.DuplicatesHandler)
	mux.HandleFunc("/v1/trees/summary", s.SummaryHandler)
	mux.HandleFunc("/v1/trees/export", s.ExportHandler)
	mux.HandleFunc("/v1/trees/export-duplicates", s.ExportDuplicatesHandler)
	mux.HandleFunc("/v1/trees/delete-selected", s.DeleteSelectedHandler)
	mux.HandleFunc("/v1/trees", s.ClearHandler)

	mux.HandleFunc("/v1/events/ws", s.EventsWSHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/debug/vars", s.DebugJSON)

	return s.observe(mux)
}

// Close releases the store, Redis and the notifier.
func (s *Server) Close() error {
	if s.Notifier != nil {
		s.Notifier.Stop()
	}
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.Store.Close())
	return errors.Join(errs...)
}
