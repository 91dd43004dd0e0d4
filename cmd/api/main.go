package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"migrationhub/api/internal/app"
	"migrationhub/api/internal/auth"
	"migrationhub/api/internal/config"
	"migrationhub/api/internal/devproxy"
	"migrationhub/api/internal/export"
	"migrationhub/api/internal/logging"
	"migrationhub/api/internal/search"
	"migrationhub/api/internal/session"
	"migrationhub/api/internal/sheets"
	"migrationhub/api/internal/store"
	"migrationhub/api/internal/zapier"
)

const purgeInterval = time.Hour

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", zap.Strings("versions", applied))
	}
	dataStore := store.NewPostgresStore(db)

	deps := app.Deps{
		Store:    dataStore,
		Verifier: auth.NewGoogleVerifier(cfg.UserInfoURL, cfg.AllowedDomain),
		Logger:   logger,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		logger.Info("refresh sessions stored in redis")
		deps.Sessions = redisStore
	} else {
		logger.Info("refresh sessions stored in postgres")
	}

	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		logger.Warn("HUB_SPREADSHEET_ID not set, sheet routes will answer 503")
	} else if values, err := serverValues(ctx, cfg); err != nil {
		logger.Warn("server sheets credentials unavailable, only delegated sessions can read", zap.Error(err))
	} else {
		deps.Values = values
	}

	deps.Hooks = zapier.New(hookURLs(cfg), cfg.ZapierMaxInFlight, logger)

	var index search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
		index = meili
	}
	deps.Search = search.NewService(index, logger)

	var archive export.Archiver
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		s3, err := export.NewS3Archive(export.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return fmt.Errorf("report archive: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			logger.Warn("report archive bucket check failed", zap.String("bucket", cfg.S3Bucket), zap.Error(err))
		}
		archive = s3
	}
	deps.Export = export.NewService(archive)

	service, err := app.New(cfg, deps)
	if err != nil {
		return err
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	if cfg.DevProxy {
		proxy, err := devproxy.New(deps.Hooks, logger)
		if err != nil {
			return fmt.Errorf("dev proxy: %w", err)
		}
		httpServer.WithDevProxy(devproxy.Prefix, proxy)
		logger.Warn("dev webhook proxy enabled", zap.String("prefix", devproxy.Prefix))
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go purgeExpired(ctx, dataStore, purgeInterval, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("migration hub api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

// serverValues builds the Sheets client the API uses when a session carries no Google token.
func serverValues(ctx context.Context, cfg config.Config) (*sheets.GoogleValues, error) {
	return sheets.NewGoogleValues(ctx, sheets.ServiceAccountOptions(cfg.CredentialsFile, sheets.ReadWriteScope)...)
}

func hookURLs(cfg config.Config) map[zapier.Hook]string {
	return map[zapier.Hook]string{
		zapier.HookNewMigration: cfg.ZapierNewMigrationURL,
		zapier.HookEmailDraft:   cfg.ZapierEmailDraftURL,
		zapier.HookGitHubSync:   cfg.ZapierGitHubSyncURL,
	}
}

type expiryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpired drops expired refresh sessions and denylisted tokens every
// interval until ctx ends.
func purgeExpired(ctx context.Context, dataStore expiryPurger, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := dataStore.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("purged expired sessions", zap.Int64("rows", removed))
			}
		}
	}
}
