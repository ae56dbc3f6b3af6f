// Package agent assembles the data agent: configuration, storage backends,
// signer, services and the HTTP endpoint, with graceful shutdown.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loadnetwork/load-s3-agent/internal/agent/bundler"
	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/httpserver"
	"github.com/loadnetwork/load-s3-agent/internal/agent/objectstore"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/repomanager"
	"github.com/loadnetwork/load-s3-agent/internal/agent/services"
	"github.com/loadnetwork/load-s3-agent/internal/ans104"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	server *httpserver.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.S3Options{
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Region:          cfg.S3Region,
		BaseEndpoint:    cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	jwk, err := os.ReadFile(cfg.UploaderJWKPath)
	if err != nil {
		return nil, fmt.Errorf("reading uploader jwk: %w", err)
	}
	signer, err := ans104.NewArweaveSigner(jwk)
	if err != nil {
		return nil, fmt.Errorf("uploader key init error: %w", err)
	}

	bundlerClient := bundler.New(cfg.BundlerURL)

	placement := services.NewPlacementService(db, repos, store, signer, cfg, logger)
	query := services.NewQueryService(db, repos)
	migration := services.NewMigrationService(db, repos, store, bundlerClient, cfg, logger)
	stats := services.NewStatsService(db, repos)

	server := httpserver.NewServer(placement, query, migration, stats, cfg, logger, signer.Address())

	return &App{config: cfg, logger: logger, db: db, repos: repos, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "endpoint listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting agent...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err.Error())
	}
}
