package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dplus/backend/internal/application/analytics"
	ingestapp "github.com/dplus/backend/internal/application/ingest"
	"github.com/dplus/backend/internal/infrastructure/config"
	"github.com/dplus/backend/internal/infrastructure/logger"
	"github.com/dplus/backend/internal/infrastructure/persistence"
	"github.com/dplus/backend/internal/interfaces/http/handler"
	"github.com/dplus/backend/internal/interfaces/http/middleware"
	"github.com/dplus/backend/internal/interfaces/http/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	fileRepo := persistence.NewGormSourceFileRepository(db.DB)
	runRepo := persistence.NewGormRunRepository(db.DB)

	// The ingest side takes the write lock, the query side the read
	// lock, so reads never observe a half-applied merge.
	storeMu := &sync.RWMutex{}

	loc, err := cfg.Ingest.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	ingestSvc, err := ingestapp.NewIngestionService(orderRepo, fileRepo, runRepo, cfg, log, storeMu)
	if err != nil {
		return fmt.Errorf("init ingestion service: %w", err)
	}
	querySvc := analytics.NewQueryService(orderRepo, analytics.ThresholdsFromConfig(cfg.Segmentation), log, storeMu)

	engine := newEngine(cfg, log)

	engine.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.NewRouter(engine).
		Register(handler.NewAnalyticsHandler(querySvc, loc)).
		Register(handler.NewIngestHandler(ingestSvc)).
		Register(handler.NewSystemHandler()).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newEngine(cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(),
	)
	return engine
}
