package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"go.uber.org/zap"

	ingestapp "github.com/dplus/backend/internal/application/ingest"
	"github.com/dplus/backend/internal/infrastructure/config"
	"github.com/dplus/backend/internal/infrastructure/logger"
	"github.com/dplus/backend/internal/infrastructure/persistence"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	service, err := ingestapp.NewIngestionService(
		persistence.NewGormOrderRepository(db.DB),
		persistence.NewGormSourceFileRepository(db.DB),
		persistence.NewGormRunRepository(db.DB),
		cfg, log, &sync.RWMutex{},
	)
	if err != nil {
		log.Fatal("Failed to initialize ingestion service", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "run":
		report, err := service.Run(ctx)
		if err != nil {
			log.Fatal("Ingestion failed", zap.Error(err))
		}
		log.Info("Ingestion finished",
			zap.String("status", string(report.Status)),
			zap.String("summary", report.Summary()),
		)
		printJSON(report)

	case "rebuild":
		report, err := service.Rebuild(ctx)
		if err != nil {
			log.Fatal("Rebuild failed", zap.Error(err))
		}
		log.Info("Rebuild finished",
			zap.String("status", string(report.Status)),
			zap.String("summary", report.Summary()),
		)
		printJSON(report)

	case "integrity":
		report, err := service.Integrity(ctx)
		if err != nil {
			log.Fatal("Integrity scan failed", zap.Error(err))
		}
		if !report.Healthy {
			log.Warn("Store has integrity findings", zap.Int("findings", len(report.Findings)))
		}
		printJSON(report)
		if !report.Healthy {
			os.Exit(2)
		}

	case "runs":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				log.Fatal("Limit must be a positive integer", zap.String("got", args[1]))
			}
			limit = n
		}
		runs, err := service.Runs(ctx, limit)
		if err != nil {
			log.Fatal("Failed to list runs", zap.Error(err))
		}
		printJSON(runs)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
	}
}

func printUsage() {
	fmt.Println(`Sales Pipeline Ingestion Tool

Usage:
  ingest [flags] <command> [arguments]

Commands:
  run             Incrementally ingest new or changed export files
  rebuild         Wipe the store and re-ingest every export file
  integrity       Scan the store and report integrity findings
  runs [limit]    List recent ingestion runs (default limit 20)

Flags:
  -log-level      Log level: debug, info, warn, error (default info)`)
}
