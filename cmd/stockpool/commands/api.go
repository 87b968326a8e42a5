package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhwen/stockpool/backend/internal/api"
	"github.com/zhwen/stockpool/backend/internal/api/handlers"
	"github.com/zhwen/stockpool/backend/internal/backup"
	"github.com/zhwen/stockpool/backend/internal/history"
	"github.com/zhwen/stockpool/backend/internal/importer"
	"github.com/zhwen/stockpool/backend/internal/parser"
	"github.com/zhwen/stockpool/backend/internal/scheduler"
	"github.com/zhwen/stockpool/backend/internal/scheduler/jobs"
	"github.com/zhwen/stockpool/backend/internal/store"
	"github.com/zhwen/stockpool/backend/pkg/database"
	"github.com/zhwen/stockpool/backend/pkg/logger"
	"github.com/zhwen/stockpool/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server for the dashboard.

Endpoints:
  GET    /health                  - Health check
  POST   /api/import              - Import TDX exports or a JSON pool
  POST   /api/import/stock        - Merge one stock into a date
  GET    /api/dates               - List imported dates
  GET    /api/dates/{date}        - One date's summary
  DELETE /api/dates/{date}        - Delete a date
  GET    /api/dates/{date}/stocks - One date's stock list
  GET    /api/ranking/{date}      - Scored and ranked pool
  GET    /api/summary/{date}      - Aggregate day statistics
  GET    /api/history/{code}      - One stock across all dates
  GET    /api/recurring           - Stocks recurring across dates
  GET    /ws                      - Dashboard event stream

Example:
  go run ./cmd/stockpool api
  go run ./cmd/stockpool api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	recordStore := store.New(db.Pool, log)
	if err := recordStore.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Info("Connected to database")

	// 4. Redis cache (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "stockpool")

	// 5. Core components
	backupMgr := backup.New(recordStore, cfg.Backup.Dir, cfg.Backup.Keep, log)
	imp := importer.New(recordStore, backupMgr, log)
	tdxParser := parser.New(log)
	hub := api.NewEventHub(log)
	defer hub.Close()

	// 6. Router
	router := api.NewRouter(api.Deps{
		Import:    handlers.NewImportHandler(imp, tdxParser, cache, hub, log),
		Pool:      handlers.NewPoolHandler(recordStore, log),
		Ranking:   handlers.NewRankingHandler(recordStore, cache, log),
		History:   handlers.NewHistoryHandler(recordStore, history.New(recordStore), cache, log),
		Analysis:  handlers.NewAnalysisHandler(recordStore, cache, hub, log),
		Hub:       hub,
		Logger:    log,
		RateRPS:   cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	})

	// 7. Nightly snapshot
	sched := scheduler.New(log)
	if cfg.Backup.Schedule != "" {
		if err := sched.AddJob(jobs.NewSnapshotJob(backupMgr, cfg.Backup.Schedule, log)); err != nil {
			return fmt.Errorf("schedule snapshot job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// 8. Start server with graceful shutdown
	server := api.New(cfg, log, router)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
