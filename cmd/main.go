package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"videometadata/internal/config"
	"videometadata/internal/core/cache"
	"videometadata/internal/core/importer"
	"videometadata/internal/core/importjob"
	"videometadata/internal/core/source"
	"videometadata/internal/core/video"
	"videometadata/internal/logger"
	"videometadata/internal/platform/postgres"
	rds "videometadata/internal/platform/redis"
	tasks "videometadata/internal/platform/tasks"
	"videometadata/internal/server"
	"videometadata/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Printf("[videometadata] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Postgres
	db, err := postgres.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&video.Video{}, &importjob.Job{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Source registry from configuration
	srcCfg, err := source.LoadFile(cfg.SourcesFile)
	if err != nil {
		log.Fatal(err)
	}
	registry := source.BuildRegistry(srcCfg)

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	defer taskClient.Close()
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{tasks.QueueImports: 1},
	})

	// Core services
	cacheSvc := cache.New(redisSvc)
	videoRepo := video.NewGormRepository(db)
	jobStore := importjob.NewGormStore(db)
	jobSvc := importjob.NewService(jobStore, cacheSvc, cfg.StuckJobThreshold, cfg.JobRetentionDays)
	videoSvc := video.NewService(videoRepo, cacheSvc, registry)
	importSvc := importer.NewService(jobStore, videoRepo, registry, cacheSvc, taskClient,
		cfg.BatchConcurrency, cfg.DefaultBatchSize)

	// Reconciliation scheduler
	scheduler, err := importjob.NewScheduler(jobSvc, cfg.StuckSweepSpec, cfg.CleanupSpec)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	scheduler.Start()

	// Worker mux
	mux := worker.NewMux()
	mux.Handle(importer.TaskTypeImport, importSvc.HandleImportTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Video Metadata Service",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Importer: importSvc,
		Jobs:     jobSvc,
		Videos:   videoSvc,
		Cache:    cacheSvc,
		Redis:    redisSvc,
		DB:       db,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	go func() {
		time.Sleep(2 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		scheduler.Stop()
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
