package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	PostgresDSN   string
	SourcesFile   string

	// Import pipeline knobs
	BatchConcurrency int
	DefaultBatchSize int

	// Reconciliation
	StuckJobThreshold time.Duration
	JobRetentionDays  int
	StuckSweepSpec    string
	CleanupSpec       string

	// Asynq worker
	WorkerConcurrency int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		PostgresDSN:   getenv("POSTGRES_DSN", "host=127.0.0.1 port=5432 user=videometa password=videometa dbname=videometa sslmode=disable"),
		SourcesFile:   getenv("SOURCES_FILE", ""),

		BatchConcurrency: getenvInt("BATCH_CONCURRENCY", 2),
		DefaultBatchSize: getenvInt("DEFAULT_BATCH_SIZE", 10),

		StuckJobThreshold: time.Duration(getenvInt("STUCK_JOB_THRESHOLD_HOURS", 2)) * time.Hour,
		JobRetentionDays:  getenvInt("JOB_RETENTION_DAYS", 30),
		StuckSweepSpec:    getenv("STUCK_SWEEP_CRON", "*/30 * * * *"),
		CleanupSpec:       getenv("CLEANUP_CRON", "0 2 * * *"),

		WorkerConcurrency: getenvInt("WORKER_CONCURRENCY", 10),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return cfg
}
