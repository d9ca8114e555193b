package server

import (
	"videometadata/internal/core/cache"
	"videometadata/internal/core/importer"
	"videometadata/internal/core/importjob"
	"videometadata/internal/core/video"
	"videometadata/internal/health"
	"videometadata/internal/platform/postgres"
	rds "videometadata/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Dependencies struct {
	Importer *importer.Service
	Jobs     *importjob.Service
	Videos   *video.Service
	Cache    *cache.Coordinator
	Redis    *rds.Service
	DB       *gorm.DB
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.Handler {
	healthHandler := health.NewHandler(map[string]health.Check{
		"redis":    d.Redis.HealthCheck,
		"postgres": postgres.HealthCheck(d.DB),
	})
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	importHandler := importer.NewHandler(d.Importer, d.Jobs)
	api.Post("/videos/import/async", importHandler.HandleStartImport)
	api.Get("/videos/import/jobs", importHandler.HandleListJobs)
	api.Get("/videos/import/jobs/stats", importHandler.HandleJobStats)
	api.Get("/videos/import/jobs/status/:status", importHandler.HandleJobsByStatus)
	api.Get("/videos/import/jobs/:jobId", importHandler.HandleGetJob)
	api.Delete("/videos/import/jobs/:jobId", importHandler.HandleCancelJob)

	videoHandler := video.NewHandler(d.Videos)
	api.Get("/videos", videoHandler.HandleListVideos)
	api.Get("/videos/stats", videoHandler.HandleStats)
	api.Get("/videos/:videoId", videoHandler.HandleGetVideo)

	cacheHandler := cache.NewHandler(d.Cache, d.Videos.WarmUpStatistics)
	api.Get("/cache/health", cacheHandler.HandleHealth)
	api.Get("/cache/stats", cacheHandler.HandleStats)
	api.Post("/cache/clear", cacheHandler.HandleClearAll)
	api.Post("/cache/clear/:name", cacheHandler.HandleClear)
	api.Post("/cache/warmup", cacheHandler.HandleWarmUp)

	return healthHandler
}
