package video

import (
	"errors"
	"time"

	"videometadata/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.New("VideoHandler")}
}

func (h *Handler) HandleListVideos(c *fiber.Ctx) error {
	f := Filter{
		Source: c.Query("source"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("upload_date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid upload_date_from"})
		}
		f.UploadDateFrom = &t
	}
	if v := c.Query("upload_date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid upload_date_to"})
		}
		f.UploadDateTo = &t
	}
	if v := c.QueryInt("min_duration", -1); v >= 0 {
		f.MinDuration = &v
	}
	if v := c.QueryInt("max_duration", -1); v >= 0 {
		f.MaxDuration = &v
	}

	videos, total, err := h.service.Find(c.Context(), f)
	if err != nil {
		h.log.LogErrorf("failed to list videos: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list videos"})
	}
	return c.JSON(fiber.Map{
		"videos": videos,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (h *Handler) HandleGetVideo(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	v, err := h.service.FindByVideoID(c.Context(), videoID)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "video not found"})
	}
	if err != nil {
		h.log.LogErrorf("failed to load video %s: %v", videoID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load video"})
	}
	return c.JSON(v)
}

func (h *Handler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.service.Statistics(c.Context())
	if err != nil {
		h.log.LogErrorf("failed to compute statistics: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute statistics"})
	}
	return c.JSON(stats)
}
