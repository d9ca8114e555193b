package cache

import (
	"context"
	"errors"

	"videometadata/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	cache   *Coordinator
	warmers []func(context.Context) error
	log     *logger.Logger
}

func NewHandler(coordinator *Coordinator, warmers ...func(context.Context) error) *Handler {
	return &Handler{cache: coordinator, warmers: warmers, log: logger.New("CacheHandler")}
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	report := h.cache.Health(c.Context())
	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}

func (h *Handler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.cache.Stats(c.Context())
	if err != nil {
		h.log.LogErrorf("cache stats failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to collect cache statistics"})
	}
	return c.JSON(fiber.Map{"namespaces": stats})
}

func (h *Handler) HandleClearAll(c *fiber.Ctx) error {
	if err := h.cache.ClearAll(c.Context()); err != nil {
		h.log.LogErrorf("cache clear failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear caches"})
	}
	return c.JSON(fiber.Map{"message": "All caches cleared"})
}

func (h *Handler) HandleClear(c *fiber.Ctx) error {
	name := c.Params("name")
	err := h.cache.Invalidate(c.Context(), name)
	if errors.Is(err, ErrUnknownNamespace) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown cache: " + name})
	}
	if err != nil {
		h.log.LogErrorf("cache clear %s failed: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear cache"})
	}
	return c.JSON(fiber.Map{"message": "Cache cleared: " + name})
}

func (h *Handler) HandleWarmUp(c *fiber.Ctx) error {
	h.cache.WarmUp(c.Context(), h.warmers...)
	return c.JSON(fiber.Map{"message": "Cache warm-up completed"})
}
