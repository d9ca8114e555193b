package importer

import (
	"errors"

	"videometadata/internal/core/importjob"
	"videometadata/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	importer *Service
	jobs     *importjob.Service
	log      *logger.Logger
}

func NewHandler(importer *Service, jobs *importjob.Service) *Handler {
	return &Handler{importer: importer, jobs: jobs, log: logger.New("ImportHandler")}
}

type startImportRequest struct {
	Source    string   `json:"source"`
	VideoIDs  []string `json:"video_ids"`
	BatchSize int      `json:"batch_size"`
}

func (h *Handler) HandleStartImport(c *fiber.Ctx) error {
	var body startImportRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	job, err := h.importer.Submit(c.Context(), importjob.Request{
		Source:    body.Source,
		VideoIDs:  body.VideoIDs,
		BatchSize: body.BatchSize,
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
		}
		h.log.LogErrorf("failed to start import: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start import"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     job.JobID,
		"status":     job.Status,
		"message":    "Import job started",
		"created_at": job.CreatedAt,
	})
}

func (h *Handler) HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, err := h.jobs.Get(c.Context(), jobID)
	if errors.Is(err, importjob.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	if err != nil {
		h.log.LogErrorf("failed to load job %s: %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load job"})
	}
	return c.JSON(job)
}

func (h *Handler) HandleListJobs(c *fiber.Ctx) error {
	if days := c.QueryInt("days", 0); days > 0 {
		jobs, err := h.jobs.Recent(c.Context(), days)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list jobs"})
		}
		return c.JSON(jobs)
	}
	jobs, err := h.jobs.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list jobs"})
	}
	return c.JSON(jobs)
}

func (h *Handler) HandleJobsByStatus(c *fiber.Ctx) error {
	status, err := importjob.ParseStatus(c.Params("status"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	jobs, err := h.jobs.ListByStatus(c.Context(), status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list jobs"})
	}
	return c.JSON(jobs)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	err := h.jobs.Cancel(c.Context(), jobID)
	switch {
	case errors.Is(err, importjob.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	case errors.Is(err, importjob.ErrNotCancellable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "job cannot be cancelled"})
	case err != nil:
		h.log.LogErrorf("failed to cancel job %s: %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cancel job"})
	}
	return c.JSON(fiber.Map{"message": "Job cancelled successfully"})
}

func (h *Handler) HandleJobStats(c *fiber.Ctx) error {
	stats, err := h.jobs.Statistics(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load job statistics"})
	}
	return c.JSON(stats)
}
