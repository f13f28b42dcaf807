package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/matiasvera/talklens/internal/service"
)

// IngestHandler exposes batch ingestion endpoints.
type IngestHandler struct {
	ingest  *service.IngestService
	tracker *JobTracker
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ingest *service.IngestService, tracker *JobTracker) *IngestHandler {
	return &IngestHandler{ingest: ingest, tracker: tracker}
}

// Register sets up ingestion routes.
func (h *IngestHandler) Register(router fiber.Router) {
	router.Post("/ingest", h.Start)
	router.Get("/ingest/jobs/:id", h.JobStatus)
}

// Start launches a background ingestion batch for explicit video ids, a
// whole channel, or both, and returns a job id to poll.
func (h *IngestHandler) Start(c fiber.Ctx) error {
	var body struct {
		VideoIDs   []string `json:"video_ids"`
		ChannelURL string   `json:"channel_url"`
		Force      bool     `json:"force"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	videoIDs := body.VideoIDs
	if body.ChannelURL != "" {
		ids, err := h.ingest.ResolveChannel(c.Context(), body.ChannelURL)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		videoIDs = append(videoIDs, ids...)
	}
	if len(videoIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "video_ids or channel_url is required"})
	}

	jobID := uuid.NewString()
	h.tracker.CreateJob(jobID, len(videoIDs))

	// Ingestion runs detached from the request; the request context dies
	// with the response.
	go func() {
		ctx := context.Background()
		h.ingest.IngestBatch(ctx, videoIDs, body.Force, func(res service.IngestResult) {
			h.tracker.RecordResult(jobID, res)
		})
		h.tracker.CompleteJob(jobID)
		slog.Info("ingestion job finished", "job_id", jobID, "videos", len(videoIDs))
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": jobID,
		"total":  len(videoIDs),
	})
}

// JobStatus reports the progress of a batch ingestion job.
func (h *IngestHandler) JobStatus(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}
