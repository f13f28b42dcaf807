package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/matiasvera/talklens/internal/port"
	"github.com/matiasvera/talklens/internal/service"
)

// QueryHandler exposes the question-answering endpoint.
type QueryHandler struct {
	answers *service.AnswerService
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(answers *service.AnswerService) *QueryHandler {
	return &QueryHandler{answers: answers}
}

// Register sets up query routes.
func (h *QueryHandler) Register(router fiber.Router) {
	router.Post("/query", h.Query)
}

// Query answers a free-text question from indexed transcripts.
func (h *QueryHandler) Query(c fiber.Ctx) error {
	var body struct {
		Question  string `json:"question"`
		ChannelID string `json:"channel_id"`
		From      string `json:"from"` // YYYY-MM-DD, inclusive
		To        string `json:"to"`
		TopK      int    `json:"top_k"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}

	filters := port.IndexFilters{ChannelID: body.ChannelID}
	if body.From != "" {
		t, err := time.Parse("2006-01-02", body.From)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid from date, want YYYY-MM-DD"})
		}
		filters.From = t
	}
	if body.To != "" {
		t, err := time.Parse("2006-01-02", body.To)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid to date, want YYYY-MM-DD"})
		}
		filters.To = t
	}

	answer, err := h.answers.Ask(c.Context(), body.Question, filters, body.TopK)
	if err != nil {
		// Mixing embedding spaces would make any answer misleading, so
		// this surfaces instead of degrading.
		if errors.Is(err, port.ErrEmbeddingVersionMismatch) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(answer)
}
