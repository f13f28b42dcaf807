package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/matiasvera/talklens/internal/port"
)

// CatalogHandler exposes read-only channel and video listings.
type CatalogHandler struct {
	catalog port.Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog port.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Register sets up catalog routes.
func (h *CatalogHandler) Register(router fiber.Router) {
	router.Get("/channels", h.ListChannels)
	router.Get("/channels/:id/videos", h.ListChannelVideos)
	router.Get("/videos/:id", h.GetVideo)
}

// ListChannels returns all known channels.
func (h *CatalogHandler) ListChannels(c fiber.Ctx) error {
	channels, err := h.catalog.ListChannels(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"channels": channels})
}

// ListChannelVideos returns the videos of one channel, newest first.
func (h *CatalogHandler) ListChannelVideos(c fiber.Ctx) error {
	if _, err := h.catalog.GetChannel(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, port.ErrChannelNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	videos, err := h.catalog.ListVideosByChannel(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"videos": videos})
}

// GetVideo returns one video with its chunk count.
func (h *CatalogHandler) GetVideo(c fiber.Ctx) error {
	video, err := h.catalog.GetVideo(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, port.ErrVideoNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "video not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	chunks, err := h.catalog.CountChunks(c.Context(), video.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"video": video, "chunks": chunks})
}
