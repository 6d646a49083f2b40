package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Brownie44l1/leaf-api/internal/response"
)

// Health reports liveness plus whether every model loaded.
func (h *Handler) Health(c *fiber.Ctx) error {
	models := "ready"
	if err := h.classifier.Ready(); err != nil {
		models = err.Error()
	}
	return response.OK(c, fiber.Map{"status": "healthy", "models": models})
}
