package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Brownie44l1/leaf-api/internal/response"
)

func (h *Handler) ListDiseases(c *fiber.Ctx) error {
	return response.OK(c, h.diseases.All())
}

func (h *Handler) GetDisease(c *fiber.Ctx) error {
	d, ok := h.diseases.BySlug(c.Params("slug"))
	if !ok {
		return response.NotFound(c, "Disease not found")
	}
	return response.OK(c, d)
}
