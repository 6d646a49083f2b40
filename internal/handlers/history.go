package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/history"
	"github.com/Brownie44l1/leaf-api/internal/middleware"
	"github.com/Brownie44l1/leaf-api/internal/response"
	"github.com/Brownie44l1/leaf-api/internal/taxonomy"
)

type HistoryDetail struct {
	*history.Entry
	Disease *taxonomy.Disease `json:"disease,omitempty"`
}

// ListHistory supports ?q=, ?sort_by= and ?order=.
func (h *Handler) ListHistory(c *fiber.Ctx) error {
	user, ok := middleware.User(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	entries, err := h.history.List(c.UserContext(), user.ID, history.ListQuery{
		Search: c.Query("q"),
		SortBy: c.Query("sort_by", "created_at"),
		Order:  c.Query("order", "desc"),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to list history")
		return response.Internal(c)
	}
	return response.OK(c, entries)
}

func (h *Handler) GetHistory(c *fiber.Ctx) error {
	user, ok := middleware.User(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid history id")
	}

	entry, err := h.history.Detail(c.UserContext(), user.ID, id)
	if err != nil {
		return historyError(c, err)
	}

	detail := HistoryDetail{Entry: entry}
	if d, ok := h.diseases.ByName(entry.Prediction); ok {
		detail.Disease = &d
	}
	return response.OK(c, detail)
}

func (h *Handler) DeleteHistory(c *fiber.Ctx) error {
	user, ok := middleware.User(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid history id")
	}

	if err := h.history.Delete(c.UserContext(), user.ID, id); err != nil {
		return historyError(c, err)
	}
	return response.OK(c, fiber.Map{"id": id, "deleted": true})
}

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	user, ok := middleware.User(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	d, err := h.history.Dashboard(c.UserContext(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to build dashboard")
		return response.Internal(c)
	}
	return response.OK(c, d)
}

func historyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, history.ErrNotFound) {
		return response.NotFound(c, "History record not found")
	}
	log.Error().Err(err).Msg("history operation failed")
	return response.Internal(c)
}
