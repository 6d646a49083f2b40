package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/auth"
	"github.com/Brownie44l1/leaf-api/internal/response"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.accounts.Register(c.UserContext(), req)
	if err != nil {
		return accountError(c, err)
	}
	return response.Created(c, user)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	resp, err := h.accounts.Login(c.UserContext(), req)
	if err != nil {
		return accountError(c, err)
	}
	return response.OK(c, resp)
}

func accountError(c *fiber.Ctx, err error) error {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.Validation(c, verr.Fields)
	case errors.Is(err, auth.ErrUsernameTaken):
		return response.Conflict(c, "Username already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return response.Unauthorized(c, "Invalid username or password")
	default:
		log.Error().Err(err).Msg("account operation failed")
		return response.Internal(c)
	}
}
