package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/auth"
	"github.com/Brownie44l1/leaf-api/internal/response"
)

const userKey = "user"

type TokenValidator interface {
	Validate(token string) (*auth.Principal, error)
}

// Protected rejects requests without a valid bearer token and stores the
// principal in locals.
func Protected(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		p, err := tokens.Validate(header)
		if err != nil {
			log.Debug().Err(err).Str("request_id", GetRequestID(c)).Msg("token rejected")
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				return response.Unauthorized(c, "Token has expired")
			case errors.Is(err, auth.ErrMissingToken):
				return response.Unauthorized(c, "Missing token")
			default:
				return response.Unauthorized(c, "Invalid token")
			}
		}

		c.Locals(userKey, p)
		return c.Next()
	}
}

// User returns the principal set by Protected.
func User(c *fiber.Ctx) (*auth.Principal, bool) {
	p, ok := c.Locals(userKey).(*auth.Principal)
	return p, ok && p != nil
}
