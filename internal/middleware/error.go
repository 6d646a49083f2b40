package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/response"
)

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := response.CodeInternal
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
			switch status {
			case fiber.StatusBadRequest:
				code = response.CodeBadRequest
			case fiber.StatusUnauthorized:
				code = response.CodeUnauthorized
			case fiber.StatusForbidden:
				code = response.CodeForbidden
			case fiber.StatusNotFound:
				code = response.CodeNotFound
			case fiber.StatusConflict:
				code = response.CodeConflict
			case fiber.StatusRequestEntityTooLarge:
				code = response.CodeTooLarge
			}
		}

		if status >= 500 {
			log.Error().Err(err).Str("request_id", GetRequestID(c)).Msg("unhandled error")
		}
		return response.Error(c, status, code, message, nil)
	}
}
