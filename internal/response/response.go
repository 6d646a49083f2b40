// Package response writes the JSON envelope every endpoint returns.
package response

import "github.com/gofiber/fiber/v2"

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeTooLarge         = "FILE_TOO_LARGE"
	CodeInvalidImage     = "INVALID_IMAGE"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeInference        = "INFERENCE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

func OK(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

func Error(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, Details: details},
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeBadRequest, message, nil)
}

func Validation(c *fiber.Ctx, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeValidation, "Validation failed", details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Unauthorized"
	}
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func Internal(c *fiber.Ctx) error {
	return Error(c, fiber.StatusInternalServerError, CodeInternal, "Internal server error", nil)
}
