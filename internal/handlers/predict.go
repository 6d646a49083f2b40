package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/analysis"
	"github.com/Brownie44l1/leaf-api/internal/middleware"
	"github.com/Brownie44l1/leaf-api/internal/pipeline"
	"github.com/Brownie44l1/leaf-api/internal/response"
	"github.com/Brownie44l1/leaf-api/internal/storage"
	"github.com/Brownie44l1/leaf-api/internal/verdict"
)

type PredictResponse struct {
	Status    verdict.Status    `json:"status"`
	Message   string            `json:"message,omitempty"`
	ID        *uuid.UUID        `json:"id,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	ImageURL  string            `json:"image_url,omitempty"`
	Analysis  *analysis.Result  `json:"analysis,omitempty"`
	Feedback  *verdict.Feedback `json:"feedback,omitempty"`
	Slug      string            `json:"slug,omitempty"`
	LocalName string            `json:"local_name,omitempty"`
}

// Predict classifies an uploaded leaf photo from the multipart field "file".
// Only successful predictions are kept in history; rejected uploads are removed.
func (h *Handler) Predict(c *fiber.Ctx) error {
	user, ok := middleware.User(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "No image file provided. Use 'file' as the form field name")
	}
	if header.Size > h.maxUploadSize {
		return response.Error(c, fiber.StatusRequestEntityTooLarge, response.CodeTooLarge,
			fmt.Sprintf("File exceeds the %d MB limit", h.maxUploadSize>>20), nil)
	}

	key, contentType, err := storage.UploadName(header.Filename, h.now())
	if err != nil {
		return response.BadRequest(c, "Unsupported file type. Allowed: png, jpg, jpeg, gif")
	}

	file, err := header.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}

	log.Info().
		Str("request_id", middleware.GetRequestID(c)).
		Str("filename", header.Filename).
		Int("bytes", len(data)).
		Msg("received upload")

	ctx := c.UserContext()
	key, err = h.images.Save(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		log.Error().Err(err).Msg("failed to store upload")
		return response.Internal(c)
	}

	v, err := h.classifier.Classify(ctx, data)
	if err != nil {
		h.discard(ctx, key)
		return classifyError(c, err)
	}

	resp := PredictResponse{Status: v.Status, Filename: header.Filename}
	switch v.Status {
	case verdict.StatusNotALeaf:
		h.discard(ctx, key)
		resp.Message = v.Message
		return response.OK(c, resp)

	case verdict.StatusUncertain:
		resp.Message = v.Message
		resp.ImageURL = h.images.URL(key)
		resp.Analysis = v.Analysis
		return response.OK(c, resp)
	}

	rec, err := h.history.Save(ctx, user.ID, header.Filename, key, v)
	if err != nil {
		log.Error().Err(err).Msg("failed to save prediction history")
		h.discard(ctx, key)
		return response.Internal(c)
	}

	resp.ID = &rec.ID
	resp.ImageURL = h.images.URL(key)
	resp.Analysis = v.Analysis
	resp.Feedback = v.Feedback
	if d, ok := h.diseases.ByName(v.Analysis.Top.Name); ok {
		resp.Slug = d.Slug
		resp.LocalName = d.LocalName
	}
	return response.OK(c, resp)
}

func (h *Handler) discard(ctx context.Context, key string) {
	if err := h.images.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to remove upload")
	}
}

func classifyError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrDecode):
		return response.Error(c, fiber.StatusBadRequest, response.CodeInvalidImage,
			"Invalid image format. Supported: JPEG, PNG, GIF", nil)
	case errors.Is(err, pipeline.ErrModelUnavailable):
		return response.Error(c, fiber.StatusServiceUnavailable, response.CodeModelUnavailable,
			"Prediction models are not available", nil)
	case errors.Is(err, pipeline.ErrInference):
		log.Error().Err(err).Msg("inference failed")
		return response.Error(c, fiber.StatusInternalServerError, response.CodeInference,
			"Prediction failed", nil)
	default:
		log.Error().Err(err).Msg("classify failed")
		return response.Internal(c)
	}
}
