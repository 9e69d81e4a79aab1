package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/respond"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/middleware"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
	catalogrepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/catalog"
	catalogsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/catalog"
)

// service defines the interface for prompt and image operations.
type service interface {
	CreatePrompt(ctx context.Context, owner, text, aspectRatio string, outputType model.OutputType) (model.Prompt, error)
	ListPrompts(ctx context.Context, owner string) ([]model.Prompt, error)
	DeletePrompt(ctx context.Context, owner string, id uuid.UUID) error
	SaveImage(ctx context.Context, owner, url, source string, sourceRef *string) (model.Image, error)
	ListImages(ctx context.Context, owner string) ([]model.Image, error)
	DeleteImage(ctx context.Context, owner string, id uuid.UUID) error
}

// Handler provides HTTP handlers for the prompt and reference image catalog.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// PromptRequest is the body of POST /api/prompts.
type PromptRequest struct {
	Prompt      string           `json:"prompt"`
	AspectRatio string           `json:"aspect_ratio"`
	OutputType  model.OutputType `json:"output_type"`
}

// ImageRequest is the body of POST /api/images.
type ImageRequest struct {
	ImageURL  string  `json:"image_url"`
	Source    string  `json:"source"`
	SourceRef *string `json:"source_ref"`
}

func (h *Handler) ListPrompts(c *ginext.Context) {
	prompts, err := h.service.ListPrompts(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		fail(c, "failed to list prompts", err)
		return
	}

	respond.OK(c, prompts)
}

func (h *Handler) CreatePrompt(c *ginext.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid prompt request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	p, err := h.service.CreatePrompt(c.Request.Context(), middleware.Actor(c), req.Prompt, req.AspectRatio, req.OutputType)
	if err != nil {
		fail(c, "failed to create prompt", err)
		return
	}

	respond.Created(c, p)
}

func (h *Handler) DeletePrompt(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeletePrompt(c.Request.Context(), middleware.Actor(c), id); err != nil {
		fail(c, "failed to delete prompt", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListImages(c *ginext.Context) {
	images, err := h.service.ListImages(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		fail(c, "failed to list images", err)
		return
	}

	respond.OK(c, images)
}

func (h *Handler) SaveImage(c *ginext.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid image request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	img, err := h.service.SaveImage(c.Request.Context(), middleware.Actor(c), req.ImageURL, req.Source, req.SourceRef)
	if err != nil {
		fail(c, "failed to save image", err)
		return
	}

	respond.Created(c, img)
}

func (h *Handler) DeleteImage(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteImage(c.Request.Context(), middleware.Actor(c), id); err != nil {
		fail(c, "failed to delete image", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}

func fail(c *ginext.Context, msg string, err error) {
	switch {
	case errors.Is(err, catalogsvc.ErrUnauthorized):
		respond.Fail(c, http.StatusUnauthorized, fmt.Errorf("not authenticated"))
	case errors.Is(err, catalogsvc.ErrInvalidInput):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, catalogrepo.ErrPromptNotFound), errors.Is(err, catalogrepo.ErrImageNotFound):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c, http.StatusNotFound, err)
	default:
		zlog.Logger.Err(err).Msg(msg)
		respond.Fail(c, http.StatusInternalServerError, errors.New(msg))
	}
}
