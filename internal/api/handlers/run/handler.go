package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/respond"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/middleware"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
	runrepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/run"
	runsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/run"
)

// service defines the interface for run-related operations.
type service interface {
	CreateRun(ctx context.Context, owner string, name *string) (model.Run, error)
	RenameRun(ctx context.Context, owner string, id uuid.UUID, name *string) error
	ListRuns(ctx context.Context, owner string) ([]model.RunWithResults, error)
	Attach(ctx context.Context, owner string, a model.Attachment) error
	Dispatch(ctx context.Context, owner string, runID uuid.UUID, items []model.GenerationItem) ([]model.Result, error)
	Submit(ctx context.Context, owner string, req runsvc.SubmitRequest) (model.RunWithResults, error)
}

// Handler provides HTTP handlers for generation runs.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// CreateRequest is the body of POST /api/runs.
type CreateRequest struct {
	Name *string `json:"name"`
}

// RenameRequest is the body of PATCH /api/runs/:id.
type RenameRequest struct {
	Name *string `json:"name"`
}

// AttachRequest is the body of POST /api/runs/:id/attachments.
type AttachRequest struct {
	PromptID uuid.UUID `json:"prompt_id"`
	ImageID  uuid.UUID `json:"image_id"`
}

// DispatchRequest is the body of POST /api/runs/:id/dispatch.
type DispatchRequest struct {
	Items []model.GenerationItem `json:"items"`
}

// DispatchResponse wraps the results of a dispatch.
type DispatchResponse struct {
	Results []model.Result `json:"results"`
}

// List returns the caller's runs with their results. Anonymous callers get an empty list.
func (h *Handler) List(c *ginext.Context) {
	runs, err := h.service.ListRuns(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		fail(c, "failed to list runs", err)
		return
	}

	respond.OK(c, runs)
}

// Create creates an empty run. The body is optional.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		zlog.Logger.Warn().Err(err).Msg("invalid create run request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	run, err := h.service.CreateRun(c.Request.Context(), middleware.Actor(c), req.Name)
	if err != nil {
		fail(c, "failed to create run", err)
		return
	}

	respond.Created(c, run)
}

// Rename sets the display name of a run.
func (h *Handler) Rename(c *ginext.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid rename request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.service.RenameRun(c.Request.Context(), middleware.Actor(c), id, req.Name); err != nil {
		fail(c, "failed to rename run", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Attach records one (prompt, image) pair used in a run.
func (h *Handler) Attach(c *ginext.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PromptID == uuid.Nil || req.ImageID == uuid.Nil {
		zlog.Logger.Warn().Err(err).Msg("invalid attach request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("prompt_id and image_id are required"))
		return
	}

	a := model.Attachment{RunID: id, PromptID: req.PromptID, ImageID: req.ImageID}
	if err := h.service.Attach(c.Request.Context(), middleware.Actor(c), a); err != nil {
		fail(c, "failed to attach image", err)
		return
	}

	respond.Created(c, a)
}

// Dispatch runs client-built generation items against an existing run.
func (h *Handler) Dispatch(c *ginext.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid dispatch request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	results, err := h.service.Dispatch(c.Request.Context(), middleware.Actor(c), id, req.Items)
	if err != nil {
		fail(c, "failed to dispatch run", err)
		return
	}

	respond.OK(c, DispatchResponse{Results: results})
}

// Submit creates a run from a whole batch and dispatches it.
func (h *Handler) Submit(c *ginext.Context) {
	var req runsvc.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid submit request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	run, err := h.service.Submit(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		fail(c, "failed to submit run", err)
		return
	}

	respond.Created(c, run)
}

func runID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse run id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}

// fail maps service errors to HTTP statuses.
func fail(c *ginext.Context, msg string, err error) {
	switch {
	case errors.Is(err, runsvc.ErrUnauthorized):
		respond.Fail(c, http.StatusUnauthorized, fmt.Errorf("not authenticated"))
	case errors.Is(err, runsvc.ErrInvalidInput):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, runrepo.ErrRunNotFound):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("run not found"))
	default:
		zlog.Logger.Err(err).Msg(msg)
		respond.Fail(c, http.StatusInternalServerError, errors.New(msg))
	}
}
