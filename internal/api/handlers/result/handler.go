package result

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
	archiverepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/archive"
	archivesvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/archive"
)

// service defines the interface for reading archived results.
type service interface {
	Thumbnail(ctx context.Context, owner string, resultID uuid.UUID) (io.ReadCloser, error)
}

// Handler provides HTTP handlers for archived result artifacts.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Thumbnail serves the archived JPEG thumbnail of one of the caller's results.
func (h *Handler) Thumbnail(c *ginext.Context) {
	owner := middleware.Actor(c)
	if owner == "" {
		respond.Fail(c, http.StatusUnauthorized, fmt.Errorf("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse result id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	reader, err := h.service.Thumbnail(c.Request.Context(), owner, id)
	if err != nil {
		if errors.Is(err, archiverepo.ErrArchiveNotFound) || errors.Is(err, archivesvc.ErrThumbnailNotFound) {
			zlog.Logger.Warn().Str("result_id", id.String()).Msg("thumbnail not found")
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("thumbnail not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to load thumbnail")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to load thumbnail"))
		return
	}
	defer reader.Close()

	c.Header("Cache-Control", "private, max-age=86400")

	respond.JPEG(c, http.StatusOK, reader)
}
