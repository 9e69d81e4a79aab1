package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/respond"
	uploadsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/upload"
)

// service defines the interface for storing uploaded images.
type service interface {
	Upload(ctx context.Context, req uploadsvc.Request) (uploadsvc.Upload, error)
}

// Handler provides the HTTP handler for image uploads.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Upload stores an image given as a URL or a base64 data URL and returns its public URL.
func (h *Handler) Upload(c *ginext.Context) {
	var req uploadsvc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid upload request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	up, err := h.service.Upload(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, uploadsvc.ErrInvalidInput) {
			zlog.Logger.Warn().Err(err).Msg("rejected upload")
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		zlog.Logger.Err(err).Msg("failed to upload image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("upload failed"))
		return
	}

	zlog.Logger.Info().Str("path", up.Path).Msg("image uploaded")

	respond.OK(c, up)
}
