package result

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// service defines the interface for archiving recorded results.
type service interface {
	ArchiveResult(ctx context.Context, ev model.ResultRecorded) (model.Archive, error)
}

// RecordedHandler handles Kafka messages announcing persisted results.
type RecordedHandler struct {
	service service
}

// NewRecordedHandler creates a new handler with the given service.
func NewRecordedHandler(s service) *RecordedHandler {
	return &RecordedHandler{service: s}
}

// Handle unmarshals a ResultRecorded event and archives its artifact.
func (h *RecordedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev model.ResultRecorded
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("unmarshal result event: %w", err)
	}

	if ev.ResultURL == "" {
		return fmt.Errorf("result event %s has no result_url", ev.ResultID)
	}

	a, err := h.service.ArchiveResult(ctx, ev)
	if err != nil {
		return fmt.Errorf("archive result %s: %w", ev.ResultID, err)
	}

	zlog.Logger.Info().
		Str("result_id", ev.ResultID.String()).
		Str("original_path", a.OriginalPath).
		Msg("result archived")

	return nil
}
