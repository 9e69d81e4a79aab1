package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

const (
	resultsDir      = "results"
	maxArtifactSize = 100 << 20
)

var (
	ErrThumbnailNotFound = errors.New("thumbnail not found")
	ErrArtifactTooLarge  = errors.New("artifact too large")
)

// fileStorage defines the interface for the artifact bucket.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, contentType string) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// thumbnailer renders and stores a thumbnail, returning its path.
type thumbnailer interface {
	Thumbnail(ctx context.Context, src io.Reader, filename string) (string, error)
}

// repository defines the interface for archive records.
type repository interface {
	SaveArchive(ctx context.Context, a model.Archive) error
	GetArchive(ctx context.Context, owner string, resultID uuid.UUID) (model.Archive, error)
}

// Service copies result artifacts from the provider into the bucket.
type Service struct {
	fileStorage fileStorage
	thumbnailer thumbnailer
	repo        repository
	httpClient  *http.Client
	maxSize     int64
}

// NewService creates a new Service. fetchTimeout bounds one artifact download.
func NewService(fs fileStorage, t thumbnailer, r repository, fetchTimeout time.Duration) *Service {
	return &Service{
		fileStorage: fs,
		thumbnailer: t,
		repo:        r,
		httpClient:  &http.Client{Timeout: fetchTimeout},
		maxSize:     maxArtifactSize,
	}
}

// ArchiveResult downloads the artifact of a recorded result, stores the original
// under results/<run_id>/<result_id> and, for images, a thumbnail. A thumbnail
// that cannot be rendered leaves the archive without one.
func (s *Service) ArchiveResult(ctx context.Context, ev model.ResultRecorded) (model.Archive, error) {
	data, contentType, err := s.download(ctx, ev.ResultURL)
	if err != nil {
		return model.Archive{}, fmt.Errorf("archive: %w", err)
	}

	original, err := s.fileStorage.Save(ctx, resultsDir+"/"+ev.RunID.String(), ev.ResultID.String(), bytes.NewReader(data), contentType)
	if err != nil {
		return model.Archive{}, fmt.Errorf("archive: failed to save original: %w", err)
	}

	a := model.Archive{
		ResultID:     ev.ResultID,
		Owner:        ev.Owner,
		OriginalPath: original,
	}

	if ev.OutputType == model.OutputImage {
		thumb, err := s.thumbnailer.Thumbnail(ctx, bytes.NewReader(data), ev.ResultID.String()+".jpg")
		if err != nil {
			zlog.Logger.Warn().
				Err(err).
				Str("result_id", ev.ResultID.String()).
				Msg("failed to render thumbnail")
		} else {
			a.ThumbnailPath = &thumb
		}
	}

	if err := s.repo.SaveArchive(ctx, a); err != nil {
		s.discard(ctx, a)
		return model.Archive{}, fmt.Errorf("archive: %w", err)
	}

	return a, nil
}

// discard removes the objects of an archive that could not be recorded.
func (s *Service) discard(ctx context.Context, a model.Archive) {
	paths := []string{a.OriginalPath}
	if a.ThumbnailPath != nil {
		paths = append(paths, *a.ThumbnailPath)
	}

	for _, p := range paths {
		if err := s.fileStorage.Delete(ctx, p); err != nil {
			zlog.Logger.Warn().Err(err).Str("path", p).Msg("failed to remove orphaned object")
		}
	}
}

// Thumbnail opens the archived thumbnail of the owner's result.
func (s *Service) Thumbnail(ctx context.Context, owner string, resultID uuid.UUID) (io.ReadCloser, error) {
	a, err := s.repo.GetArchive(ctx, owner, resultID)
	if err != nil {
		return nil, err
	}
	if a.ThumbnailPath == nil {
		return nil, ErrThumbnailNotFound
	}

	return s.fileStorage.Load(ctx, *a.ThumbnailPath)
}

func (s *Service) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid artifact url: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to download artifact: status %d", resp.StatusCode)
	}

	// The extra byte marks an oversize body.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, "", fmt.Errorf("%w: exceeds %d bytes", ErrArtifactTooLarge, s.maxSize)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
