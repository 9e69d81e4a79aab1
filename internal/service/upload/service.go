package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	uploadDir          = "generations"
	defaultContentType = "image/png"
	maxUploadSize      = 20 << 20
)

var (
	ErrInvalidInput = errors.New("invalid input")

	dataURLPattern = regexp.MustCompile(`^data:(.+);base64,(.+)$`)
)

// fileStorage defines the interface for storing uploaded files.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, contentType string) (string, error)
	PublicURL(path string) string
}

// Request carries either a URL to fetch or a base64 data URL.
type Request struct {
	URL      string `json:"url"`
	Base64   string `json:"base64"`
	Filename string `json:"filename"`
}

// Upload describes a stored file.
type Upload struct {
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
}

// Service stores reference images in the bucket and returns their public URLs.
type Service struct {
	fileStorage fileStorage
	httpClient  *http.Client
	maxSize     int64
}

// NewService creates a new Service. fetchTimeout bounds downloads of URL uploads.
func NewService(fs fileStorage, fetchTimeout time.Duration) *Service {
	return &Service{
		fileStorage: fs,
		httpClient:  &http.Client{Timeout: fetchTimeout},
		maxSize:     maxUploadSize,
	}
}

// Upload stores the image described by req under generations/.
func (s *Service) Upload(ctx context.Context, req Request) (Upload, error) {
	var (
		data        []byte
		contentType string
		err         error
	)

	switch {
	case req.URL != "":
		data, contentType, err = s.fetch(ctx, req.URL)
	case req.Base64 != "":
		data, contentType, err = decodeDataURL(req.Base64)
	default:
		return Upload{}, fmt.Errorf("%w: provide either url or base64", ErrInvalidInput)
	}
	if err != nil {
		return Upload{}, err
	}
	if int64(len(data)) > s.maxSize {
		return Upload{}, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, s.maxSize)
	}

	dst, err := s.fileStorage.Save(ctx, uploadDir, filename(req.Filename), bytes.NewReader(data), contentType)
	if err != nil {
		return Upload{}, fmt.Errorf("upload: %w", err)
	}

	return Upload{Path: dst, PublicURL: s.fileStorage.PublicURL(dst)}, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid url", ErrInvalidInput)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to fetch image from url: %v", ErrInvalidInput, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: failed to fetch image from url: status %d", ErrInvalidInput, resp.StatusCode)
	}

	// The extra byte marks an oversize body.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("upload: failed to read image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return data, contentType, nil
}

func decodeDataURL(s string) ([]byte, string, error) {
	m := dataURLPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, "", fmt.Errorf("%w: invalid base64 format", ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64 data", ErrInvalidInput)
	}

	return data, m[1], nil
}

// filename keeps only the base name of the requested file, or picks a random one.
func filename(requested string) string {
	name := path.Base(strings.TrimSpace(requested))
	if name == "" || name == "." || name == "/" {
		return uuid.NewString() + ".png"
	}
	return name
}
