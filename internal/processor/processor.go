package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const thumbnailDir = "thumbnails"

// fileStorage defines the interface for file storage.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, contentType string) (string, error)
}

// Processor renders preview thumbnails of generated images.
type Processor struct {
	fileStorage fileStorage
	width       int
	height      int
}

// New creates a new Processor that fits thumbnails into width x height.
func New(fs fileStorage, width, height int) *Processor {
	return &Processor{fileStorage: fs, width: width, height: height}
}

// Thumbnail decodes the image read from src, scales it down to fit the
// configured box and stores it as a JPEG under thumbnails/filename.
// Returns the object path of the thumbnail.
func (p *Processor) Thumbnail(ctx context.Context, src io.Reader, filename string) (string, error) {
	// Decode into an image object, honoring EXIF orientation.
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, p.width, p.height, imaging.Lanczos)

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	dst, err := p.fileStorage.Save(ctx, thumbnailDir, filename, buf, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return dst, nil
}
