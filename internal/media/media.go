package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/manash/splendid/pkg/models"
)

const DefaultMaxBytes int64 = 50 << 20

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("media exceeds size limit")
	ErrEmptyMedia       = errors.New("media file is empty")
)

// Load reads a local file into a pending attachment. The MIME type is sniffed
// from the content, not taken from the extension.
func Load(path string, maxBytes int64) (*models.UploadedMedia, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data)
}

func FromBytes(name string, data []byte) (*models.UploadedMedia, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMedia
	}
	mime := DetectMIME(data)
	if !strings.HasPrefix(mime, "image/") && !strings.HasPrefix(mime, "video/") {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedMedia, name, mime)
	}
	return models.NewUploadedMedia(name, mime, data), nil
}

// DetectMIME returns the sniffed MIME type without parameters.
func DetectMIME(data []byte) string {
	mime, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mime)
}

// Extension returns the file extension, dot included, for sniffed content.
func Extension(data []byte) string {
	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		return ".bin"
	}
	return ext
}
