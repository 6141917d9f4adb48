package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/manash/splendid/internal/security"
)

type Saver struct {
	fetcher *Fetcher
	dir     string
}

// NewSaver writes outputs under dir, a path relative to the working
// directory. An empty dir saves into the working directory.
func NewSaver(fetcher *Fetcher, dir string) *Saver {
	if fetcher == nil {
		fetcher = NewFetcher(false)
	}
	return &Saver{fetcher: fetcher, dir: dir}
}

func (s *Saver) Fetcher() *Fetcher {
	return s.fetcher
}

// Save fetches ref and writes it to path. The extension is taken from the
// sniffed content when path has none.
func (s *Saver) Save(ctx context.Context, ref, path string) (string, error) {
	data, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyMedia
	}

	if filepath.Ext(path) == "" {
		path += Extension(data)
	}

	if err := s.ensureDir(path); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// SaveAll stores every output reference under the saver's directory, named
// after the tool slug. It stops at the first failure and returns the paths
// written so far.
func (s *Saver) SaveAll(ctx context.Context, slug string, refs []string) ([]string, error) {
	paths := make([]string, 0, len(refs))
	now := time.Now()

	for i, ref := range refs {
		path, err := security.OutputPath(s.dir, GenerateFilenameWithTime(slug, i, now))
		if err != nil {
			return paths, err
		}
		saved, err := s.Save(ctx, ref, path)
		if err != nil {
			return paths, fmt.Errorf("failed to save output %d: %w", i+1, err)
		}
		paths = append(paths, saved)
	}

	return paths, nil
}

func (s *Saver) ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GenerateFilename returns an extension-less name; Save appends the
// extension matching the downloaded content.
func GenerateFilename(slug string, index int) string {
	return GenerateFilenameWithTime(slug, index, time.Now())
}

func GenerateFilenameWithTime(slug string, index int, t time.Time) string {
	if slug == "" {
		slug = "output"
	}
	timestamp := t.Format("20060102-150405")
	if index > 0 {
		return fmt.Sprintf("%s-%s-%d", slug, timestamp, index+1)
	}
	return fmt.Sprintf("%s-%s", slug, timestamp)
}
