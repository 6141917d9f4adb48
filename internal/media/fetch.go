package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/manash/splendid/internal/security"
	"github.com/manash/splendid/pkg/models"
)

// MaxDownloadBytes caps a single remote output. Generated videos are the
// largest thing the backend hands out.
const MaxDownloadBytes int64 = 512 << 20

// Fetcher resolves a generated output reference, either an inline data URL
// or a remote https URL, into bytes.
type Fetcher struct {
	httpClient *http.Client
	strict     bool
	maxBytes   int64
}

func NewFetcher(strict bool) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		strict:   strict,
		maxBytes: MaxDownloadBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := security.ValidateMediaURL(ref, f.strict); err != nil {
		return nil, fmt.Errorf("refusing to fetch media: %w", err)
	}

	if models.IsDataURL(ref) {
		_, data, err := models.ParseDataURL(ref)
		return data, err
	}

	return f.download(ctx, ref)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, url, resp.ContentLength, f.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, f.maxBytes)
	}
	return data, nil
}
