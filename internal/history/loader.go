package history

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/pkg/models"
)

// Source fetches a session's messages from the backend.
type Source interface {
	SessionHistory(ctx context.Context, slug, sessionID string) ([]models.Message, error)
}

type Loader struct {
	src    Source
	logger *log.Logger
}

func NewLoader(src Source, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{src: src, logger: logger.With("component", "history")}
}

// Load returns the session's messages in server order. The returned slice is
// never nil; on failure it is empty and the error wraps models.ErrHistoryLoad.
func (l *Loader) Load(ctx context.Context, tool *models.Tool, sessionID string) ([]models.Message, error) {
	if sessionID == "" {
		return []models.Message{}, nil
	}

	msgs, err := l.src.SessionHistory(ctx, tool.Slug, sessionID)
	if err != nil {
		l.logger.Error("history load failed", "tool", tool.Slug, "session", sessionID, "err", err)
		return []models.Message{}, fmt.Errorf("%w: %s: %w", models.ErrHistoryLoad, tool.Slug, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	l.logger.Debug("history loaded", "tool", tool.Slug, "session", sessionID, "messages", len(msgs))
	return msgs, nil
}
