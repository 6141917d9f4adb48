package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrExchangeNotFound = errors.New("exchange not found")

// Journal records every generate round-trip locally so the CLI can show
// recent work and spend without asking the backend.
type Journal struct {
	store *Store
	now   func() time.Time
}

func NewJournal(store *Store) *Journal {
	return &Journal{store: store, now: time.Now}
}

func (j *Journal) Store() *Store {
	return j.store
}

// Record assigns an id and timestamp when missing and persists the exchange.
func (j *Journal) Record(ctx context.Context, ex *Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = j.now()
	}
	if ex.Status == "" {
		ex.Status = StatusSucceeded
	}
	if err := j.store.CreateExchange(ctx, ex); err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Charge records credits spent on a journaled exchange.
func (j *Journal) Charge(ctx context.Context, ex *Exchange, modelKey string, credits, units float64) error {
	if credits <= 0 {
		return nil
	}
	return j.store.LogCredits(ctx, &CreditEntry{
		ExchangeID: ex.ID,
		ToolSlug:   ex.ToolSlug,
		ModelKey:   modelKey,
		Credits:    credits,
		Units:      units,
		Timestamp:  j.now(),
	})
}

func (j *Journal) Get(ctx context.Context, id string) (*Exchange, error) {
	ex, err := j.store.GetExchange(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeNotFound, err)
	}
	return ex, nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]*Exchange, error) {
	return j.store.ListExchanges(ctx, "", limit)
}

func (j *Journal) ForTool(ctx context.Context, slug string, limit int) ([]*Exchange, error) {
	return j.store.ListExchanges(ctx, slug, limit)
}

func (j *Journal) Delete(ctx context.Context, id string) error {
	if _, err := j.Get(ctx, id); err != nil {
		return err
	}
	return j.store.DeleteExchange(ctx, id)
}

// Today sums credits logged since local midnight.
func (j *Journal) Today(ctx context.Context) (*CreditSummary, error) {
	now := j.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return j.store.CreditsByDateRange(ctx, start, start.AddDate(0, 0, 1))
}

func (j *Journal) ByTool(ctx context.Context) ([]ToolCreditSummary, error) {
	return j.store.CreditsByTool(ctx)
}

func (j *Journal) Total(ctx context.Context) (*CreditSummary, error) {
	return j.store.TotalCredits(ctx)
}

func (j *Journal) Close() error {
	return j.store.Close()
}
