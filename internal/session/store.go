package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
    id TEXT PRIMARY KEY,
    tool_id INTEGER NOT NULL,
    tool_slug TEXT NOT NULL,
    session_id TEXT NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    outputs_json TEXT,
    error TEXT,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS credit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    exchange_id TEXT NOT NULL,
    tool_slug TEXT NOT NULL,
    model_key TEXT NOT NULL,
    credits REAL NOT NULL,
    units REAL NOT NULL DEFAULT 1,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (exchange_id) REFERENCES exchanges(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_exchanges_tool_slug ON exchanges(tool_slug);
CREATE INDEX IF NOT EXISTS idx_exchanges_timestamp ON exchanges(timestamp);
CREATE INDEX IF NOT EXISTS idx_credit_log_timestamp ON credit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_credit_log_tool_slug ON credit_log(tool_slug);
`

// Store is the local sqlite journal of generations and credit charges.
type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".splendid", "journal.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const exchangeColumns = `id, tool_id, tool_slug, session_id, prompt, status, outputs_json, error, timestamp, metadata_json`

func (s *Store) CreateExchange(ctx context.Context, ex *Exchange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (`+exchangeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.ToolID, ex.ToolSlug, ex.SessionID, ex.Prompt, string(ex.Status),
		nullString(encodeOutputs(ex.Outputs)), nullString(ex.Error), ex.Timestamp, ex.Metadata.ToJSON())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(row scanner) (*Exchange, error) {
	ex := &Exchange{}
	var status string
	var outputs, errMsg, metadataJSON sql.NullString
	err := row.Scan(&ex.ID, &ex.ToolID, &ex.ToolSlug, &ex.SessionID, &ex.Prompt, &status,
		&outputs, &errMsg, &ex.Timestamp, &metadataJSON)
	if err != nil {
		return nil, err
	}
	ex.Status = Status(status)
	ex.Outputs = decodeOutputs(outputs.String)
	ex.Error = errMsg.String
	ex.Metadata = ParseExchangeMetadata(metadataJSON.String)
	return ex, nil
}

func (s *Store) GetExchange(ctx context.Context, id string) (*Exchange, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, id)
	return scanExchange(row)
}

// ListExchanges returns the newest exchanges first. A non-empty toolSlug
// restricts the result to that tool; limit <= 0 means no limit.
func (s *Store) ListExchanges(ctx context.Context, toolSlug string, limit int) ([]*Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges`
	var args []any
	if toolSlug != "" {
		query += ` WHERE tool_slug = ?`
		args = append(args, toolSlug)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

func (s *Store) CountExchanges(ctx context.Context, status Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exchanges WHERE status = ?`, string(status)).Scan(&count)
	return count, err
}

func (s *Store) DeleteExchange(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE id = ?`, id)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

type CreditEntry struct {
	ExchangeID string
	ToolSlug   string
	ModelKey   string
	Credits    float64
	Units      float64
	Timestamp  time.Time
}

type CreditSummary struct {
	TotalCredits float64
	EntryCount   int
}

type ToolCreditSummary struct {
	ToolSlug     string
	TotalCredits float64
	Count        int
}

func (s *Store) LogCredits(ctx context.Context, entry *CreditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_log (exchange_id, tool_slug, model_key, credits, units, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ExchangeID, entry.ToolSlug, entry.ModelKey, entry.Credits, entry.Units, entry.Timestamp)
	return err
}

func (s *Store) CreditsByDateRange(ctx context.Context, start, end time.Time) (*CreditSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(credits), 0), COUNT(*)
		 FROM credit_log WHERE timestamp >= ? AND timestamp < ?`,
		start, end)

	var summary CreditSummary
	if err := row.Scan(&summary.TotalCredits, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) CreditsByTool(ctx context.Context) ([]ToolCreditSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_slug, COALESCE(SUM(credits), 0), COUNT(*)
		 FROM credit_log GROUP BY tool_slug ORDER BY tool_slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ToolCreditSummary
	for rows.Next() {
		var ts ToolCreditSummary
		if err := rows.Scan(&ts.ToolSlug, &ts.TotalCredits, &ts.Count); err != nil {
			return nil, err
		}
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}

func (s *Store) TotalCredits(ctx context.Context) (*CreditSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(credits), 0), COUNT(*) FROM credit_log`)

	var summary CreditSummary
	if err := row.Scan(&summary.TotalCredits, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}
