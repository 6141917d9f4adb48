package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/manash/splendid/internal/request"
	"github.com/manash/splendid/pkg/models"
)

type SessionInfo struct {
	ID          string           `json:"id"`
	CreatedAt   models.Timestamp `json:"created_at"`
	LastUpdated models.Timestamp `json:"last_updated"`
}

// GenerateResult is the union of the per-tool generate replies.
type GenerateResult struct {
	SessionID    string   `json:"session_id"`
	MessageID    string   `json:"message_id"`
	Prompt       string   `json:"prompt"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	VideoURLs    []string `json:"video_urls,omitempty"`
	ResponseText string   `json:"response_text,omitempty"`
}

// Outputs lists every media URL the generation produced.
func (r *GenerateResult) Outputs() []string {
	out := append([]string(nil), r.ImageURLs...)
	out = append(out, r.VideoURLs...)
	if r.VideoURL != "" && len(r.VideoURLs) == 0 {
		out = append(out, r.VideoURL)
	}
	return out
}

type LoginResponse struct {
	Success bool             `json:"success"`
	Token   string           `json:"token"`
	User    *models.AuthUser `json:"user"`
}

type CreditsResponse struct {
	Credits     float64 `json:"credits"`
	CreditsUsed float64 `json:"creditsUsed"`
}

type DeductRequest struct {
	ModelKey   string
	Units      float64
	Variant    string
	Megapixels float64
}

type DeductResponse struct {
	CreditsDeducted  float64 `json:"credits_deducted"`
	CreditsRemaining float64 `json:"credits_remaining"`
}

type HistoryEntry struct {
	ID        string           `json:"id,omitempty"`
	ToolID    string           `json:"tool_id"`
	ToolName  string           `json:"tool_name"`
	Prompt    string           `json:"prompt"`
	Result    string           `json:"result"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt models.Timestamp `json:"created_at,omitempty"`
}

func (c *Client) CreateSession(ctx context.Context, slug string) (string, error) {
	var sess SessionInfo
	if err := c.do(ctx, "session.create", http.MethodPost, request.SessionPath(slug), "", struct{}{}, &sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (c *Client) SessionHistory(ctx context.Context, slug, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	path := request.HistoryPath(slug, url.PathEscape(sessionID))
	if err := c.do(ctx, "session.history", http.MethodGet, path, "", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) Generate(ctx context.Context, token string, req *request.Request) (*GenerateResult, error) {
	var res GenerateResult
	if err := c.do(ctx, "generate", http.MethodPost, req.Endpoint, token, req.Body, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	return &res, nil
}

func (c *Client) GoogleLogin(ctx context.Context, credential string) (*LoginResponse, error) {
	var res LoginResponse
	body := map[string]string{"token": credential}
	if err := c.do(ctx, "auth.google", http.MethodPost, "/api/auth/google", "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Verify(ctx context.Context, token string) (*models.AuthUser, error) {
	var res struct {
		User *models.AuthUser `json:"user"`
	}
	if err := c.do(ctx, "auth.verify", http.MethodGet, "/api/auth/verify", token, nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, &StatusError{Code: http.StatusUnauthorized, Message: "no user in verify reply"}
	}
	return res.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "auth.logout", http.MethodPost, "/api/auth/logout", token, struct{}{}, nil)
}

func (c *Client) Credits(ctx context.Context, token string) (*CreditsResponse, error) {
	var res CreditsResponse
	if err := c.do(ctx, "auth.credits", http.MethodGet, "/api/auth/credits", token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeductCredits(ctx context.Context, token string, d DeductRequest) (*DeductResponse, error) {
	q := url.Values{}
	q.Set("model_key", d.ModelKey)
	units := d.Units
	if units <= 0 {
		units = 1
	}
	q.Set("units", strconv.FormatFloat(units, 'f', -1, 64))
	if d.Variant != "" {
		q.Set("variant", d.Variant)
	}
	if d.Megapixels > 0 {
		q.Set("megapixels", strconv.FormatFloat(d.Megapixels, 'f', 2, 64))
	}

	var res DeductResponse
	path := "/api/auth/deduct-credits?" + q.Encode()
	if err := c.do(ctx, "auth.deduct", http.MethodPost, path, token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SaveHistory(ctx context.Context, token string, entry *HistoryEntry) (string, error) {
	var res struct {
		HistoryID string `json:"history_id"`
	}
	if err := c.do(ctx, "history.save", http.MethodPost, "/api/history/save", token, entry, &res); err != nil {
		return "", err
	}
	return res.HistoryID, nil
}

func (c *Client) ToolHistory(ctx context.Context, token string, toolID int) ([]HistoryEntry, error) {
	var res struct {
		History []HistoryEntry `json:"history"`
	}
	path := "/api/history/tool/" + strconv.Itoa(toolID)
	if err := c.do(ctx, "history.tool", http.MethodGet, path, token, nil, &res); err != nil {
		return nil, err
	}
	return res.History, nil
}

func (c *Client) AllHistory(ctx context.Context, token string) ([]HistoryEntry, error) {
	var res struct {
		History []HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, "history.all", http.MethodGet, "/api/history/all", token, nil, &res); err != nil {
		return nil, err
	}
	return res.History, nil
}

func (c *Client) DeleteHistory(ctx context.Context, token, id string) error {
	return c.do(ctx, "history.delete", http.MethodDelete, "/api/history/"+url.PathEscape(id), token, nil, nil)
}
