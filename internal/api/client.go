package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout   = 300 * time.Second
	instrumentation  = "github.com/manash/splendid/internal/api"
	maxLoggedPayload = 120
)

var (
	ErrBaseURLRequired     = errors.New("backend URL is required")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
)

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

type Config struct {
	BaseURL    string
	TimeoutSec int
	Verbose    bool
	Logger     *log.Logger
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	verbose    bool
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

func New(cfg *Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutSec > 0 {
			timeout = time.Duration(cfg.TimeoutSec) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	meter := otel.Meter(instrumentation)
	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "api"),
		verbose:    cfg.Verbose,
		tracer:     otel.Tracer(instrumentation),
		duration:   duration,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one JSON request. A nil out discards the reply body.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	start := time.Now()
	err := c.roundTrip(ctx, method, path, token, in, out, span)
	elapsed := time.Since(start)

	c.duration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.String("operation", op)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request failed", "op", op, "method", method, "path", path, "dur", elapsed.String(), "err", err)
		return err
	}
	c.logger.Debug("request completed", "op", op, "method", method, "path", path, "dur", elapsed.String())
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, in, out any, span trace.Span) error {
	var body io.Reader
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.verbose {
		c.logger.Debug("request", "method", method, "url", req.URL.String(), "body", truncatePayload(payload))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if c.verbose {
		c.logger.Debug("response", "status", resp.StatusCode, "body", truncatePayload(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage pulls the human readable reason out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(truncatePayload(body))
	}
	switch d := payload.Detail.(type) {
	case string:
		return d
	case nil:
	default:
		data, _ := json.Marshal(d)
		return string(data)
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// truncatePayload keeps logs readable when bodies carry base64 media.
func truncatePayload(data []byte) string {
	s := string(data)
	if len(s) <= maxLoggedPayload {
		return s
	}
	return s[:maxLoggedPayload] + fmt.Sprintf("... [%d bytes]", len(s))
}
