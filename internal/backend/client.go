// Package backend is the HTTP client of the AI analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/starford/cvdesk/internal/apperr"
	"github.com/starford/cvdesk/internal/models"
)

// maxResponseSize bounds how much of a backend reply is read.
const maxResponseSize = 8 << 20

// BreakerOptions configures the circuit breaker around backend calls.
type BreakerOptions struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerOptions
}

// AnalyzeRequest is one resume submission.
type AnalyzeRequest struct {
	JobTitle        string
	Sector          string
	ExperienceLevel string
	Provider        models.Provider
	APIKey          string
	Filename        string
	MimeType        string
	File            []byte
}

// Client talks to the analysis backend. It never retries; a tripped breaker
// fails calls fast until the backend recovers.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// New creates a backend client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  logger,
	}
	if opts.Breaker.Enabled {
		c.cb = newBreaker(opts.Breaker, logger)
	}
	return c
}

func newBreaker(o BreakerOptions, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:        "analysis-backend",
		MaxRequests: o.MaxRequests,
		Interval:    o.Interval,
		Timeout:     o.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= o.MinRequests && failureRatio >= o.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthy reports whether calls currently reach the backend.
func (c *Client) Healthy() bool {
	return c.cb == nil || c.cb.State() != gobreaker.StateOpen
}

type analyzeResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Analysis string `json:"analysis"`
	Message  string `json:"message"`
}

// Analyze submits a resume and returns the raw analysis text.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"job_title", req.JobTitle},
		{"sector", req.Sector},
		{"experience_level", req.ExperienceLevel},
		{"provider", string(req.Provider)},
	}
	if req.Provider.RequiresAPIKey() && req.APIKey != "" {
		fields = append(fields, [2]string{"api_key", req.APIKey})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("backend: build request: %w", err)
		}
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Filename))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("backend: build request: %w", err)
	}
	if _, err := part.Write(req.File); err != nil {
		return "", fmt.Errorf("backend: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("backend: build request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/analyze", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var resp analyzeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", c.unreachable(fmt.Errorf("decode response: %w", err))
	}
	if resp.Status == "error" {
		return "", fmt.Errorf("%w: %s", apperr.ErrAnalysisFailed, resp.Message)
	}
	return resp.Analysis, nil
}

type testResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// TestConnection asks the backend to reach the provider. The message is the
// backend's explanation when the probe fails.
func (c *Client) TestConnection(ctx context.Context, provider models.Provider, apiKey string) (bool, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("provider", string(provider)); err != nil {
		return false, "", fmt.Errorf("backend: build request: %w", err)
	}
	if apiKey != "" {
		if err := mw.WriteField("api_key", apiKey); err != nil {
			return false, "", fmt.Errorf("backend: build request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return false, "", fmt.Errorf("backend: build request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/ai/test", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return false, "", err
	}
	var resp testResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, "", c.unreachable(fmt.Errorf("decode response: %w", err))
	}
	return resp.OK, resp.Message, nil
}

// CheckOllama reports whether the backend sees a local Ollama install.
func (c *Client) CheckOllama(ctx context.Context) (bool, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/check-ollama", nil, "")
	if err != nil {
		return false, err
	}
	var resp struct {
		Installed bool `json:"installed"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, c.unreachable(fmt.Errorf("decode response: %w", err))
	}
	return resp.Installed, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/ping", nil, "")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	call := func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body, contentType)
	}
	if c.cb == nil {
		return call()
	}
	raw, err := c.cb.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, c.unreachable(err)
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, c.unreachable(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.unreachable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.unreachable(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.unreachable(fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode))
	}
	return raw, nil
}

func (c *Client) unreachable(err error) error {
	c.logger.Warn("backend call failed",
		slog.String("backend", c.baseURL),
		slog.String("error", err.Error()))
	return fmt.Errorf("%w at %s: %w", apperr.ErrBackendUnreachable, c.baseURL, err)
}
