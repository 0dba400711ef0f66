// Package gateway is a thin client for the remote exoplanet prediction API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kartoza/exoplanet-portal/internal/models"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

// DefaultTimeout is the budget of a single call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client calls the predict, compare and dashboard endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	userAgent  string
}

// New creates a Client for the API rooted at baseURL (e.g. https://host/api/v1).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway: baseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid baseURL: %w", err)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{timeout: DefaultTimeout}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// Work on a copy so a shared client such as http.DefaultClient keeps its timeout.
	httpClient := &http.Client{}
	if cfg.httpClient != nil {
		hc := *cfg.httpClient
		httpClient = &hc
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  cfg.userAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return fmt.Errorf("gateway: timeout must be positive, got %v", d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *clientConfig) error {
		cfg.userAgent = ua
		return nil
	}
}

// BaseURL returns the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict posts the input to /predict/{variant}.
func (c *Client) Predict(ctx context.Context, variant schema.Variant, in schema.Input) (*models.PredictionResponse, error) {
	var out models.PredictionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/predict/"+string(variant), "predict", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Compare posts the input to /compare/{variant}. A response without any
// similar exoplanet is reported as a failure since nothing can be linked.
func (c *Client) Compare(ctx context.Context, variant schema.Variant, in schema.Input) (*models.ComparisonResponse, error) {
	var out models.ComparisonResponse
	if err := c.doJSON(ctx, http.MethodPost, "/compare/"+string(variant), "compare", in, &out); err != nil {
		return nil, err
	}
	if len(out.SimilarExoplanets) == 0 {
		return nil, &RequestError{Operation: "compare", Message: "comparison returned no similar exoplanets"}
	}
	return &out, nil
}

// DashboardDetail fetches /dashboard/scientific/{predictionID}.
func (c *Client) DashboardDetail(ctx context.Context, predictionID string) (*models.DashboardResponse, error) {
	if predictionID == "" {
		return nil, &RequestError{Operation: "dashboard", Message: "prediction id is required"}
	}
	var out models.DashboardResponse
	path := "/dashboard/scientific/" + url.PathEscape(predictionID)
	if err := c.doJSON(ctx, http.MethodGet, path, "dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON executes a request and decodes the JSON response into dst.
// Every failure comes back as a *RequestError.
func (c *Client) doJSON(ctx context.Context, method, path, operation string, payload, dst any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &RequestError{Operation: operation, Message: "encode request: " + err.Error(), Err: err}
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &RequestError{Operation: operation, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.InfoContext(ctx, "API request", "operation", operation, "method", method, "url", u)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed", "operation", operation, "error", err)
		return &RequestError{Operation: operation, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := serverMessage(respBody)
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
		}
		return &RequestError{Operation: operation, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &RequestError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    "decode response: " + err.Error(),
			Err:        err,
		}
	}
	return nil
}

// serverMessage pulls a message out of an error body. FastAPI style servers
// put it under "detail", others under "message" or "error".
func serverMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	for _, key := range []string{"message", "detail", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
