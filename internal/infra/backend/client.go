// File: internal/infra/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fitcenter-checkout/internal/config"
	"fitcenter-checkout/internal/domain"
	"fitcenter-checkout/internal/domain/ports/adapter"
	"fitcenter-checkout/internal/infra/logging"
	"fitcenter-checkout/internal/infra/metrics"
)

var (
	_ adapter.PlanSource      = (*Client)(nil)
	_ adapter.OrderAPI        = (*Client)(nil)
	_ adapter.VerificationAPI = (*Client)(nil)
)

// Client talks to the fitness-center REST backend.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration // applied to reads; writes use the caller's deadline
	client  *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base url empty")
	}
	l := logger.With().Str("component", "BackendClient").Logger()
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		timeout: cfg.Timeout,
		client:  &http.Client{Transport: http.DefaultTransport},
		log:     &l,
	}, nil
}

type bearerKey struct{}

// WithBearer overrides the configured api token for calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// envelope is the common part of every backend response body.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do sends body (if any) as JSON and decodes the reply into out. It returns
// a *domain.RemoteError for transport failures, non-2xx replies and
// success:false bodies.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := c.token
	if t, ok := ctx.Value(bearerKey{}).(string); ok && t != "" {
		token = t
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logging.TraceID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveBackendRequest(op, "network", 0, time.Since(start))
		logging.With(ctx, c.log).Warn().Err(err).Str("op", op).Msg("backend request failed")
		return &domain.RemoteError{Op: op, Message: err.Error(), Err: errors.Join(domain.ErrNetwork, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveBackendRequest(op, "network", resp.StatusCode, time.Since(start))
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Err: errors.Join(domain.ErrNetwork, err)}
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (env.Success != nil && !*env.Success) {
		metrics.ObserveBackendRequest(op, "rejected", resp.StatusCode, time.Since(start))
		msg := env.message()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		logging.With(ctx, c.log).Warn().Str("op", op).Int("status", resp.StatusCode).Str("message", msg).Msg("backend rejected request")
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Message: msg, Err: domain.ErrBackendRejected}
	}
	metrics.ObserveBackendRequest(op, "ok", resp.StatusCode, time.Since(start))

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &domain.RemoteError{Op: op, Status: resp.StatusCode, Message: "malformed response", Err: fmt.Errorf("%w: %w", domain.ErrBackendRejected, err)}
		}
	}
	return nil
}
