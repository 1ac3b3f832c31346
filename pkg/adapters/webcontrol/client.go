// Package webcontrol is the HTTP client of a MOOSE WebServerControl, the
// control server the external solver exposes while it runs.
package webcontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
)

// Endpoints of the control server.
const (
	PathCheck       = "/check"
	PathWaiting     = "/waiting"
	PathContinue    = "/continue"
	PathSetControl  = "/set/controllable"
	PathTerminate   = "/terminate"
	DefaultBaseURL  = "http://localhost"
	DefaultPort     = 5800
	defaultTimeout  = 10 * time.Second
	maxErrorPayload = 4 << 10
)

// Client implements ports.ControlChannel over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.ControlChannel = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:5800").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URLFor joins a base URL and a port the way the solver binds it.
func URLFor(base string, port int) string {
	return fmt.Sprintf("%s:%d", strings.TrimRight(base, "/"), port)
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.baseURL }

// Check returns nil once the server answers.
func (c *Client) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathCheck, nil, nil)
}

// Waiting reports whether the solver is suspended and where.
func (c *Client) Waiting(ctx context.Context) (ports.WaitStatus, error) {
	var res struct {
		Waiting *bool           `json:"waiting"`
		Flag    domain.ExecFlag `json:"execute_on_flag"`
	}
	if err := c.do(ctx, http.MethodGet, PathWaiting, nil, &res); err != nil {
		return ports.WaitStatus{}, err
	}
	if res.Waiting == nil {
		return ports.WaitStatus{}, fmt.Errorf("malformed %s response: missing 'waiting'", PathWaiting)
	}
	if *res.Waiting && res.Flag == "" {
		return ports.WaitStatus{}, fmt.Errorf("malformed %s response: missing 'execute_on_flag'", PathWaiting)
	}
	return ports.WaitStatus{Waiting: *res.Waiting, Flag: res.Flag}, nil
}

// Continue resumes the solver.
func (c *Client) Continue(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathContinue, nil, nil)
}

// SetControllable pushes one value.
func (c *Client) SetControllable(ctx context.Context, ctl domain.Controllable) error {
	if err := ctl.Validate(); err != nil {
		return err
	}
	c.logger.Debug("sending controllable", "path", ctl.Path, "kind", ctl.Kind, "value", ctl.Value)
	return c.do(ctx, http.MethodPost, PathSetControl, ctl, nil)
}

// Terminate asks the solver to exit.
func (c *Client) Terminate(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathTerminate, nil, nil)
}

// StatusError is a non-2xx answer of the control server.
type StatusError struct {
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control server %s: HTTP %d", e.Path, e.Status)
	}
	return fmt.Sprintf("control server %s: HTTP %d: %s", e.Path, e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to plain text.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
