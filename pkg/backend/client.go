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

	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/metrics"
)

const (
	defaultTimeout        = 30 * time.Second
	responseBodyReadLimit = 64 * 1024
)

// Endpoints exposed by the fundraiser order API.
const (
	EndpointGetConfig   = "getconfig"
	EndpointQueryOrders = "queryorders"
	EndpointUpsertOrder = "upsertorder"
	EndpointLeaderboard = "leaderboard"
	EndpointTimeCards   = "timecards"
	EndpointUsers       = "users"
)

var errBaseURLRequired = errors.New("backend base url is required")

// TokenSource hands out the bearer token for the current caller.
// It returns pkgerrors.ErrInvalidSession when the caller has no usable token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Caller is the narrow surface the endpoint clients depend on.
type Caller interface {
	Post(ctx context.Context, endpoint string, payload any, out any) error
}

// Client posts JSON to the fundraiser order API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	metrics    *metrics.BackendMetrics
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records every call on the given collectors.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger logs failed calls.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a client for baseURL that asks tokens for a bearer token on every call.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	client := &Client{
		baseURL:    trimmed,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Post sends payload to endpoint and decodes the JSON response into out when out is non-nil.
// Requests are never retried.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "endpoint is required")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if pkgerrors.IsInvalidSession(err) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInvalidSession, err, "invalid session")
	}
	if strings.TrimSpace(token) == "" {
		return pkgerrors.ErrInvalidSession
	}

	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("marshal %s request", endpoint))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", endpoint))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(endpoint, 0, time.Since(started))
		c.logg.Error(c.logg.WithField(ctx, "endpoint", endpoint), "backend request failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeRequestFailed, err, fmt.Sprintf("request to %s failed", endpoint)).
			WithDetails(pkgerrors.RequestFailure{Endpoint: endpoint})
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.Observe(endpoint, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		failure := pkgerrors.NewRequestFailure(endpoint, resp.StatusCode, string(raw))
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"endpoint": endpoint, "status": resp.StatusCode}), "backend returned non-2xx")
		return failure
	}

	// Successful bodies are read in full; only error bodies are capped.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRequestFailed, err, fmt.Sprintf("read %s response", endpoint)).
			WithDetails(pkgerrors.RequestFailure{Endpoint: endpoint, Status: resp.StatusCode})
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRequestFailed, err, fmt.Sprintf("decode %s response", endpoint)).
			WithDetails(pkgerrors.RequestFailure{Endpoint: endpoint, Status: resp.StatusCode, Body: truncateBody(raw)})
	}
	return nil
}

func truncateBody(raw []byte) string {
	if len(raw) > responseBodyReadLimit {
		raw = raw[:responseBodyReadLimit]
	}
	return string(raw)
}
