// Package apiclient is the single funnel for backend calls. It injects the
// bearer token and, on a 401, refreshes once and retries once.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HARD953/distribut-sub001/internal/metrics"
	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// TokenSource is the session the client authenticates with.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
	EndSession(reason sessions.EndReason)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Client
	limiter    *rate.Limiter
	refreshes  *singleflight.Group
	requestID  func() string

	tokensLock sync.RWMutex
	tokens     TokenSource
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			clone := *c.httpClient
			clone.Timeout = d
			c.httpClient = &clone
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Client) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRateLimiter makes every attempt wait for a token from limiter.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithSingleFlightRefresh makes concurrent 401s share one in-flight refresh.
func WithSingleFlightRefresh() Option {
	return func(c *Client) {
		c.refreshes = &singleflight.Group{}
	}
}

// WithRequestIDFunc overrides the X-Request-ID generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("[apiclient.New] base URL is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient.New] parse base URL")
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, errors.Errorf("[apiclient.New] base URL %q must be an absolute http(s) URL", baseURL)
	}

	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.Logger,
		requestID:  uuid.NewString,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Bind attaches the session used for bearer tokens and refreshes.
func (c *Client) Bind(tokens TokenSource) {
	c.tokensLock.Lock()
	defer c.tokensLock.Unlock()
	c.tokens = tokens
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) tokenSource() TokenSource {
	c.tokensLock.RLock()
	defer c.tokensLock.RUnlock()
	return c.tokens
}

// Request issues a protected call. With isMultipart the body must be a
// *Multipart, otherwise it is JSON encoded.
func (c *Client) Request(ctx context.Context, method, path string, body any, isMultipart bool) (*Response, error) {
	return c.Do(ctx, &Call{Method: method, Path: path, Body: body, Multipart: isMultipart})
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, false)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body, false)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, body, false)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, path, body, false)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, false)
}

func (c *Client) Upload(ctx context.Context, method, path string, form *Multipart) (*Response, error) {
	return c.Request(ctx, method, path, form, true)
}

// GetJSON issues a protected GET and decodes a 2xx body into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// Do runs one logical call. Non-2xx responses are returned as received
// together with an *Error; network failures return a nil response.
func (c *Client) Do(ctx context.Context, call *Call) (*Response, error) {
	p, err := c.prepare(call)
	if err != nil {
		return nil, err
	}
	requestID := c.requestID()

	tokens := c.tokenSource()
	protected := !call.Anonymous && tokens != nil
	access := ""
	if protected {
		access = tokens.AccessToken()
	}

	resp, err := c.send(ctx, p, access, requestID, 1)
	if err != nil {
		return nil, err
	}
	if !protected || resp.StatusCode != http.StatusUnauthorized {
		return resp, classify(p.method, p.path, resp, protected)
	}

	refreshed, err := c.refresh(ctx, tokens)
	if err != nil && ctx.Err() != nil {
		return nil, &Error{Kind: KindNetwork, Method: p.method, Path: p.path, Err: err}
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("path", p.path).Str("request_id", requestID).Msg("token refresh failed")
		return resp, &Error{
			Kind:       KindAuthExpired,
			StatusCode: resp.StatusCode,
			Method:     p.method,
			Path:       p.path,
			Detail:     DetailFromBody(resp.Body),
			Err:        err,
		}
	}

	retried, err := c.send(ctx, p, refreshed, requestID, 2)
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("path", p.path).Str("request_id", requestID).Msg("request rejected after refresh, ending session")
		tokens.EndSession(sessions.EndedAuthExpired)
	}
	return retried, classify(p.method, p.path, retried, true)
}

func (c *Client) refresh(ctx context.Context, tokens TokenSource) (string, error) {
	// A refresh failure ends the session, so cancelling the caller must not
	// fail it.
	detached := context.WithoutCancel(ctx)
	if c.refreshes == nil {
		access, err := tokens.Refresh(detached)
		c.observeRefresh(err, false)
		return access, err
	}

	// A cancelled waiter stops waiting without failing the shared refresh.
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return tokens.Refresh(detached)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		c.observeRefresh(res.Err, res.Shared)
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) observeRefresh(err error, shared bool) {
	switch {
	case err != nil:
		c.metrics.ObserveRefresh(metrics.RefreshFailed)
	case shared:
		c.metrics.ObserveRefresh(metrics.RefreshShared)
	default:
		c.metrics.ObserveRefresh(metrics.RefreshSucceeded)
	}
}

func (c *Client) send(ctx context.Context, p *prepared, access, requestID string, attempt int) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Method: p.method, Path: p.path, Err: err}
		}
	}

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.send] new request")
	}
	for key, values := range p.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(headerRequestID, requestID)
	if p.contentType != "" {
		req.Header.Set("Content-Type", p.contentType)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(p.method, 0, time.Since(start))
		c.logger.Debug().Err(err).Str("method", p.method).Str("path", p.path).Str("request_id", requestID).Int("attempt", attempt).Msg("request failed")
		return nil, &Error{Kind: KindNetwork, Method: p.method, Path: p.path, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(p.method, 0, elapsed)
		return nil, &Error{Kind: KindNetwork, Method: p.method, Path: p.path, Err: errors.Wrap(err, "read body")}
	}
	c.metrics.ObserveRequest(p.method, httpResp.StatusCode, elapsed)
	c.logger.Debug().
		Str("method", p.method).
		Str("path", p.path).
		Int("status", httpResp.StatusCode).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Dur("elapsed", elapsed).
		Msg("backend request")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		RequestID:  requestID,
		Attempts:   attempt,
	}, nil
}
