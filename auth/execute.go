package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Request describes one logical HTTP call. Body is kept as bytes so the call can be re-sent
// verbatim after a refresh.
type Request struct {
	Method string
	URL    string // absolute, or a path resolved against the client's base URL
	Header http.Header
	Body   []byte
}

type executeOptions struct {
	retryOn401 bool
}

// ExecuteOption tunes a single Execute call
type ExecuteOption func(*executeOptions)

// WithoutRetry returns a 401 as-is instead of refreshing and re-sending.
// Use it for calls that must not be sent twice.
func WithoutRetry() ExecuteOption {
	return func(o *executeOptions) {
		o.retryOn401 = false
	}
}

// Execute sends req, keeping the session valid around it.
//
// Requests that carry an Authorization header are refreshed ahead of time when the access
// token is about to expire, and on a 401 the token is refreshed (once, shared with any other
// caller that hit the same 401) and the request is re-sent a single time. If that refresh is
// rejected the original 401 response is returned untouched. Requests without an Authorization
// header are never refreshed or retried. Transport errors are returned as errors.
func (c *Client) Execute(ctx context.Context, req Request, options ...ExecuteOption) (*http.Response, error) {
	opts := executeOptions{retryOn401: true}
	for _, opt := range options {
		opt(&opts)
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	authenticated := header.Get("Authorization") != ""

	logger := c.logger.With().
		Str("request_id", uuid.New().String()).
		Str("method", req.Method).
		Str("url", c.URL(req.URL)).
		Logger()

	if authenticated && c.inspector.IsExpiredOrExpiringSoon(c.expiryBuffer) {
		current, _ := c.store.AccessToken()
		logger.Debug().Msg("access token expiring, refreshing before send")
		if err := c.refreshStale(ctx, triggerProactive, current); err != nil {
			if !isRefreshRejection(err) {
				return nil, fmt.Errorf("[Client.Execute] refresh: %w", err)
			}
			logger.Warn().Err(err).Msg("refresh before send failed, sending with current token")
		} else {
			c.setBearer(header)
		}
	}

	resp, err := c.send(ctx, req, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !authenticated || !opts.retryOn401 {
		return resp, nil
	}

	logger.Info().Msg("received 401, refreshing access token")
	if err := c.refreshStale(ctx, triggerUnauthorized, bearerToken(header)); err != nil {
		if isRefreshRejection(err) {
			logger.Warn().Err(err).Msg("refresh failed, returning original response")
			return resp, nil
		}
		_ = resp.Body.Close()
		return nil, fmt.Errorf("[Client.Execute] refresh: %w", err)
	}

	drainAndClose(resp.Body)
	c.setBearer(header)
	c.metrics.retry()
	logger.Debug().Msg("retrying with refreshed token")
	return c.send(ctx, req, header)
}

func (c *Client) send(ctx context.Context, req Request, header http.Header) (*http.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req.URL), body)
	if err != nil {
		return nil, fmt.Errorf("[Client.send] http.NewRequest: %w", err)
	}
	httpReq.Header = header.Clone()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("[Client.send] %w", err)
	}
	c.metrics.response(resp.StatusCode)
	if e := c.logger.Debug(); e.Enabled() {
		e.Str("method", req.Method).Str("url", httpReq.URL.String()).Int("status", resp.StatusCode).Msg("response")
	}
	return resp, nil
}

// setBearer points the Authorization header at the currently stored access token
func (c *Client) setBearer(header http.Header) {
	if access, ok := c.store.AccessToken(); ok {
		header.Set("Authorization", bearerPrefix+access)
	}
}
