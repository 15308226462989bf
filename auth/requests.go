package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AccessToken returns the stored access token, if any
func (c *Client) AccessToken() (string, bool) {
	return c.store.AccessToken()
}

// AuthHeaders returns the headers for a guarded JSON request: the bearer token when a session
// exists, plus the JSON content type.
func (c *Client) AuthHeaders() http.Header {
	header := make(http.Header)
	header.Set("Content-Type", contentTypeJSON)
	header.Set("Accept", contentTypeJSON)
	if access, ok := c.store.AccessToken(); ok {
		header.Set("Authorization", bearerPrefix+access)
	}
	return header
}

// NewRequest builds a guarded request for path. A non-nil body is encoded as JSON.
func (c *Client) NewRequest(method, path string, body any) (Request, error) {
	req := Request{Method: method, URL: path, Header: c.AuthHeaders()}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Request{}, fmt.Errorf("[Client.NewRequest] json.Marshal: %w", err)
		}
		req.Body = payload
	}
	return req, nil
}

func (c *Client) Get(ctx context.Context, path string, options ...ExecuteOption) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, options)
}

func (c *Client) Post(ctx context.Context, path string, body any, options ...ExecuteOption) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body, options)
}

func (c *Client) Put(ctx context.Context, path string, body any, options ...ExecuteOption) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body, options)
}

func (c *Client) Patch(ctx context.Context, path string, body any, options ...ExecuteOption) (*http.Response, error) {
	return c.do(ctx, http.MethodPatch, path, body, options)
}

func (c *Client) Delete(ctx context.Context, path string, options ...ExecuteOption) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, options)
}

func (c *Client) do(ctx context.Context, method, path string, body any, options []ExecuteOption) (*http.Response, error) {
	req, err := c.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, req, options...)
}

// CheckResponse returns nil for a 2xx response and an *HTTPError otherwise.
// On error the body is consumed and closed.
func CheckResponse(resp *http.Response) error {
	if isSuccess(resp.StatusCode) {
		return nil
	}
	defer drainAndClose(resp.Body)
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp, http.StatusText(resp.StatusCode)),
	}
}

// DecodeJSON checks resp and decodes its body into v, closing the body.
func DecodeJSON(resp *http.Response, v any) error {
	if err := CheckResponse(resp); err != nil {
		return err
	}
	defer drainAndClose(resp.Body)
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("[auth.DecodeJSON] %w", err)
	}
	return nil
}
