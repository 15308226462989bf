package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
)

const (
	contentTypeJSON = "application/json"
	bearerPrefix    = "Bearer "
	// maxErrorBody bounds how much of an error response is read for its message
	maxErrorBody = 64 << 10
)

// Client logs in against the property-management backend, keeps the stored session fresh and
// executes authenticated requests on behalf of callers.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	store        *sessions.Store
	inspector    *token.Inspector
	validator    *Validator
	refreshGroup singleflight.Group // at most one refresh in flight
	expiryBuffer time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	metrics      *Metrics
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. The default has no timeout.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithExpiryBuffer sets how close to exp a token may get before it is refreshed ahead of a request
func WithExpiryBuffer(buffer time.Duration) ClientOption {
	return func(c *Client) {
		c.expiryBuffer = buffer
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New creates a Client for the backend at baseURL (e.g. "https://rent.example.com/api").
func New(baseURL string, store *sessions.Store, options ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("[auth.New] session store is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[auth.New] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		store:        store,
		validator:    NewValidator(),
		expiryBuffer: token.DefaultExpiryBuffer,
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.inspector = token.NewInspector(store, token.WithNowFunc(c.nowFunc))
	c.logger = c.logger.With().Str("component", "auth-client").Logger()
	return c, nil
}

// Store returns the session store the client manages
func (c *Client) Store() *sessions.Store {
	return c.store
}

// Inspector returns the token inspector bound to the client's store
func (c *Client) Inspector() *token.Inspector {
	return c.inspector
}

// URL resolves a path against the base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// postJSON sends an unauthenticated JSON POST; used for the login and refresh endpoints
func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	return c.httpClient.Do(req)
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// drainAndClose discards what is left of a body so the connection can be reused
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

func bearerToken(header http.Header) string {
	return strings.TrimPrefix(header.Get("Authorization"), bearerPrefix)
}
