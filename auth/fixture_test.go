package auth_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/accounts"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage/memstore"
	"github.com/jrsteele09/go-auth-client/token/tokentest"
)

const (
	baseURL      = "http://propman.test/api"
	resourcePath = "/tenants/"
	testEmail    = "manager@example.com"
	testPassword = "password123"
)

var errConnRefused = errors.New("connection refused")

// handlerTransport serves requests in-process through an http.Handler
type handlerTransport struct {
	handler   http.Handler
	failPaths map[string]bool // paths that fail with errConnRefused
}

func (h *handlerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if h.failPaths[r.URL.Path] {
		return nil, errConnRefused
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	resp := rec.Result()
	resp.Request = r
	return resp, nil
}

// fakeBackend mimics the accounts endpoints plus one guarded resource
type fakeBackend struct {
	t *testing.T

	lock          sync.Mutex
	validAccess   string // the only access token the resource accepts
	validRefresh  string
	nextAccess    string // handed out by the next successful refresh
	rotateRefresh string // when set, returned as a rotated refresh token
	refreshStatus int    // when non-zero the refresh endpoint fails with this status
	refreshGate   chan struct{}

	loginCalls        atomic.Int32
	refreshCalls      atomic.Int32
	resourceCalls     atomic.Int32
	unauthorizedCalls atomic.Int32
	lastAuthHeader    atomic.Value
	lastBody          atomic.Value
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:            t,
		validAccess:  tokentest.Mint(t, "7", time.Now().Add(time.Hour)),
		validRefresh: "refresh-1",
		nextAccess:   tokentest.Mint(t, "7", time.Now().Add(2*time.Hour)),
	}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api"+accounts.RouteLogin, b.login)
	mux.HandleFunc("POST /api"+accounts.RouteTokenRefresh, b.refresh)
	mux.HandleFunc("/api"+resourcePath, b.resource)
	mux.HandleFunc("/api/forbidden/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, accounts.ErrorResponse{Detail: "You do not have permission"})
	})
	mux.HandleFunc("/api/broken/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, accounts.ErrorResponse{Error: "boom"})
	})
	return mux
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	b.loginCalls.Add(1)
	var req accounts.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, accounts.ErrorResponse{Detail: "bad body"})
		return
	}
	if req.Email != testEmail || req.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, accounts.ErrorResponse{Error: "Invalid credentials"})
		return
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	writeJSON(w, http.StatusOK, accounts.LoginResponse{
		Access:  b.validAccess,
		Refresh: b.validRefresh,
		User:    &sessions.UserProfile{ID: 7, Email: testEmail, FirstName: "Maria", LastName: "Lopez", Role: "manager"},
		Tenant:  json.RawMessage(`{"unit":"4B"}`),
	})
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if b.refreshGate != nil {
		select {
		case <-b.refreshGate:
		case <-time.After(5 * time.Second):
			b.t.Error("refresh gate was never opened")
		}
	}

	var req accounts.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, accounts.ErrorResponse{Detail: "bad body"})
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	if b.refreshStatus != 0 {
		writeJSON(w, b.refreshStatus, accounts.ErrorResponse{Detail: "Token is invalid or expired"})
		return
	}
	if req.Refresh != b.validRefresh {
		writeJSON(w, http.StatusUnauthorized, accounts.ErrorResponse{Detail: "Token is invalid or expired"})
		return
	}
	b.validAccess = b.nextAccess
	resp := accounts.RefreshResponse{Access: b.nextAccess}
	if b.rotateRefresh != "" {
		b.validRefresh = b.rotateRefresh
		resp.Refresh = b.rotateRefresh
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *fakeBackend) resource(w http.ResponseWriter, r *http.Request) {
	b.resourceCalls.Add(1)
	header := r.Header.Get("Authorization")
	b.lastAuthHeader.Store(header)
	if r.Body != nil {
		var body map[string]any
		if json.NewDecoder(r.Body).Decode(&body) == nil {
			b.lastBody.Store(body)
		}
	}

	b.lock.Lock()
	valid := b.validAccess
	b.lock.Unlock()

	if header != "Bearer "+valid {
		b.unauthorizedCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, accounts.ErrorResponse{Detail: "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []string{"Maria Lopez"}})
}

func (b *fakeBackend) access() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.validAccess
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type fixture struct {
	backend   *fakeBackend
	transport *handlerTransport
	kv        *memstore.MemStore
	store     *sessions.Store
	metrics   *auth.Metrics
	client    *auth.Client
}

func newFixture(t *testing.T, options ...auth.ClientOption) *fixture {
	t.Helper()
	f := &fixture{
		backend: newFakeBackend(t),
		kv:      memstore.New(),
		metrics: auth.NewMetrics(prometheus.NewRegistry()),
	}
	f.transport = &handlerTransport{handler: f.backend.handler(), failPaths: map[string]bool{}}
	f.store = sessions.NewStore(f.kv, sessions.WithLogger(zerolog.Nop()))

	options = append([]auth.ClientOption{
		auth.WithHTTPClient(&http.Client{Transport: f.transport}),
		auth.WithLogger(zerolog.Nop()),
		auth.WithMetrics(f.metrics),
	}, options...)

	client, err := auth.New(baseURL, f.store, options...)
	require.NoError(t, err)
	f.client = client
	return f
}

// seed stores a session whose access token is access
func (f *fixture) seed(t *testing.T, access string) {
	t.Helper()
	require.NoError(t, f.store.Save(sessions.Session{
		AccessToken:  access,
		RefreshToken: f.backend.validRefresh,
		User:         &sessions.UserProfile{ID: 7, Email: testEmail},
	}))
}

func (f *fixture) guardedRequest(method, path string) auth.Request {
	return auth.Request{Method: method, URL: path, Header: f.client.AuthHeaders()}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(body))
}
