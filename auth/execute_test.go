package auth_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/token/tokentest"
)

func TestExecute_ValidTokenPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.backend.access())

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"results":["Maria Lopez"]}`, readBody(t, resp))

	require.Equal(t, int32(1), f.backend.resourceCalls.Load())
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("2xx")))
}

func TestExecute_ProactiveRefresh(t *testing.T) {
	f := newFixture(t)
	expiring := tokentest.Mint(t, "7", time.Now().Add(2*time.Minute))
	f.seed(t, expiring)

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)

	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, int32(1), f.backend.resourceCalls.Load(), "refresh happens before the first send")
	require.Equal(t, "Bearer "+f.backend.nextAccess, f.backend.lastAuthHeader.Load())

	access, _ := f.store.AccessToken()
	require.Equal(t, f.backend.nextAccess, access)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues("proactive", "success")))
	require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.RetriesTotal))
}

func TestExecute_ProactiveRefreshHonoursBuffer(t *testing.T) {
	f := newFixture(t, auth.WithExpiryBuffer(time.Minute))
	f.backend.validAccess = tokentest.Mint(t, "7", time.Now().Add(2*time.Minute))
	f.seed(t, f.backend.validAccess)

	resp, err := f.client.Get(context.Background(), resourcePath)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
}

func TestExecute_ProactiveRefreshFailureStillSends(t *testing.T) {
	f := newFixture(t)
	f.backend.refreshStatus = http.StatusServiceUnavailable
	expiring := tokentest.Mint(t, "7", time.Now().Add(time.Minute))
	f.backend.validAccess = expiring
	f.seed(t, expiring)

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "request proceeds with the token it had")
	_ = readBody(t, resp)
	require.Equal(t, "Bearer "+expiring, f.backend.lastAuthHeader.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues("proactive", "transient")))
}

func TestExecute_UnauthorizedRefreshAndRetry(t *testing.T) {
	f := newFixture(t)
	// Looks valid locally but the backend has revoked it.
	revoked := tokentest.Mint(t, "7", time.Now().Add(time.Hour))
	f.seed(t, revoked)

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)

	require.Equal(t, int32(2), f.backend.resourceCalls.Load())
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, "Bearer "+f.backend.nextAccess, f.backend.lastAuthHeader.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RetriesTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues("unauthorized", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("4xx")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("2xx")))
}

func TestExecute_RetryResendsBody(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	resp, err := f.client.Post(context.Background(), resourcePath, map[string]string{"first_name": "Maria"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)

	require.Equal(t, int32(2), f.backend.resourceCalls.Load())
	require.Equal(t, map[string]any{"first_name": "Maria"}, f.backend.lastBody.Load())
}

func TestExecute_RetryIsNotRepeated(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))
	// The refresh succeeds but the backend keeps rejecting the new token.
	f.transport.handler = rejectAfterRefresh(f.backend)

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = readBody(t, resp)
	require.Equal(t, int32(2), f.backend.unauthorizedCalls.Load(), "one original send and one retry")
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestExecute_RefreshRejectedReturnsOriginalResponse(t *testing.T) {
	f := newFixture(t)
	f.backend.refreshStatus = http.StatusUnauthorized
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"detail":"Given token not valid for any token type"}`, readBody(t, resp))

	require.Equal(t, int32(1), f.backend.resourceCalls.Load(), "no retry after a failed refresh")
	require.False(t, f.client.IsAuthenticated())
	require.Equal(t, 0, f.kv.Len())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues("unauthorized", "session_expired")))

	err = auth.CheckResponse(resp)
	require.True(t, errors.Is(err, auth.ErrNotAuthenticated))
}

func TestExecute_TransientRefreshFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.refreshStatus = http.StatusInternalServerError
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	resp, err := f.client.Execute(context.Background(), f.guardedRequest(http.MethodGet, resourcePath))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = readBody(t, resp)
	require.True(t, f.client.IsAuthenticated())
}

func TestExecute_NoAuthorizationHeaderIsNeverRetried(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Minute)))

	resp, err := f.client.Execute(context.Background(), auth.Request{Method: http.MethodGet, URL: resourcePath})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = readBody(t, resp)

	require.Equal(t, int32(1), f.backend.resourceCalls.Load())
	require.Equal(t, int32(0), f.backend.refreshCalls.Load(), "no proactive or reactive refresh without a header")
}

func TestExecute_WithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	resp, err := f.client.Get(context.Background(), resourcePath, auth.WithoutRetry())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = readBody(t, resp)
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
}

func TestExecute_OtherStatusesPassThrough(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.backend.access())

	tests := []struct {
		path   string
		status int
		class  string
	}{
		{"/forbidden/", http.StatusForbidden, "4xx"},
		{"/broken/", http.StatusInternalServerError, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := f.client.Get(context.Background(), tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)

			var httpErr *auth.HTTPError
			require.True(t, errors.As(auth.CheckResponse(resp), &httpErr))
			require.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
	require.Equal(t, int32(0), f.backend.refreshCalls.Load())
	require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.RetriesTotal))
}

func TestExecute_TransportErrors(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, f.backend.access())
		f.transport.failPaths["/api"+resourcePath] = true

		resp, err := f.client.Get(context.Background(), resourcePath)
		require.ErrorIs(t, err, errConnRefused)
		require.Nil(t, resp)
	})

	t.Run("refresh after 401", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))
		f.transport.failPaths["/api/accounts/token/refresh/"] = true

		resp, err := f.client.Get(context.Background(), resourcePath)
		require.ErrorIs(t, err, errConnRefused)
		require.Nil(t, resp)
		require.True(t, f.client.IsAuthenticated(), "a network failure does not end the session")
	})

	t.Run("proactive refresh", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Minute)))
		f.transport.failPaths["/api/accounts/token/refresh/"] = true

		resp, err := f.client.Get(context.Background(), resourcePath)
		require.ErrorIs(t, err, errConnRefused)
		require.Nil(t, resp)
		require.Equal(t, int32(0), f.backend.resourceCalls.Load())
	})
}

func TestExecute_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 8

	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	// Hold the refresh open until every caller has seen its 401.
	gate := make(chan struct{})
	f.backend.refreshGate = gate
	go openWhenUnauthorized(f.backend, gate, callers)

	var wg sync.WaitGroup
	statuses := make([]int, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.client.Get(context.Background(), resourcePath)
			errs[i] = err
			if err == nil {
				statuses[i] = resp.StatusCode
				drain(resp)
			}
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, int32(callers), f.backend.unauthorizedCalls.Load())
	require.Equal(t, int32(2*callers), f.backend.resourceCalls.Load())
	require.Equal(t, float64(callers), testutil.ToFloat64(f.metrics.RetriesTotal))
}

func TestExecute_ConcurrentUnauthorizedShareOneFailedRefresh(t *testing.T) {
	const callers = 6

	f := newFixture(t)
	f.backend.refreshStatus = http.StatusUnauthorized
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))

	gate := make(chan struct{})
	f.backend.refreshGate = gate
	go openWhenUnauthorized(f.backend, gate, callers)

	var wg sync.WaitGroup
	statuses := make([]int, callers)
	bodies := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.client.Get(context.Background(), resourcePath)
			errs[i] = err
			if err == nil {
				statuses[i] = resp.StatusCode
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				bodies[i] = string(body)
			}
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusUnauthorized, statuses[i])
		require.JSONEq(t, `{"detail":"Given token not valid for any token type"}`, bodies[i])
	}
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, int32(callers), f.backend.resourceCalls.Load(), "nobody retries after a failed refresh")
	require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.RetriesTotal))
	require.False(t, f.client.IsAuthenticated())
	require.Equal(t, 0, f.kv.Len())
}

func TestExecute_LogoutDuringRefreshIsNotUndone(t *testing.T) {
	f := newFixture(t)
	f.backend.rotateRefresh = "refresh-2"
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))
	gate := make(chan struct{})
	f.backend.refreshGate = gate

	type result struct {
		status int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := f.client.Get(context.Background(), resourcePath)
		if err != nil {
			done <- result{err: err}
			return
		}
		drain(resp)
		done <- result{status: resp.StatusCode}
	}()

	require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, f.client.Logout())
	close(gate)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, http.StatusUnauthorized, res.status, "the original response is returned")
	require.Equal(t, int32(1), f.backend.resourceCalls.Load())
	require.False(t, f.client.IsAuthenticated())
	require.Equal(t, 0, f.kv.Len())
}

func TestExecute_CallerCancellationDoesNotAbortSharedRefresh(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokentest.Mint(t, "7", time.Now().Add(time.Hour)))
	gate := make(chan struct{})
	f.backend.refreshGate = gate

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		resp, err := f.client.Get(ctx, resourcePath)
		if err == nil {
			drain(resp)
		}
		done <- err
	}()

	require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(gate)
	require.Eventually(t, func() bool {
		access, _ := f.store.AccessToken()
		return access == f.backend.nextAccess
	}, 5*time.Second, time.Millisecond, "the refresh completes for everyone else")
}

// openWhenUnauthorized closes gate once the backend has answered n requests with 401, or after
// a timeout so a broken run fails instead of hanging.
func openWhenUnauthorized(b *fakeBackend, gate chan struct{}, n int32) {
	defer close(gate)
	deadline := time.After(5 * time.Second)
	for b.unauthorizedCalls.Load() < n {
		select {
		case <-deadline:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// rejectAfterRefresh serves the backend but answers every resource call with 401
func rejectAfterRefresh(b *fakeBackend) http.Handler {
	inner := b.handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api"+resourcePath {
			b.resourceCalls.Add(1)
			b.unauthorizedCalls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		inner.ServeHTTP(w, r)
	})
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
