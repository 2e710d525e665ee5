package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpanalyst/config"
	"corpanalyst/models"
	"corpanalyst/utils"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()
	cfg := config.NewDefaultConfig(0)
	cfg.Server.Host = "127.0.0.1"
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg, Options{Name: "test", FailureTitle: "Test failure"}, utils.NewSilentLogger())
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func decodeEnvelope(t *testing.T, body io.Reader) models.ErrorEnvelope {
	t.Helper()
	var env models.ErrorEnvelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	s.Handle("/health", func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	}, http.MethodGet)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown path", http.MethodGet, "/nope"},
		{"unknown api path", http.MethodPost, "/api/unknown"},
		{"wrong method on known path", http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
		})
	}
}

func TestErrorBoundary(t *testing.T) {
	s := newTestServer(t, nil)

	s.Handle("/api-error", func(w http.ResponseWriter, r *http.Request) error {
		return &models.APIError{
			Status:       http.StatusBadGateway,
			Title:        "Upstream broke",
			Details:      "boom",
			ResponseData: json.RawMessage(`{"reason":"down"}`),
		}
	})
	s.Handle("/plain", func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("something failed")
	})
	s.Handle("/deadline", func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("calling upstream: %w", context.DeadlineExceeded)
	})

	t.Run("api error keeps its fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-error", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		env := decodeEnvelope(t, rec.Body)
		assert.Equal(t, "Upstream broke", env.Error)
		assert.Equal(t, "boom", env.Details)
		assert.Equal(t, http.StatusBadGateway, env.Status)
		assert.Equal(t, "2024-01-02T03:04:05.000Z", env.Timestamp)
		assert.JSONEq(t, `{"reason":"down"}`, string(env.ResponseData))
	})

	t.Run("plain error becomes 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decodeEnvelope(t, rec.Body)
		assert.Equal(t, "Test failure", env.Error)
		assert.Equal(t, "something failed", env.Message)
		assert.Equal(t, 500, env.Status)
	})

	t.Run("deadline becomes 408", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deadline", nil))

		assert.Equal(t, http.StatusRequestTimeout, rec.Code)
		env := decodeEnvelope(t, rec.Body)
		assert.Equal(t, "Request timeout after 30s", env.Message)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(t, nil)
	s.Handle("/panic", func(w http.ResponseWriter, r *http.Request) error {
		panic("kaboom")
	})
	s.Handle("/ok", func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "kaboom")

	// the server keeps serving after a panic
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware_ResponseAlreadyStarted(t *testing.T) {
	s := newTestServer(t, nil)
	s.Handle("/partial", func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		panic("after write")
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/partial", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, rec.Body.String(), "after write")
}

func TestTimeoutMiddleware(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RequestTimeout = "50ms"
	})
	s.Handle("/slow", func(w http.ResponseWriter, r *http.Request) error {
		select {
		case <-r.Context().Done():
			return r.Context().Err()
		case <-time.After(5 * time.Second):
			WriteJSON(w, http.StatusOK, nil)
			return nil
		}
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, "Request timeout after 50ms", env.Message)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, nil)
	var seen string
	s.Handle("/id", func(w http.ResponseWriter, r *http.Request) error {
		seen = RequestID(r.Context())
		WriteJSON(w, http.StatusOK, nil)
		return nil
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.Len(t, seen, 8)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc123", seen)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)
	s.Handle("/health", func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, http.StatusOK, nil)
		return nil
	}, http.MethodGet)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:5180")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "http://localhost:5180", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin outside allow-list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServe_GracefulShutdownDrainsInFlight(t *testing.T) {
	s := newTestServer(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	s.Handle("/slow", func(w http.ResponseWriter, r *http.Request) error {
		close(entered)
		<-release
		WriteJSON(w, http.StatusOK, map[string]string{"status": "done"})
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ctx, ln) }()

	type result struct {
		status int
		body   string
		err    error
	}
	respCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			respCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		respCh <- result{status: resp.StatusCode, body: string(body)}
	}()

	<-entered
	cancel()

	// new connections are refused once shutdown has started
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 2*time.Second, 10*time.Millisecond)

	close(release)

	res := <-respCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"status":"done"}`, res.body)

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after drain")
	}
}

func TestServe_ForcedShutdown(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.ShutdownTimeout = "100ms"
	})
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	s.Handle("/stuck", func(w http.ResponseWriter, r *http.Request) error {
		close(entered)
		<-release
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ctx, ln) }()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/stuck")
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-entered
	cancel()

	select {
	case err := <-serveErr:
		assert.ErrorIs(t, err, ErrForcedShutdown)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not give up after the shutdown timeout")
	}
}
