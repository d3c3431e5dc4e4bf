package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Connicpu/boop/internal/testutil/testlog"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndStatusRoutes(t *testing.T) {
	testlog.Start(t)

	s := New(Config{
		Node:    "Rex",
		Version: "test",
		Status: func() any {
			return map[string]any{"name": "Rex", "phase": "listening"}
		},
		Ready: func() bool { return true },
	})

	rr := get(t, s, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["service"] != "Rex" || health["version"] != "test" {
		t.Fatalf("unexpected health body: %#v", health)
	}

	rr = get(t, s, "/status")
	var status map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if rr.Code != http.StatusOK || status["phase"] != "listening" {
		t.Fatalf("unexpected status response %d: %#v", rr.Code, status)
	}

	rr = get(t, s, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "boop_http_requests_total") {
		t.Fatalf("metrics missing request counter: %d", rr.Code)
	}
}

func TestTokenGuardsPrivateRoutes(t *testing.T) {
	testlog.Start(t)

	s := New(Config{
		Node:   "Rex",
		Token:  "s3cret",
		Status: func() any { return map[string]any{"name": "Rex"} },
	})

	if rr := get(t, s, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rr.Code)
	}
	for _, path := range []string{"/status", "/metrics"} {
		if rr := get(t, s, path); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestReadyReflectsDaemon(t *testing.T) {
	testlog.Start(t)

	ready := false
	s := New(Config{Node: "Rex", Ready: func() bool { return ready }})
	if rr := get(t, s, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rr.Code)
	}
	ready = true
	if rr := get(t, s, "/ready"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", rr.Code)
	}
	if rr := get(t, s, "/status"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without status source, got %d", rr.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	testlog.Start(t)

	s := New(Config{Node: "Rex", Addr: "127.0.0.1:0"})
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestListenFailure(t *testing.T) {
	s := New(Config{Node: "Rex", Addr: "not-an-address"})
	if err := s.Listen(); !errors.Is(err, ErrListen) {
		t.Fatalf("expected ErrListen, got %v", err)
	}
}
