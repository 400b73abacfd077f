package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parksphere/pkg/client"
	"parksphere/pkg/config"
	"parksphere/pkg/logger"
	"parksphere/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("echo"))
	})
	router.GET("/api/v1/panic", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		panic("boom")
	})
}

func newTestApp(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Port:              "0",
		Log:               logger.Discard(),
		Client:            client.NewClient(),
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   time.Second,
	}
	a := NewApplication(cfg)
	a.SetApp(echoHandler{})
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a.Handler()
}

func TestApplication_Routes(t *testing.T) {
	h := newTestApp(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/ready", http.StatusOK, `"status":"ready"`},
		{"/api/v1/echo", http.StatusOK, "echo"},
		{"/metrics", http.StatusOK, "http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

func TestApplication_RequestIDAndRecovery(t *testing.T) {
	h := newTestApp(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestApplication_RateLimitPerRequester(t *testing.T) {
	h := newTestApp(t)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil)
		req.Header.Set(middleware.RequesterIDHeader, "u-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want [200 200 429]", statuses)
	}
}

func TestApplication_OnShutdownRunsInReverse(t *testing.T) {
	a := NewApplication(&config.Config{Log: logger.Discard()})

	var order []string
	a.OnShutdown(func() { order = append(order, "first") })
	a.OnShutdown(nil)
	a.OnShutdown(func() { order = append(order, "second") })

	for i := len(a.onShutdown) - 1; i >= 0; i-- {
		a.onShutdown[i]()
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("order = %v, want [second first]", order)
	}
}
