package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseOTLPEndpoint(t *testing.T) {
	tests := map[string]string{
		"http://tempo:4318": "tempo:4318",
		"https://collector": "collector:4318",
		"otel:4318":         "otel:4318",
		"":                  "",
	}
	for in, want := range tests {
		got, err := parseOTLPEndpoint(in)
		if err != nil {
			t.Fatalf("parseOTLPEndpoint(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("parseOTLPEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	if shutdown := Init("bookings", ""); shutdown != nil {
		t.Errorf("expected nil shutdown when tracing is disabled")
	}
}

func TestMiddleware_PassesThrough(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/lots", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
