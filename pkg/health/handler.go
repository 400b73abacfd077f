package health

import (
	"context"
	"net/http"
	"time"

	"parksphere/pkg/db"
	httputil "parksphere/pkg/http"
	"parksphere/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type Response struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Handler serves liveness on /health and readiness on /ready. Readiness
// pings every registered dependency.
type Handler struct {
	deps    map[string]db.Pinger
	timeout time.Duration
	log     *logger.Logger
}

func NewHandler(log *logger.Logger) *Handler {
	return &Handler{
		deps:    make(map[string]db.Pinger),
		timeout: 2 * time.Second,
		log:     log,
	}
}

func (h *Handler) AddDependency(name string, p db.Pinger) *Handler {
	if p != nil {
		h.deps[name] = p
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	resp := Response{Status: "ready", Dependencies: make(map[string]string, len(h.deps))}

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Error("Dependency health check failed", "dependency", name, "error", err)
			resp.Dependencies[name] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// PingFunc adapts a function to db.Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
