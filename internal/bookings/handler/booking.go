package handler

import (
	"net/http"

	"parksphere/internal/bookings/service"
	httputil "parksphere/pkg/http"
	"parksphere/pkg/logger"
	"parksphere/pkg/middleware"
	"parksphere/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, view, "Booking confirmed"); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Cancel takes the requester from the optional JSON body, falling back to
// the X-Requester-ID header.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CancelRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = r.Header.Get(middleware.RequesterIDHeader)
	}

	view, err := h.service.Cancel(r.Context(), ps.ByName("id"), req.RequesterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccessWithMessage(w, view, "Booking cancelled successfully"); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByRequester(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	views, err := h.service.GetByRequester(r.Context(), ps.ByName("requester_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, views); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByRequester", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Occupancy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	occupancy, err := h.service.Occupancy(r.Context(), ps.ByName("id"), query.Get("date"), query.Get("time"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, occupancy); err != nil {
		h.log.Error("failed to write success response", "handler", "Occupancy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/bookings/requester/:requester_id", h.GetByRequester)
	router.GET("/api/v1/lots/id/:id/occupancy", h.Occupancy)
}
