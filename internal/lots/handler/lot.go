package handler

import (
	"net/http"

	"parksphere/internal/lots/service"
	httputil "parksphere/pkg/http"
	"parksphere/pkg/logger"
	"parksphere/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LotHandler struct {
	service service.LotService
	log     *logger.Logger
}

func NewLotHandler(service service.LotService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: service,
		log:     log,
	}
}

func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var lot model.Lot
	if err := httputil.DecodeJSON(r, &lot, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Create(r.Context(), &lot); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, lot, "Parking lot created"); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *LotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, lot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LotHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	lots, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, lots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *LotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/lots", h.Create)
	router.GET("/api/v1/lots", h.GetAll)
	router.GET("/api/v1/lots/id/:id", h.GetByID)
}
