package batches

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the batch registry. Batches are created
// through purchase intake, so the write surface here is limited to status
// flips and remarks.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	validate *validator.Validate
}

// NewHandler constructs the batches handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validate: validator.New()}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches", h.list)
	r.Get("/batches/{id}", h.get)
	r.Post("/batches/{id}/enable", h.enable)
	r.Post("/batches/{id}/disable", h.disable)
	r.Patch("/batches/{id}/remark", h.updateRemark)
	r.Get("/products/{id}/batches/valid", h.listValid)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	if v := q.Get("product_id"); v != "" {
		filter.ProductID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("status"); v != "" {
		enabled := v == "true"
		filter.Status = &enabled
	}
	items, err := h.registry.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	b, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, true)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, false)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	if enabled {
		err = h.registry.Enable(r.Context(), id)
	} else {
		err = h.registry.Disable(r.Context(), id)
	}
	if err != nil {
		h.logger.Error("set batch status", slog.Int64("batch_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type remarkInput struct {
	Remark string `json:"remark" validate:"max=500"`
}

func (h *Handler) updateRemark(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	var input remarkInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.registry.UpdateRemark(r.Context(), id, input.Remark); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listValid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	items, err := h.registry.FindValid(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
