package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock queries and adjustments.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}/stock", h.productStock)
	r.Get("/products/{id}/allocation", h.allocationPreview)
	r.Get("/stock", h.stocks)
	r.Post("/inventory/adjustments", h.adjust)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) productStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	summary, err := h.service.GetProductStock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) stocks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("product_ids")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_ids query parameter required")
		return
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id "+part)
			return
		}
		ids = append(ids, id)
	}
	summaries, err := h.service.GetProductStocks(r.Context(), ids)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": summaries})
}

func (h *Handler) allocationPreview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity query parameter required")
		return
	}
	allocations, err := h.service.AllocateFIFO(r.Context(), id, quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": allocations})
}

type adjustmentRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	BatchID   *int64 `json:"batchId,omitempty"`
	Quantity  int64  `json:"quantity" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		BatchID:   req.BatchID,
		Quantity:  req.Quantity,
		Note:      req.Note,
		ActorID:   auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("adjust stock", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}
