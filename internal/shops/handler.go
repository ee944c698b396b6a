package shops

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for shops and price rules.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the shops handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers shop and price rule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/shops", h.listShops)
	r.Post("/shops", h.createShop)
	r.Get("/shops/{id}", h.getShop)
	r.Patch("/shops/{id}", h.updateShop)
	r.Delete("/shops/{id}", h.deleteShop)
	r.Post("/shops/{id}/arrears/settle", h.settleArrears)

	r.Get("/price-rules", h.listRules)
	r.Post("/price-rules", h.createRule)
	r.Put("/price-rules/{id}", h.updateRule)
	r.Delete("/price-rules/{id}", h.deleteRule)
	r.Get("/price-rules/{id}/items", h.listRuleItems)
	r.Put("/price-rules/{id}/items", h.setItemPrice)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ShopFilter{Search: q.Get("search")}
	if v := q.Get("slow"); v != "" {
		slow := v == "true"
		filter.Slow = &slow
	}
	filter.IncludeDeleted = q.Get("include_deleted") == "true"

	items, err := h.service.ListShops(r.Context(), filter)
	if err != nil {
		h.logger.Error("list shops", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shop id")
		return
	}
	shop, err := h.service.GetShop(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var input CreateShopInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shop, err := h.service.CreateShop(r.Context(), input)
	if err != nil {
		h.logger.Error("create shop", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shop)
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shop id")
		return
	}
	var input UpdateShopInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shop, err := h.service.UpdateShop(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) deleteShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shop id")
		return
	}
	if err := h.service.DeleteShop(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settleInput struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) settleArrears(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shop id")
		return
	}
	var input settleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.SettleArrears(r.Context(), id, input.Amount); err != nil {
		h.logger.Error("settle arrears", slog.Int64("shop_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ruleInput struct {
	Name  string `json:"name" validate:"required,max=20"`
	Color string `json:"color" validate:"max=20"`
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRules(r.Context())
	if err != nil {
		h.logger.Error("list price rules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var input ruleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pr, err := h.service.CreateRule(r.Context(), input.Name, input.Color)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid price rule id")
		return
	}
	var input ruleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateRule(r.Context(), PriceRule{ID: id, Name: input.Name, Color: input.Color}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid price rule id")
		return
	}
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRuleItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid price rule id")
		return
	}
	items, err := h.service.ListRuleItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

type itemInput struct {
	ProductID    int64           `json:"productId" validate:"required,gt=0"`
	Price        decimal.Decimal `json:"price"`
	DefaultPrice bool            `json:"defaultPrice"`
}

func (h *Handler) setItemPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid price rule id")
		return
	}
	var input itemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetItemPrice(r.Context(), id, input.ProductID, input.Price, input.DefaultPrice); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
