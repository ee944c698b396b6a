package statistics

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for sales statistics.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the statistics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers statistics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statistics/daily", h.daily)
	r.Get("/statistics/range", h.rangeStats)
	r.Get("/statistics/trend", h.trend)
	r.Get("/statistics/moving-average", h.movingAverage)
	r.Get("/statistics/purchase-suggestions", h.suggestions)
}

func dateRange(r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD dates")
		return
	}
	stats, err := h.service.DailyStatistics(r.Context(), from, to)
	if err != nil {
		h.logger.Error("daily statistics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": stats})
}

func (h *Handler) rangeStats(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD dates")
		return
	}
	stat, err := h.service.RangeStatistics(r.Context(), from, to)
	if err != nil {
		h.logger.Error("range statistics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stat)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD dates")
		return
	}
	period, _ := strconv.Atoi(r.URL.Query().Get("period"))
	if period <= 0 {
		period = 7
	}
	line, err := h.service.OverallTrend(r.Context(), period, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) movingAverage(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD dates")
		return
	}
	metric, err := ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, _ := strconv.Atoi(r.URL.Query().Get("period"))
	if period <= 0 {
		period = 7
	}
	var productIDs []int64
	for _, raw := range strings.Split(r.URL.Query().Get("product_ids"), ",") {
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id list")
			return
		}
		productIDs = append(productIDs, id)
	}

	line, err := h.service.ProductMovingAverage(r.Context(), productIDs, metric, period, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	analyze := queryInt(q.Get("days"), 30)
	lead := queryInt(q.Get("lead_time"), 7)
	safety := queryInt(q.Get("safety_stock"), 14)

	suggestions, err := h.service.PurchaseSuggestions(r.Context(), analyze, lead, safety)
	if err != nil {
		h.logger.Error("purchase suggestions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": suggestions})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
