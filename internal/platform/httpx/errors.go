package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrProductNotFound),
		errors.Is(err, shared.ErrShopNotFound),
		errors.Is(err, shared.ErrBatchNotFound),
		errors.Is(err, shared.ErrOrderNotFound),
		errors.Is(err, shared.ErrPurchaseNotFound),
		errors.Is(err, shared.ErrCategoryNotFound),
		errors.Is(err, shared.ErrPriceRuleNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrProductNotBatchManaged),
		errors.Is(err, shared.ErrMissingBatchDates),
		errors.Is(err, shared.ErrInvariantViolation),
		errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
