package shared

import "errors"

// Domain error kinds shared across modules. Services wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is while the
// HTTP edge maps them to status codes.
var (
	// ErrProductNotFound indicates a product id that does not resolve.
	ErrProductNotFound = errors.New("product not found")
	// ErrShopNotFound indicates a shop id that does not resolve.
	ErrShopNotFound = errors.New("shop not found")
	// ErrBatchNotFound indicates a batch id that does not resolve.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrOrderNotFound indicates an order id that does not resolve.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPurchaseNotFound indicates a purchase id that does not resolve.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrCategoryNotFound indicates a category id that does not resolve.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrPriceRuleNotFound indicates a price rule id that does not resolve.
	ErrPriceRuleNotFound = errors.New("price rule not found")

	// ErrInsufficientStock indicates demand exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotBatchManaged rejects batch operations on pool-tracked products.
	ErrProductNotBatchManaged = errors.New("product not batch managed")
	// ErrMissingBatchDates rejects batch-managed purchase lines without dates.
	ErrMissingBatchDates = errors.New("production and expiration dates required")
	// ErrInvariantViolation indicates a caller-constructed request inconsistency.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidState occurs when an action violates a document's state workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidCredentials rejects a missing, unknown or revoked API key.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
