package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// DefaultCurrency is used when a create-order request omits the currency.
const DefaultCurrency = "INR"

var (
	// ErrInvalidAmount is returned when the requested amount is not a positive
	// integer count of the smallest currency unit.
	ErrInvalidAmount = errors.New("invalid amount: must be a positive integer in the smallest currency unit")
	// ErrMissingReceipt is returned when a create-order request has no receipt.
	ErrMissingReceipt = errors.New("receipt is required")
	// ErrMissingVerificationFields is returned when a completion claim lacks
	// the order id, payment id or signature.
	ErrMissingVerificationFields = errors.New("missing payment verification fields")
	// ErrInvalidSignature is returned for any claim whose signature does not
	// verify. The cause is intentionally not distinguished.
	ErrInvalidSignature = errors.New("payment verification failed")
	// ErrOrderCreationFailed matches every *OrderCreationError via errors.Is.
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// OrderCreationError wraps a gateway-side failure while minting an order.
// Message carries the gateway's description for diagnostics.
type OrderCreationError struct {
	Message string
	Err     error
}

func (e *OrderCreationError) Error() string {
	if e.Message == "" {
		return ErrOrderCreationFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrOrderCreationFailed, e.Message)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// Is reports ErrOrderCreationFailed as a match.
func (e *OrderCreationError) Is(target error) bool {
	return target == ErrOrderCreationFailed
}

// Order is a pending charge registered with the gateway before the user pays.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
	Status   string
}

// Claim is the payload the payment widget hands back after the user pays.
type Claim struct {
	OrderID   string
	PaymentID string
	Signature string
}

// complete reports whether every claim field is present.
func (c Claim) complete() bool {
	return c.OrderID != "" && c.PaymentID != "" && c.Signature != ""
}

// VerificationResult is the outcome of checking a Claim.
type VerificationResult struct {
	Valid     bool
	OrderID   string
	PaymentID string
}

// CreateOrderRequest holds the input for minting a gateway order.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Gateway mints orders with the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
}

// Recorder persists payment events for the order-management side. It never
// influences the verification decision.
type Recorder interface {
	RecordOrder(ctx context.Context, o *Order) error
	RecordPayment(ctx context.Context, r *VerificationResult) error
}

// NopRecorder discards every event. Used when no ledger is configured.
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) RecordOrder(context.Context, *Order) error { return nil }

func (NopRecorder) RecordPayment(context.Context, *VerificationResult) error { return nil }
