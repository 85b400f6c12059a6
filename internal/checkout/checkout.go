// Package checkout drives one payment attempt from the storefront side:
// load the gateway widget, mint an order through the payment server, let
// the customer pay, and have the server verify the completion claim.
package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrWidgetLoadFailed means the gateway checkout widget could not be
	// loaded. No order was created.
	ErrWidgetLoadFailed = errors.New("failed to load payment widget")
	// ErrOrderCreationFailed means the payment server did not mint an order.
	ErrOrderCreationFailed = errors.New("failed to create payment order")
	// ErrVerificationFailed means the server rejected the completion claim or
	// could not be asked.
	ErrVerificationFailed = errors.New("payment verification failed")
	// ErrPaymentCancelled is carried by StatusCancelled results.
	ErrPaymentCancelled = errors.New("payment cancelled by user")
	// ErrAttemptInFlight is returned by Pay while another attempt is running.
	ErrAttemptInFlight = errors.New("payment attempt already in progress")
)

// PaymentFailedError is a failure reported by the widget itself, such as a
// declined card.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment failed: %s", e.Reason)
}

// StepError is a failed step of a payment attempt. It matches the step's
// sentinel (ErrWidgetLoadFailed, ErrOrderCreationFailed or
// ErrVerificationFailed) via errors.Is and unwraps to the cause.
type StepError struct {
	Step error
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is reports the step's sentinel as a match.
func (e *StepError) Is(target error) bool {
	return target == e.Step
}

// Status tags a Result.
type Status int

const (
	StatusSucceeded Status = iota + 1
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Payment identifies a verified payment.
type Payment struct {
	OrderID   string
	PaymentID string
}

// Result is the single outcome of a Pay call. Payment is set only for
// StatusSucceeded and Err only for the other two.
type Result struct {
	Status  Status
	Payment Payment
	Err     error
}

// Match calls exactly one of the callbacks according to Status.
func (r Result) Match(onSuccess func(Payment), onCancel func(), onFailure func(error)) {
	switch r.Status {
	case StatusSucceeded:
		onSuccess(r.Payment)
	case StatusCancelled:
		onCancel()
	default:
		err := r.Err
		if err == nil {
			err = errors.Errorf("unexpected result status %s", r.Status)
		}
		onFailure(err)
	}
}

func succeeded(p Payment) Result { return Result{Status: StatusSucceeded, Payment: p} }

func cancelled() Result { return Result{Status: StatusCancelled, Err: ErrPaymentCancelled} }

func failed(err error) Result { return Result{Status: StatusFailed, Err: err} }

// State is the coordinator's position in the payment flow.
type State int32

const (
	StateIdle State = iota
	StateLoadingWidget
	StateCreatingOrder
	StateAwaitingUserPayment
	StateVerifying
	StateSucceeded
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateLoadingWidget:       "loading_widget",
	StateCreatingOrder:       "creating_order",
	StateAwaitingUserPayment: "awaiting_user_payment",
	StateVerifying:           "verifying",
	StateSucceeded:           "succeeded",
	StateCancelled:           "cancelled",
	StateFailed:              "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// busy reports whether an attempt is between start and outcome.
func (s State) busy() bool {
	return s >= StateLoadingWidget && s <= StateVerifying
}
