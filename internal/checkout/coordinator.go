package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

// Backend is the payment server as seen from the storefront.
type Backend interface {
	CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.Order, error)
	Verify(ctx context.Context, c payment.Claim) (*payment.VerificationResult, error)
}

// PayRequest describes one checkout attempt.
type PayRequest struct {
	// Amount in the smallest currency unit.
	Amount  int64
	Receipt string
	Prefill Prefill
	Notes   map[string]string
}

// Config configures a Coordinator.
type Config struct {
	// KeyID is the public gateway key id.
	KeyID string
	// Currency defaults to payment.DefaultCurrency.
	Currency string
	// Merchant defaults to DefaultMerchant when its Name is empty.
	Merchant Merchant
	// VerifyTimeout bounds the verification call, which is detached from
	// the caller's context once the customer has paid. Defaults to 30s.
	VerifyTimeout time.Duration
}

// Coordinator runs payment attempts one at a time.
type Coordinator struct {
	loader  *WidgetLoader
	backend Backend
	cfg     Config

	mu    sync.Mutex
	state State
}

// NewCoordinator returns an idle Coordinator.
func NewCoordinator(loader *WidgetLoader, backend Backend, cfg Config) *Coordinator {
	if cfg.Currency == "" {
		cfg.Currency = payment.DefaultCurrency
	}
	if cfg.Merchant.Name == "" {
		cfg.Merchant = DefaultMerchant
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 30 * time.Second
	}
	return &Coordinator{
		loader:  loader,
		backend: backend,
		cfg:     cfg,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) set(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Pay starts an attempt and returns immediately. The channel yields exactly
// one Result and is then closed. While another attempt is running the
// result is a failure with ErrAttemptInFlight and the running attempt is
// untouched. If ctx ends while the widget is open the attempt is cancelled.
func (c *Coordinator) Pay(ctx context.Context, req PayRequest) <-chan Result {
	out := make(chan Result, 1)

	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		out <- failed(ErrAttemptInFlight)
		close(out)
		return out
	}
	c.state = StateLoadingWidget
	c.mu.Unlock()

	go func() {
		defer close(out)
		res := c.run(ctx, req)
		switch res.Status {
		case StatusSucceeded:
			c.set(StateSucceeded)
		case StatusCancelled:
			c.set(StateCancelled)
		default:
			c.set(StateFailed)
		}
		out <- res
	}()
	return out
}

func (c *Coordinator) run(ctx context.Context, req PayRequest) Result {
	lg := zctx.From(ctx).With(zap.String("receipt", req.Receipt))

	widget, err := c.loader.Load(ctx)
	if err != nil {
		lg.Warn("Widget load failed", zap.Error(err))
		return failed(&StepError{Step: ErrWidgetLoadFailed, Err: err})
	}

	c.set(StateCreatingOrder)
	order, err := c.backend.CreateOrder(ctx, payment.CreateOrderRequest{
		Amount:   req.Amount,
		Currency: c.cfg.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		lg.Warn("Create order failed", zap.Error(err))
		return failed(&StepError{Step: ErrOrderCreationFailed, Err: err})
	}
	lg = lg.With(zap.String("order_id", order.ID))

	c.set(StateAwaitingUserPayment)
	done, err := widget.Open(ctx, Options{
		Key:      c.cfg.KeyID,
		Amount:   order.Amount,
		Currency: order.Currency,
		OrderID:  order.ID,
		Merchant: c.cfg.Merchant,
		Prefill:  req.Prefill,
		Notes:    req.Notes,
	})
	if err != nil {
		if ctx.Err() != nil {
			lg.Info("Payment abandoned", zap.Error(ctx.Err()))
			return cancelled()
		}
		return failed(&PaymentFailedError{Reason: err.Error()})
	}

	switch done.Outcome {
	case OutcomeDismissed:
		lg.Info("Payment cancelled by user")
		return cancelled()
	case OutcomeFailed:
		reason := strings.TrimSpace(done.Reason)
		if reason == "" {
			reason = "Payment failed."
		}
		lg.Warn("Payment failed", zap.String("reason", reason))
		return failed(&PaymentFailedError{Reason: reason})
	case OutcomePaid:
	default:
		return failed(&PaymentFailedError{Reason: "widget returned no outcome"})
	}

	claim := done.Claim
	if claim.OrderID != order.ID {
		lg.Warn("Claim for another order", zap.String("claim_order_id", claim.OrderID))
		return failed(errors.Wrap(ErrVerificationFailed, "claim does not belong to this order"))
	}

	c.set(StateVerifying)
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.VerifyTimeout)
	defer cancel()

	res, err := c.backend.Verify(vctx, claim)
	if err != nil {
		lg.Warn("Verification failed", zap.Error(err))
		return failed(&StepError{Step: ErrVerificationFailed, Err: err})
	}
	if res == nil || !res.Valid {
		lg.Warn("Verification rejected")
		return failed(ErrVerificationFailed)
	}

	lg.Info("Payment verified", zap.String("payment_id", claim.PaymentID))
	return succeeded(Payment{OrderID: claim.OrderID, PaymentID: claim.PaymentID})
}
