package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/crackers-checkout/internal/domain/payment"

// Service encapsulates order issuing and payment verification.
type Service struct {
	gateway  Gateway
	verifier *Verifier
	recorder Recorder

	tracer        trace.Tracer
	ordersIssued  metric.Int64Counter
	verifications metric.Int64Counter
}

// NewService creates a payment Service. A nil recorder is replaced by
// NopRecorder.
func NewService(
	gateway Gateway,
	verifier *Verifier,
	recorder Recorder,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	meter := mp.Meter(instrumentationName)
	ordersIssued, err := meter.Int64Counter("payment.orders.issued",
		metric.WithDescription("Gateway orders created, by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	verifications, err := meter.Int64Counter("payment.verifications",
		metric.WithDescription("Payment completion claims checked, by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "verifications counter")
	}

	return &Service{
		gateway:       gateway,
		verifier:      verifier,
		recorder:      recorder,
		tracer:        tp.Tracer(instrumentationName),
		ordersIssued:  ordersIssued,
		verifications: verifications,
	}, nil
}

// CreateOrder validates the request and mints a gateway order with exactly
// one gateway call. Validation failures never reach the gateway.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.Receipt) == "" {
		return nil, ErrMissingReceipt
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if req.Notes == nil {
		req.Notes = map[string]string{}
	}

	ctx, span := s.tracer.Start(ctx, "payment.CreateOrder", trace.WithAttributes(
		attribute.String("payment.receipt", req.Receipt),
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.currency", req.Currency),
	))
	defer span.End()

	o, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.ordersIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway create order")

		var oce *OrderCreationError
		if errors.As(err, &oce) {
			return nil, err
		}
		return nil, &OrderCreationError{Message: err.Error(), Err: err}
	}

	if o.Amount != req.Amount || !strings.EqualFold(o.Currency, req.Currency) {
		s.ordersIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "mismatch")))
		span.SetStatus(codes.Error, "gateway order mismatch")
		return nil, &OrderCreationError{
			Message: "gateway returned an order that does not match the requested amount or currency",
		}
	}

	s.ordersIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	span.SetAttributes(attribute.String("payment.order_id", o.ID))

	if err := s.recorder.RecordOrder(ctx, o); err != nil {
		// Ledger write failures do not fail order creation.
		zctx.From(ctx).Warn("Record order failed", zap.String("order_id", o.ID), zap.Error(err))
	}

	return o, nil
}

// VerifyPayment checks a completion claim. Incomplete claims are rejected
// before any cryptographic work; a bad signature always yields
// ErrInvalidSignature regardless of the reason.
func (s *Service) VerifyPayment(ctx context.Context, c Claim) (*VerificationResult, error) {
	if !c.complete() {
		return nil, ErrMissingVerificationFields
	}

	ctx, span := s.tracer.Start(ctx, "payment.VerifyPayment", trace.WithAttributes(
		attribute.String("payment.order_id", c.OrderID),
		attribute.String("payment.payment_id", c.PaymentID),
	))
	defer span.End()

	if !s.verifier.Verify(c.OrderID, c.PaymentID, c.Signature) {
		s.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "invalid")))
		span.SetStatus(codes.Error, "invalid signature")
		zctx.From(ctx).Warn("Signature mismatch", zap.String("order_id", c.OrderID))
		return nil, ErrInvalidSignature
	}
	s.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))

	res := &VerificationResult{
		Valid:     true,
		OrderID:   c.OrderID,
		PaymentID: c.PaymentID,
	}
	if err := s.recorder.RecordPayment(ctx, res); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "record payment")
	}

	zctx.From(ctx).Info("Payment verified",
		zap.String("order_id", c.OrderID),
		zap.String("payment_id", c.PaymentID),
	)
	return res, nil
}
