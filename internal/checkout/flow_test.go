package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
	"github.com/xenking/crackers-checkout/internal/handler"
)

type stubGateway struct {
	calls atomic.Int32
}

func (g *stubGateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (*payment.Order, error) {
	g.calls.Add(1)
	return &payment.Order{
		ID:       "order_ABC",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
		Status:   "created",
	}, nil
}

// signingWidget pays and signs the claim the way the gateway does.
type signingWidget struct {
	signer    *payment.Verifier
	paymentID string
}

func (w *signingWidget) Open(_ context.Context, opts Options) (Completion, error) {
	return Completion{
		Outcome: OutcomePaid,
		Claim: payment.Claim{
			OrderID:   opts.OrderID,
			PaymentID: w.paymentID,
			Signature: w.signer.Sign(opts.OrderID, w.paymentID),
		},
	}, nil
}

func startServer(t *testing.T, secret string, gw payment.Gateway) string {
	t.Helper()

	svc, err := payment.NewService(gw, payment.NewVerifier(secret), nil,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.New(svc, handler.Config{}).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFlow_EndToEnd(t *testing.T) {
	gw := &stubGateway{}
	url := startServer(t, "s3cr3t", gw)

	widget := &signingWidget{signer: payment.NewVerifier("s3cr3t"), paymentID: "pay_XYZ"}
	c := NewCoordinator(loaderFor(widget), NewAPIClient(url, nil), Config{KeyID: "rzp_test_key"})

	res := await(t, c.Pay(context.Background(), testRequest))

	require.Equal(t, StatusSucceeded, res.Status, "err: %v", res.Err)
	assert.Equal(t, Payment{OrderID: "order_ABC", PaymentID: "pay_XYZ"}, res.Payment)
	assert.Equal(t, int32(1), gw.calls.Load())
}

func TestFlow_ForgedSignature(t *testing.T) {
	url := startServer(t, "s3cr3t", &stubGateway{})

	widget := &signingWidget{signer: payment.NewVerifier("not-the-secret"), paymentID: "pay_XYZ"}
	c := NewCoordinator(loaderFor(widget), NewAPIClient(url, nil), Config{})

	res := await(t, c.Pay(context.Background(), testRequest))

	assert.Equal(t, StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, ErrVerificationFailed)
	var apiErr *APIError
	require.ErrorAs(t, res.Err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Payment verification failed. Invalid signature.", apiErr.Message)
}

func TestFlow_InvalidAmountNeverReachesGateway(t *testing.T) {
	gw := &stubGateway{}
	url := startServer(t, "s3cr3t", gw)

	c := NewCoordinator(loaderFor(&signingWidget{}), NewAPIClient(url, nil), Config{})

	req := testRequest
	req.Amount = 0
	res := await(t, c.Pay(context.Background(), req))

	require.ErrorIs(t, res.Err, ErrOrderCreationFailed)
	assert.Zero(t, gw.calls.Load())
}
