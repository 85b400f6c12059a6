package razorpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int) {
	t.Helper()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{KeyID: "rzp_test_key", KeySecret: "rzp_test_secret", BaseURL: srv.URL + "/"}, srv.Client())
	return c, &calls
}

func TestCreateOrder_Success(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"amount": 49900,
			"currency": "INR",
			"receipt": "rcpt_1",
			"notes": {"address": "12 Main St"}
		}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "order_IluGWxBm9U8zJ8",
			"entity": "order",
			"amount": 49900,
			"amount_paid": 0,
			"amount_due": 49900,
			"currency": "INR",
			"receipt": "rcpt_1",
			"offer_id": null,
			"status": "created",
			"attempts": 0,
			"notes": {"address": "12 Main St"},
			"created_at": 1642662092
		}`)
	})

	o, err := c.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount:   49900,
		Currency: "INR",
		Receipt:  "rcpt_1",
		Notes:    map[string]string{"address": "12 Main St"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	assert.Equal(t, "order_IluGWxBm9U8zJ8", o.ID)
	assert.Equal(t, int64(49900), o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "rcpt_1", o.Receipt)
	assert.Equal(t, "created", o.Status)
	assert.Equal(t, "12 Main St", o.Notes["address"])
}

func TestCreateOrder_EmptyNotesArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"order_1","amount":100,"currency":"INR","receipt":null,"status":"created","notes":[]}`)
	})

	o, err := c.CreateOrder(context.Background(), payment.CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
	require.NoError(t, err)
	assert.Equal(t, "order_1", o.ID)
	assert.Empty(t, o.Notes)
	assert.Empty(t, o.Receipt)
}

func TestCreateOrder_GatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "auth failure",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed","source":"NA"}}`,
			wantMsg: "Authentication failed",
		},
		{
			name:    "rate limited without body",
			status:  http.StatusTooManyRequests,
			body:    ``,
			wantMsg: "gateway responded with status 429",
		},
		{
			name:    "validation",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":"BAD_REQUEST_ERROR","description":"Order amount less than minimum amount allowed"}}`,
			wantMsg: "Order amount less than minimum amount allowed",
		},
		{
			name:    "ok status without id",
			status:  http.StatusOK,
			body:    `{"amount":100}`,
			wantMsg: "gateway order has no id",
		},
		{
			name:    "ok status with garbage",
			status:  http.StatusOK,
			body:    `<html>`,
			wantMsg: "decode gateway order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.CreateOrder(context.Background(), payment.CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
			require.ErrorIs(t, err, payment.ErrOrderCreationFailed)

			var oce *payment.OrderCreationError
			require.ErrorAs(t, err, &oce)
			assert.Equal(t, tt.wantMsg, oce.Message)
			assert.NotContains(t, err.Error(), "rzp_test_secret")
			assert.Equal(t, 1, *calls, "no retry")
		})
	}
}

func TestCreateOrder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL}, nil)
	_, err := c.CreateOrder(context.Background(), payment.CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})

	var oce *payment.OrderCreationError
	require.ErrorAs(t, err, &oce)
	assert.Equal(t, "gateway unreachable", oce.Message)
}

func TestEncodeOrderRequest_ValidJSON(t *testing.T) {
	raw := encodeOrderRequest(payment.CreateOrderRequest{
		Amount:   1,
		Currency: "INR",
		Receipt:  `quote"d`,
		Notes:    map[string]string{},
	})
	assert.True(t, jx.Valid(raw))
	assert.JSONEq(t, `{"amount":1,"currency":"INR","receipt":"quote\"d","notes":{}}`, string(raw))
}
