//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pay",
				"POSTGRES_PASSWORD": "pay",
				"POSTGRES_DB":       "pay",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://pay:pay@%s:%s/pay?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPaymentRecorder(t *testing.T) {
	pool := startPostgres(t)
	rec := NewPaymentRecorder(pool)
	ctx := context.Background()

	o := &payment.Order{
		ID:       "order_IT1",
		Amount:   109850,
		Currency: "INR",
		Receipt:  "rcpt_1700000000000",
		Notes:    map[string]string{"address": "12 Main St, Sivakasi"},
		Status:   "created",
	}
	require.NoError(t, rec.RecordOrder(ctx, o))
	require.NoError(t, rec.RecordOrder(ctx, o), "duplicate order is a no-op")

	got, err := rec.GetOrder(ctx, "order_IT1")
	require.NoError(t, err)
	assert.Equal(t, "created", got.Status)
	assert.Equal(t, int64(109850), got.Amount)
	assert.True(t, decimal.RequireFromString("1098.50").Equal(got.AmountMajor))
	assert.Equal(t, o.Notes, got.Notes)
	assert.Nil(t, got.PaidAt)

	res := &payment.VerificationResult{Valid: true, OrderID: "order_IT1", PaymentID: "pay_IT1"}
	require.NoError(t, rec.RecordPayment(ctx, res))
	require.NoError(t, rec.RecordPayment(ctx, res), "duplicate payment is a no-op")

	got, err = rec.GetOrder(ctx, "order_IT1")
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	assert.NotNil(t, got.PaidAt)

	_, err = rec.GetOrder(ctx, "order_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRecorder_AmountMajorPrecision(t *testing.T) {
	pool := startPostgres(t)
	rec := NewPaymentRecorder(pool)
	ctx := context.Background()

	tests := []struct {
		id       string
		amount   int64
		currency string
		major    string
	}{
		{id: "order_KWD", amount: 1234, currency: "KWD", major: "1.234"},
		{id: "order_JPY", amount: 9_000_000_000_000_000_000, currency: "JPY", major: "9000000000000000000"},
		{id: "order_BIG", amount: 9_000_000_000_000_000_000, currency: "INR", major: "90000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			require.NoError(t, rec.RecordOrder(ctx, &payment.Order{
				ID:       tt.id,
				Amount:   tt.amount,
				Currency: tt.currency,
				Receipt:  "rcpt_" + tt.id,
				Status:   "created",
			}))

			got, err := rec.GetOrder(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.amount, got.Amount)
			assert.True(t, decimal.RequireFromString(tt.major).Equal(got.AmountMajor), "got %s", got.AmountMajor)
		})
	}
}
