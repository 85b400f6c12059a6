package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

const (
	insertOrderSQL = `INSERT INTO payment_orders (id, receipt, amount, amount_major, currency, status, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`

	insertVerificationSQL = `INSERT INTO payment_verifications (payment_id, order_id)
	VALUES ($1, $2)
	ON CONFLICT (payment_id) DO NOTHING`

	markOrderPaidSQL = `UPDATE payment_orders SET status = 'paid', paid_at = now()
	WHERE id = $1 AND paid_at IS NULL`

	getOrderSQL = `SELECT id, receipt, amount, amount_major, currency, status, notes, paid_at
	FROM payment_orders WHERE id = $1`
)

var _ payment.Recorder = (*PaymentRecorder)(nil)

// ErrNotFound is returned when a ledger row does not exist.
var ErrNotFound = errors.New("not found")

// LedgerOrder is an order as stored in the ledger.
type LedgerOrder struct {
	payment.Order
	AmountMajor decimal.Decimal
	PaidAt      *time.Time
}

// PaymentRecorder implements payment.Recorder backed by PostgreSQL.
type PaymentRecorder struct {
	pool *pgxpool.Pool
}

// NewPaymentRecorder returns a PaymentRecorder that uses the given pool.
func NewPaymentRecorder(pool *pgxpool.Pool) *PaymentRecorder {
	return &PaymentRecorder{pool: pool}
}

// RecordOrder stores a freshly issued order. Re-recording the same id is a
// no-op.
func (r *PaymentRecorder) RecordOrder(ctx context.Context, o *payment.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.Receipt, o.Amount, payment.ToMajor(o.Amount, o.Currency), o.Currency, o.Status, encodeNotes(o.Notes),
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

// RecordPayment stores a verified payment and marks its order paid in one
// transaction.
func (r *PaymentRecorder) RecordPayment(ctx context.Context, res *payment.VerificationResult) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertVerificationSQL, res.PaymentID, res.OrderID); err != nil {
			return errors.Wrapf(err, "insert verification %q", res.PaymentID)
		}
		if _, err := tx.Exec(ctx, markOrderPaidSQL, res.OrderID); err != nil {
			return errors.Wrapf(err, "mark order %q paid", res.OrderID)
		}
		return nil
	})
}

// GetOrder loads an order from the ledger.
func (r *PaymentRecorder) GetOrder(ctx context.Context, id string) (*LedgerOrder, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanLedgerOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "scan order %q", id)
	}
	return &o, nil
}

func scanLedgerOrder(row pgx.CollectableRow) (LedgerOrder, error) {
	var (
		o     LedgerOrder
		notes []byte
	)
	err := row.Scan(&o.ID, &o.Receipt, &o.Amount, &o.AmountMajor, &o.Currency, &o.Status, &notes, &o.PaidAt)
	if err != nil {
		return o, err
	}
	o.Notes, err = decodeNotes(notes)
	if err != nil {
		return o, errors.Wrap(err, "decode notes")
	}
	return o, nil
}

// encodeNotes renders notes as a JSON object for the JSONB column.
func encodeNotes(notes map[string]string) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		for k, v := range notes {
			e.Field(k, func(e *jx.Encoder) { e.Str(v) })
		}
	})
	return e.Bytes()
}

func decodeNotes(raw []byte) (map[string]string, error) {
	notes := map[string]string{}
	err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		notes[string(key)] = v
		return nil
	})
	return notes, err
}
