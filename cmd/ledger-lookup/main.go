// Command ledger-lookup prints the ledger entry of a gateway order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/crackers-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		orderID     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&orderID, "order-id", "", "gateway order id")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if orderID == "" {
		slog.Error("order id is required: set --order-id")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, orderID); err != nil {
		slog.Error("lookup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, orderID string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	o, err := postgres.NewPaymentRecorder(pool).GetOrder(ctx, orderID)
	if errors.Is(err, postgres.ErrNotFound) {
		return errors.Errorf("order %q is not in the ledger", orderID)
	}
	if err != nil {
		return err
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.SetIdent(2)
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(o.Receipt) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(o.Amount) })
		e.Field("amount_major", func(e *jx.Encoder) { e.Str(o.AmountMajor.StringFixed(2)) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("notes", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for k, v := range o.Notes {
					e.Field(k, func(e *jx.Encoder) { e.Str(v) })
				}
			})
		})
		if o.PaidAt != nil {
			e.Field("paid_at", func(e *jx.Encoder) { e.Str(o.PaidAt.UTC().Format(time.RFC3339)) })
		}
	})
	fmt.Println(e.String())
	return nil
}
