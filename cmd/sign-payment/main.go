// Command sign-payment produces a completion signature for local testing and
// optionally submits it to a running payment server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/crackers-checkout/internal/checkout"
	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

func main() {
	var (
		orderID   string
		paymentID string
		secret    string
		server    string
	)

	flag.StringVar(&orderID, "order-id", "", "gateway order id")
	flag.StringVar(&paymentID, "payment-id", "", "gateway payment id")
	flag.StringVar(&secret, "secret", "", "gateway key secret (or RAZORPAY_KEY_SECRET env)")
	flag.StringVar(&server, "server", "", "payment server base URL to verify against, e.g. http://localhost:5000")
	flag.Parse()

	if secret == "" {
		secret = os.Getenv("RAZORPAY_KEY_SECRET")
	}
	if orderID == "" || paymentID == "" || secret == "" {
		slog.Error("order id, payment id and secret are required")
		flag.Usage()
		os.Exit(2)
	}

	claim := payment.Claim{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: payment.NewVerifier(secret).Sign(orderID, paymentID),
	}

	e := jx.GetEncoder()
	e.SetIdent(2)
	e.Obj(func(e *jx.Encoder) {
		e.Field("razorpay_order_id", func(e *jx.Encoder) { e.Str(claim.OrderID) })
		e.Field("razorpay_payment_id", func(e *jx.Encoder) { e.Str(claim.PaymentID) })
		e.Field("razorpay_signature", func(e *jx.Encoder) { e.Str(claim.Signature) })
	})
	fmt.Println(e.String())
	jx.PutEncoder(e)

	if server == "" {
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 15*time.Second)
	defer cancelTimeout()

	res, err := checkout.NewAPIClient(server, nil).Verify(ctx, claim)
	if err != nil {
		slog.Error("verification failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("payment verified",
		slog.String("order_id", res.OrderID),
		slog.String("payment_id", res.PaymentID),
	)
}
