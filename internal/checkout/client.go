package checkout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

const maxResponseSize = 1 << 20

var _ Backend = (*APIClient)(nil)

// APIError is a non-success answer from the payment server.
type APIError struct {
	StatusCode int
	Message    string
	// Detail is the server's optional "error" field.
	Detail string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", msg, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", msg, e.StatusCode)
}

// APIClient talks to the payment server's /api/payment endpoints.
type APIClient struct {
	base string
	http *http.Client
}

// NewAPIClient returns a client for the server at baseURL. A nil client
// means http.DefaultClient.
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{
		base: strings.TrimRight(baseURL, "/") + "/api/payment",
		http: client,
	}
}

// envelope is the server's response shape.
type envelope struct {
	success bool
	message string
	detail  string
	order   *payment.Order
	payment Payment
}

// CreateOrder asks the server to mint a gateway order.
func (c *APIClient) CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.Order, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.Amount) })
		if req.Currency != "" {
			e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		}
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
		e.Field("notes", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for k, v := range req.Notes {
					e.Field(k, func(e *jx.Encoder) { e.Str(v) })
				}
			})
		})
	})

	env, err := c.post(ctx, "/create-order", e.Bytes())
	if err != nil {
		return nil, err
	}
	if env.order == nil || env.order.ID == "" {
		return nil, errors.New("response has no order")
	}
	return env.order, nil
}

// Verify forwards a completion claim under the widget's native field names.
func (c *APIClient) Verify(ctx context.Context, claim payment.Claim) (*payment.VerificationResult, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("razorpay_order_id", func(e *jx.Encoder) { e.Str(claim.OrderID) })
		e.Field("razorpay_payment_id", func(e *jx.Encoder) { e.Str(claim.PaymentID) })
		e.Field("razorpay_signature", func(e *jx.Encoder) { e.Str(claim.Signature) })
	})

	env, err := c.post(ctx, "/verify", e.Bytes())
	if err != nil {
		return nil, err
	}
	res := &payment.VerificationResult{
		Valid:     true,
		OrderID:   env.payment.OrderID,
		PaymentID: env.payment.PaymentID,
	}
	if res.OrderID == "" {
		res.OrderID = claim.OrderID
	}
	if res.PaymentID == "" {
		res.PaymentID = claim.PaymentID
	}
	return res, nil
}

func (c *APIClient) post(ctx context.Context, path string, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	env, decodeErr := decodeEnvelope(raw)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || decodeErr != nil || !env.success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.message
			apiErr.Detail = env.detail
		}
		if ok && decodeErr != nil {
			return nil, errors.Wrap(decodeErr, "decode response")
		}
		return nil, apiErr
	}
	return env, nil
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	env := &envelope{}
	d := jx.DecodeBytes(raw)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "success":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			env.success = v
			return err
		case "message":
			return stringField(d, &env.message)
		case "error":
			return stringField(d, &env.detail)
		case "order":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			o := &payment.Order{}
			env.order = o
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "id":
					return stringField(d, &o.ID)
				case "amount":
					if d.Next() != jx.Number {
						return d.Skip()
					}
					v, err := d.Int64()
					o.Amount = v
					return err
				case "currency":
					return stringField(d, &o.Currency)
				case "receipt":
					return stringField(d, &o.Receipt)
				case "status":
					return stringField(d, &o.Status)
				default:
					return d.Skip()
				}
			})
		case "payment":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "orderId":
					return stringField(d, &env.payment.OrderID)
				case "paymentId":
					return stringField(d, &env.payment.PaymentID)
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// stringField decodes a string into dst and skips any other type.
func stringField(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	*dst = v
	return err
}
