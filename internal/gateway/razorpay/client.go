// Package razorpay implements the order-creation half of the Razorpay
// Orders API.
package razorpay

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

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.razorpay.com"

// maxResponseSize bounds how much of a gateway response is read.
const maxResponseSize = 1 << 20

var _ payment.Gateway = (*Client)(nil)

// Config holds the gateway credentials and endpoint.
type Config struct {
	KeyID     string
	KeySecret string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
}

// Client calls the Razorpay REST API. It is safe for concurrent use.
type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewClient returns a Client. A nil httpClient means http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   base,
		http:      httpClient,
	}
}

// CreateOrder mints an order. It issues exactly one request and never
// retries; every failure is an *payment.OrderCreationError.
func (c *Client) CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.Order, error) {
	body := encodeOrderRequest(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, &payment.OrderCreationError{Message: "build request", Err: err}
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &payment.OrderCreationError{Message: "gateway unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &payment.OrderCreationError{Message: "read gateway response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decodeErrorDescription(raw)
		if msg == "" {
			msg = fmt.Sprintf("gateway responded with status %d", resp.StatusCode)
		}
		return nil, &payment.OrderCreationError{
			Message: msg,
			Err:     errors.Errorf("status %d", resp.StatusCode),
		}
	}

	o, err := decodeOrder(raw)
	if err != nil {
		return nil, &payment.OrderCreationError{Message: "decode gateway order", Err: err}
	}
	if o.ID == "" {
		return nil, &payment.OrderCreationError{Message: "gateway order has no id"}
	}
	return o, nil
}

func encodeOrderRequest(req payment.CreateOrderRequest) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
		e.Field("notes", func(e *jx.Encoder) { encodeNotes(e, req.Notes) })
	})

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}

func encodeNotes(e *jx.Encoder, notes map[string]string) {
	e.Obj(func(e *jx.Encoder) {
		for k, v := range notes {
			e.Field(k, func(e *jx.Encoder) { e.Str(v) })
		}
	})
}

// decodeOrder parses the subset of the order entity the service uses.
func decodeOrder(raw []byte) (*payment.Order, error) {
	o := &payment.Order{Notes: map[string]string{}}
	d := jx.DecodeBytes(raw)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.Amount, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "receipt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Receipt, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		case "notes":
			// Empty notes come back as [] rather than {}.
			if d.Next() != jx.Object {
				return d.Skip()
			}
			err = d.ObjBytes(func(d *jx.Decoder, k []byte) error {
				if d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				if err != nil {
					return err
				}
				o.Notes[string(k)] = v
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return o, nil
}

// decodeErrorDescription extracts error.description from an error body,
// returning "" when the body is not in the gateway's error format.
func decodeErrorDescription(raw []byte) string {
	var desc string
	d := jx.DecodeBytes(raw)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" || d.Next() != jx.Object {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "description" || d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			desc = v
			return err
		})
	})
	return desc
}
