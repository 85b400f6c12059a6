package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
	"github.com/xenking/crackers-checkout/pkg/httpmiddleware"
)

// errInvalidBody marks a request body that is not the expected JSON object.
var errInvalidBody = errors.New("invalid request body")

// CreateOrder handles POST /api/payment/create-order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, err := readCreateOrder(w, r)
	if err != nil {
		h.writeError(w, r, opCreateOrder, err)
		return
	}

	o, err := h.payments.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, r, opCreateOrder, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("order", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
					e.Field("amount", func(e *jx.Encoder) { e.Int64(o.Amount) })
					e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
					e.Field("receipt", func(e *jx.Encoder) { e.Str(o.Receipt) })
					e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
				})
			})
		})
	})
}

// VerifyPayment handles POST /api/payment/verify.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	claim, err := readClaim(w, r)
	if err != nil {
		h.writeError(w, r, opVerify, err)
		return
	}

	res, err := h.payments.VerifyPayment(r.Context(), claim)
	if err != nil {
		h.writeError(w, r, opVerify, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("message", func(e *jx.Encoder) { e.Str("Payment verified successfully.") })
			e.Field("payment", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("orderId", func(e *jx.Encoder) { e.Str(res.OrderID) })
					e.Field("paymentId", func(e *jx.Encoder) { e.Str(res.PaymentID) })
				})
			})
		})
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(errInvalidBody, err.Error())
	}
	if !jx.Valid(raw) {
		return nil, errInvalidBody
	}
	return raw, nil
}

// readCreateOrder decodes {amount, currency?, receipt, notes?}. The amount
// must be a JSON integer; strings, fractions and exponents are rejected as
// ErrInvalidAmount.
func readCreateOrder(w http.ResponseWriter, r *http.Request) (payment.CreateOrderRequest, error) {
	var req payment.CreateOrderRequest

	raw, err := readBody(w, r)
	if err != nil {
		return req, err
	}

	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return req, errInvalidBody
	}
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "amount":
			if d.Next() != jx.Number {
				_ = d.Skip()
				return payment.ErrInvalidAmount
			}
			num, err := d.Raw()
			if err != nil {
				return err
			}
			v, err := strconv.ParseInt(string(num), 10, 64)
			if err != nil {
				return payment.ErrInvalidAmount
			}
			req.Amount = v
			return nil
		case "currency":
			return optString(d, &req.Currency)
		case "receipt":
			return optString(d, &req.Receipt)
		case "notes":
			notes, err := decodeNotes(d)
			if err != nil {
				return err
			}
			req.Notes = notes
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, errInvalidBody) {
			return req, err
		}
		return req, errors.Wrap(errInvalidBody, err.Error())
	}
	return req, nil
}

// readClaim decodes a completion claim. Both the camelCase names and the
// widget's native razorpay_* names are accepted; non-string values count as
// missing.
func readClaim(w http.ResponseWriter, r *http.Request) (payment.Claim, error) {
	var c payment.Claim

	raw, err := readBody(w, r)
	if err != nil {
		return c, err
	}

	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return c, errInvalidBody
	}
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "orderId", "razorpay_order_id":
			dst = &c.OrderID
		case "paymentId", "razorpay_payment_id":
			dst = &c.PaymentID
		case "signature", "razorpay_signature":
			dst = &c.Signature
		default:
			return d.Skip()
		}
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		if *dst == "" {
			*dst = v
		}
		return nil
	})
	if err != nil {
		return c, errors.Wrap(errInvalidBody, err.Error())
	}
	return c, nil
}

// optString decodes a string or null into dst.
func optString(d *jx.Decoder, dst *string) error {
	switch d.Next() {
	case jx.Null:
		return d.Null()
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return err
		}
		*dst = v
		return nil
	default:
		return errInvalidBody
	}
}

// decodeNotes accepts an object of string values, or null.
func decodeNotes(d *jx.Decoder) (map[string]string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
	default:
		return nil, errInvalidBody
	}
	notes := map[string]string{}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() != jx.String {
			return errInvalidBody
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		notes[string(key)] = v
		return nil
	})
	return notes, err
}

type operation int

const (
	opCreateOrder operation = iota
	opVerify
)

// errorResponse is the status and public message for a failed call.
type errorResponse struct {
	status  int
	message string
	// detail is the "error" field; empty omits it.
	detail string
}

// mapPaymentError converts domain errors to HTTP responses.
func mapPaymentError(op operation, err error, development bool) errorResponse {
	switch {
	case errors.Is(err, errInvalidBody):
		return errorResponse{status: http.StatusBadRequest, message: "Invalid request body."}
	case errors.Is(err, payment.ErrInvalidAmount):
		return errorResponse{status: http.StatusBadRequest, message: "Invalid amount. Must be a positive number (in paise)."}
	case errors.Is(err, payment.ErrMissingReceipt):
		return errorResponse{status: http.StatusBadRequest, message: "Receipt ID is required."}
	case errors.Is(err, payment.ErrMissingVerificationFields):
		return errorResponse{status: http.StatusBadRequest, message: "Missing payment verification fields."}
	case errors.Is(err, payment.ErrInvalidSignature):
		return errorResponse{status: http.StatusBadRequest, message: "Payment verification failed. Invalid signature."}
	}

	var oce *payment.OrderCreationError
	if errors.As(err, &oce) {
		return errorResponse{
			status:  http.StatusInternalServerError,
			message: "Failed to create Razorpay order.",
			detail:  oce.Message,
		}
	}

	resp := errorResponse{status: http.StatusInternalServerError, message: "Internal server error."}
	if op == opVerify {
		resp.message = "Payment verification failed due to server error."
	}
	if development {
		resp.detail = err.Error()
	}
	return resp
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op operation, err error) {
	resp := mapPaymentError(op, err, h.cfg.Development)
	if resp.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Payment request failed", zap.Error(err))
	}
	httpmiddleware.WriteJSONError(w, resp.status, resp.message, resp.detail)
}
