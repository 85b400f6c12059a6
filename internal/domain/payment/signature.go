package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// constantTimeCompare is swapped in white-box tests to observe whether the
// comparator was reached.
var constantTimeCompare = subtle.ConstantTimeCompare

// Verifier checks payment completion signatures with the gateway key secret.
// The secret never leaves this type.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier keyed with the gateway key secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the lower-case hex HMAC-SHA256 of orderID + "|" + paymentID.
func (v *Verifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.mac(orderID, paymentID))
}

// Verify reports whether claimed is the signature of the pair. Malformed
// input (bad hex, wrong length) is simply invalid.
func (v *Verifier) Verify(orderID, paymentID, claimed string) bool {
	expected := v.mac(orderID, paymentID)

	got, err := hex.DecodeString(claimed)
	if err != nil {
		return false
	}
	if len(got) != len(expected) {
		return false
	}
	return constantTimeCompare(expected, got) == 1
}

func (v *Verifier) mac(orderID, paymentID string) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(orderID))
	m.Write([]byte{'|'})
	m.Write([]byte(paymentID))
	return m.Sum(nil)
}
