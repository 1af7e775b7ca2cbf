// Package mock is a scriptable gateway adapter for development and tests.
// It signs its successes with HMAC-SHA256 the way the real gateway does, so
// a test backend holding the same secret can verify them.
package mock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/shopsphere/storefront-core/gateway"
)

// Adapter is a scripted payment gateway. The zero behavior approves every
// payment with a verifiable signature.
type Adapter struct {
	secret []byte

	// Outcome selects the scripted result. Leave as StatusSuccess for the
	// approve-everything behavior.
	Outcome gateway.Status

	// FailureReason is reported when Outcome is StatusFailure.
	FailureReason string

	// TamperSignature corrupts the success signature, simulating a claim
	// the backend will refuse to verify.
	TamperSignature bool

	// OnOpen, when set, runs just before the result is produced. Tests use
	// it to interleave work while the widget is "open".
	OnOpen func(opts gateway.OpenOptions)
}

// NewAdapter creates a mock gateway that signs with the given secret.
func NewAdapter(secret string) *Adapter {
	return &Adapter{
		secret:  []byte(secret),
		Outcome: gateway.StatusSuccess,
	}
}

// Open resolves immediately with the scripted outcome.
func (a *Adapter) Open(ctx context.Context, opts gateway.OpenOptions) (*gateway.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.OnOpen != nil {
		a.OnOpen(opts)
	}

	switch a.Outcome {
	case gateway.StatusDismissed:
		return &gateway.Result{Status: gateway.StatusDismissed}, nil
	case gateway.StatusFailure:
		reason := a.FailureReason
		if reason == "" {
			reason = "payment declined"
		}
		return &gateway.Result{Status: gateway.StatusFailure, Reason: reason}, nil
	default:
		paymentID := "pay_" + uuid.New().String()
		sig := Sign(a.secret, opts.OrderID, paymentID)
		if a.TamperSignature {
			sig = "tampered_" + sig
		}
		return &gateway.Result{
			Status:    gateway.StatusSuccess,
			PaymentID: paymentID,
			Signature: sig,
		}, nil
	}
}

// Sign produces the gateway's HMAC-SHA256 signature over "orderID|paymentID".
// Exported so test backends can verify claims with the shared secret.
func Sign(secret []byte, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the signature matches the order and payment IDs.
func Verify(secret []byte, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
