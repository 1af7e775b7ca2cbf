// Package gateway abstracts the hosted payment widget the storefront hands
// control to during checkout. The adapter reports what the widget claimed
// happened; only backend verification decides whether a claimed success is
// real.
package gateway

import "context"

// Status is the terminal outcome the gateway widget reported.
type Status string

const (
	// StatusSuccess means the widget claims the user completed payment.
	// The claim carries a payment ID and signature for verification.
	StatusSuccess Status = "success"

	// StatusDismissed means the user closed the widget without paying.
	StatusDismissed Status = "dismissed"

	// StatusFailure means the widget reported a payment error.
	StatusFailure Status = "failure"
)

// Result is what the gateway reported for one checkout attempt.
type Result struct {
	Status Status

	// PaymentID and Signature are set only on StatusSuccess. They are the
	// gateway's claim, not proof; they are forwarded to the backend verify
	// endpoint as-is.
	PaymentID string
	Signature string

	// Reason is the gateway's error description on StatusFailure.
	Reason string
}

// Prefill seeds the widget's contact form.
type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// Theme controls the widget's appearance.
type Theme struct {
	Color string
}

// OpenOptions parameterizes one widget invocation. Amount is in minor
// currency units, frozen by the orchestrator before the order is created.
type OpenOptions struct {
	Key         string
	Amount      int64
	Currency    string
	OrderID     string
	Name        string
	Description string
	Prefill     Prefill
	Theme       Theme
}

// Adapter opens the payment widget and blocks until the user resolves it.
// Open returns an error only when the widget could not be presented at all;
// a user-visible failure inside the widget is a Result, not an error.
type Adapter interface {
	Open(ctx context.Context, opts OpenOptions) (*Result, error)
}

// Func adapts a plain function to the Adapter interface.
type Func func(ctx context.Context, opts OpenOptions) (*Result, error)

// Open implements Adapter.
func (f Func) Open(ctx context.Context, opts OpenOptions) (*Result, error) {
	return f(ctx, opts)
}
