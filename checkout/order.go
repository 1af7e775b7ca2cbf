package checkout

import (
	"time"

	"github.com/shopsphere/storefront-core/pkg/money"
)

// Status is the lifecycle state of one checkout transaction.
type Status string

const (
	// StatusOrderRequested means the backend order-create call is in flight.
	StatusOrderRequested Status = "order_requested"

	// StatusOrderCreated means the backend issued a gateway order ID and the
	// amount is frozen.
	StatusOrderCreated Status = "order_created"

	// StatusAwaitingGatewayResult means the payment widget is open.
	StatusAwaitingGatewayResult Status = "awaiting_gateway_result"

	// StatusVerificationPending means the gateway claimed success and the
	// claim is being verified with the backend.
	StatusVerificationPending Status = "verification_pending"

	// StatusCompleted means the backend verified the payment. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed means the attempt failed at any stage. Terminal.
	StatusFailed Status = "failed"

	// StatusCancelled means the user dismissed the widget without paying.
	// Terminal, and not an error.
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// VerificationOutcome records what backend verification concluded about a
// gateway success claim.
type VerificationOutcome string

const (
	// OutcomeVerified means the backend confirmed the payment.
	OutcomeVerified VerificationOutcome = "verified"

	// OutcomeRejected means the backend refused the claim. The money state
	// is known: not captured as far as the backend is concerned.
	OutcomeRejected VerificationOutcome = "rejected"

	// OutcomeUnknown means verification could not be completed. The payment
	// may or may not have gone through; support has to reconcile.
	OutcomeUnknown VerificationOutcome = "unknown"
)

// PaymentAttempt is the gateway's success claim plus what verification made
// of it.
type PaymentAttempt struct {
	GatewayPaymentID string
	GatewaySignature string
	Outcome          VerificationOutcome
}

// Order is one checkout transaction. Amount is frozen from the cart
// snapshot taken at BeginCheckout; later cart mutations never touch it.
type Order struct {
	// LocalOrderID identifies the transaction inside this client.
	LocalOrderID string

	// GatewayOrderID is the backend-issued order ID handed to the widget.
	GatewayOrderID string

	Amount   money.Money
	Currency string

	Status        Status
	FailureReason string

	// Attempt is nil until the gateway claims a success.
	Attempt *PaymentAttempt

	CreatedAt   time.Time
	CompletedAt time.Time
}
