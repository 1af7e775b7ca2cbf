package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopsphere/storefront-core/cart"
	"github.com/shopsphere/storefront-core/gateway"
	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
	"github.com/shopsphere/storefront-core/pkg/money"
	"github.com/shopsphere/storefront-core/session"
)

// CartStore is the slice of the cart store checkout needs: a frozen
// snapshot to price the order, and the single post-verification clear.
type CartStore interface {
	Snapshot() *cart.Cart
	ClearLocal()
}

// Backend is the payment backend surface the orchestrator drives.
type Backend interface {
	CreateOrder(ctx context.Context, sess session.Session, amount money.Money, items []cart.Item) (string, error)
	VerifyPayment(ctx context.Context, sess session.Session, gatewayOrderID, paymentID, signature string) error
}

// Options parameterizes how the payment widget is presented.
type Options struct {
	Key         string
	Currency    string
	Merchant    string
	Description string
	ThemeColor  string
	Prefill     gateway.Prefill

	// VerifyTimeout bounds the backend verification call. Zero means
	// DefaultVerifyTimeout.
	VerifyTimeout time.Duration
}

// DefaultVerifyTimeout bounds the post-payment verification call.
const DefaultVerifyTimeout = 30 * time.Second

// Orchestrator runs checkout transactions. One transaction may be in
// flight at a time; a second BeginCheckout gets Busy, it does not queue.
//
// The amount is frozen from the cart snapshot before the order is created
// and never re-read: whatever happens to the cart while the widget is open,
// the user pays what they saw. The gateway's success report is treated as a
// claim; only backend verification completes the transaction, and the cart
// is cleared exactly once, on verified completion.
type Orchestrator struct {
	store   CartStore
	backend Backend
	adapter gateway.Adapter
	logger  *slog.Logger
	opts    Options

	mu       sync.Mutex
	inFlight bool
	orders   map[string]*Order // keyed by gateway order ID
}

// NewOrchestrator creates a checkout orchestrator.
func NewOrchestrator(store CartStore, backend Backend, adapter gateway.Adapter, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	return &Orchestrator{
		store:   store,
		backend: backend,
		adapter: adapter,
		logger:  logger,
		opts:    opts,
		orders:  make(map[string]*Order),
	}
}

// BeginCheckout runs one full checkout transaction: snapshot and freeze the
// amount, create the backend order, hand control to the payment widget, and
// resolve its report. The returned order is always non-nil once an order
// record exists, including on failure, so callers can inspect what happened.
func (o *Orchestrator) BeginCheckout(ctx context.Context, sess session.Session) (*Order, error) {
	if !sess.Valid() {
		return nil, apperrors.InvalidInput("session owner is required")
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, apperrors.Busy("a checkout is already in progress")
	}
	o.inFlight = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	checkoutAttempts.Inc()

	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.transaction")
	defer span.End()

	snapshot := o.store.Snapshot()
	if snapshot.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	order := &Order{
		LocalOrderID: uuid.New().String(),
		Amount:       snapshot.GrandTotal(),
		Currency:     o.opts.Currency,
		Status:       StatusOrderRequested,
		CreatedAt:    time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("checkout.local_order_id", order.LocalOrderID),
		attribute.String("checkout.amount", order.Amount.String()),
		attribute.String("checkout.currency", order.Currency),
	)

	o.logger.InfoContext(ctx, "checkout started",
		slog.String("local_order_id", order.LocalOrderID),
		slog.String("owner", sess.Username),
		slog.String("amount", order.Amount.String()),
		slog.Int("line_items", snapshot.ItemCount()),
	)

	gatewayOrderID, err := o.backend.CreateOrder(ctx, sess, order.Amount, snapshot.Items)
	if err != nil {
		o.fail(ctx, span, order, fmt.Sprintf("order creation failed: %v", err))
		return order, fmt.Errorf("create gateway order: %w", err)
	}

	order.GatewayOrderID = gatewayOrderID
	order.Status = StatusOrderCreated
	span.SetAttributes(attribute.String("checkout.gateway_order_id", gatewayOrderID))

	// Once registered the order is reachable through ConfirmGatewaySuccess,
	// so from here on every status transition happens under o.mu.
	o.mu.Lock()
	order.Status = StatusAwaitingGatewayResult
	o.orders[gatewayOrderID] = order
	o.mu.Unlock()

	result, err := o.adapter.Open(ctx, gateway.OpenOptions{
		Key:         o.opts.Key,
		Amount:      order.Amount.Minor(),
		Currency:    order.Currency,
		OrderID:     gatewayOrderID,
		Name:        o.opts.Merchant,
		Description: o.opts.Description,
		Prefill:     o.opts.Prefill,
		Theme:       gateway.Theme{Color: o.opts.ThemeColor},
	})
	if err != nil {
		o.fail(ctx, span, order, fmt.Sprintf("payment widget failed to open: %v", err))
		return order, apperrors.GatewayFailed(err.Error())
	}

	switch result.Status {
	case gateway.StatusDismissed:
		// The user walked away before paying. Not an error and not a
		// failure; the cart stays as it was.
		o.mu.Lock()
		if order.Status.IsTerminal() {
			// An out-of-band confirmation already resolved this order
			// while the widget was still up.
			o.mu.Unlock()
			return order, nil
		}
		order.Status = StatusCancelled
		order.CompletedAt = time.Now().UTC()
		o.mu.Unlock()
		checkoutOutcomes.WithLabelValues(string(StatusCancelled)).Inc()
		span.SetAttributes(attribute.String("checkout.outcome", string(StatusCancelled)))
		o.logger.InfoContext(ctx, "checkout cancelled by user",
			slog.String("gateway_order_id", gatewayOrderID),
		)
		return order, nil

	case gateway.StatusFailure:
		o.fail(ctx, span, order, result.Reason)
		return order, apperrors.GatewayFailed(result.Reason)

	case gateway.StatusSuccess:
		return o.verify(ctx, span, sess, order, result)

	default:
		o.fail(ctx, span, order, fmt.Sprintf("gateway reported unknown status %q", result.Status))
		return order, apperrors.GatewayFailed(fmt.Sprintf("unknown gateway status %q", result.Status))
	}
}

// verify resolves a gateway success claim against the backend. The caller's
// context may already be cancelled (the user gave up waiting); verification
// proceeds regardless because the money question must be answered.
//
// Verification of one order is single-shot: the first claim to arrive takes
// the order to VerificationPending under o.mu and owns it until it resolves.
// A claim arriving after completion gets the completed order back without a
// second backend call, a second cart clear, or a second outcome count.
func (o *Orchestrator) verify(ctx context.Context, span trace.Span, sess session.Session, order *Order, result *gateway.Result) (*Order, error) {
	o.mu.Lock()
	switch {
	case order.Status == StatusCompleted:
		o.mu.Unlock()
		o.logger.InfoContext(ctx, "duplicate verification ignored",
			slog.String("gateway_order_id", order.GatewayOrderID),
		)
		return order, nil
	case order.Status.IsTerminal():
		status := order.Status
		o.mu.Unlock()
		return order, apperrors.Rejected(fmt.Sprintf("order is already %s", status))
	case order.Status == StatusVerificationPending:
		o.mu.Unlock()
		return order, apperrors.Busy("verification is already in progress")
	}
	order.Status = StatusVerificationPending
	order.Attempt = &PaymentAttempt{
		GatewayPaymentID: result.PaymentID,
		GatewaySignature: result.Signature,
		Outcome:          OutcomeUnknown,
	}
	o.mu.Unlock()

	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.VerifyTimeout)
	defer cancel()

	err := o.backend.VerifyPayment(vctx, sess, order.GatewayOrderID, result.PaymentID, result.Signature)
	switch {
	case err == nil:
		o.mu.Lock()
		order.Attempt.Outcome = OutcomeVerified
		order.Status = StatusCompleted
		order.CompletedAt = time.Now().UTC()
		o.mu.Unlock()
		checkoutOutcomes.WithLabelValues(string(StatusCompleted)).Inc()
		span.SetAttributes(attribute.String("checkout.outcome", string(StatusCompleted)))

		o.store.ClearLocal()

		o.logger.InfoContext(ctx, "checkout completed",
			slog.String("gateway_order_id", order.GatewayOrderID),
			slog.String("gateway_payment_id", result.PaymentID),
			slog.String("amount", order.Amount.String()),
		)
		return order, nil

	case errors.Is(err, apperrors.ErrVerificationRejected):
		// The backend examined the claim and refused it. The cart is left
		// untouched; nothing was bought.
		o.mu.Lock()
		order.Attempt.Outcome = OutcomeRejected
		o.mu.Unlock()
		verificationRejected.Inc()
		o.fail(ctx, span, order, fmt.Sprintf("payment verification rejected: %v", err))
		return order, err

	default:
		// Verification never completed. The payment may have gone through;
		// flag the order for reconciliation rather than guessing.
		o.fail(ctx, span, order, fmt.Sprintf("payment verification unavailable: %v", err))
		return order, err
	}
}

// ConfirmGatewaySuccess verifies an externally delivered success claim, for
// hosts that receive the gateway callback out of band. Confirming an order
// that already completed returns the completed order again without clearing
// the cart or counting a second outcome.
func (o *Orchestrator) ConfirmGatewaySuccess(ctx context.Context, sess session.Session, gatewayOrderID, paymentID, signature string) (*Order, error) {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return nil, apperrors.InvalidInput("gateway order id, payment id, and signature are required")
	}

	o.mu.Lock()
	order, ok := o.orders[gatewayOrderID]
	o.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound("checkout order", gatewayOrderID)
	}

	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.confirm")
	defer span.End()

	return o.verify(ctx, span, sess, order, &gateway.Result{
		Status:    gateway.StatusSuccess,
		PaymentID: paymentID,
		Signature: signature,
	})
}

// Order returns the transaction record for a gateway order ID.
func (o *Orchestrator) Order(gatewayOrderID string) (*Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[gatewayOrderID]
	if !ok {
		return nil, apperrors.NotFound("checkout order", gatewayOrderID)
	}
	return order, nil
}

// InFlight reports whether a checkout transaction is currently running.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, order *Order, reason string) {
	o.mu.Lock()
	if order.Status.IsTerminal() {
		// The order was resolved on another path; the first terminal
		// status stands.
		o.mu.Unlock()
		return
	}
	order.Status = StatusFailed
	order.FailureReason = reason
	order.CompletedAt = time.Now().UTC()
	o.mu.Unlock()

	checkoutOutcomes.WithLabelValues(string(StatusFailed)).Inc()
	span.SetStatus(codes.Error, reason)
	span.SetAttributes(attribute.String("checkout.outcome", string(StatusFailed)))

	o.logger.ErrorContext(ctx, "checkout failed",
		slog.String("local_order_id", order.LocalOrderID),
		slog.String("gateway_order_id", order.GatewayOrderID),
		slog.String("reason", reason),
	)
}
