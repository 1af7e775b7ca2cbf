package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
	"github.com/shopsphere/storefront-core/pkg/money"
	"github.com/shopsphere/storefront-core/session"
)

// Syncer is the slice of SyncClient the store depends on.
type Syncer interface {
	FetchCart(ctx context.Context, sess session.Session) (*Cart, error)
	AddItem(ctx context.Context, sess session.Session, productID string, quantity int) error
	SetQuantity(ctx context.Context, sess session.Session, productID string, quantity int) error
	RemoveItem(ctx context.Context, sess session.Session, productID string) error
}

// Store is the authoritative client-side mirror of one user's cart.
//
// Every mutation serializes on the store mutex, held across the confirming
// round trip: a second mutation issued while one is in flight queues behind
// it. Interleaved partially-applied updates to the same cart are the
// hazard this store exists to prevent.
type Store struct {
	mu     sync.Mutex
	syncer Syncer
	sess   session.Session
	fee    money.Money
	logger *slog.Logger
	cart   *Cart

	listenersMu sync.Mutex
	listeners   []func(count int)
}

// NewStore creates a store for the given session, starting from an empty
// mirror. fee is the flat shipping surcharge this store applies to every
// cart it holds; the server does not report one. Call Refresh before first
// use to adopt the server's cart.
func NewStore(syncer Syncer, sess session.Session, fee money.Money, logger *slog.Logger) *Store {
	s := &Store{
		syncer: syncer,
		sess:   sess,
		fee:    fee,
		logger: logger,
	}
	s.cart = s.emptyCart()
	return s
}

func (s *Store) emptyCart() *Cart {
	c := NewEmpty(s.sess.Username)
	c.ShippingFee = s.fee
	return c
}

// adopt replaces the mirror with a fetched cart, stamping the store's
// configured shipping fee onto it. Callers hold s.mu.
func (s *Store) adopt(fetched *Cart) {
	fetched.ShippingFee = s.fee
	s.cart = fetched
}

// OnChange registers a listener that receives the distinct-line-item count
// after every confirmed mutation. Listeners are invoked outside the store
// lock and must not call back into mutation methods.
func (s *Store) OnChange(fn func(count int)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(count int) {
	s.listenersMu.Lock()
	listeners := make([]func(int), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(count)
	}
}

// tentative is the captured pre-mutation state of an optimistic update.
// Rolling back restores it exactly; it is discarded on confirmation.
type tentative struct {
	prev *Cart
}

func (s *Store) begin() tentative {
	return tentative{prev: s.cart.Clone()}
}

func (s *Store) rollback(t tentative) {
	s.cart = t.prev
}

// Refresh replaces the local mirror with a fresh fetch. On failure the
// previous mirror is left untouched; a network blip must not blank a cart
// the user can still see.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	fetched, err := s.syncer.FetchCart(ctx, s.sess)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("refresh cart: %w", err)
	}
	s.adopt(fetched)
	count := s.cart.ItemCount()
	s.mu.Unlock()

	s.notify(count)
	return nil
}

// Add optimistically adds one unit of the product: the mirror is updated
// first for immediate feedback, then the change is confirmed with the cart
// service. On confirmation failure the optimistic change is rolled back
// and the classified error surfaced, so the mirror never diverges silently.
func (s *Store) Add(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	s.mu.Lock()
	t := s.begin()

	isNew := false
	if idx := s.cart.FindItemIndex(productID); idx >= 0 {
		s.cart.Items[idx].Quantity++
	} else {
		// The price snapshot for a brand-new line is only known to the
		// server; insert a placeholder and adopt the server row below.
		isNew = true
		s.cart.Items = append(s.cart.Items, Item{ProductID: productID, Quantity: 1})
	}

	if err := s.syncer.AddItem(ctx, s.sess, productID, 1); err != nil {
		s.rollback(t)
		s.mu.Unlock()
		return fmt.Errorf("add cart item: %w", err)
	}

	if isNew {
		fetched, err := s.syncer.FetchCart(ctx, s.sess)
		if err != nil {
			// The add is confirmed; the placeholder stays until the next
			// successful refresh fills in name and price.
			s.logger.WarnContext(ctx, "cart re-fetch after add failed, placeholder retained",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		} else {
			s.adopt(fetched)
		}
	}

	count := s.cart.ItemCount()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("owner", s.sess.Username),
		slog.String("product_id", productID),
	)

	s.notify(count)
	return nil
}

// SetQuantity sets the absolute quantity of a line. A target of zero or
// less delegates to Remove: a non-positive quantity is never sent to the
// server and never stored.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	s.mu.Lock()
	if err := s.syncer.SetQuantity(ctx, s.sess, productID, quantity); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set cart quantity: %w", err)
	}

	// Adopt the server's authoritative totals; prices or stock-derived
	// fields may have shifted since the last fetch.
	fetched, err := s.syncer.FetchCart(ctx, s.sess)
	if err != nil {
		if idx := s.cart.FindItemIndex(productID); idx >= 0 {
			s.cart.Items[idx].Quantity = quantity
		}
		s.logger.WarnContext(ctx, "cart re-fetch after quantity update failed, local totals may lag",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	} else {
		s.adopt(fetched)
	}

	count := s.cart.ItemCount()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "cart quantity updated",
		slog.String("owner", s.sess.Username),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	s.notify(count)
	return nil
}

// Remove deletes a line. On confirmed deletion the line is dropped locally
// without a full refresh: removal has no server-derived fields to
// reconcile. Removing an absent line succeeds.
func (s *Store) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	s.mu.Lock()
	if err := s.syncer.RemoveItem(ctx, s.sess, productID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("remove cart item: %w", err)
	}

	if idx := s.cart.FindItemIndex(productID); idx >= 0 {
		s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
	}
	count := s.cart.ItemCount()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("owner", s.sess.Username),
		slog.String("product_id", productID),
	)

	s.notify(count)
	return nil
}

// Snapshot returns an immutable deep copy of the current cart. Checkout
// reads one of these; it never reads the live mirror mid-transaction.
func (s *Store) Snapshot() *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// ClearLocal empties the mirror and notifies listeners with count zero.
// Called by the checkout orchestrator after, and only after, the backend
// verified the payment.
func (s *Store) ClearLocal() {
	s.mu.Lock()
	s.cart = s.emptyCart()
	s.mu.Unlock()

	s.notify(0)
}

// ItemCount returns the current distinct-line-item count of the mirror.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}
