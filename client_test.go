package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsphere/storefront-core/checkout"
	gatewaymock "github.com/shopsphere/storefront-core/gateway/mock"
	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
	"github.com/shopsphere/storefront-core/session"
)

const backendSecret = "backend-secret"

// fakeBackend is a stateful stand-in for the storefront backend: a cart
// keyed by quantity per product, an order book, and HMAC verification with
// the gateway's shared secret.
type fakeBackend struct {
	mu     sync.Mutex
	lines  []fakeLine
	orders map[string]string // gateway order id -> amount as sent
	seq    int
}

type fakeLine struct {
	ProductID string
	Quantity  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{orders: make(map[string]string)}
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/cart/items", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		products := make([]map[string]any, 0, len(f.lines))
		for _, line := range f.lines {
			products = append(products, map[string]any{
				"productId":      line.ProductID,
				"name":           "Product " + line.ProductID,
				"price_per_unit": 500.00,
				"quantity":       line.Quantity,
				"total_price":    float64(line.Quantity) * 500.00,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"username": "alice",
			"cart":     map[string]any{"products": products},
		})
	})

	r.Post("/cart/add", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.lines {
			if f.lines[i].ProductID == body.ProductID {
				f.lines[i].Quantity += body.Quantity
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		f.lines = append(f.lines, fakeLine{ProductID: body.ProductID, Quantity: body.Quantity})
		w.WriteHeader(http.StatusCreated)
	})

	r.Put("/cart/update", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.lines {
			if f.lines[i].ProductID == body.ProductID {
				f.lines[i].Quantity = body.Quantity
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	r.Delete("/cart/delete", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.lines {
			if f.lines[i].ProductID == body.ProductID {
				f.lines = append(f.lines[:i], f.lines[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	r.Post("/payment/create", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			TotalAmount json.Number `json:"totalAmount"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.seq++
		orderID := fmt.Sprintf("order_fake_%d", f.seq)
		f.orders[orderID] = body.TotalAmount.String()
		io.WriteString(w, orderID)
	})

	r.Post("/payment/verify", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OrderID   string `json:"razorpayOrderId"`
			PaymentID string `json:"razorpayPaymentId"`
			Signature string `json:"razorpaySignature"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.orders[body.OrderID]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "unknown order")
			return
		}
		if !gatewaymock.Verify([]byte(backendSecret), body.OrderID, body.PaymentID, body.Signature) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "signature mismatch")
			return
		}
		// Verified payment empties the server-side cart.
		f.lines = nil
		io.WriteString(w, "Payment verified")
	})

	return r
}

func newE2EClient(t *testing.T, backend *fakeBackend, adapter *gatewaymock.Adapter) *Client {
	t.Helper()
	srv := httptest.NewServer(backend.router())
	t.Cleanup(srv.Close)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.APIBaseURL = srv.URL
	cfg.PollInterval = 50 * time.Millisecond
	cfg.HTTPTimeout = 2 * time.Second
	cfg.MaxRetries = 0
	cfg.CircuitBreaker = false
	cfg.VerifyTimeout = 2 * time.Second
	cfg.LogLevel = "error"

	client, err := New(cfg, session.Session{Username: "alice", Token: "tok"}, adapter)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewValidatesInputs(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	_, err = New(nil, session.Session{Username: "alice"}, gatewaymock.NewAdapter("s"))
	assert.Error(t, err)

	_, err = New(cfg, session.Session{}, gatewaymock.NewAdapter("s"))
	assert.ErrorContains(t, err, "session")

	_, err = New(cfg, session.Session{Username: "alice"}, nil)
	assert.ErrorContains(t, err, "adapter")
}

func TestEndToEndPurchase(t *testing.T) {
	backend := newFakeBackend()
	adapter := gatewaymock.NewAdapter(backendSecret)
	client := newE2EClient(t, backend, adapter)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))

	require.NoError(t, client.Cart.Add(ctx, "p-1"))
	require.NoError(t, client.Cart.Add(ctx, "p-1"))

	snap := client.Cart.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "1099.00", snap.GrandTotal().String())

	order, err := client.Checkout.BeginCheckout(ctx, client.Session())
	require.NoError(t, err)

	assert.Equal(t, checkout.StatusCompleted, order.Status)
	assert.Equal(t, "1099.00", order.Amount.String())
	assert.True(t, client.Cart.Snapshot().IsEmpty())

	backend.mu.Lock()
	sentAmount := backend.orders[order.GatewayOrderID]
	backend.mu.Unlock()
	assert.Equal(t, "1099.00", sentAmount)
}

func TestEndToEndForgedClaimKeepsCart(t *testing.T) {
	backend := newFakeBackend()
	adapter := gatewaymock.NewAdapter(backendSecret)
	adapter.TamperSignature = true
	client := newE2EClient(t, backend, adapter)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Cart.Add(ctx, "p-1"))

	order, err := client.Checkout.BeginCheckout(ctx, client.Session())
	assert.True(t, errors.Is(err, apperrors.ErrVerificationRejected))

	assert.Equal(t, checkout.StatusFailed, order.Status)
	assert.False(t, client.Cart.Snapshot().IsEmpty())
}

func TestEndToEndDismissalLeavesEverythingIntact(t *testing.T) {
	backend := newFakeBackend()
	adapter := gatewaymock.NewAdapter(backendSecret)
	adapter.Outcome = "dismissed"
	client := newE2EClient(t, backend, adapter)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Cart.Add(ctx, "p-1"))

	order, err := client.Checkout.BeginCheckout(ctx, client.Session())
	require.NoError(t, err)

	assert.Equal(t, checkout.StatusCancelled, order.Status)
	assert.False(t, client.Cart.Snapshot().IsEmpty())

	// The same cart can go through checkout again.
	adapter.Outcome = "success"
	order, err = client.Checkout.BeginCheckout(ctx, client.Session())
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCompleted, order.Status)
}

func TestBadgeFollowsCartMutations(t *testing.T) {
	backend := newFakeBackend()
	client := newE2EClient(t, backend, gatewaymock.NewAdapter(backendSecret))

	var mu sync.Mutex
	var counts []int
	client.Badge.Subscribe(func(count int) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, count)
	})

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Cart.Add(ctx, "p-1"))
	require.NoError(t, client.Cart.Add(ctx, "p-2"))
	require.NoError(t, client.Cart.Remove(ctx, "p-1"))

	mu.Lock()
	got := append([]int(nil), counts...)
	mu.Unlock()
	assert.Subset(t, got, []int{1, 2})

	// Polling reconciles any stale in-flight count with the server's.
	assert.Eventually(t, func() bool { return client.Badge.LastCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	client.Close()
	mu.Lock()
	before := len(counts)
	mu.Unlock()

	require.NoError(t, client.Cart.Add(ctx, "p-3"))

	mu.Lock()
	after := len(counts)
	mu.Unlock()
	assert.Equal(t, before, after)
}
