package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
	"github.com/shopsphere/storefront-core/pkg/httpclient"
	"github.com/shopsphere/storefront-core/pkg/money"
	"github.com/shopsphere/storefront-core/pkg/validator"
	"github.com/shopsphere/storefront-core/session"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// SyncClient is the stateless network contract against the remote cart
// service. Each method is a single round trip; it holds no cart state of
// its own. The session is passed explicitly on every call.
type SyncClient struct {
	httpClient HTTPDoer
	baseURL    string
	logger     *slog.Logger
}

// NewSyncClient creates a cart sync client. baseURL is the API root, e.g.
// "http://localhost:9090/api".
func NewSyncClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *SyncClient {
	return &SyncClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// wireProduct is one cart line as the backend reports it.
type wireProduct struct {
	ProductID  string      `json:"productId"`
	Name       string      `json:"name"`
	PricePer   money.Money `json:"price_per_unit"`
	Quantity   int         `json:"quantity"`
	TotalPrice money.Money `json:"total_price"`
	ImageURL   string      `json:"image_url"`
}

// fetchCartResponse covers both response shapes the backend has emitted:
// the canonical {username, cart:{products}} and a legacy top-level items
// array. The canonical shape wins whenever the cart object is present.
type fetchCartResponse struct {
	Username string `json:"username"`
	Cart     *struct {
		Products []wireProduct `json:"products"`
	} `json:"cart"`
	Items []wireProduct `json:"items"`
}

type addItemRequest struct {
	Username  string `json:"username" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type setQuantityRequest struct {
	Username  string `json:"username" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type removeItemRequest struct {
	Username  string `json:"username" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
}

// FetchCart retrieves the owner's cart. A user without a cart gets an
// empty Cart back, never a not-found error; an unreachable service is
// reported as Unavailable and the caller's previous mirror stays intact.
func (c *SyncClient) FetchCart(ctx context.Context, sess session.Session) (*Cart, error) {
	if !sess.Valid() {
		return nil, apperrors.InvalidInput("session owner is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cart/items", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create cart fetch request: %w", err)
	}
	sess.Apply(req)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Unavailable("cart service", err)
	}
	defer resp.Body.Close()

	// A 404 means the backend has no cart record for this user yet, which
	// is just an empty cart.
	if resp.StatusCode == http.StatusNotFound {
		return NewEmpty(sess.Username), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "cart fetch")
	}

	var decoded fetchCartResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Unavailable("cart service", fmt.Errorf("decode cart response: %w", err))
	}

	products := c.selectProducts(ctx, decoded)

	cart := NewEmpty(sess.Username)
	if decoded.Username != "" {
		cart.Owner = decoded.Username
	}
	for _, p := range products {
		cart.Items = append(cart.Items, Item{
			ProductID: p.ProductID,
			Name:      p.Name,
			PricePer:  p.PricePer,
			Quantity:  p.Quantity,
			ImageURL:  p.ImageURL,
		})
	}

	c.logger.DebugContext(ctx, "cart fetched",
		slog.String("owner", cart.Owner),
		slog.Int("item_count", cart.ItemCount()),
	)

	return cart, nil
}

// selectProducts picks the canonical cart.products array, falling back to
// the legacy top-level items alias only when no cart object was sent.
func (c *SyncClient) selectProducts(ctx context.Context, decoded fetchCartResponse) []wireProduct {
	if decoded.Cart != nil {
		return decoded.Cart.Products
	}
	if len(decoded.Items) > 0 {
		c.logger.WarnContext(ctx, "cart response used legacy items shape")
		return decoded.Items
	}
	return nil
}

// FetchItemCount is the lightweight count-only read used by the badge
// broadcaster. It reuses the fetch endpoint and reports the number of
// distinct lines.
func (c *SyncClient) FetchItemCount(ctx context.Context, sess session.Session) (int, error) {
	cart, err := c.FetchCart(ctx, sess)
	if err != nil {
		return 0, err
	}
	return cart.ItemCount(), nil
}

// AddItem asks the cart service to add quantity units of a product.
// A declined request (out of stock and friends) comes back as Rejected.
func (c *SyncClient) AddItem(ctx context.Context, sess session.Session, productID string, quantity int) error {
	payload := addItemRequest{Username: sess.Username, ProductID: productID, Quantity: quantity}
	if err := validator.Validate(payload); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	resp, err := c.send(ctx, sess, http.MethodPost, "/cart/add", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "cart add")
	}

	c.logger.DebugContext(ctx, "cart item added",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// SetQuantity sets the absolute quantity of an existing line. Non-positive
// quantities are rejected locally; callers route those to RemoveItem.
func (c *SyncClient) SetQuantity(ctx context.Context, sess session.Session, productID string, quantity int) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("quantity must be positive; remove the item instead")
	}
	payload := setQuantityRequest{Username: sess.Username, ProductID: productID, Quantity: quantity}
	if err := validator.Validate(payload); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	resp, err := c.send(ctx, sess, http.MethodPut, "/cart/update", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "cart update")
	}

	c.logger.DebugContext(ctx, "cart quantity updated",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// RemoveItem deletes a line. Removing an absent item is not an error: the
// backend's 404 is folded into success so the operation stays idempotent.
func (c *SyncClient) RemoveItem(ctx context.Context, sess session.Session, productID string) error {
	payload := removeItemRequest{Username: sess.Username, ProductID: productID}
	if err := validator.Validate(payload); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	resp, err := c.send(ctx, sess, http.MethodDelete, "/cart/delete", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		c.logger.DebugContext(ctx, "cart item removed",
			slog.String("product_id", productID),
		)
		return nil
	default:
		return httpclient.ParseResponseError(resp, "cart delete")
	}
}

// send marshals the payload and executes one request against the cart
// service, classifying transport failures as Unavailable.
func (c *SyncClient) send(ctx context.Context, sess session.Session, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	sess.Apply(req)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Unavailable("cart service", err)
	}
	return resp, nil
}
