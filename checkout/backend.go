package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopsphere/storefront-core/cart"
	apperrors "github.com/shopsphere/storefront-core/pkg/errors"
	"github.com/shopsphere/storefront-core/pkg/money"
	"github.com/shopsphere/storefront-core/session"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// BackendClient talks to the storefront backend's payment endpoints: order
// creation before the widget opens, and claim verification after it closes.
type BackendClient struct {
	httpClient HTTPDoer
	baseURL    string
	logger     *slog.Logger
}

// NewBackendClient creates a payment backend client. baseURL is the API
// root shared with the cart client.
func NewBackendClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *BackendClient {
	return &BackendClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// CreateOrder asks the backend to open a gateway order for the frozen
// amount. The backend replies with the gateway order ID as a plain-text
// body. A rejection (empty cart, amount mismatch) surfaces as Rejected or
// InvalidInput; an unreachable backend as Unavailable.
func (c *BackendClient) CreateOrder(ctx context.Context, sess session.Session, amount money.Money, items []cart.Item) (string, error) {
	type cartItem struct {
		ProductID string      `json:"productId"`
		Quantity  int         `json:"quantity"`
		Price     money.Money `json:"price"`
	}

	type createOrderRequest struct {
		TotalAmount money.Money `json:"totalAmount"`
		CartItems   []cartItem  `json:"cartItems"`
	}

	req := createOrderRequest{
		TotalAmount: amount,
		CartItems:   make([]cartItem, len(items)),
	}
	for i, item := range items {
		req.CartItems[i] = cartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.PricePer,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment/create", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	sess.Apply(httpReq)

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return "", apperrors.Unavailable("payment backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classifyOrderError(resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", apperrors.Unavailable("payment backend", fmt.Errorf("read order response: %w", err))
	}

	orderID := strings.TrimSpace(string(raw))
	if orderID == "" {
		return "", apperrors.Rejected("backend returned an empty order id")
	}

	c.logger.InfoContext(ctx, "gateway order created",
		slog.String("gateway_order_id", orderID),
		slog.String("amount", amount.String()),
	)

	return orderID, nil
}

// VerifyPayment submits the gateway's success claim for authoritative
// verification. A 2xx means the backend accepted the payment. Any 4xx is
// VerificationRejected: the backend examined the claim and refused it. A
// 5xx or transport failure is Unavailable: the claim was never judged.
func (c *BackendClient) VerifyPayment(ctx context.Context, sess session.Session, gatewayOrderID, paymentID, signature string) error {
	type verifyRequest struct {
		RazorpayOrderID   string `json:"razorpayOrderId"`
		RazorpayPaymentID string `json:"razorpayPaymentId"`
		RazorpaySignature string `json:"razorpaySignature"`
	}

	body, err := json.Marshal(verifyRequest{
		RazorpayOrderID:   gatewayOrderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: signature,
	})
	if err != nil {
		return fmt.Errorf("marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment/verify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	sess.Apply(httpReq)

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return apperrors.Unavailable("payment backend", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.InfoContext(ctx, "payment verified",
			slog.String("gateway_order_id", gatewayOrderID),
			slog.String("gateway_payment_id", paymentID),
		)
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.VerificationRejected(readBody(resp))
	default:
		return apperrors.Unavailable("payment backend", fmt.Errorf("verify returned status %d", resp.StatusCode))
	}
}

// classifyOrderError maps an order-create error response. The backend
// speaks plain text on errors.
func classifyOrderError(resp *http.Response) error {
	msg := readBody(resp)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case resp.StatusCode >= 500:
		return apperrors.Unavailable("payment backend", fmt.Errorf("order create returned status %d: %s", resp.StatusCode, msg))
	default:
		return apperrors.Rejected(msg)
	}
}

func readBody(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	return string(bytes.TrimSpace(raw))
}
