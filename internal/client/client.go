package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wichananm65/ebook-storefront/internal/cart"
	"github.com/wichananm65/ebook-storefront/internal/contact"
	"github.com/wichananm65/ebook-storefront/internal/feed"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/payment"
	"github.com/wichananm65/ebook-storefront/internal/product"
	"github.com/wichananm65/ebook-storefront/internal/recommended"
	"github.com/wichananm65/ebook-storefront/internal/testimonial"
)

// ErrNetwork wraps every transport failure: the request may not have
// reached the server.
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		return fmt.Sprintf("api error %d: invalid fields %s", e.Status, strings.Join(keys, ", "))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a thin SDK over the storefront HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAdminToken authenticates admin-only calls.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrNetwork, method, path, err)
	}

	if res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode}
		var eb struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			apiErr.Fields = eb.Errors
		}
		if apiErr.Message == "" && len(apiErr.Fields) == 0 {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func esc(s string) string { return url.PathEscape(s) }

func (c *Client) ListProducts(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	return out, c.do(ctx, http.MethodGet, "/products", nil, &out)
}

func (c *Client) GetProduct(ctx context.Context, slug string) (product.Product, error) {
	var out product.Product
	return out, c.do(ctx, http.MethodGet, "/products/"+esc(slug), nil, &out)
}

func (c *Client) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	var out product.Product
	return out, c.do(ctx, http.MethodPost, "/products", p, &out)
}

func (c *Client) GetCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	out := new(cart.Cart)
	return out, c.do(ctx, http.MethodGet, "/cart/"+esc(sessionID), nil, out)
}

// CartCount is the pull path used by late subscribers.
func (c *Client) CartCount(ctx context.Context, sessionID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/cart/"+esc(sessionID)+"/count", nil, &out)
	return out.Count, err
}

func (c *Client) AddItem(ctx context.Context, sessionID, productID string, qty int) (*cart.Cart, error) {
	out := new(cart.Cart)
	in := map[string]any{"product_id": productID, "quantity": qty}
	return out, c.do(ctx, http.MethodPost, "/cart/"+esc(sessionID)+"/items", in, out)
}

func (c *Client) UpdateItem(ctx context.Context, sessionID, productID string, qty int) (*cart.Cart, error) {
	out := new(cart.Cart)
	in := map[string]any{"quantity": qty}
	return out, c.do(ctx, http.MethodPut, "/cart/"+esc(sessionID)+"/items/"+esc(productID), in, out)
}

func (c *Client) RemoveItem(ctx context.Context, sessionID, productID string) (*cart.Cart, error) {
	out := new(cart.Cart)
	return out, c.do(ctx, http.MethodDelete, "/cart/"+esc(sessionID)+"/items/"+esc(productID), nil, out)
}

func (c *Client) ClearCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	out := new(cart.Cart)
	return out, c.do(ctx, http.MethodDelete, "/cart/"+esc(sessionID), nil, out)
}

func (c *Client) CreateOrder(ctx context.Context, sessionID string, billing order.Billing) (order.Order, error) {
	var out order.Order
	in := map[string]any{"session_id": sessionID, "billing": billing}
	return out, c.do(ctx, http.MethodPost, "/orders", in, &out)
}

func (c *Client) GetOrder(ctx context.Context, number string) (order.Order, error) {
	var out order.Order
	return out, c.do(ctx, http.MethodGet, "/orders/"+esc(number), nil, &out)
}

func (c *Client) OrdersByEmail(ctx context.Context, email string) ([]order.Order, error) {
	var out []order.Order
	return out, c.do(ctx, http.MethodGet, "/orders/email/"+esc(email), nil, &out)
}

func (c *Client) RecentPurchases(ctx context.Context, limit int) ([]feed.Purchase, error) {
	var out []feed.Purchase
	return out, c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/recent-purchases?limit=%d", limit), nil, &out)
}

func (c *Client) PaymentConfig(ctx context.Context) (payment.PublicConfig, error) {
	var out payment.PublicConfig
	return out, c.do(ctx, http.MethodGet, "/payment/config", nil, &out)
}

func (c *Client) CreateGatewayOrder(ctx context.Context, number string) (payment.Intent, error) {
	var out payment.Intent
	return out, c.do(ctx, http.MethodPost, "/payment/create-order", map[string]string{"order_number": number}, &out)
}

func (c *Client) VerifyPayment(ctx context.Context, v payment.Verification) (order.Order, error) {
	var out struct {
		Verified bool        `json:"verified"`
		Order    order.Order `json:"order"`
	}
	err := c.do(ctx, http.MethodPost, "/payment/verify-payment", v, &out)
	return out.Order, err
}

func (c *Client) CancelPayment(ctx context.Context, number string) (order.Order, error) {
	var out order.Order
	return out, c.do(ctx, http.MethodPost, "/payment/cancel", map[string]string{"order_number": number}, &out)
}

func (c *Client) SubmitContact(ctx context.Context, m contact.Message) error {
	return c.do(ctx, http.MethodPost, "/contact", m, nil)
}

func (c *Client) ContactMessages(ctx context.Context) ([]contact.Message, error) {
	var out []contact.Message
	return out, c.do(ctx, http.MethodGet, "/contact/messages", nil, &out)
}

func (c *Client) Testimonials(ctx context.Context) ([]testimonial.Testimonial, error) {
	var out []testimonial.Testimonial
	return out, c.do(ctx, http.MethodGet, "/testimonials", nil, &out)
}

// Login exchanges admin credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) Recommended(ctx context.Context, slug string, limit int) ([]recommended.Item, error) {
	var out []recommended.Item
	return out, c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%s/recommended?limit=%d", esc(slug), limit), nil, &out)
}
