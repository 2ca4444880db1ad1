package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayError is a request the gateway rejected. It does not count against
// the circuit breaker.
type GatewayError struct {
	Status      int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request (%d %s): %s", e.Status, e.Code, e.Description)
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway-side payment intent. Amount is in minor units.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error)
}

// ToMinorUnits converts a whole-currency amount to the gateway's minor unit.
func ToMinorUnits(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(100)).IntPart()
}

// FromMinorUnits formats a minor-unit amount with two decimals.
func FromMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// RazorpayClient talks to the Razorpay orders API.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[GatewayOrder]
}

func NewRazorpayClient(baseURL, keyID, keySecret string, timeout time.Duration) *RazorpayClient {
	settings := gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var ge *GatewayError
			return err == nil || errors.As(err, &ge)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &RazorpayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
		breaker:   gobreaker.NewCircuitBreaker[GatewayOrder](settings),
	}
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error) {
	out, err := c.breaker.Execute(func() (GatewayOrder, error) {
		return c.createOrder(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return GatewayOrder{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return out, err
}

type razorpayOrderBody struct {
	CreateOrderRequest
	PaymentCapture int `json:"payment_capture"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) createOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error) {
	body, err := json.Marshal(razorpayOrderBody{CreateOrderRequest: req, PaymentCapture: 1})
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("encode gateway order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case res.StatusCode >= 500:
		return GatewayOrder{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, res.StatusCode)
	case res.StatusCode >= 400:
		var eb razorpayErrorBody
		_ = json.Unmarshal(raw, &eb)
		return GatewayOrder{}, &GatewayError{Status: res.StatusCode, Code: eb.Error.Code, Description: eb.Error.Description}
	}

	var out GatewayOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return GatewayOrder{}, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return GatewayOrder{}, fmt.Errorf("%w: response without order id", ErrGatewayUnavailable)
	}
	return out, nil
}
