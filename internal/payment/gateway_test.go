package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", "x"+sig[1:]))
	assert.False(t, VerifySignature("secret", "", "", ""))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(149700), ToMinorUnits(1497))
	assert.Equal(t, "1497.00", FromMinorUnits(149700))
	assert.Equal(t, "4.99", FromMinorUnits(499))
}

func TestRazorpayClient_CreateOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_key" || pass != "rzp_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":149700,"currency":"INR","receipt":"ORD-1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "rzp_key", "rzp_secret", time.Second)
	out, err := c.CreateOrder(context.Background(), CreateOrderRequest{Amount: 149700, Currency: "INR", Receipt: "ORD-1", Notes: map[string]string{"order_number": "ORD-1"}})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", out.ID)
	assert.Equal(t, int64(149700), out.Amount)

	assert.Equal(t, float64(149700), got["amount"])
	assert.Equal(t, "ORD-1", got["receipt"])
	assert.Equal(t, float64(1), got["payment_capture"])
}

func TestRazorpayClient_ClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", time.Second)
	_, err := c.CreateOrder(context.Background(), CreateOrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "amount too small", ge.Description)
	assert.NotErrorIs(t, err, ErrGatewayUnavailable)
}

func TestRazorpayClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", time.Second)
	for i := 0; i < 7; i++ {
		_, err := c.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits), "open breaker short-circuits further calls")
}
