package stripe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArpitSharma4/nexus-gateway/internal/gateway"
)

func testAdapter(server *httptest.Server) *Adapter {
	a := New("sk_test_123", server.Client())
	a.baseURL = server.URL
	return a
}

func chargeReq() gateway.ChargeRequest {
	return gateway.ChargeRequest{
		Amount:         1099,
		Currency:       "USD",
		IdempotencyKey: "idem_abc",
	}
}

func TestCharge_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "idem_abc", r.Header.Get("Idempotency-Key"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "amount=1099")
		assert.Contains(t, string(body), "currency=usd")

		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "requires_payment_method"})
	}))
	defer server.Close()

	res, err := testAdapter(server).Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeSuccess, res.Status)
	assert.Equal(t, "pi_123", res.TransactionID)
	assert.Equal(t, "PaymentIntent created: requires_payment_method", res.Reason)
}

func TestCharge_CardDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"type":         "card_error",
			"code":         "card_declined",
			"decline_code": "insufficient_funds",
			"message":      "Your card has insufficient funds.",
		}})
	}))
	defer server.Close()

	res, err := testAdapter(server).Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeFailed, res.Status, "a decline is a decision, not an error")
	assert.Equal(t, "Your card has insufficient funds. (insufficient_funds)", res.Reason)
}

func TestCharge_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	res, err := testAdapter(server).Charge(context.Background(), chargeReq())
	require.NoError(t, err)
	assert.Equal(t, gateway.ChargeError, res.Status)
	assert.Contains(t, res.Reason, "HTTP 500")
}

func TestCharge_NetworkFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := testAdapter(server).Charge(context.Background(), chargeReq())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/balance", r.URL.Path)
			w.Write([]byte(`{"available":[]}`))
		}))
		defer server.Close()

		h := testAdapter(server).HealthCheck(context.Background())
		assert.Equal(t, gateway.StatusHealthy, h.Status)
		assert.Equal(t, "Stripe API reachable.", h.Message)
	})

	t.Run("unauthorized is down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		h := testAdapter(server).HealthCheck(context.Background())
		assert.Equal(t, gateway.StatusDown, h.Status)
	})

	t.Run("unreachable is down, never an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		h := testAdapter(server).HealthCheck(context.Background())
		assert.Equal(t, gateway.StatusDown, h.Status)
		assert.NotEmpty(t, h.Message)
	})
}
