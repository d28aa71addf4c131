package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordana/payments/libs/cryptography"
	errorutils "github.com/ordana/payments/libs/errors"
)

func testChargeRequest() *ChargeRequest {
	return &ChargeRequest{
		PaymentType: "bank_transfer",
		TransactionDetails: TransactionDetails{
			OrderID:     "ORD-1",
			GrossAmount: 150000,
		},
		ItemDetails: []ItemDetail{
			{ID: "I1", Name: "widget", Price: 150000, Quantity: 1},
		},
	}
}

func TestCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/charge", r.URL.Path)

		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("server-key:"))
		require.Equal(t, expectedAuth, r.Header.Get("authorization"))

		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ORD-1", req.TransactionDetails.OrderID)

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(TransactionResponse{
			StatusCode:        "201",
			TransactionID:     "gw-123",
			OrderID:           req.TransactionDetails.OrderID,
			GrossAmount:       "150000.00",
			TransactionStatus: "pending",
			FraudStatus:       "accept",
		})
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	resp, err := client.Charge(context.Background(), testChargeRequest())
	require.NoError(t, err)
	assert.Equal(t, "gw-123", resp.TransactionID)
	assert.Equal(t, "pending", resp.TransactionStatus)
}

func TestCharge_ValidatesBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	req := testChargeRequest()
	req.TransactionDetails.GrossAmount = 0

	_, err = client.Charge(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorutils.ErrInvalidRequest))
	assert.False(t, called)
}

func TestTransactionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v2/ORD-1/status", r.URL.Path)

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(TransactionResponse{
			StatusCode:        "200",
			OrderID:           "ORD-1",
			TransactionStatus: "settlement",
		})
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	resp, err := client.TransactionStatus(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "settlement", resp.TransactionStatus)
}

func TestCancel_StateConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/ORD-1/cancel", r.URL.Path)
		w.WriteHeader(http.StatusPreconditionFailed)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status_code":    "412",
			"status_message": "transaction status cannot be updated",
		})
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	_, err = client.Cancel(context.Background(), "ORD-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorutils.ErrInvalidStateTransition))
}

func TestRefund_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	_, err = client.Refund(context.Background(), "ORD-1", &RefundRequest{Amount: 1000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorutils.ErrGatewayUnavailable))
}

func TestCheckoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/checkout/v1/tokens", r.URL.Path)
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(CheckoutTokenResponse{
			Token:       "tok-1",
			RedirectURL: "https://checkout.example.com/tok-1",
		})
	}))
	defer server.Close()

	client, err := NewWithHTTPClient(server.URL, "server-key", server.Client())
	require.NoError(t, err)

	resp, err := client.CheckoutToken(context.Background(), testChargeRequest())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
}

func TestResolveServer(t *testing.T) {
	// deterministic on the environment alone, no ambient configuration reads
	t.Setenv("GATEWAY_SERVER", "https://should-not-be-read.example.com")

	assert.Equal(t, productionServer, ResolveServer("production"))
	assert.Equal(t, sandboxServer, ResolveServer("sandbox"))
	assert.Equal(t, sandboxServer, ResolveServer("local"))
}

func TestNotification_Verify(t *testing.T) {
	n := &Notification{
		OrderID:           "ORD-1",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: "settlement",
	}
	n.SignatureKey = cryptography.NotificationSignature("ORD-1", "200", "150000.00", "server-key")

	assert.True(t, n.Verify("server-key"))
	assert.False(t, n.Verify("other-key"))

	// tampering with the amount breaks the digest
	n.GrossAmount = "1.00"
	assert.False(t, n.Verify("server-key"))
}
