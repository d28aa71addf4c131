package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordana/payments/libs/clients/gateway"
	"github.com/ordana/payments/services/payments/model"
)

func newTestRouter(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Mount("/v1/transactions", Router(service))
	r.Mount("/v1/callbacks", CallbackRouter(service))
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("accept", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateTransactionHandler(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeGateway{
		chargeFn: func(req *gateway.ChargeRequest) (*gateway.TransactionResponse, error) {
			return &gateway.TransactionResponse{
				TransactionID:     "gw-123",
				OrderID:           req.TransactionDetails.OrderID,
				TransactionStatus: "pending",
				FraudStatus:       "accept",
			}, nil
		},
	})
	router := newTestRouter(service)

	rr := doJSON(t, router, http.MethodPost, "/v1/transactions", testRequest())
	require.Equal(t, http.StatusCreated, rr.Code)

	var tx model.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
	assert.Equal(t, "ORD-1", tx.OrderID)
	assert.Equal(t, model.StatusPending, tx.Status)
}

func TestCreateTransactionHandler_InvalidBody(t *testing.T) {
	service := newTestService(newMemStore(), &fakeGateway{})
	router := newTestRouter(service)

	req := testRequest()
	req.Items = nil

	rr := doJSON(t, router, http.MethodPost, "/v1/transactions", req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetTransactionHandler(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeGateway{
		statusFn: func(orderID string) (*gateway.TransactionResponse, error) {
			return &gateway.TransactionResponse{
				OrderID:           orderID,
				TransactionStatus: "settlement",
				TransactionTime:   "2026-08-28 10:15:00",
			}, nil
		},
	})
	seedTransaction(t, store)
	router := newTestRouter(service)

	rr := doJSON(t, router, http.MethodGet, "/v1/transactions/ORD-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var tx model.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
	assert.Equal(t, model.StatusSettlement, tx.Status)
}

func TestGetTransactionHandler_NotFound(t *testing.T) {
	service := newTestService(newMemStore(), &fakeGateway{})
	router := newTestRouter(service)

	rr := doJSON(t, router, http.MethodGet, "/v1/transactions/ORD-404", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefundTransactionHandler_Conflict(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeGateway{})
	seedTransaction(t, store)
	router := newTestRouter(service)

	// still pending, refund is not allowed yet
	rr := doJSON(t, router, http.MethodPost, "/v1/transactions/ORD-1/refund", RefundRequest{Amount: 1000})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateCheckoutTokenHandler(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeGateway{
		tokenFn: func(req *gateway.ChargeRequest) (*gateway.CheckoutTokenResponse, error) {
			return &gateway.CheckoutTokenResponse{Token: "tok-1"}, nil
		},
	})
	seedTransaction(t, store)
	router := newTestRouter(service)

	rr := doJSON(t, router, http.MethodPost, "/v1/transactions/ORD-1/token", nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp gateway.CheckoutTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "tok-1", resp.Token)
}

func TestGatewayNotificationHandler(t *testing.T) {
	t.Run("verified_notification_accepted", func(t *testing.T) {
		store := newMemStore()
		service := newTestService(store, &fakeGateway{})
		seedTransaction(t, store)
		router := newTestRouter(service)

		rr := doJSON(t, router, http.MethodPost, "/v1/callbacks/gateway",
			signedNotification("ORD-1", "200", "150000.00", "settlement"))
		require.Equal(t, http.StatusOK, rr.Code)

		stored, err := store.GetTransaction(context.Background(), "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusSettlement, stored.Status)
	})

	t.Run("forged_signature_gets_401", func(t *testing.T) {
		store := newMemStore()
		service := newTestService(store, &fakeGateway{})
		seedTransaction(t, store)
		router := newTestRouter(service)

		n := signedNotification("ORD-1", "200", "150000.00", "settlement")
		n.SignatureKey = "forged"

		rr := doJSON(t, router, http.MethodPost, "/v1/callbacks/gateway", n)
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		stored, err := store.GetTransaction(context.Background(), "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, stored.Status)
	})
}
