package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ordana/payments/libs/clients"
	appctx "github.com/ordana/payments/libs/context"
	errorutils "github.com/ordana/payments/libs/errors"
)

const (
	productionServer = "https://api.gateway.ordana.io"
	sandboxServer    = "https://api.sandbox.gateway.ordana.io"
)

// ResolveServer picks the default gateway base URL for the environment.
// Explicit overrides are the caller's configuration concern.
func ResolveServer(env string) string {
	if env == "production" {
		return productionServer
	}
	return sandboxServer
}

// Client abstracts over the gateway transaction endpoints.
type Client interface {
	Charge(ctx context.Context, req *ChargeRequest) (*TransactionResponse, error)
	TransactionStatus(ctx context.Context, orderID string) (*TransactionResponse, error)
	Cancel(ctx context.Context, orderID string) (*TransactionResponse, error)
	Refund(ctx context.Context, orderID string, req *RefundRequest) (*TransactionResponse, error)
	CheckoutToken(ctx context.Context, req *ChargeRequest) (*CheckoutTokenResponse, error)
}

// HTTPClient wraps the payment gateway API over a SimpleHTTPClient.
type HTTPClient struct {
	client *clients.SimpleHTTPClient
}

// basicToken turns the merchant server key into the gateway's basic auth
// token, key as username with an empty password.
func basicToken(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}

// New returns an instrumented gateway Client for the server and key.
func New(serverURL, serverKey string) (Client, error) {
	simple, err := clients.NewInstrumented("gateway", serverURL, basicToken(serverKey))
	if err != nil {
		return nil, err
	}
	return &HTTPClient{simple}, nil
}

// NewWithContext pulls server and server key from the context.
func NewWithContext(ctx context.Context) (Client, error) {
	serverURL, err := appctx.GetStringFromContext(ctx, appctx.GatewayServerCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway server from context: %w", err)
	}
	serverKey, err := appctx.GetStringFromContext(ctx, appctx.GatewayServerKeyCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway server key from context: %w", err)
	}
	return New(serverURL, serverKey)
}

// NewWithHTTPClient is a test constructor taking an explicit http.Client.
func NewWithHTTPClient(serverURL, serverKey string, client *http.Client) (Client, error) {
	simple, err := clients.NewWithHTTPClient(serverURL, basicToken(serverKey), client)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{simple}, nil
}

// Charge creates a transaction at the gateway.
func (c *HTTPClient) Charge(ctx context.Context, chargeReq *ChargeRequest) (*TransactionResponse, error) {
	if err := chargeReq.Validate(); err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidRequest, err.Error(), nil)
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, "/v2/charge", chargeReq, nil)
	if err != nil {
		return nil, err
	}

	var body TransactionResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, mapGatewayError(err, "charge")
	}
	defer func() { _ = resp.Body.Close() }()

	return &body, nil
}

// TransactionStatus fetches the gateway's current view of the transaction.
func (c *HTTPClient) TransactionStatus(ctx context.Context, orderID string) (*TransactionResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet,
		fmt.Sprintf("/v2/%s/status", url.PathEscape(orderID)), nil, nil)
	if err != nil {
		return nil, err
	}

	var body TransactionResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, mapGatewayError(err, "transaction status")
	}
	defer func() { _ = resp.Body.Close() }()

	return &body, nil
}

// Cancel voids a transaction that has not settled yet.
func (c *HTTPClient) Cancel(ctx context.Context, orderID string) (*TransactionResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodPost,
		fmt.Sprintf("/v2/%s/cancel", url.PathEscape(orderID)), nil, nil)
	if err != nil {
		return nil, err
	}

	var body TransactionResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, mapGatewayError(err, "cancel")
	}
	defer func() { _ = resp.Body.Close() }()

	return &body, nil
}

// Refund reverses a settled transaction, fully or partially.
func (c *HTTPClient) Refund(ctx context.Context, orderID string, refundReq *RefundRequest) (*TransactionResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodPost,
		fmt.Sprintf("/v2/%s/refund", url.PathEscape(orderID)), refundReq, nil)
	if err != nil {
		return nil, err
	}

	var body TransactionResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, mapGatewayError(err, "refund")
	}
	defer func() { _ = resp.Body.Close() }()

	return &body, nil
}

// CheckoutToken requests a hosted checkout token for the transaction.
func (c *HTTPClient) CheckoutToken(ctx context.Context, chargeReq *ChargeRequest) (*CheckoutTokenResponse, error) {
	if err := chargeReq.Validate(); err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidRequest, err.Error(), nil)
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, "/checkout/v1/tokens", chargeReq, nil)
	if err != nil {
		return nil, err
	}

	var body CheckoutTokenResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, mapGatewayError(err, "checkout token")
	}
	defer func() { _ = resp.Body.Close() }()

	return &body, nil
}

// mapGatewayError folds an upstream HTTP failure into the service error
// taxonomy, keeping the response state attached for the handlers.
func mapGatewayError(err error, operation string) error {
	var bundle *errorutils.ErrorBundle
	if errors.As(err, &bundle) {
		if state, ok := bundle.Data().(clients.HTTPState); ok {
			switch {
			case state.Status == http.StatusNotFound:
				return errorutils.New(errorutils.ErrNotFound,
					fmt.Sprintf("gateway %s: transaction not found", operation), state)
			case state.Status == http.StatusPreconditionFailed || state.Status == http.StatusConflict:
				return errorutils.New(errorutils.ErrInvalidStateTransition,
					fmt.Sprintf("gateway %s: transaction status does not allow this operation", operation), state)
			case state.Status >= 400 && state.Status < 500:
				return errorutils.New(errorutils.ErrInvalidRequest,
					fmt.Sprintf("gateway %s: request rejected", operation), state)
			default:
				return errorutils.New(errorutils.ErrGatewayUnavailable,
					fmt.Sprintf("gateway %s: upstream failure", operation), state)
			}
		}
	}
	// transport level failure, no http state attached
	return errorutils.New(errorutils.ErrGatewayUnavailable,
		fmt.Sprintf("gateway %s: %s", operation, err.Error()), nil)
}
