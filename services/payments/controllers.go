package payments

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ordana/payments/libs/clients/gateway"
	errorutils "github.com/ordana/payments/libs/errors"
	"github.com/ordana/payments/libs/handlers"
	"github.com/ordana/payments/libs/logging"
	"github.com/ordana/payments/libs/middleware"
	"github.com/ordana/payments/libs/requestutils"
	"github.com/ordana/payments/services/payments/model"
)

// Router returns the payments transaction routes.
func Router(service *Service) chi.Router {
	r := chi.NewRouter()

	r.Method("POST", "/", middleware.InstrumentHandler("CreateTransaction", CreateTransaction(service)))
	r.Method("GET", "/{orderID}", middleware.InstrumentHandler("GetTransaction", GetTransaction(service)))
	r.Method("POST", "/{orderID}/cancel", middleware.InstrumentHandler("CancelTransaction", CancelTransaction(service)))
	r.Method("POST", "/{orderID}/refund", middleware.InstrumentHandler("RefundTransaction", RefundTransaction(service)))
	r.Method("POST", "/{orderID}/token", middleware.InstrumentHandler("CreateCheckoutToken", CreateCheckoutToken(service)))

	return r
}

// CallbackRouter returns the inbound gateway callback routes.
func CallbackRouter(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Method("POST", "/gateway", middleware.InstrumentHandler("GatewayNotification", GatewayNotification(service)))
	return r
}

// serviceError maps a service layer error onto the HTTP error surface.
func serviceError(err error, message string) *handlers.AppError {
	switch {
	case errors.Is(err, model.ErrTransactionNotFound), errors.Is(err, errorutils.ErrNotFound):
		return handlers.WrapError(err, "transaction not found", http.StatusNotFound)
	case errors.Is(err, errorutils.ErrAuthenticationFailure):
		return handlers.WrapError(err, "signature verification failed", http.StatusUnauthorized)
	case errors.Is(err, model.ErrDuplicateOrderID):
		return handlers.WrapError(err, "transaction already exists for order id", http.StatusConflict)
	case errors.Is(err, errorutils.ErrInvalidStateTransition):
		return handlers.WrapError(err, message, http.StatusConflict)
	case errors.Is(err, errorutils.ErrInvalidRequest):
		return handlers.WrapError(err, message, http.StatusBadRequest)
	case errors.Is(err, errorutils.ErrGatewayUnavailable):
		return handlers.WrapError(err, "payment gateway unavailable", http.StatusBadGateway)
	default:
		return handlers.WrapError(err, message, http.StatusInternalServerError)
	}
}

// CreateTransaction is the handler for creating a transaction.
func CreateTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req model.TransactionRequest
		if err := requestutils.ReadJSON(r.Context(), r.Body, &req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		tx, err := service.CreateTransaction(r.Context(), &req)
		if err != nil {
			return serviceError(err, "Error creating transaction")
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusCreated)
	}
}

// GetTransaction returns the transaction reconciled against the gateway's
// current view.
func GetTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			return handlers.ValidationError("request url parameter", map[string]string{
				"orderID": "orderID must be present",
			})
		}

		tx, err := service.RefreshTransactionStatus(r.Context(), orderID)
		if err != nil {
			return serviceError(err, "Error retrieving transaction")
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// CancelTransaction is the handler for voiding a pending transaction.
func CancelTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		orderID := chi.URLParam(r, "orderID")

		tx, err := service.CancelTransaction(r.Context(), orderID)
		if err != nil {
			return serviceError(err, "Error cancelling transaction")
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// RefundRequest is the request body for refunding a transaction. A zero or
// absent amount refunds the full gross amount.
type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// RefundTransaction is the handler for refunding a settled transaction.
func RefundTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		orderID := chi.URLParam(r, "orderID")

		var req RefundRequest
		if err := requestutils.ReadJSON(r.Context(), r.Body, &req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		tx, err := service.RefundTransaction(r.Context(), orderID, req.Amount, req.Reason)
		if err != nil {
			return serviceError(err, "Error refunding transaction")
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// CreateCheckoutToken is the handler for minting a hosted checkout token.
func CreateCheckoutToken(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		orderID := chi.URLParam(r, "orderID")

		token, err := service.CheckoutToken(r.Context(), orderID)
		if err != nil {
			return serviceError(err, "Error creating checkout token")
		}

		return handlers.RenderContent(r.Context(), token, w, http.StatusCreated)
	}
}

// GatewayNotification is the handler for inbound gateway status callbacks.
// An unverifiable signature gets a 401 and the record is never touched.
func GatewayNotification(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		logger := logging.Logger(r.Context(), "payments.GatewayNotification")

		var n gateway.Notification
		if err := requestutils.ReadJSON(r.Context(), r.Body, &n); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		if err := service.HandleNotification(r.Context(), &n); err != nil {
			logger.Warn().Err(err).Str("order_id", n.OrderID).Msg("notification rejected")
			return serviceError(err, "Error processing notification")
		}

		return handlers.RenderContent(r.Context(), map[string]string{"status": "ok"}, w, http.StatusOK)
	}
}
