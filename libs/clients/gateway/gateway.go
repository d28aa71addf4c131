// Package gateway implements the HTTP client for the external payment
// gateway: transaction lifecycle calls plus the inbound callback wire types.
package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/ordana/payments/libs/cryptography"
)

const (
	ErrNoOrderID         Error = "gateway: charge request missing order id"
	ErrNonPositiveAmount Error = "gateway: charge request gross amount must be positive"
)

// Error is the error type for gateway wire validation.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// TransactionDetails identifies the order and amount of a charge.
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// ItemDetail is a single order line on the wire.
type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// CustomerDetails carries payer contact fields.
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// ChargeRequest creates a transaction at the gateway.
type ChargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
}

// Validate fails fast before any network call is made.
func (r *ChargeRequest) Validate() error {
	if r.TransactionDetails.OrderID == "" {
		return ErrNoOrderID
	}
	if r.TransactionDetails.GrossAmount <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// RefundRequest asks the gateway to refund a settled transaction. A zero
// Amount refunds the full gross amount.
type RefundRequest struct {
	RefundKey string `json:"refund_key,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// TransactionResponse is the gateway's representation of a transaction,
// shared by the charge, status, cancel and refund endpoints.
type TransactionResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	RefundAmount      string `json:"refund_amount,omitempty"`
}

// CheckoutTokenResponse is the hosted checkout handle for a transaction.
type CheckoutTokenResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is the asynchronous status callback posted by the gateway.
// This payload crosses a trust boundary: nothing in it may be believed until
// the signature key has been verified against the server key.
type Notification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusMessage     string `json:"status_message"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	SettlementTime    string `json:"settlement_time,omitempty"`
	PaymentType       string `json:"payment_type"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	Currency          string `json:"currency,omitempty"`
}

// Verify authenticates the notification against the server key. The gross
// amount participates in its raw wire form so a tampered amount breaks the
// digest.
func (n *Notification) Verify(serverKey string) bool {
	return cryptography.VerifyNotificationSignature(
		n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey, serverKey)
}

// GrossAmountValue parses the string encoded gross amount.
func (n *Notification) GrossAmountValue() (decimal.Decimal, error) {
	return decimal.NewFromString(n.GrossAmount)
}
