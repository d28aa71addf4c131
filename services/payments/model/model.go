// Package model provides data that the payments service operates on.
package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/ordana/payments/libs/datastore"
)

const (
	ErrSomethingWentWrong    Error = "something went wrong"
	ErrTransactionNotFound   Error = "model: transaction not found"
	ErrDuplicateOrderID      Error = "model: transaction already exists for order id"
	ErrNoRowsChangedTx       Error = "model: no rows changed in transactions"
	ErrInvalidTxNoOrderID    Error = "model: invalid transaction: no order id"
	ErrInvalidTxNoItems      Error = "model: invalid transaction: no items"
	ErrInvalidTxAmount       Error = "model: invalid transaction: gross amount must be positive"
	ErrInvalidTxItemTotal    Error = "model: invalid transaction: item total does not match gross amount"
	ErrInvalidTxItem         Error = "model: invalid transaction: item price and quantity must be positive"
	ErrInvalidCustomerEmail  Error = "model: invalid transaction: customer email malformed"
	ErrStateConflict         Error = "model: illegal status transition"
	ErrUnknownStatus         Error = "model: unknown transaction status"
	ErrNotSettled            Error = "model: transaction is not settled"
	ErrAlreadyTerminal       Error = "model: transaction already in a terminal status"
	ErrRefundExceedsGross    Error = "model: refund amount exceeds gross amount"
	ErrUnknownPaymentType    Error = "model: unknown payment type"
)

const (
	// Status* represent transaction statuses at runtime and in db.
	StatusPending    Status = "pending"
	StatusSettlement Status = "settlement"
	StatusCancel     Status = "cancel"
	StatusDeny       Status = "deny"
	StatusExpire     Status = "expire"
	StatusRefund     Status = "refund"
	StatusFailure    Status = "failure"
)

const (
	FraudAccept    FraudStatus = "accept"
	FraudChallenge FraudStatus = "challenge"
	FraudDeny      FraudStatus = "deny"
)

const (
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
	PaymentTypeEWallet      PaymentType = "ewallet"
	PaymentTypeQRIS         PaymentType = "qris"
	PaymentTypeCreditCard   PaymentType = "credit_card"
)

// Error is the error type for model errors.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// Status represents the lifecycle status of a transaction.
type Status string

// FraudStatus is the advisory fraud detection result reported by the gateway.
type FraudStatus string

// PaymentType is the payment method tag set at creation.
type PaymentType string

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSettlement, StatusCancel, StatusDeny, StatusExpire, StatusRefund, StatusFailure:
		return true
	}
	return false
}

// Terminal reports whether s is retained for audit and accepts no further
// gateway-reported transitions. settlement is terminal except for the refund
// operation; failure is local bookkeeping and may be superseded by a verified
// gateway status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSettlement, StatusCancel, StatusDeny, StatusExpire, StatusRefund:
		return true
	}
	return false
}

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentTypeBankTransfer, PaymentTypeEWallet, PaymentTypeQRIS, PaymentTypeCreditCard:
		return true
	}
	return false
}

// transitions holds the legal status transitions. A status missing from the
// map accepts no transitions at all.
var transitions = map[Status][]Status{
	StatusPending:    {StatusSettlement, StatusCancel, StatusDeny, StatusExpire, StatusFailure},
	StatusSettlement: {StatusRefund},
	// failure records a local gateway/network error; a later verified gateway
	// report is authoritative and may supersede it.
	StatusFailure: {StatusSettlement, StatusCancel, StatusDeny, StatusExpire},
}

// CanTransition reports whether s may legally move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Item is a single order line of a transaction.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
}

// Items is the ordered item list, stored as a jsonb column.
type Items []Item

// Total returns the price*quantity sum across items.
func (items Items) Total() int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * item.Quantity
	}
	return total
}

// Value implements driver.Valuer.
func (items Items) Value() (driver.Value, error) {
	return json.Marshal(items)
}

// Scan implements sql.Scanner.
func (items *Items) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("model: items column is not a byte slice")
	}
	return json.Unmarshal(b, items)
}

// Customer holds the payer contact fields, immutable after creation.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Value implements driver.Valuer.
func (c Customer) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *Customer) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("model: customer column is not a byte slice")
	}
	return json.Unmarshal(b, c)
}

// Transaction is the canonical record of one payment attempt.
//
// OrderID, GrossAmount, PaymentType, Customer and Items never change after
// creation. TransactionID is set once from the first gateway response. The
// status triplet only moves through ApplyStatus / ApplyRefund.
type Transaction struct {
	OrderID         string         `json:"orderId" db:"order_id"`
	TransactionID   sql.NullString `json:"transactionId" db:"transaction_id"`
	GrossAmount     int64          `json:"grossAmount" db:"gross_amount"`
	RefundedAmount  int64          `json:"refundedAmount" db:"refunded_amount"`
	PaymentType     PaymentType    `json:"paymentType" db:"payment_type"`
	Status          Status         `json:"status" db:"status"`
	FraudStatus     FraudStatus    `json:"fraudStatus" db:"fraud_status"`
	Customer        Customer       `json:"customer" db:"customer"`
	Items           Items          `json:"items" db:"items"`
	TransactionTime *time.Time     `json:"transactionTime" db:"transaction_time"`

	datastore.Timestamps
}

// TransactionRequest is the caller supplied input to create a transaction.
type TransactionRequest struct {
	OrderID     string      `json:"orderId" valid:"required"`
	GrossAmount int64       `json:"grossAmount"`
	PaymentType PaymentType `json:"paymentType"`
	Customer    Customer    `json:"customer"`
	Items       Items       `json:"items"`
}

// Validate checks the request invariants before anything touches the network.
func (r *TransactionRequest) Validate() error {
	if r.OrderID == "" {
		return ErrInvalidTxNoOrderID
	}
	if r.GrossAmount <= 0 {
		return ErrInvalidTxAmount
	}
	if len(r.Items) == 0 {
		return ErrInvalidTxNoItems
	}
	for _, item := range r.Items {
		if item.UnitPrice <= 0 || item.Quantity <= 0 {
			return ErrInvalidTxItem
		}
	}
	if r.Items.Total() != r.GrossAmount {
		return ErrInvalidTxItemTotal
	}
	if !r.PaymentType.Valid() {
		return ErrUnknownPaymentType
	}
	if r.Customer.Email != "" && !govalidator.IsEmail(r.Customer.Email) {
		return ErrInvalidCustomerEmail
	}
	return nil
}

// NewTransaction builds the initial pending record for a validated request.
func NewTransaction(r *TransactionRequest) (*Transaction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Transaction{
		OrderID:     r.OrderID,
		GrossAmount: r.GrossAmount,
		PaymentType: r.PaymentType,
		Customer:    r.Customer,
		Items:       r.Items,
		Status:      StatusPending,
		FraudStatus: FraudAccept,
	}, nil
}

// ApplyStatus moves the transaction to next, enforcing the transition table.
// Repeating the current status is a no-op. An illegal transition returns
// ErrStateConflict and leaves the record untouched.
func (t *Transaction) ApplyStatus(next Status, at time.Time) error {
	if !next.Valid() {
		return ErrUnknownStatus
	}
	if next == t.Status {
		return nil
	}
	if !t.Status.CanTransition(next) {
		return ErrStateConflict
	}
	t.Status = next
	t.TransactionTime = &at
	return nil
}

// ApplyRefund applies a full or partial refund against a settled transaction.
// A zero amount refunds the full remaining gross amount. Refunds reference the
// amount separately, the original gross amount never changes.
func (t *Transaction) ApplyRefund(amount int64, at time.Time) error {
	if t.Status != StatusSettlement {
		return ErrNotSettled
	}
	if amount == 0 {
		amount = t.GrossAmount
	}
	if amount < 0 || amount > t.GrossAmount {
		return ErrRefundExceedsGross
	}
	if err := t.ApplyStatus(StatusRefund, at); err != nil {
		return err
	}
	t.RefundedAmount = amount
	return nil
}

// SetTransactionID records the gateway assigned identifier exactly once.
func (t *Transaction) SetTransactionID(id string) {
	if t.TransactionID.Valid || id == "" {
		return
	}
	t.TransactionID = sql.NullString{String: id, Valid: true}
}

// SetFraudStatus records the advisory fraud result when recognized.
func (t *Transaction) SetFraudStatus(fs FraudStatus) {
	switch fs {
	case FraudAccept, FraudChallenge, FraudDeny:
		t.FraudStatus = fs
	}
}
