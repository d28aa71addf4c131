// Package payments orchestrates the transaction lifecycle: creation against
// the external gateway, status reconciliation, cancel and refund flows, and
// authenticated inbound status callbacks.
package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordana/payments/libs/clients/gateway"
	"github.com/ordana/payments/libs/clients/messenger"
	appctx "github.com/ordana/payments/libs/context"
	"github.com/ordana/payments/libs/cryptography"
	errorutils "github.com/ordana/payments/libs/errors"
	"github.com/ordana/payments/libs/logging"
	"github.com/ordana/payments/services/payments/model"
)

// gatewayTimeLayout is the timestamp format on gateway responses and callbacks.
const gatewayTimeLayout = "2006-01-02 15:04:05"

// keyedMutex serializes work per key. Entries are reference counted so the
// map does not grow with the order id space.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: map[string]*lockEntry{}}
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	entry := k.entries[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}

// Service contains datastore and clients connections.
type Service struct {
	Datastore Datastore

	gateway   gateway.Client
	messenger messenger.Client
	serverKey string

	orderLocks *keyedMutex
}

// InitService creates a service using the datastore and clients configured
// from the context. The messenger is optional, receipts are skipped without it.
func InitService(ctx context.Context, datastore Datastore) (*Service, error) {
	logger := logging.Logger(ctx, "payments.InitService")

	gatewayClient, err := gateway.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway client: %w", err)
	}

	serverKey, err := appctx.GetStringFromContext(ctx, appctx.GatewayServerKeyCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway server key from context: %w", err)
	}

	messengerClient, err := messenger.NewWithContext(ctx)
	if err != nil {
		logger.Info().Err(err).Msg("messenger not configured, receipts disabled")
		messengerClient = nil
	}

	return &Service{
		Datastore:  datastore,
		gateway:    gatewayClient,
		messenger:  messengerClient,
		serverKey:  serverKey,
		orderLocks: newKeyedMutex(),
	}, nil
}

// chargeRequest renders the wire form of a transaction record.
func chargeRequest(tx *model.Transaction) *gateway.ChargeRequest {
	items := make([]gateway.ItemDetail, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, gateway.ItemDetail{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.UnitPrice,
			Quantity: item.Quantity,
		})
	}

	return &gateway.ChargeRequest{
		PaymentType: string(tx.PaymentType),
		TransactionDetails: gateway.TransactionDetails{
			OrderID:     tx.OrderID,
			GrossAmount: tx.GrossAmount,
		},
		ItemDetails: items,
		CustomerDetails: &gateway.CustomerDetails{
			FirstName: tx.Customer.Name,
			Email:     tx.Customer.Email,
			Phone:     tx.Customer.Phone,
			Address:   tx.Customer.Address,
		},
	}
}

// parseGatewayTime parses the gateway's timestamp, falling back to now so a
// malformed timestamp never blocks a verified status.
func parseGatewayTime(value string) time.Time {
	if at, err := time.Parse(gatewayTimeLayout, value); err == nil {
		return at
	}
	return time.Now().UTC()
}

// CreateTransaction validates the request, persists the pending record and
// charges the gateway. A gateway failure is recorded as a failure status, the
// record stays queryable and a later verified report may supersede it.
func (s *Service) CreateTransaction(ctx context.Context, req *model.TransactionRequest) (*model.Transaction, error) {
	logger := logging.Logger(ctx, "payments.CreateTransaction")

	tx, err := model.NewTransaction(req)
	if err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidRequest, err.Error(), nil)
	}

	s.orderLocks.lock(tx.OrderID)
	defer s.orderLocks.unlock(tx.OrderID)

	if err := s.Datastore.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	resp, err := s.gateway.Charge(ctx, chargeRequest(tx))
	if err != nil {
		logger.Error().Err(err).Str("order_id", tx.OrderID).Msg("gateway charge failed")

		if applyErr := tx.ApplyStatus(model.StatusFailure, time.Now().UTC()); applyErr == nil {
			if updateErr := s.Datastore.UpdateTransaction(ctx, tx); updateErr != nil {
				logger.Error().Err(updateErr).Str("order_id", tx.OrderID).Msg("failed to record charge failure")
			}
		}
		return nil, err
	}

	tx.SetTransactionID(resp.TransactionID)
	tx.SetFraudStatus(model.FraudStatus(resp.FraudStatus))
	if status := model.Status(resp.TransactionStatus); status.Valid() {
		if err := tx.ApplyStatus(status, parseGatewayTime(resp.TransactionTime)); err != nil {
			logger.Warn().Err(err).Str("order_id", tx.OrderID).
				Str("status", resp.TransactionStatus).Msg("charge response status not applied")
		}
	}

	if err := s.Datastore.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return tx, nil
}

// GetTransaction returns the locally persisted record.
func (s *Service) GetTransaction(ctx context.Context, orderID string) (*model.Transaction, error) {
	return s.Datastore.GetTransaction(ctx, orderID)
}

// RefreshTransactionStatus queries the gateway for the authoritative status
// and reconciles the local record through the transition table.
func (s *Service) RefreshTransactionStatus(ctx context.Context, orderID string) (*model.Transaction, error) {
	logger := logging.Logger(ctx, "payments.RefreshTransactionStatus")

	s.orderLocks.lock(orderID)
	defer s.orderLocks.unlock(orderID)

	tx, err := s.Datastore.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.TransactionStatus(ctx, orderID)
	if err != nil {
		// the local record still answers when the gateway does not
		logger.Warn().Err(err).Str("order_id", orderID).Msg("status refresh failed, serving local record")
		return tx, nil
	}

	tx.SetTransactionID(resp.TransactionID)
	tx.SetFraudStatus(model.FraudStatus(resp.FraudStatus))

	status := model.Status(resp.TransactionStatus)
	if !status.Valid() {
		logger.Warn().Str("order_id", orderID).Str("status", resp.TransactionStatus).
			Msg("gateway reported unknown status")
		return tx, nil
	}

	settled := tx.Status != model.StatusSettlement && status == model.StatusSettlement
	if err := tx.ApplyStatus(status, parseGatewayTime(resp.TransactionTime)); err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition, err.Error(), nil)
	}

	if err := s.Datastore.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if settled {
		s.sendReceipt(ctx, tx)
	}

	return tx, nil
}

// CancelTransaction voids a not yet settled transaction at the gateway and
// moves the local record to cancel.
func (s *Service) CancelTransaction(ctx context.Context, orderID string) (*model.Transaction, error) {
	s.orderLocks.lock(orderID)
	defer s.orderLocks.unlock(orderID)

	tx, err := s.Datastore.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !tx.Status.CanTransition(model.StatusCancel) {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition,
			fmt.Sprintf("cannot cancel transaction in status %s", tx.Status), nil)
	}

	resp, err := s.gateway.Cancel(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tx.SetTransactionID(resp.TransactionID)
	if err := tx.ApplyStatus(model.StatusCancel, parseGatewayTime(resp.TransactionTime)); err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition, err.Error(), nil)
	}

	if err := s.Datastore.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return tx, nil
}

// RefundTransaction reverses a settled transaction at the gateway, fully when
// amount is zero, partially otherwise.
func (s *Service) RefundTransaction(ctx context.Context, orderID string, amount int64, reason string) (*model.Transaction, error) {
	s.orderLocks.lock(orderID)
	defer s.orderLocks.unlock(orderID)

	tx, err := s.Datastore.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if tx.Status != model.StatusSettlement {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition,
			fmt.Sprintf("cannot refund transaction in status %s", tx.Status), nil)
	}
	if amount < 0 || amount > tx.GrossAmount {
		return nil, errorutils.New(errorutils.ErrInvalidRequest, model.ErrRefundExceedsGross.Error(), nil)
	}

	// the gateway requires refund keys to be unique per attempt
	refundKey, err := cryptography.RandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refund key: %w", err)
	}

	resp, err := s.gateway.Refund(ctx, orderID, &gateway.RefundRequest{
		RefundKey: refundKey,
		Amount:    amount,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.ApplyRefund(amount, parseGatewayTime(resp.TransactionTime)); err != nil {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition, err.Error(), nil)
	}

	if err := s.Datastore.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return tx, nil
}

// CheckoutToken requests a hosted checkout token for a pending transaction.
func (s *Service) CheckoutToken(ctx context.Context, orderID string) (*gateway.CheckoutTokenResponse, error) {
	tx, err := s.Datastore.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if tx.Status != model.StatusPending {
		return nil, errorutils.New(errorutils.ErrInvalidStateTransition,
			fmt.Sprintf("cannot generate checkout token in status %s", tx.Status), nil)
	}

	return s.gateway.CheckoutToken(ctx, chargeRequest(tx))
}

// HandleNotification processes an inbound gateway status callback. The
// signature is verified before anything else is believed, then the amount is
// matched and the status applied through the transition table.
func (s *Service) HandleNotification(ctx context.Context, n *gateway.Notification) error {
	logger := logging.Logger(ctx, "payments.HandleNotification")

	if !n.Verify(s.serverKey) {
		return errorutils.New(errorutils.ErrAuthenticationFailure,
			"notification signature mismatch", map[string]string{"orderID": n.OrderID})
	}

	status := model.Status(n.TransactionStatus)
	if !status.Valid() {
		return errorutils.New(errorutils.ErrInvalidRequest,
			model.ErrUnknownStatus.Error(), map[string]string{"status": n.TransactionStatus})
	}

	grossAmount, err := n.GrossAmountValue()
	if err != nil {
		return errorutils.New(errorutils.ErrInvalidRequest,
			"notification gross amount malformed", map[string]string{"orderID": n.OrderID})
	}

	s.orderLocks.lock(n.OrderID)
	defer s.orderLocks.unlock(n.OrderID)

	tx, err := s.Datastore.GetTransaction(ctx, n.OrderID)
	if err != nil {
		return err
	}

	// string decimal forms may differ, "150000" and "150000.00" are equal
	if !grossAmount.Equal(decimal.NewFromInt(tx.GrossAmount)) {
		return errorutils.New(errorutils.ErrInvalidRequest,
			"notification gross amount does not match record", map[string]string{"orderID": n.OrderID})
	}

	tx.SetTransactionID(n.TransactionID)
	tx.SetFraudStatus(model.FraudStatus(n.FraudStatus))

	at := parseGatewayTime(n.TransactionTime)
	if n.SettlementTime != "" {
		at = parseGatewayTime(n.SettlementTime)
	}

	settled := tx.Status != model.StatusSettlement && status == model.StatusSettlement
	if err := tx.ApplyStatus(status, at); err != nil {
		return errorutils.New(errorutils.ErrInvalidStateTransition, err.Error(),
			map[string]string{"orderID": n.OrderID, "from": tx.Status.String(), "to": status.String()})
	}

	if err := s.Datastore.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	logger.Info().
		Str("order_id", tx.OrderID).
		Str("status", tx.Status.String()).
		Msg("notification applied")

	if settled {
		s.sendReceipt(ctx, tx)
	}

	return nil
}

// renderReceipt renders the order confirmation document sent on settlement.
func renderReceipt(tx *model.Transaction) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "Payment receipt for order %s\n", tx.OrderID)
	if tx.TransactionID.Valid {
		fmt.Fprintf(&b, "Transaction %s\n", tx.TransactionID.String)
	}
	if tx.TransactionTime != nil {
		fmt.Fprintf(&b, "Settled at %s\n", tx.TransactionTime.UTC().Format(gatewayTimeLayout))
	}
	b.WriteString("\n")
	for _, item := range tx.Items {
		fmt.Fprintf(&b, "%s x%d  %d\n", item.Name, item.Quantity, item.UnitPrice*item.Quantity)
	}
	fmt.Fprintf(&b, "\nTotal %d\n", tx.GrossAmount)
	fmt.Fprintf(&b, "Thank you %s!\n", tx.Customer.Name)

	return []byte(b.String())
}

// sendReceipt delivers the order confirmation document in the background.
// Repeated settlements for the same order reuse the uploaded media id.
// Failures are logged and never affect the transaction.
func (s *Service) sendReceipt(ctx context.Context, tx *model.Transaction) {
	if s.messenger == nil || tx.Customer.Phone == "" {
		return
	}

	receipt := renderReceipt(tx)
	filename := fmt.Sprintf("receipt-%s.txt", tx.OrderID)
	to := tx.Customer.Phone
	orderID := tx.OrderID

	go func() {
		sendCtx, cancel := context.WithTimeout(appctx.Wrap(ctx, context.Background()), 30*time.Second)
		defer cancel()

		logger := logging.Logger(sendCtx, "payments.sendReceipt")
		if err := s.messenger.SendDocument(sendCtx, to, filename, receipt); err != nil {
			logger.Error().Err(err).Str("order_id", orderID).Msg("failed to send receipt")
		}
	}()
}
