package payments

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/ordana/payments/libs/datastore"
	"github.com/ordana/payments/services/payments/model"
)

// Datastore abstracts over the payments storage.
type Datastore interface {
	datastore.Datastore
	// InsertTransaction persists a fresh pending transaction.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error
	// GetTransaction returns the transaction for the order id.
	GetTransaction(ctx context.Context, orderID string) (*model.Transaction, error)
	// UpdateTransaction writes back the mutable fields of the record.
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error
}

// Postgres is a Datastore wrapper around a postgres database.
type Postgres struct {
	datastore.Postgres
}

// NewPostgres creates a new payments Postgres Datastore.
func NewPostgres(databaseURL string, performMigration bool) (Datastore, error) {
	pg, err := datastore.NewPostgres(databaseURL, performMigration)
	if pg != nil {
		return &Postgres{*pg}, err
	}
	return nil, err
}

// InsertTransaction persists a fresh pending transaction. The order id is the
// primary key, re-using one surfaces the unique violation to the caller.
func (pg *Postgres) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	datastore.TouchCreate(tx)

	const q = `
		insert into transactions (
			order_id, transaction_id, gross_amount, refunded_amount,
			payment_type, status, fraud_status, customer, items,
			transaction_time, created_at, updated_at
		) values (
			:order_id, :transaction_id, :gross_amount, :refunded_amount,
			:payment_type, :status, :fraud_status, :customer, :items,
			:transaction_time, :created_at, :updated_at
		)`

	if _, err := pg.RawDB().NamedExecContext(ctx, q, tx); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrDuplicateOrderID
		}
		return err
	}
	return nil
}

// GetTransaction returns the transaction for the order id.
func (pg *Postgres) GetTransaction(ctx context.Context, orderID string) (*model.Transaction, error) {
	const q = `
		select
			order_id, transaction_id, gross_amount, refunded_amount,
			payment_type, status, fraud_status, customer, items,
			transaction_time, created_at, updated_at
		from transactions
		where order_id = $1`

	var tx model.Transaction
	if err := pg.RawDB().GetContext(ctx, &tx, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction writes back the fields the lifecycle is allowed to move.
// The immutable creation fields stay untouched on purpose.
func (pg *Postgres) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	datastore.TouchUpdate(tx)

	const q = `
		update transactions
		set
			transaction_id = :transaction_id,
			refunded_amount = :refunded_amount,
			status = :status,
			fraud_status = :fraud_status,
			transaction_time = :transaction_time,
			updated_at = :updated_at
		where order_id = :order_id`

	result, err := pg.RawDB().NamedExecContext(ctx, q, tx)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrNoRowsChangedTx
	}
	return nil
}
