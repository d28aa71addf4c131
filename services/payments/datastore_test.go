package payments

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordana/payments/libs/datastore"
	"github.com/ordana/payments/services/payments/model"
)

func newMockPostgres(t *testing.T) (Datastore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Postgres{datastore.Postgres{DB: sqlx.NewDb(db, "postgres")}}, mock
}

func testTransaction(t *testing.T) *model.Transaction {
	t.Helper()

	tx, err := model.NewTransaction(&model.TransactionRequest{
		OrderID:     "ORD-1",
		GrossAmount: 150000,
		PaymentType: model.PaymentTypeBankTransfer,
		Customer:    model.Customer{Name: "Siti Rahayu", Email: "siti@example.com"},
		Items:       model.Items{{ID: "I1", Name: "widget", UnitPrice: 150000, Quantity: 1}},
	})
	require.NoError(t, err)
	return tx
}

func TestInsertTransaction(t *testing.T) {
	pg, mock := newMockPostgres(t)
	tx := testTransaction(t)

	mock.ExpectExec("insert into transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, pg.InsertTransaction(context.Background(), tx))

	// timestamps were stamped by the insert
	assert.False(t, tx.CreatedAt.IsZero())
	assert.Equal(t, tx.CreatedAt, tx.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransaction(t *testing.T) {
	pg, mock := newMockPostgres(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"order_id", "transaction_id", "gross_amount", "refunded_amount",
		"payment_type", "status", "fraud_status", "customer", "items",
		"transaction_time", "created_at", "updated_at",
	}).AddRow(
		"ORD-1", "gw-123", int64(150000), int64(0),
		"bank_transfer", "settlement", "accept",
		[]byte(`{"name":"Siti Rahayu","email":"siti@example.com","phone":"","address":""}`),
		[]byte(`[{"id":"I1","name":"widget","unitPrice":150000,"quantity":1}]`),
		now, now, now,
	)

	mock.ExpectQuery("select(.|\n)+from transactions").
		WithArgs("ORD-1").
		WillReturnRows(rows)

	tx, err := pg.GetTransaction(context.Background(), "ORD-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusSettlement, tx.Status)
	assert.Equal(t, "gw-123", tx.TransactionID.String)
	assert.Equal(t, "Siti Rahayu", tx.Customer.Name)
	assert.Equal(t, int64(150000), tx.Items.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransaction_NotFound(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery("select(.|\n)+from transactions").
		WithArgs("ORD-404").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	_, err := pg.GetTransaction(context.Background(), "ORD-404")
	assert.Equal(t, model.ErrTransactionNotFound, err)
}

func TestUpdateTransaction(t *testing.T) {
	pg, mock := newMockPostgres(t)
	tx := testTransaction(t)
	require.NoError(t, tx.ApplyStatus(model.StatusSettlement, time.Now()))

	mock.ExpectExec("update transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, pg.UpdateTransaction(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransaction_NoRowsChanged(t *testing.T) {
	pg, mock := newMockPostgres(t)
	tx := testTransaction(t)

	mock.ExpectExec("update transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := pg.UpdateTransaction(context.Background(), tx)
	assert.Equal(t, model.ErrNoRowsChangedTx, err)
}
