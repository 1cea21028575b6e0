package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

var txnColumns = []string{
	"txn_id_hash", "txn_id_enc", "amount_enc", "user_id_enc", "user_id_hash", "method", "status",
	"timestamp", "settlement_date", "sandbox", "risk_flag", "payment_link", "version", "updated_at",
}

func successRow(hash string, ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(txnColumns).
		AddRow(hash, "enc-id", "enc-amount", "enc-user", "user-hash", "UPI", "SUCCESS",
			ts, nil, false, false, "https://pay.example.test/txn/x", 0, ts)
}

func TestGormInsert_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "transactions"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Insert(context.Background(), &models.Transaction{
		TxnIDHash: "hash-1",
		Method:    models.MethodUPI,
		Status:    models.StatusSuccess,
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInsert_Duplicate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "transactions"`)).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "transactions_pkey" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), &models.Transaction{TxnIDHash: "hash-1", Timestamp: time.Now()})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestGormFindByHash_Found(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transactions" WHERE txn_id_hash = $1`)).
		WillReturnRows(successRow("hash-7", time.Now()))

	txn, err := repo.FindByHash(context.Background(), "hash-7")
	require.NoError(t, err)
	assert.Equal(t, "hash-7", txn.TxnIDHash)
	assert.Equal(t, models.StatusSuccess, txn.Status)
	assert.Nil(t, txn.SettlementDate)
}

func TestGormFindByHash_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transactions" WHERE txn_id_hash = $1`)).
		WillReturnRows(sqlmock.NewRows(txnColumns))

	txn, err := repo.FindByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, txn)
}

func TestGormScan_AppliesFilterAndOrder(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE status IN .* AND user_id_hash = .* ORDER BY timestamp DESC`).
		WillReturnRows(successRow("hash-1", time.Now()))

	txns, err := repo.Scan(context.Background(), repository.TransactionFilter{
		Statuses:   []models.TransactionStatus{models.StatusSuccess},
		UserIDHash: "user-hash",
	})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCount(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "transactions" WHERE settlement_date IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), repository.TransactionFilter{SettledOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestGormUpdate_LocksAndWrites(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE txn_id_hash = \$1 .*FOR UPDATE`).
		WillReturnRows(successRow("hash-9", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transactions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	settledAt := time.Now().UTC()
	txn, err := repo.Update(context.Background(), "hash-9", func(t *models.Transaction) error {
		t.SettlementDate = &settledAt
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), txn.Version)
	require.NotNil(t, txn.SettlementDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdate_MutateErrorRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE txn_id_hash = \$1 .*FOR UPDATE`).
		WillReturnRows(successRow("hash-9", time.Now()))
	mock.ExpectRollback()

	errNope := errors.New("precondition failed")
	txn, err := repo.Update(context.Background(), "hash-9", func(*models.Transaction) error { return errNope })
	assert.ErrorIs(t, err, errNope)
	assert.Nil(t, txn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdate_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE txn_id_hash = \$1`).
		WillReturnRows(sqlmock.NewRows(txnColumns))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "missing", func(*models.Transaction) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
