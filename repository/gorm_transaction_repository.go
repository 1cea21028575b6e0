package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormTransactionRepository struct {
	db *gorm.DB
}

func NewGormTransactionRepository(db *gorm.DB) TransactionRepository {
	return &gormTransactionRepository{db: db}
}

func (r *gormTransactionRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *gormTransactionRepository) FindByHash(ctx context.Context, txnIDHash string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("txn_id_hash = ?", txnIDHash).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *gormTransactionRepository) FindManyByHashes(ctx context.Context, txnIDHashes []string, status *models.TransactionStatus) ([]models.Transaction, error) {
	if len(txnIDHashes) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("txn_id_hash IN ?", txnIDHashes)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	var txns []models.Transaction
	if err := q.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *gormTransactionRepository) Scan(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter).
		Order("timestamp DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *gormTransactionRepository) Count(ctx context.Context, filter TransactionFilter) (int64, error) {
	var n int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter).Count(&n).Error
	return n, err
}

// Update locks the row for the duration of the mutation.
func (r *gormTransactionRepository) Update(ctx context.Context, txnIDHash string, mutate MutateFunc) (*models.Transaction, error) {
	var updated models.Transaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("txn_id_hash = ?", txnIDHash).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := mutate(&row); err != nil {
			return err
		}
		row.TxnIDHash = txnIDHash
		row.Version++
		row.UpdatedAt = time.Now().UTC()

		// A map so a cleared settlement date is written as NULL.
		updates := map[string]interface{}{
			"status":          string(row.Status),
			"settlement_date": row.SettlementDate,
			"risk_flag":       row.RiskFlag,
			"version":         row.Version,
			"updated_at":      row.UpdatedAt,
		}
		if err := tx.Model(&models.Transaction{}).
			Where("txn_id_hash = ?", txnIDHash).
			Updates(updates).Error; err != nil {
			return err
		}

		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *gormTransactionRepository) applyFilter(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.Method != "" {
		q = q.Where("method = ?", string(f.Method))
	}
	if f.UserIDHash != "" {
		q = q.Where("user_id_hash = ?", f.UserIDHash)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp <= ?", *f.To)
	}
	if f.SettledOnly {
		q = q.Where("settlement_date IS NOT NULL")
	}
	return q
}

func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique") || strings.Contains(msg, "23505")
}
