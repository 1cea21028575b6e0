package repository

import (
	"context"
	"sync"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
)

type memoryTransactionRepository struct {
	mu   sync.RWMutex
	rows map[string]models.Transaction
}

// NewMemoryTransactionRepository keeps records in process. Used for sandbox runs and tests.
func NewMemoryTransactionRepository() TransactionRepository {
	return &memoryTransactionRepository{rows: make(map[string]models.Transaction)}
}

func (r *memoryTransactionRepository) Insert(_ context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[txn.TxnIDHash]; exists {
		return ErrDuplicateKey
	}
	r.rows[txn.TxnIDHash] = cloneTransaction(*txn)
	return nil
}

func (r *memoryTransactionRepository) FindByHash(_ context.Context, txnIDHash string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[txnIDHash]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTransaction(row)
	return &out, nil
}

func (r *memoryTransactionRepository) FindManyByHashes(_ context.Context, txnIDHashes []string, status *models.TransactionStatus) ([]models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Transaction
	seen := make(map[string]bool, len(txnIDHashes))
	for _, h := range txnIDHashes {
		if seen[h] {
			continue
		}
		seen[h] = true
		row, ok := r.rows[h]
		if !ok {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		out = append(out, cloneTransaction(row))
	}
	return out, nil
}

func (r *memoryTransactionRepository) Scan(_ context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Transaction, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.Matches(&row) {
			out = append(out, cloneTransaction(row))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *memoryTransactionRepository) Count(_ context.Context, filter TransactionFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, row := range r.rows {
		if filter.Matches(&row) {
			n++
		}
	}
	return n, nil
}

func (r *memoryTransactionRepository) Update(_ context.Context, txnIDHash string, mutate MutateFunc) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[txnIDHash]
	if !ok {
		return nil, ErrNotFound
	}

	work := cloneTransaction(row)
	if err := mutate(&work); err != nil {
		return nil, err
	}
	work.TxnIDHash = txnIDHash
	work.Version = row.Version + 1
	work.UpdatedAt = time.Now().UTC()
	r.rows[txnIDHash] = work

	out := cloneTransaction(work)
	return &out, nil
}

func cloneTransaction(t models.Transaction) models.Transaction {
	if t.SettlementDate != nil {
		d := *t.SettlementDate
		t.SettlementDate = &d
	}
	return t
}
