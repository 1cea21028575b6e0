package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate transaction hash")
	ErrConcurrentUpdate = errors.New("transaction modified concurrently")
)

// TransactionFilter narrows a scan. Zero fields match everything.
type TransactionFilter struct {
	Statuses    []models.TransactionStatus
	Method      models.PaymentMethod
	UserIDHash  string
	From        *time.Time
	To          *time.Time
	SettledOnly bool
}

// Matches applies the filter in process. Stores without native predicates use it.
func (f TransactionFilter) Matches(t *models.Transaction) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if t.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Method != "" && t.Method != f.Method {
		return false
	}
	if f.UserIDHash != "" && t.UserIDHash != f.UserIDHash {
		return false
	}
	if f.From != nil && t.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Timestamp.After(*f.To) {
		return false
	}
	if f.SettledOnly && t.SettlementDate == nil {
		return false
	}
	return true
}

// MutateFunc edits a record inside an atomic read-modify-write. Returning an
// error aborts the write.
type MutateFunc func(txn *models.Transaction) error

type TransactionRepository interface {
	Insert(ctx context.Context, txn *models.Transaction) error
	FindByHash(ctx context.Context, txnIDHash string) (*models.Transaction, error)
	FindManyByHashes(ctx context.Context, txnIDHashes []string, status *models.TransactionStatus) ([]models.Transaction, error)
	// Scan returns matching records, newest first.
	Scan(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	Count(ctx context.Context, filter TransactionFilter) (int64, error)
	Update(ctx context.Context, txnIDHash string, mutate MutateFunc) (*models.Transaction, error)
}

func sortNewestFirst(txns []models.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Timestamp.After(txns[j].Timestamp)
	})
}

func statusStrings(statuses []models.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
