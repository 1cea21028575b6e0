package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTxn(hash, userHash string, status models.TransactionStatus, method models.PaymentMethod, ts time.Time) *models.Transaction {
	return &models.Transaction{
		TxnIDHash:  hash,
		UserIDHash: userHash,
		Status:     status,
		Method:     method,
		Timestamp:  ts,
	}
}

func TestMemoryInsert_DuplicateHash(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Insert(ctx, seedTxn("h1", "u1", models.StatusSuccess, models.MethodUPI, now)))
	err := repo.Insert(ctx, seedTxn("h1", "u2", models.StatusFailed, models.MethodCard, now))
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	got, err := repo.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserIDHash)
}

func TestMemoryFindByHash_NotFound(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	_, err := repo.FindByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryFindByHash_ReturnsCopy(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, seedTxn("h1", "u1", models.StatusSuccess, models.MethodUPI, time.Now())))

	got, _ := repo.FindByHash(ctx, "h1")
	got.Status = models.StatusRefunded

	again, _ := repo.FindByHash(ctx, "h1")
	assert.Equal(t, models.StatusSuccess, again.Status)
}

func TestMemoryScan_FilterAndOrder(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	settled := base
	rows := []*models.Transaction{
		seedTxn("a", "u1", models.StatusSuccess, models.MethodUPI, base),
		seedTxn("b", "u1", models.StatusFailed, models.MethodCard, base.Add(time.Hour)),
		seedTxn("c", "u2", models.StatusSuccess, models.MethodCard, base.Add(2*time.Hour)),
		seedTxn("d", "u1", models.StatusSuccess, models.MethodUPI, base.Add(3*time.Hour)),
	}
	rows[3].SettlementDate = &settled
	for _, r := range rows {
		require.NoError(t, repo.Insert(ctx, r))
	}

	all, err := repo.Scan(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"d", "c", "b", "a"}, hashes(all))

	mine, _ := repo.Scan(ctx, repository.TransactionFilter{UserIDHash: "u1"})
	assert.Equal(t, []string{"d", "b", "a"}, hashes(mine))

	succ, _ := repo.Scan(ctx, repository.TransactionFilter{Statuses: []models.TransactionStatus{models.StatusSuccess}, Method: models.MethodUPI})
	assert.Equal(t, []string{"d", "a"}, hashes(succ))

	onlySettled, _ := repo.Scan(ctx, repository.TransactionFilter{SettledOnly: true})
	assert.Equal(t, []string{"d"}, hashes(onlySettled))

	from := base.Add(30 * time.Minute)
	to := base.Add(2 * time.Hour)
	window, _ := repo.Scan(ctx, repository.TransactionFilter{From: &from, To: &to})
	assert.Equal(t, []string{"c", "b"}, hashes(window))

	n, _ := repo.Count(ctx, repository.TransactionFilter{UserIDHash: "u1"})
	assert.Equal(t, int64(3), n)
}

func TestMemoryFindManyByHashes(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.Insert(ctx, seedTxn("a", "u", models.StatusSuccess, models.MethodUPI, now)))
	require.NoError(t, repo.Insert(ctx, seedTxn("b", "u", models.StatusPending, models.MethodUPI, now)))

	status := models.StatusSuccess
	got, err := repo.FindManyByHashes(ctx, []string{"a", "b", "a", "zzz"}, &status)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hashes(got))

	unfiltered, _ := repo.FindManyByHashes(ctx, []string{"a", "b"}, nil)
	assert.Len(t, unfiltered, 2)
}

func TestMemoryUpdate_AbortsOnMutateError(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, seedTxn("a", "u", models.StatusPending, models.MethodUPI, time.Now())))

	errNope := errors.New("nope")
	_, err := repo.Update(ctx, "a", func(t *models.Transaction) error {
		t.Status = models.StatusRefunded
		return errNope
	})
	assert.ErrorIs(t, err, errNope)

	got, _ := repo.FindByHash(ctx, "a")
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(0), got.Version)
}

func TestMemoryUpdate_SerialisesConcurrentWriters(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, seedTxn("a", "u", models.StatusSuccess, models.MethodUPI, time.Now())))

	errAlreadyRefunded := errors.New("already refunded")
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "a", func(t *models.Transaction) error {
				if t.Status == models.StatusRefunded {
					return errAlreadyRefunded
				}
				t.Status = models.StatusRefunded
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, _ := repo.FindByHash(ctx, "a")
	assert.Equal(t, int64(1), got.Version)
}

func hashes(txns []models.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.TxnIDHash
	}
	return out
}
