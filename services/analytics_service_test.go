package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/arrxxhh/Payment-gateway/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mapCache round-trips through JSON and versions entries like the Redis cache does.
type mapCache struct {
	version int64
	entries map[string][]byte
	hits    int
}

func newMapCache() *mapCache { return &mapCache{version: 1, entries: map[string][]byte{}} }

func (c *mapCache) key(version int64, name string) string {
	return fmt.Sprintf("%d:%s", version, name)
}

func (c *mapCache) Get(_ context.Context, name string, dest interface{}) (int64, bool) {
	raw, ok := c.entries[c.key(c.version, name)]
	if !ok {
		return c.version, false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return c.version, false
	}
	c.hits++
	return c.version, true
}

func (c *mapCache) Set(_ context.Context, version int64, name string, value interface{}) {
	raw, err := json.Marshal(value)
	if err == nil {
		c.entries[c.key(version, name)] = raw
	}
}

func (c *mapCache) Invalidate(context.Context) error {
	c.version++
	return nil
}

// mutatingRepo lets a callback change the ledger in the middle of a scan.
type mutatingRepo struct {
	repository.TransactionRepository
	duringScan func()
}

func (r *mutatingRepo) Scan(ctx context.Context, f repository.TransactionFilter) ([]models.Transaction, error) {
	rows, err := r.TransactionRepository.Scan(ctx, f)
	if r.duringScan != nil {
		hook := r.duringScan
		r.duringScan = nil
		hook()
	}
	return rows, err
}

type failingRepo struct {
	repository.TransactionRepository
}

func (failingRepo) Scan(context.Context, repository.TransactionFilter) ([]models.Transaction, error) {
	return nil, errors.New("connection reset")
}

func (failingRepo) Count(context.Context, repository.TransactionFilter) (int64, error) {
	return 0, errors.New("connection reset")
}

func seedLedger(t *testing.T, f *ledgerFixture) {
	t.Helper()
	a := f.create(t, merchantA, "100", models.MethodUPI, models.StatusSuccess)
	f.create(t, merchantA, "200", models.MethodCard, models.StatusSuccess)
	f.create(t, merchantB, "300", models.MethodCard, models.StatusFailed)
	f.create(t, merchantB, "400", models.MethodUPI, models.StatusPending)
	_, svcErr := f.svc.Settle(context.Background(), admin, a)
	require.Nil(t, svcErr)
}

func TestAnalyticsService_Summary(t *testing.T) {
	f := newLedgerFixture(t)
	seedLedger(t, f)
	svc := services.NewAnalyticsService(f.repo, services.NewAggregator(f.cipher, time.UTC), nil, zap.NewNop())

	sum, svcErr := svc.GetSummary(context.Background())
	require.Nil(t, svcErr)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 1, sum.Settled)
	assert.True(t, sum.Revenue.Equal(decimal.NewFromInt(300)))
}

func TestAnalyticsService_SettlementRatio(t *testing.T) {
	f := newLedgerFixture(t)
	seedLedger(t, f)
	svc := services.NewAnalyticsService(f.repo, services.NewAggregator(f.cipher, time.UTC), nil, zap.NewNop())

	ratio, svcErr := svc.GetSettlementRatio(context.Background())
	require.Nil(t, svcErr)
	assert.Equal(t, models.SettlementRatio{Total: 4, Settled: 1, Ratio: 0.25}, *ratio)
}

func TestAnalyticsService_EmptyLedgerRatio(t *testing.T) {
	f := newLedgerFixture(t)
	svc := services.NewAnalyticsService(f.repo, services.NewAggregator(f.cipher, time.UTC), nil, zap.NewNop())

	ratio, svcErr := svc.GetSettlementRatio(context.Background())
	require.Nil(t, svcErr)
	assert.Equal(t, 0.0, ratio.Ratio)
}

func TestAnalyticsService_ByMethod(t *testing.T) {
	f := newLedgerFixture(t)
	seedLedger(t, f)
	svc := services.NewAnalyticsService(f.repo, services.NewAggregator(f.cipher, time.UTC), nil, zap.NewNop())

	stats, svcErr := svc.GetByMethod(context.Background())
	require.Nil(t, svcErr)
	assert.Equal(t, 2, stats[models.MethodUPI].Count)
	assert.True(t, stats[models.MethodUPI].Revenue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, stats[models.MethodCard].Count)
	assert.True(t, stats[models.MethodCard].Revenue.Equal(decimal.NewFromInt(200)))
}

func TestAnalyticsService_CacheServesUntilInvalidated(t *testing.T) {
	f := newLedgerFixture(t)
	cache := newMapCache()
	svc := services.NewAnalyticsService(f.repo, services.NewAggregator(f.cipher, time.UTC), cache, zap.NewNop())
	ctx := context.Background()

	f.create(t, merchantA, "100", models.MethodUPI, models.StatusSuccess)
	first, svcErr := svc.GetSummary(ctx)
	require.Nil(t, svcErr)
	assert.Equal(t, 1, first.Total)

	// bypass the ledger service so nothing invalidates
	require.NoError(t, f.repo.Insert(ctx, &models.Transaction{TxnIDHash: "x", Method: models.MethodUPI, Status: models.StatusFailed, Timestamp: time.Now()}))

	cached, svcErr := svc.GetSummary(ctx)
	require.Nil(t, svcErr)
	assert.Equal(t, 1, cached.Total)
	assert.Equal(t, 1, cache.hits)

	require.NoError(t, cache.Invalidate(ctx))
	fresh, svcErr := svc.GetSummary(ctx)
	require.Nil(t, svcErr)
	assert.Equal(t, 2, fresh.Total)
}

func TestAnalyticsService_ChangeDuringScanIsNotCached(t *testing.T) {
	f := newLedgerFixture(t)
	cache := newMapCache()
	ctx := context.Background()
	repo := &mutatingRepo{TransactionRepository: f.repo}
	repo.duringScan = func() {
		f.create(t, merchantA, "100", models.MethodUPI, models.StatusSuccess)
		require.NoError(t, cache.Invalidate(ctx))
	}
	svc := services.NewAnalyticsService(repo, services.NewAggregator(f.cipher, time.UTC), cache, zap.NewNop())

	first, svcErr := svc.GetSummary(ctx)
	require.Nil(t, svcErr)
	assert.Equal(t, 0, first.Total)

	second, svcErr := svc.GetSummary(ctx)
	require.Nil(t, svcErr)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, 0, cache.hits)
}

func TestAnalyticsService_StoreFailure(t *testing.T) {
	svc := services.NewAnalyticsService(failingRepo{}, services.NewAggregator(newTestCipher(t), time.UTC), nil, zap.NewNop())
	ctx := context.Background()

	_, svcErr := svc.GetSummary(ctx)
	assert.True(t, errors.Is(svcErr, services.ErrInternal))
	_, svcErr = svc.GetByMethod(ctx)
	assert.True(t, errors.Is(svcErr, services.ErrInternal))
	_, svcErr = svc.GetSettlementRatio(ctx)
	assert.True(t, errors.Is(svcErr, services.ErrInternal))
}
