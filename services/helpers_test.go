package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/arrxxhh/Payment-gateway/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIVHex  = "0f0e0d0c0b0a09080706050403020100"
)

var (
	admin     = models.Caller{UserID: "admin-1", Role: models.RoleAdmin}
	auditor   = models.Caller{UserID: "audit-1", Role: models.RoleAuditor}
	merchantA = models.Caller{UserID: "m-a", Role: models.RoleMerchant}
	merchantB = models.Caller{UserID: "m-b", Role: models.RoleMerchant}
)

// --- Test clock ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- Scripted outcome policy ---

type scriptedPolicy struct {
	mu       sync.Mutex
	outcomes []services.Outcome
}

func (p *scriptedPolicy) Next(o services.Outcome) {
	p.mu.Lock()
	p.outcomes = append(p.outcomes, o)
	p.mu.Unlock()
}

func (p *scriptedPolicy) Decide(decimal.Decimal) services.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outcomes) == 0 {
		return services.Outcome{Status: models.StatusSuccess}
	}
	o := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return o
}

// --- Recording collaborators ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

// --- Fixture ---

type ledgerFixture struct {
	svc       services.LedgerService
	repo      repository.TransactionRepository
	cipher    *security.FieldCipher
	clock     *testClock
	policy    *scriptedPolicy
	publisher *recordingPublisher
	cache     *countingInvalidator
}

func newTestCipher(t *testing.T) *security.FieldCipher {
	t.Helper()
	c, err := security.NewFieldCipher(testKeyHex, testIVHex)
	require.NoError(t, err)
	return c
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	f := &ledgerFixture{
		repo:      repository.NewMemoryTransactionRepository(),
		cipher:    newTestCipher(t),
		clock:     &testClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)},
		policy:    &scriptedPolicy{},
		publisher: &recordingPublisher{},
		cache:     &countingInvalidator{},
	}

	var mu sync.Mutex
	seq := 0
	f.svc = services.NewLedgerService(f.repo, f.cipher, f.policy, logger,
		services.WithPublisher(f.publisher),
		services.WithCacheInvalidator(f.cache),
		services.WithPaymentLinkBase("https://pay.test/"),
		services.WithLocation(time.UTC),
		services.WithClock(f.clock.Now),
		services.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("txn-%d", seq)
		}),
	)
	return f
}

// create records a checkout with the given outcome and advances the clock a minute.
func (f *ledgerFixture) create(t *testing.T, caller models.Caller, amount string, method models.PaymentMethod, status models.TransactionStatus) string {
	t.Helper()
	f.policy.Next(services.Outcome{Status: status})
	res, svcErr := f.svc.CreateTransaction(context.Background(), caller, &models.CheckoutRequest{
		Amount: decimal.RequireFromString(amount),
		Method: method,
	})
	require.Nil(t, svcErr)
	f.clock.Advance(time.Minute)
	return res.TxnID
}

func newNopLogger() *zap.Logger {
	return zap.NewNop()
}
