package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arrxxhh/Payment-gateway/events"
	"github.com/arrxxhh/Payment-gateway/models"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	unavailableTxnID = "unavailable"
	unknownUserID    = "unknown"
	defaultUserID    = "admin"
)

// LedgerService is the settlement state machine over the transaction store.
type LedgerService interface {
	CreateTransaction(ctx context.Context, caller models.Caller, req *models.CheckoutRequest) (*models.CheckoutResult, *ServiceError)
	ListTransactions(ctx context.Context, caller models.Caller, q *models.ListTransactionsQuery) ([]models.TransactionView, *ServiceError)
	GetTransaction(ctx context.Context, caller models.Caller, txnID string) (*models.TransactionView, *ServiceError)
	Settle(ctx context.Context, caller models.Caller, txnID string) (*models.TransactionView, *ServiceError)
	BatchSettle(ctx context.Context, caller models.Caller, txnIDs []string) (*models.BatchSettleResult, *ServiceError)
	Refund(ctx context.Context, caller models.Caller, txnID string) (*models.TransactionView, *ServiceError)
}

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// CacheInvalidator drops cached aggregates after a ledger change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type LedgerOption func(*ledgerServiceImpl)

func WithPublisher(p events.Publisher) LedgerOption {
	return func(s *ledgerServiceImpl) { s.publisher = p }
}

func WithMetrics(m MetricsRecorder) LedgerOption {
	return func(s *ledgerServiceImpl) { s.metrics = m }
}

func WithCacheInvalidator(c CacheInvalidator) LedgerOption {
	return func(s *ledgerServiceImpl) { s.cache = c }
}

func WithPaymentLinkBase(base string) LedgerOption {
	return func(s *ledgerServiceImpl) { s.linkBase = strings.TrimSuffix(base, "/") }
}

// WithLocation sets the zone used to read date-only filters.
func WithLocation(loc *time.Location) LedgerOption {
	return func(s *ledgerServiceImpl) { s.loc = loc }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *ledgerServiceImpl) { s.now = now }
}

func WithIDGenerator(gen func() string) LedgerOption {
	return func(s *ledgerServiceImpl) { s.newID = gen }
}

type ledgerServiceImpl struct {
	repo      repository.TransactionRepository
	cipher    *security.FieldCipher
	policy    OutcomePolicy
	validate  *validator.Validate
	publisher events.Publisher
	metrics   MetricsRecorder
	cache     CacheInvalidator
	linkBase  string
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

func NewLedgerService(
	repo repository.TransactionRepository,
	cipher *security.FieldCipher,
	policy OutcomePolicy,
	logger *zap.Logger,
	opts ...LedgerOption,
) LedgerService {
	s := &ledgerServiceImpl{
		repo:     repo,
		cipher:   cipher,
		policy:   policy,
		validate: validator.New(),
		linkBase: "https://pay.example.test",
		loc:      time.Local,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	errNotSettleable = errors.New("transaction is not in SUCCESS state")
	errNotRefundable = errors.New("transaction is not refundable")
	errNotOwner      = errors.New("transaction belongs to another user")
)

// CreateTransaction records a checkout with an outcome chosen by the policy.
func (s *ledgerServiceImpl) CreateTransaction(ctx context.Context, caller models.Caller, req *models.CheckoutRequest) (*models.CheckoutResult, *ServiceError) {
	if req == nil {
		return nil, validationError("Request body is required")
	}
	if !req.Amount.IsPositive() {
		return nil, validationError("Amount must be greater than zero")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError("Method must be UPI or Card")
	}

	userID := caller.UserID
	if userID == "" {
		userID = defaultUserID
	}

	txnID := s.newID()
	outcome := s.policy.Decide(req.Amount)

	txnIDEnc, err := s.cipher.Encrypt(txnID)
	if err != nil {
		s.logger.Error("Failed to encrypt transaction id", zap.Error(err))
		return nil, internalError("Failed to record transaction")
	}
	amountEnc, err := s.cipher.Encrypt(req.Amount.String())
	if err != nil {
		s.logger.Error("Failed to encrypt amount", zap.Error(err))
		return nil, internalError("Failed to record transaction")
	}
	userIDEnc, err := s.cipher.Encrypt(userID)
	if err != nil {
		s.logger.Error("Failed to encrypt user id", zap.Error(err))
		return nil, internalError("Failed to record transaction")
	}

	now := s.now()
	txn := &models.Transaction{
		TxnIDHash:   security.HashIdentifier(txnID),
		TxnIDEnc:    txnIDEnc,
		AmountEnc:   amountEnc,
		UserIDEnc:   userIDEnc,
		UserIDHash:  security.HashIdentifier(userID),
		Method:      req.Method,
		Status:      outcome.Status,
		Timestamp:   now,
		Sandbox:     req.Sandbox,
		RiskFlag:    outcome.RiskFlag,
		PaymentLink: fmt.Sprintf("%s/txn/%s", s.linkBase, txnID),
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, txn); err != nil {
		s.logger.Error("Failed to insert transaction", zap.String("txn_id_hash", txn.TxnIDHash), zap.Error(err))
		return nil, internalError("Failed to record transaction")
	}

	s.logger.Info("Transaction created",
		zap.String("txn_id_hash", txn.TxnIDHash),
		zap.String("method", string(txn.Method)),
		zap.String("status", string(txn.Status)),
		zap.Bool("risk_flag", txn.RiskFlag),
		zap.Bool("sandbox", txn.Sandbox),
	)
	s.afterChange(ctx, models.EventTransactionCreated, aws_pkg.MetricTransactionsCreated, txn)

	return &models.CheckoutResult{
		TxnID:       txnID,
		Status:      txn.Status,
		PaymentLink: txn.PaymentLink,
	}, nil
}

// ListTransactions returns decrypted records visible to the caller, newest first.
func (s *ledgerServiceImpl) ListTransactions(ctx context.Context, caller models.Caller, q *models.ListTransactionsQuery) ([]models.TransactionView, *ServiceError) {
	if q == nil {
		q = &models.ListTransactionsQuery{}
	}
	filter, svcErr := s.buildFilter(caller, q)
	if svcErr != nil {
		return nil, svcErr
	}

	txns, err := s.repo.Scan(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to scan transactions", zap.Error(err))
		return nil, internalError("Failed to fetch transactions")
	}

	views := make([]models.TransactionView, 0, len(txns))
	for i := range txns {
		views = append(views, s.view(&txns[i]))
	}
	return views, nil
}

func (s *ledgerServiceImpl) GetTransaction(ctx context.Context, caller models.Caller, txnID string) (*models.TransactionView, *ServiceError) {
	if txnID == "" {
		return nil, validationError("Transaction id is required")
	}
	txn, err := s.repo.FindByHash(ctx, security.HashIdentifier(txnID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("Transaction not found")
		}
		s.logger.Error("Failed to fetch transaction", zap.Error(err))
		return nil, internalError("Failed to fetch transaction")
	}
	if !caller.Role.Privileged() && txn.UserIDHash != security.HashIdentifier(caller.UserID) {
		return nil, notFoundError("Transaction not found")
	}
	v := s.view(txn)
	return &v, nil
}

// Settle stamps a settlement date on a successful transaction. Settling again
// moves the date forward.
func (s *ledgerServiceImpl) Settle(ctx context.Context, _ models.Caller, txnID string) (*models.TransactionView, *ServiceError) {
	if txnID == "" {
		return nil, validationError("Transaction id is required")
	}

	hash := security.HashIdentifier(txnID)
	txn, err := s.repo.Update(ctx, hash, func(t *models.Transaction) error {
		if t.Status != models.StatusSuccess {
			return errNotSettleable
		}
		settledAt := s.now()
		t.SettlementDate = &settledAt
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, hash)
	}

	s.logger.Info("Transaction settled", zap.String("txn_id_hash", hash))
	s.afterChange(ctx, models.EventTransactionSettled, aws_pkg.MetricTransactionsSettled, txn)

	v := s.view(txn)
	return &v, nil
}

// BatchSettle settles every listed transaction that is still SUCCESS and
// skips the rest. Updated counts only records settled by this call.
func (s *ledgerServiceImpl) BatchSettle(ctx context.Context, _ models.Caller, txnIDs []string) (*models.BatchSettleResult, *ServiceError) {
	if len(txnIDs) == 0 {
		return nil, validationError("txnIds must be a non-empty array")
	}

	seen := make(map[string]bool, len(txnIDs))
	hashes := make([]string, 0, len(txnIDs))
	for _, id := range txnIDs {
		if id == "" {
			continue
		}
		h := security.HashIdentifier(id)
		if !seen[h] {
			seen[h] = true
			hashes = append(hashes, h)
		}
	}
	if len(hashes) == 0 {
		return nil, validationError("txnIds must be a non-empty array")
	}

	status := models.StatusSuccess
	candidates, err := s.repo.FindManyByHashes(ctx, hashes, &status)
	if err != nil {
		s.logger.Error("Failed to load payout candidates", zap.Error(err))
		return nil, internalError("Failed to settle transactions")
	}

	settledAt := s.now()
	result := &models.BatchSettleResult{Transactions: []models.TransactionView{}}
	for _, c := range candidates {
		txn, err := s.repo.Update(ctx, c.TxnIDHash, func(t *models.Transaction) error {
			if t.Status != models.StatusSuccess {
				return errNotSettleable
			}
			at := settledAt
			t.SettlementDate = &at
			return nil
		})
		if err != nil {
			if errors.Is(err, errNotSettleable) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			s.logger.Error("Payout aborted", zap.String("txn_id_hash", c.TxnIDHash), zap.Int("settled", result.Updated), zap.Error(err))
			return nil, internalError("Failed to settle transactions")
		}
		result.Updated++
		result.Transactions = append(result.Transactions, s.view(txn))
		s.afterChange(ctx, models.EventTransactionSettled, aws_pkg.MetricTransactionsSettled, txn)
	}

	s.logger.Info("Payout processed", zap.Int("requested", len(hashes)), zap.Int("settled", result.Updated))
	return result, nil
}

// Refund moves a successful transaction to REFUNDED and clears its settlement.
// Merchants may refund only their own transactions.
func (s *ledgerServiceImpl) Refund(ctx context.Context, caller models.Caller, txnID string) (*models.TransactionView, *ServiceError) {
	if txnID == "" {
		return nil, validationError("Transaction id is required")
	}

	hash := security.HashIdentifier(txnID)
	callerHash := security.HashIdentifier(caller.UserID)
	txn, err := s.repo.Update(ctx, hash, func(t *models.Transaction) error {
		if !t.IsSuccessful() {
			return errNotRefundable
		}
		if !caller.Role.Privileged() && t.UserIDHash != callerHash {
			return errNotOwner
		}
		t.Status = models.StatusRefunded
		t.SettlementDate = nil
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, hash)
	}

	s.logger.Info("Transaction refunded", zap.String("txn_id_hash", hash))
	s.afterChange(ctx, models.EventTransactionRefunded, aws_pkg.MetricTransactionsRefunded, txn)

	v := s.view(txn)
	return &v, nil
}

func (s *ledgerServiceImpl) mutationError(err error, hash string) *ServiceError {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError("Transaction not found")
	case errors.Is(err, errNotSettleable):
		return invalidStateError("Only successful transactions can be settled")
	case errors.Is(err, errNotRefundable):
		return invalidStateError("Only successful or settled transactions can be refunded")
	case errors.Is(err, errNotOwner):
		return forbiddenError("Not allowed to refund this transaction")
	default:
		s.logger.Error("Failed to update transaction", zap.String("txn_id_hash", hash), zap.Error(err))
		return internalError("Failed to update transaction")
	}
}

func (s *ledgerServiceImpl) buildFilter(caller models.Caller, q *models.ListTransactionsQuery) (repository.TransactionFilter, *ServiceError) {
	var f repository.TransactionFilter

	switch models.TransactionStatus(strings.ToUpper(q.Status)) {
	case "":
	case models.StatusSettled:
		f.Statuses = []models.TransactionStatus{models.StatusSuccess, models.StatusSettled}
		f.SettledOnly = true
	case models.StatusPending, models.StatusSuccess, models.StatusFailed, models.StatusRefunded:
		f.Statuses = []models.TransactionStatus{models.TransactionStatus(strings.ToUpper(q.Status))}
	default:
		return f, validationError("Unknown status filter")
	}

	if q.Method != "" {
		m := models.PaymentMethod(q.Method)
		if !m.Valid() {
			return f, validationError("Method must be UPI or Card")
		}
		f.Method = m
	}

	if caller.Role.Privileged() {
		if q.UserID != "" {
			f.UserIDHash = security.HashIdentifier(q.UserID)
		}
	} else {
		f.UserIDHash = security.HashIdentifier(caller.UserID)
	}

	if q.DateFrom != "" {
		from, err := parseDateBound(q.DateFrom, s.loc, false)
		if err != nil {
			return f, validationError("dateFrom must be RFC3339 or YYYY-MM-DD")
		}
		f.From = &from
	}
	if q.DateTo != "" {
		to, err := parseDateBound(q.DateTo, s.loc, true)
		if err != nil {
			return f, validationError("dateTo must be RFC3339 or YYYY-MM-DD")
		}
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return f, validationError("dateFrom must not be after dateTo")
	}
	return f, nil
}

// parseDateBound accepts RFC3339 or a bare date. A bare upper bound covers the whole day.
func parseDateBound(s string, loc *time.Location, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return d, nil
}

func (s *ledgerServiceImpl) view(t *models.Transaction) models.TransactionView {
	return models.TransactionView{
		TxnID:          s.cipher.Open(t.TxnIDEnc).Or(unavailableTxnID),
		Amount:         decryptAmount(s.cipher, t),
		UserID:         s.cipher.Open(t.UserIDEnc).Or(unknownUserID),
		Method:         t.Method,
		Status:         t.DisplayStatus(),
		Timestamp:      t.Timestamp,
		SettlementDate: t.SettlementDate,
		Sandbox:        t.Sandbox,
		RiskFlag:       t.RiskFlag,
		PaymentLink:    t.PaymentLink,
	}
}

// decryptAmount yields zero for an amount that cannot be opened or parsed.
func decryptAmount(cipher *security.FieldCipher, t *models.Transaction) decimal.Decimal {
	d := cipher.Open(t.AmountEnc)
	if !d.Ok() {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(d.Value)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// afterChange runs the side effects of a committed mutation. Failures are logged only.
func (s *ledgerServiceImpl) afterChange(ctx context.Context, eventType, metric string, txn *models.Transaction) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("Failed to invalidate analytics cache", zap.Error(err))
		}
	}

	if s.publisher != nil {
		event := models.LedgerEvent{
			Type:       eventType,
			TxnIDHash:  txn.TxnIDHash,
			UserIDHash: txn.UserIDHash,
			Method:     txn.Method,
			Status:     txn.DisplayStatus(),
			RiskFlag:   txn.RiskFlag,
			Sandbox:    txn.Sandbox,
			Timestamp:  s.now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish ledger event", zap.String("type", eventType), zap.Error(err))
		}
	}

	if s.metrics != nil {
		dims := map[string]string{
			"Service": "ledger-service",
			"Method":  string(txn.Method),
			"Status":  string(txn.DisplayStatus()),
		}
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.metrics.RecordCount(mctx, metric, dims)
		}()
	}
}
