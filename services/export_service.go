package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	exportURLTTL     = 15 * time.Minute
	isoMillisLayout  = "2006-01-02T15:04:05.000Z"
	csvContentType   = "text/csv"
	exportKeyPrefix  = "exports"
	exportAllScopeID = "all"
)

var exportHeader = []string{"txnId", "amount", "method", "status", "timestamp", "settlementDate", "sandbox"}

// ObjectStore is satisfied by the S3 client.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type ExportService interface {
	ExportCSV(ctx context.Context, caller models.Caller, q *models.ListTransactionsQuery) (*models.ExportResult, *ServiceError)
}

type exportServiceImpl struct {
	ledger LedgerService
	store  ObjectStore
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

func NewExportService(ledger LedgerService, store ObjectStore, bucket string, logger *zap.Logger) ExportService {
	return &exportServiceImpl{
		ledger: ledger,
		store:  store,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// ExportCSV writes the caller-visible listing to the export bucket and
// returns a short-lived download link.
func (s *exportServiceImpl) ExportCSV(ctx context.Context, caller models.Caller, q *models.ListTransactionsQuery) (*models.ExportResult, *ServiceError) {
	if s.store == nil || s.bucket == "" {
		return nil, internalError("Export storage is not configured")
	}

	views, svcErr := s.ledger.ListTransactions(ctx, caller, q)
	if svcErr != nil {
		return nil, svcErr
	}

	body, err := EncodeTransactionsCSV(views)
	if err != nil {
		s.logger.Error("Failed to encode export", zap.Error(err))
		return nil, internalError("Failed to build export")
	}

	scope := exportAllScopeID
	if !caller.Role.Privileged() {
		scope = security.HashIdentifier(caller.UserID)
	}
	key := fmt.Sprintf("%s/%s/%s-%s.csv", exportKeyPrefix, scope, s.now().Format("20060102T150405Z"), uuid.New().String())

	if err := s.store.PutObject(ctx, s.bucket, key, body, csvContentType); err != nil {
		s.logger.Error("Failed to upload export", zap.String("key", key), zap.Error(err))
		return nil, internalError("Failed to store export")
	}
	url, err := s.store.PresignGet(ctx, s.bucket, key, exportURLTTL)
	if err != nil {
		s.logger.Error("Failed to presign export", zap.String("key", key), zap.Error(err))
		return nil, internalError("Failed to store export")
	}

	s.logger.Info("Export written", zap.String("key", key), zap.Int("rows", len(views)))
	return &models.ExportResult{Key: key, URL: url, Count: len(views)}, nil
}

// EncodeTransactionsCSV renders views with the dashboard's export columns.
func EncodeTransactionsCSV(views []models.TransactionView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, v := range views {
		settled := ""
		if v.SettlementDate != nil {
			settled = v.SettlementDate.UTC().Format(isoMillisLayout)
		}
		sandbox := "NO"
		if v.Sandbox {
			sandbox = "YES"
		}
		row := []string{
			v.TxnID,
			v.Amount.String(),
			string(v.Method),
			string(v.Status),
			v.Timestamp.UTC().Format(isoMillisLayout),
			settled,
			sandbox,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
