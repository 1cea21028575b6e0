package services

import (
	"context"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/repository"
	"go.uber.org/zap"
)

const (
	cacheKeySummary    = "summary"
	cacheKeyMethods    = "methods"
	cacheKeySettlement = "settlement"
)

// AnalyticsCache stores computed aggregates until the next ledger change.
// Get reports the cache version it read at; Set must be given that version.
type AnalyticsCache interface {
	Get(ctx context.Context, name string, dest interface{}) (int64, bool)
	Set(ctx context.Context, version int64, name string, value interface{})
}

type AnalyticsService interface {
	GetSummary(ctx context.Context) (*models.Summary, *ServiceError)
	GetByMethod(ctx context.Context) (map[models.PaymentMethod]models.MethodStats, *ServiceError)
	GetSettlementRatio(ctx context.Context) (*models.SettlementRatio, *ServiceError)
}

type analyticsServiceImpl struct {
	repo       repository.TransactionRepository
	aggregator *Aggregator
	cache      AnalyticsCache
	logger     *zap.Logger
}

// NewAnalyticsService reports over the whole ledger. cache may be nil.
func NewAnalyticsService(repo repository.TransactionRepository, aggregator *Aggregator, cache AnalyticsCache, logger *zap.Logger) AnalyticsService {
	return &analyticsServiceImpl{repo: repo, aggregator: aggregator, cache: cache, logger: logger}
}

func (s *analyticsServiceImpl) GetSummary(ctx context.Context) (*models.Summary, *ServiceError) {
	var cached models.Summary
	var version int64
	if s.cache != nil {
		v, hit := s.cache.Get(ctx, cacheKeySummary, &cached)
		if hit {
			return &cached, nil
		}
		version = v
	}

	txns, err := s.repo.Scan(ctx, repository.TransactionFilter{})
	if err != nil {
		s.logger.Error("Failed to scan ledger for summary", zap.Error(err))
		return nil, internalError("Failed to compute analytics")
	}

	sum := s.aggregator.Summarize(txns)
	if s.cache != nil {
		s.cache.Set(ctx, version, cacheKeySummary, sum)
	}
	return &sum, nil
}

func (s *analyticsServiceImpl) GetByMethod(ctx context.Context) (map[models.PaymentMethod]models.MethodStats, *ServiceError) {
	var cached map[models.PaymentMethod]models.MethodStats
	var version int64
	if s.cache != nil {
		v, hit := s.cache.Get(ctx, cacheKeyMethods, &cached)
		if hit {
			return cached, nil
		}
		version = v
	}

	txns, err := s.repo.Scan(ctx, repository.TransactionFilter{})
	if err != nil {
		s.logger.Error("Failed to scan ledger for method breakdown", zap.Error(err))
		return nil, internalError("Failed to compute analytics")
	}

	stats := s.aggregator.ByMethod(txns)
	if s.cache != nil {
		s.cache.Set(ctx, version, cacheKeyMethods, stats)
	}
	return stats, nil
}

func (s *analyticsServiceImpl) GetSettlementRatio(ctx context.Context) (*models.SettlementRatio, *ServiceError) {
	var cached models.SettlementRatio
	var version int64
	if s.cache != nil {
		v, hit := s.cache.Get(ctx, cacheKeySettlement, &cached)
		if hit {
			return &cached, nil
		}
		version = v
	}

	total, err := s.repo.Count(ctx, repository.TransactionFilter{})
	if err != nil {
		s.logger.Error("Failed to count transactions", zap.Error(err))
		return nil, internalError("Failed to compute settlement ratio")
	}
	settled, err := s.repo.Count(ctx, repository.TransactionFilter{SettledOnly: true})
	if err != nil {
		s.logger.Error("Failed to count settled transactions", zap.Error(err))
		return nil, internalError("Failed to compute settlement ratio")
	}

	ratio := SettlementRatioOf(total, settled)
	if s.cache != nil {
		s.cache.Set(ctx, version, cacheKeySettlement, ratio)
	}
	return &ratio, nil
}
