package database

import (
	"context"
	"fmt"
	"time"

	"github.com/arrxxhh/Payment-gateway/config"
	"github.com/arrxxhh/Payment-gateway/models"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/arrxxhh/Payment-gateway/repository"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// LedgerStore is an open transaction repository and the hook that releases it.
type LedgerStore struct {
	Repo  repository.TransactionRepository
	Close func()
}

// OpenLedgerStore connects the backend named by driver. awsErr is the result
// of loading AWS config and only matters for the dynamodb driver.
func OpenLedgerStore(cfg *config.Config, driver string, awsCfg sdkaws.Config, awsErr error, logger *zap.Logger) (*LedgerStore, error) {
	switch driver {
	case config.DriverPostgres:
		db, err := ConnectPostgres(cfg, logger, &models.Transaction{})
		if err != nil {
			return nil, err
		}
		return &LedgerStore{
			Repo: repository.NewGormTransactionRepository(db),
			Close: func() {
				if err := ClosePostgres(db); err != nil {
					logger.Error("Database close error", zap.Error(err))
				}
			},
		}, nil

	case config.DriverMongo:
		client, db, err := ConnectMongo(cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoTransactionRepository(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = CloseMongo(client)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		logger.Info("Connected to MongoDB", zap.String("db", cfg.MongoDB))
		return &LedgerStore{
			Repo: repo,
			Close: func() {
				if err := CloseMongo(client); err != nil {
					logger.Error("MongoDB close error", zap.Error(err))
				}
			},
		}, nil

	case config.DriverDynamoDB:
		if awsErr != nil {
			return nil, fmt.Errorf("dynamodb store needs AWS config: %w", awsErr)
		}
		logger.Info("Using DynamoDB store", zap.String("table", cfg.DynamoDBTable))
		return &LedgerStore{
			Repo:  repository.NewDynamoTransactionRepository(aws_pkg.NewDynamoDBClient(awsCfg), cfg.DynamoDBTable),
			Close: func() {},
		}, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store, records are lost on restart")
		return &LedgerStore{Repo: repository.NewMemoryTransactionRepository(), Close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
