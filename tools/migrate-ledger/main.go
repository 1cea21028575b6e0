// Command migrate-ledger copies ledger records from one store to another,
// for example when moving a deployment from MongoDB to DynamoDB.
//
//	migrate-ledger -from mongo -to dynamodb
//
// Connection settings come from the same environment variables the service
// reads. Existing records in the destination are left untouched.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/arrxxhh/Payment-gateway/common/logger"
	"github.com/arrxxhh/Payment-gateway/config"
	"github.com/arrxxhh/Payment-gateway/database"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/arrxxhh/Payment-gateway/repository"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	var from, to, since string
	flag.StringVar(&from, "from", os.Getenv("STORE_DRIVER"), "source store driver")
	flag.StringVar(&to, "to", "", "destination store driver")
	flag.StringVar(&since, "since", "", "only copy records at or after this RFC3339 time")
	flag.Parse()

	if from == "" || to == "" || from == to {
		log.Fatal("-from and -to must name two different store drivers")
	}

	os.Setenv("STORE_DRIVER", from)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dstCfg := *cfg
	dstCfg.StoreDriver = to
	if err := dstCfg.Validate(); err != nil {
		log.Fatalf("destination config: %v", err)
	}

	zl, err := logger.New(cfg.Env, nil)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	var filter repository.TransactionFilter
	if since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			zl.Fatal("Invalid -since", zap.Error(err))
		}
		filter.From = &ts
	}

	ctx := context.Background()
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)

	src, err := database.OpenLedgerStore(cfg, from, awsCfg, awsErr, zl)
	if err != nil {
		zl.Fatal("Source store init failed", zap.String("driver", from), zap.Error(err))
	}
	defer src.Close()

	dst, err := database.OpenLedgerStore(&dstCfg, to, awsCfg, awsErr, zl)
	if err != nil {
		zl.Fatal("Destination store init failed", zap.String("driver", to), zap.Error(err))
	}
	defer dst.Close()

	start := time.Now()
	stats, err := repository.CopyTransactions(ctx, src.Repo, dst.Repo, filter)
	if err != nil {
		zl.Error("Migration stopped", zap.Int("copied", stats.Copied), zap.Int("skipped", stats.Skipped), zap.Error(err))
		src.Close()
		dst.Close()
		os.Exit(1)
	}
	zl.Info("Migration complete",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("copied", stats.Copied),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("took", time.Since(start)),
	)
}
