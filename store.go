package main

import (
	"fmt"

	"github.com/arrxxhh/Payment-gateway/config"
	"github.com/arrxxhh/Payment-gateway/events"
	ledgerkafka "github.com/arrxxhh/Payment-gateway/kafka"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// buildPublisher fans ledger events out to every configured bus. It returns
// a nil publisher when no bus is enabled.
func buildPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, logger *zap.Logger) (events.Publisher, func(), error) {
	var buses events.Multi
	closers := []func(){}

	if cfg.UsesBus("sns") {
		if awsErr != nil {
			return nil, nil, fmt.Errorf("sns event bus needs AWS config: %w", awsErr)
		}
		buses = append(buses, events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.LedgerSNSTopicARN))
	}
	if cfg.UsesBus("kafka") {
		producer := ledgerkafka.NewLedgerEventProducer(cfg.KafkaBrokers, cfg.KafkaLedgerTopic, logger)
		buses = append(buses, producer)
		closers = append(closers, producer.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(buses) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return buses[0], closeAll, nil
	}
	return buses, closeAll, nil
}
