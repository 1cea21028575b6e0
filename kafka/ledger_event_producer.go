package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type LedgerEventProducer struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewLedgerEventProducer(brokers []string, topic string, logger *zap.Logger) *LedgerEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	logger.Info("Kafka ledger producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return NewLedgerEventProducerWithWriter(w, topic, logger)
}

func NewLedgerEventProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *LedgerEventProducer {
	return &LedgerEventProducer{writer: w, topic: topic, logger: logger}
}

// Publish keys messages by transaction hash so events for one record stay ordered.
func (p *LedgerEventProducer) Publish(ctx context.Context, event models.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TxnIDHash),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write to %s: %w", p.topic, err)
	}

	p.logger.Debug("Sent ledger event", zap.String("type", event.Type), zap.String("txn_id_hash", event.TxnIDHash))
	return nil
}

func (p *LedgerEventProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("Kafka producer close failed", zap.Error(err))
		return
	}
	p.logger.Info("Kafka producer closed")
}
