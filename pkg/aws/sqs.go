package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

const (
	sqsBatchSize      = 10
	sqsWaitSeconds    = 20
	sqsVisibility     = 30
	maxReceiveBackoff = 30 * time.Second
)

// MessageHandler processes one message body. A nil return acknowledges it.
type MessageHandler func(ctx context.Context, body string) error

// SQSConsumer long-polls one queue and acknowledges handled messages in batches.
type SQSConsumer struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

func NewSQSConsumer(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		logger:   logger.With(zap.String("queue_url", queueURL)),
	}
}

// StartPolling runs until ctx is cancelled. Receive errors back off
// exponentially up to maxReceiveBackoff.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("SQS polling started")
	failures := 0

	for {
		if ctx.Err() != nil {
			c.logger.Info("SQS polling stopped")
			return ctx.Err()
		}

		err := c.receiveBatch(ctx, handler)
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		failures++
		wait := receiveBackoff(failures)
		c.logger.Warn("SQS receive failed", zap.Int("failures", failures), zap.Duration("retry_in", wait), zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
}

func receiveBackoff(failures int) time.Duration {
	wait := time.Second
	for i := 1; i < failures && wait < maxReceiveBackoff; i++ {
		wait *= 2
	}
	if wait > maxReceiveBackoff {
		wait = maxReceiveBackoff
	}
	return wait
}

func (c *SQSConsumer) receiveBatch(ctx context.Context, handler MessageHandler) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: sqsBatchSize,
		WaitTimeSeconds:     sqsWaitSeconds,
		VisibilityTimeout:   sqsVisibility,
	})
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	var done []types.DeleteMessageBatchRequestEntry
	for _, msg := range out.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			// stays on the queue until the visibility timeout lapses
			c.logger.Warn("Message not handled", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
			continue
		}
		done = append(done, types.DeleteMessageBatchRequestEntry{
			Id:            msg.MessageId,
			ReceiptHandle: msg.ReceiptHandle,
		})
	}
	if len(done) == 0 {
		return nil
	}

	res, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(c.queueURL),
		Entries:  done,
	})
	if err != nil {
		c.logger.Warn("Batch delete failed", zap.Int("messages", len(done)), zap.Error(err))
		return nil
	}
	for _, f := range res.Failed {
		c.logger.Warn("Message delete failed", zap.String("message_id", aws.ToString(f.Id)), zap.String("code", aws.ToString(f.Code)))
	}
	return nil
}
