package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logFlushInterval = 2 * time.Second
	logBatchSize     = 100
)

// CloudWatchLogsClient buffers log lines and ships them to one stream. It is
// a zapcore.WriteSyncer: Sync flushes the buffer.
type CloudWatchLogsClient struct {
	client *cloudwatchlogs.Client
	group  string
	stream string

	mu      sync.Mutex
	pending []types.InputLogEvent
	stop    chan struct{}
	once    sync.Once
}

// NewCloudWatchLogsClient ensures the log group, opens a stream for this
// process and starts the background flusher.
func NewCloudWatchLogsClient(ctx context.Context, cfg aws.Config, serviceName string) (*CloudWatchLogsClient, error) {
	group := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if group == "" {
		group = "/payment-ledger/services"
	}

	c := &CloudWatchLogsClient{
		client: cloudwatchlogs.NewFromConfig(cfg),
		group:  group,
		stream: fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()),
		stop:   make(chan struct{}),
	}
	if err := c.ensureGroup(ctx, retentionDays()); err != nil {
		return nil, err
	}
	if _, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
	}); err != nil {
		return nil, fmt.Errorf("create log stream %s: %w", c.stream, err)
	}

	go c.flushLoop()
	return c, nil
}

func retentionDays() int32 {
	if v, err := strconv.Atoi(os.Getenv("CLOUDWATCH_RETENTION_DAYS")); err == nil && v > 0 {
		return int32(v)
	}
	return 30
}

func (c *CloudWatchLogsClient) ensureGroup(ctx context.Context, days int32) error {
	_, err := c.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(c.group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create log group %s: %w", c.group, err)
	}
	if _, err := c.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(c.group),
		RetentionInDays: aws.Int32(days),
	}); err != nil {
		return fmt.Errorf("set retention on %s: %w", c.group, err)
	}
	return nil
}

// Write queues one entry. It never fails the caller.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.pending = append(c.pending, types.InputLogEvent{
		Message:   aws.String(string(p)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	})
	full := len(c.pending) >= logBatchSize
	c.mu.Unlock()

	if full {
		_ = c.Sync()
	}
	return len(p), nil
}

// Sync sends everything buffered so far. Delivery errors go to stderr.
func (c *CloudWatchLogsClient) Sync() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
		LogEvents:     batch,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch logs: dropped %d entries: %v\n", len(batch), err)
	}
	return nil
}

// Close stops the flusher and sends what is left.
func (c *CloudWatchLogsClient) Close() error {
	c.once.Do(func() { close(c.stop) })
	return c.Sync()
}

func (c *CloudWatchLogsClient) flushLoop() {
	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.Sync()
		}
	}
}
