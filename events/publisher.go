package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/arrxxhh/Payment-gateway/models"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
)

// Publisher delivers ledger events to the configured bus.
type Publisher interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

// SNSPublisher fans ledger events out through an SNS topic.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, p.topicArn, body, eventAttributes(event))
}

func eventAttributes(event models.LedgerEvent) map[string]string {
	return map[string]string{
		"eventType": event.Type,
		"method":    string(event.Method),
		"status":    string(event.Status),
		"sandbox":   strconv.FormatBool(event.Sandbox),
	}
}

// Multi publishes to every wrapped publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event models.LedgerEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
