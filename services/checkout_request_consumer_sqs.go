package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/arrxxhh/Payment-gateway/models"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"go.uber.org/zap"
)

// Poller is satisfied by *aws_pkg.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// CheckoutRequestConsumer records checkouts delivered through SQS.
type CheckoutRequestConsumer struct {
	poller Poller
	ledger LedgerService
	logger *zap.Logger
}

func NewCheckoutRequestConsumer(poller Poller, ledger LedgerService, logger *zap.Logger) *CheckoutRequestConsumer {
	return &CheckoutRequestConsumer{poller: poller, ledger: ledger, logger: logger}
}

func (c *CheckoutRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting CheckoutRequestConsumer (SQS)")

	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

// HandleMessage returns nil for messages that can never succeed so they are
// deleted; storage failures are returned and the message is redelivered.
func (c *CheckoutRequestConsumer) HandleMessage(ctx context.Context, body string) error {
	var msg models.CheckoutMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.Warn("Dropping malformed checkout message", zap.Error(err))
		return nil
	}

	caller := models.Caller{UserID: msg.UserID, Role: models.ParseRole(msg.Role)}
	res, svcErr := c.ledger.CreateTransaction(ctx, caller, &msg.CheckoutRequest)
	if svcErr != nil {
		if svcErr.Kind == KindValidation {
			c.logger.Warn("Dropping invalid checkout message", zap.String("reason", svcErr.Message))
			return nil
		}
		return svcErr
	}

	c.logger.Info("Queued checkout recorded", zap.String("status", string(res.Status)))
	return nil
}
