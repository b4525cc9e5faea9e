package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go-redeliver/internal/observability"
	"go-redeliver/internal/redelivery"
	"go-redeliver/pkg/models"

	"github.com/sirupsen/logrus"
)

// Order is the payload consumed from the orders topic.
type Order struct {
	OrderID   string `json:"orderId"`
	ArticleID string `json:"articleId"`
	Amount    int    `json:"amount"`
}

// ReserveFunc reserves stock for an order. Failures of downstream
// dependencies should be wrapped as redelivery.TransientError so they are
// retried.
type ReserveFunc func(ctx context.Context, order Order) error

// OrderProcessor handles order messages. Validation runs before the reserve
// step; validation failures are terminal, so a bad order goes straight to
// the dead-letter topic instead of burning retries.
type OrderProcessor struct {
	logger  *logrus.Logger
	reserve ReserveFunc
}

func NewOrderProcessor(reserve ReserveFunc) *OrderProcessor {
	return &OrderProcessor{
		logger:  observability.GetLogger(),
		reserve: reserve,
	}
}

// Process decodes, validates and reserves one order.
func (p *OrderProcessor) Process(ctx context.Context, msg *models.Message) error {
	var order Order
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		return &redelivery.ValidationError{Err: fmt.Errorf("failed to parse order: %w", err)}
	}

	if err := validate(order); err != nil {
		return &redelivery.ValidationError{Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"order_id":   order.OrderID,
		"article_id": order.ArticleID,
		"amount":     order.Amount,
	}).Info("Processing order")

	if p.reserve != nil {
		if err := p.reserve(ctx, order); err != nil {
			return err
		}
	}

	return nil
}

func validate(order Order) error {
	if order.OrderID == "" {
		return fmt.Errorf("orderId is required")
	}
	if order.ArticleID == "" {
		return fmt.Errorf("articleId is required")
	}
	if order.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", order.Amount)
	}
	return nil
}
