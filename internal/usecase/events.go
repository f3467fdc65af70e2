package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"github.com/sirupsen/logrus"
)

const (
	TopicOrderCreated       = "order-created"
	TopicOrderStatusUpdated = "order-status-updated"
	TopicPaymentProcessed   = "payment-processed"
)

var EventTopics = []string{TopicOrderCreated, TopicOrderStatusUpdated, TopicPaymentProcessed}

type OrderCreatedEvent struct {
	OrderID       int64               `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        int64               `json:"user_id"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	TotalPrice    int64               `json:"total_price"`
	CreatedAt     time.Time           `json:"created_at"`
}

type OrderStatusUpdatedEvent struct {
	OrderID     int64             `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        model.OrderStatus `json:"from"`
	To          model.OrderStatus `json:"to"`
	Note        string            `json:"note,omitempty"`
	UpdatedBy   int64             `json:"updated_by"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type PaymentProcessedEvent struct {
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	TxnRef        string    `json:"txn_ref"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// コミット後に呼ぶ。失敗はログだけ
func publish(ctx context.Context, pub EventPublisher, log *logrus.Logger, topic string, orderID int64, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topic, orderID, payload); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"topic":    topic,
			"order_id": orderID,
		}).Error("failed to publish order event")
	}
}

func publishStatusUpdated(ctx context.Context, pub EventPublisher, log *logrus.Logger, o model.Order, from model.OrderStatus, h model.OrderStatusHistory) {
	var by int64
	if h.UpdatedBy != nil {
		by = *h.UpdatedBy
	}
	publish(ctx, pub, log, TopicOrderStatusUpdated, o.ID, OrderStatusUpdatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        from,
		To:          h.Status,
		Note:        h.Note,
		UpdatedBy:   by,
		UpdatedAt:   h.UpdatedAt,
	})
}
