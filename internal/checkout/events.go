package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/payment"
)

const (
	EventOrderPlaced   = "order.placed"
	EventPaymentFailed = "payment.failed"
)

type EventRecorder interface {
	AddEvent(ctx context.Context, event *localstore.OutboxEvent) error
}

type OrderPlacedEvent struct {
	OrderID       domain.OrderID       `json:"order_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	TotalPrice    string               `json:"total_price"`
	Items         int                  `json:"items"`
}

type PaymentFailedEvent struct {
	OrderID         domain.OrderID `json:"order_id"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
	Type            string         `json:"type"`
	Code            string         `json:"code,omitempty"`
	DeclineCode     string         `json:"decline_code,omitempty"`
	Message         string         `json:"message,omitempty"`
}

func newEvent(orderID domain.OrderID, eventType string, payload any) (*localstore.OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &localstore.OutboxEvent{
		AggregateID: string(orderID),
		EventType:   eventType,
		Payload:     b,
	}, nil
}

func paymentFailed(order *domain.PlacedOrder, res *payment.Result) PaymentFailedEvent {
	ev := PaymentFailedEvent{OrderID: order.ID, PaymentIntentID: res.PaymentIntentID}
	if res.Err != nil {
		ev.Type = res.Err.Type
		ev.Code = res.Err.Code
		ev.DeclineCode = res.Err.DeclineCode
		ev.Message = res.Err.Message
	}
	return ev
}
