package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionEventType 生命周期事件类型
type ExecutionEventType string

const (
	EventOrderSubmitted ExecutionEventType = "execution.order.submitted"
	EventOrderRepriced  ExecutionEventType = "execution.order.repriced"
	EventOrderExhausted ExecutionEventType = "execution.order.exhausted"
	EventOrderFilled    ExecutionEventType = "execution.order.filled"
	EventOrderCancelled ExecutionEventType = "execution.order.cancelled"
	EventOrderRejected  ExecutionEventType = "execution.order.rejected"
)

// ExecutionEvent 工作订单生命周期事件
type ExecutionEvent struct {
	Type          ExecutionEventType `json:"type"`
	OrderID       string             `json:"order_id"`
	BrokerOrderID string             `json:"broker_order_id,omitempty"`
	Symbol        string             `json:"symbol"`
	Kind          OrderKind          `json:"kind"`
	Side          TradeSide          `json:"side"`
	State         OrderState         `json:"state"`
	Price         decimal.Decimal    `json:"price"`
	Quantity      decimal.Decimal    `json:"quantity"`
	RetryCount    int                `json:"retry_count"`
	Reason        string             `json:"reason,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// NewExecutionEvent 以工作订单当前状态构造事件
func NewExecutionEvent(typ ExecutionEventType, o *WorkingOrder, at time.Time) ExecutionEvent {
	return ExecutionEvent{
		Type:          typ,
		OrderID:       o.ID,
		BrokerOrderID: o.BrokerOrderID,
		Symbol:        o.Target.Symbol,
		Kind:          o.Kind,
		Side:          o.Side,
		State:         o.State,
		Price:         o.LimitPrice,
		Quantity:      o.RemainingQuantity(),
		RetryCount:    o.RetryCount,
		Reason:        o.Reason,
		OccurredAt:    at,
	}
}
