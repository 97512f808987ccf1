// Package consumer 消费券商网关回报与行情消息
package consumer

import (
	"context"
	"fmt"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"github.com/wyfcoding/smartexecution/pkg/mq"
)

// OrderEventSink 回报接收方
type OrderEventSink interface {
	HandleOrderEvent(evt domain.OrderEvent)
}

// OrderEventHandler 把 broker.order.events 主题的回报写入编排器收件箱
type OrderEventHandler struct {
	sink OrderEventSink
}

func NewOrderEventHandler(sink OrderEventSink) *OrderEventHandler {
	return &OrderEventHandler{sink: sink}
}

// Handle 解析失败或字段缺失时返回错误，消息进入死信队列
func (h *OrderEventHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var evt domain.OrderEvent
	if err := msg.UnmarshalPayload(&evt); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}
	if evt.OrderID == "" {
		return fmt.Errorf("order event without order_id at offset %d", msg.Offset)
	}
	switch evt.Type {
	case domain.OrderEventFill, domain.OrderEventPartialFill, domain.OrderEventCancelled, domain.OrderEventRejected:
	default:
		return fmt.Errorf("unknown order event type %q", evt.Type)
	}
	if evt.At.IsZero() {
		evt.At = msg.Time
	}

	logger.Debug(ctx, "Broker order event received", "broker_order_id", evt.OrderID, "type", evt.Type, "quantity", evt.Quantity.String())
	h.sink.HandleOrderEvent(evt)
	return nil
}
