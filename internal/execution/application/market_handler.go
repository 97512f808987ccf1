package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// MarketOrderHandler 市价单路径：一次提交，受理即终态
type MarketOrderHandler struct {
	broker domain.Broker
	events *eventEmitter
}

// newMarketOrderHandler 构造函数
func newMarketOrderHandler(broker domain.Broker, events *eventEmitter) *MarketOrderHandler {
	return &MarketOrderHandler{broker: broker, events: events}
}

// Handle 提交剩余数量的市价单
// 券商拒绝时标记为 REJECTED 并返回 ErrBrokerRejection，由编排器回退为 PENDING
func (h *MarketOrderHandler) Handle(ctx context.Context, reg *domain.Registry, wo domain.WorkingOrder) error {
	if wo.State != domain.OrderStatePending {
		return nil
	}
	qty := wo.RemainingQuantity()
	if qty.IsZero() {
		return h.events.apply(ctx, reg, wo.ID, "", func(o *domain.WorkingOrder) {
			o.State = domain.OrderStateAcknowledged
		})
	}

	brokerID, err := h.broker.SubmitMarketOrder(ctx, wo.Target.Symbol, qty)
	if err != nil {
		logger.Error(ctx, "Market order rejected", "order_id", wo.ID, "symbol", wo.Target.Symbol,
			"quantity", qty.String(), "error", err)
		if aerr := h.events.apply(ctx, reg, wo.ID, domain.EventOrderRejected, func(o *domain.WorkingOrder) {
			o.State = domain.OrderStateRejected
			o.Reason = domain.ReasonRejected
			o.LastActionAt = h.events.now()
		}); aerr != nil {
			logger.Warn(ctx, "Failed to mark market order rejected", "order_id", wo.ID, "error", aerr)
		}
		return fmt.Errorf("%w: market order for %s: %v", domain.ErrBrokerRejection, wo.Target.Symbol, err)
	}

	logger.Info(ctx, "Market order acknowledged", "order_id", wo.ID, "broker_order_id", brokerID,
		"symbol", wo.Target.Symbol, "quantity", qty.String())
	return h.events.apply(ctx, reg, wo.ID, domain.EventOrderSubmitted, func(o *domain.WorkingOrder) {
		o.Retire(brokerID)
		o.State = domain.OrderStateAcknowledged
		o.Reason = ""
		o.LastActionAt = h.events.now()
	})
}
