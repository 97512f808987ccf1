package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// LimitOrderHandler 限价单智能定价重试控制器
// 从有利价格起挂，按档位间隔向对手方改价，不越过最差价格，重试用尽后保留挂单
type LimitOrderHandler struct {
	broker domain.Broker
	quotes domain.QuoteProvider
	params *domain.ResolvedParameters
	events *eventEmitter
}

func newLimitOrderHandler(broker domain.Broker, quotes domain.QuoteProvider, params *domain.ResolvedParameters, events *eventEmitter) *LimitOrderHandler {
	return &LimitOrderHandler{broker: broker, quotes: quotes, params: params, events: events}
}

// Handle 每轮对一条限价工作订单评估一次
func (h *LimitOrderHandler) Handle(ctx context.Context, reg *domain.Registry, wo domain.WorkingOrder) error {
	switch wo.State {
	case domain.OrderStatePending:
		return h.submit(ctx, reg, wo)
	case domain.OrderStateAwaitingFill, domain.OrderStateRepricing:
		// REPRICING 只会因上一次改价中断而残留，按等待成交重新评估
		return h.retry(ctx, reg, wo)
	case domain.OrderStateExhausted:
		// 不再改价，仅在旧单迟到成交后按剩余数量原价重挂
		if wo.Oversized() {
			return h.replace(ctx, reg, wo, wo.LimitPrice, domain.OrderStateExhausted, false)
		}
		return nil
	default:
		return nil
	}
}

func (h *LimitOrderHandler) submit(ctx context.Context, reg *domain.Registry, wo domain.WorkingOrder) error {
	symbol := wo.Target.Symbol

	base := wo.Target.LimitPrice
	if !base.IsPositive() {
		if h.quotes == nil {
			return fmt.Errorf("%w: no quote provider for %s", domain.ErrQuoteUnavailable, symbol)
		}
		q, err := h.quotes.Quote(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrQuoteUnavailable, symbol, err)
		}
		ref, ok := q.Reference(wo.Side)
		if !ok {
			return fmt.Errorf("%w: empty quote for %s", domain.ErrQuoteUnavailable, symbol)
		}
		base = ref
	}

	plan, err := domain.PlanLimitPrice(base, wo.Side, h.params, wo.Target.TickSize)
	if err != nil {
		return err
	}

	qty := wo.RemainingQuantity()
	brokerID, err := h.broker.SubmitLimitOrder(ctx, symbol, qty, plan.Start)
	now := h.events.now()
	if err != nil {
		logger.Error(ctx, "Limit order rejected", "order_id", wo.ID, "symbol", symbol,
			"price", plan.Start.String(), "retry_count", 0, "error", err)
		if aerr := h.events.apply(ctx, reg, wo.ID, domain.EventOrderRejected, func(o *domain.WorkingOrder) {
			o.OriginalPrice = plan.Base
			o.LimitPrice = plan.Start
			o.FloorPrice = plan.Bound
			o.State = domain.OrderStateExhausted
			o.Reason = domain.ReasonRejected
			o.LastActionAt = now
		}); aerr != nil {
			logger.Warn(ctx, "Failed to mark limit order rejected", "order_id", wo.ID, "error", aerr)
		}
		return fmt.Errorf("%w: limit order for %s at %s: %v", domain.ErrBrokerRejection, symbol, plan.Start, err)
	}

	logger.Info(ctx, "Limit order submitted", "order_id", wo.ID, "broker_order_id", brokerID, "symbol", symbol,
		"side", wo.Side, "quantity", qty.String(), "price", plan.Start.String(), "floor", plan.Bound.String())
	return h.events.apply(ctx, reg, wo.ID, domain.EventOrderSubmitted, func(o *domain.WorkingOrder) {
		o.Retire(brokerID)
		o.LiveQuantity = qty
		o.OriginalPrice = plan.Base
		o.LimitPrice = plan.Start
		o.FloorPrice = plan.Bound
		o.RetryCount = 0
		o.State = domain.OrderStateAwaitingFill
		o.Reason = ""
		o.LastActionAt = now
	})
}

func (h *LimitOrderHandler) retry(ctx context.Context, reg *domain.Registry, wo domain.WorkingOrder) error {
	if wo.BrokerOrderID == "" {
		// 撤单已成功但重挂未完成，券商侧无挂单，按当前价格补挂
		return h.replace(ctx, reg, wo, wo.LimitPrice, domain.OrderStateAwaitingFill, false)
	}

	now := h.events.now()
	if now.Sub(wo.LastActionAt) < h.params.RetryInterval {
		return nil
	}
	symbol := wo.Target.Symbol

	if wo.RetryCount >= h.params.MaxRetries {
		logger.Warn(ctx, "Limit order exhausted", "order_id", wo.ID, "symbol", symbol,
			"price", wo.LimitPrice.String(), "retry_count", wo.RetryCount)
		if err := h.events.apply(ctx, reg, wo.ID, domain.EventOrderExhausted, func(o *domain.WorkingOrder) {
			o.State = domain.OrderStateExhausted
			o.Reason = domain.ReasonMaxRetries
			o.LastActionAt = now
		}); err != nil {
			return err
		}
		wo.State = domain.OrderStateExhausted
		if wo.Oversized() {
			return h.replace(ctx, reg, wo, wo.LimitPrice, domain.OrderStateExhausted, false)
		}
		return nil
	}

	next := domain.NextLimitPrice(wo.LimitPrice, wo.FloorPrice, wo.Side, h.params, wo.Target.TickSize)
	if next.Equal(wo.LimitPrice) {
		if wo.Oversized() {
			return h.replace(ctx, reg, wo, next, domain.OrderStateAwaitingFill, true)
		}
		// 已在最差价格，保留原挂单，仅计一次重试
		return h.events.apply(ctx, reg, wo.ID, "", func(o *domain.WorkingOrder) {
			o.RetryCount++
			o.LastActionAt = now
		})
	}
	return h.replace(ctx, reg, wo, next, domain.OrderStateAwaitingFill, true)
}

// replace 撤销当前挂单并以 price 重挂剩余数量，成功后进入 state
// 撤单成功即清空当前单号，重挂中断时下一轮直接补挂
func (h *LimitOrderHandler) replace(ctx context.Context, reg *domain.Registry, wo domain.WorkingOrder, price decimal.Decimal, state domain.OrderState, countRetry bool) error {
	now := h.events.now()
	symbol := wo.Target.Symbol
	retries := wo.RetryCount
	if countRetry {
		retries++
	}

	if err := h.events.apply(ctx, reg, wo.ID, "", func(o *domain.WorkingOrder) {
		o.State = domain.OrderStateRepricing
	}); err != nil {
		return err
	}

	if wo.BrokerOrderID != "" {
		if err := h.broker.CancelOrder(ctx, wo.BrokerOrderID); err != nil {
			logger.Warn(ctx, "Cancel before reprice failed", "order_id", wo.ID, "broker_order_id", wo.BrokerOrderID,
				"symbol", symbol, "price", wo.LimitPrice.String(), "retry_count", wo.RetryCount, "error", err)
			if aerr := h.events.apply(ctx, reg, wo.ID, "", func(o *domain.WorkingOrder) {
				o.State = wo.State
				o.LastActionAt = now
			}); aerr != nil {
				logger.Warn(ctx, "Failed to restore working order after cancel failure", "order_id", wo.ID, "error", aerr)
			}
			return fmt.Errorf("%w: cancel %s: %v", domain.ErrBrokerRejection, wo.BrokerOrderID, err)
		}
		if err := h.events.apply(ctx, reg, wo.ID, "", func(o *domain.WorkingOrder) {
			o.Retire("")
			o.LiveQuantity = decimal.Zero
		}); err != nil {
			return err
		}
	}

	qty := wo.RemainingQuantity()
	brokerID, err := h.broker.SubmitLimitOrder(ctx, symbol, qty, price)
	if err != nil {
		logger.Error(ctx, "Limit order rejected", "order_id", wo.ID, "symbol", symbol,
			"price", price.String(), "retry_count", retries, "error", err)
		if aerr := h.events.apply(ctx, reg, wo.ID, domain.EventOrderRejected, func(o *domain.WorkingOrder) {
			o.LimitPrice = price
			o.RetryCount = retries
			o.State = domain.OrderStateExhausted
			o.Reason = domain.ReasonRejected
			o.LastActionAt = now
		}); aerr != nil {
			logger.Warn(ctx, "Failed to mark limit order rejected", "order_id", wo.ID, "error", aerr)
		}
		return fmt.Errorf("%w: limit order for %s at %s: %v", domain.ErrBrokerRejection, symbol, price, err)
	}

	logger.Info(ctx, "Limit order repriced", "order_id", wo.ID, "broker_order_id", brokerID, "symbol", symbol,
		"from", wo.LimitPrice.String(), "to", price.String(), "quantity", qty.String(), "retry_count", retries)
	return h.events.apply(ctx, reg, wo.ID, domain.EventOrderRepriced, func(o *domain.WorkingOrder) {
		o.Retire(brokerID)
		o.LiveQuantity = qty
		o.LimitPrice = price
		o.RetryCount = retries
		o.State = state
		o.LastActionAt = now
	})
}
