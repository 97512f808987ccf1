// Package application 编排执行循环：目标合并、工作订单校验与派发
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"github.com/wyfcoding/smartexecution/pkg/utils"
)

const executeTimer = "Execution.Execute"

// Config 执行参数来源：类级默认值与策略覆盖，键名见 domain.DecodeOverrides
type Config struct {
	Defaults  map[string]any
	Overrides map[string]any
}

// CycleReport 单轮执行结果统计
type CycleReport struct {
	Events     int `json:"events"`
	Created    int `json:"created"`
	Cancelled  int `json:"cancelled"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
	Pruned     int `json:"pruned"`
}

// Option 编排器可选项
type Option func(*Orchestrator)

// WithClock 替换时间来源
func WithClock(now Clock) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator 替换工作订单 ID 生成器
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// WithTelemetry 设置耗时与图表上报
func WithTelemetry(t domain.Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = t }
}

// WithPublisher 设置生命周期事件发布器
func WithPublisher(p domain.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithTargetValidator 设置目标有效性校验
func WithTargetValidator(v domain.TargetValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// Orchestrator 执行编排器
// Execute 串行执行；HandleOrderEvent 与只读查询可在任意 goroutine 调用
type Orchestrator struct {
	mu sync.Mutex

	params   *domain.ResolvedParameters
	registry *domain.Registry
	targets  *domain.TargetCollection
	inbox    domain.EventInbox

	broker    domain.Broker
	quotes    domain.QuoteProvider
	telemetry domain.Telemetry
	publisher domain.EventPublisher
	validator domain.TargetValidator
	now       Clock
	newID     func() string

	events *eventEmitter
	market *MarketOrderHandler
	limit  *LimitOrderHandler
}

// NewOrchestrator 解析并校验执行参数，参数非法时返回 ErrConfiguration，不会下任何单
func NewOrchestrator(cfg Config, broker domain.Broker, quotes domain.QuoteProvider, opts ...Option) (*Orchestrator, error) {
	if broker == nil {
		return nil, fmt.Errorf("%w: broker is required", domain.ErrConfiguration)
	}

	defaults, err := domain.DecodeOverrides(cfg.Defaults)
	if err != nil {
		return nil, fmt.Errorf("decode execution defaults: %w", err)
	}
	overrides, err := domain.DecodeOverrides(cfg.Overrides)
	if err != nil {
		return nil, fmt.Errorf("decode execution overrides: %w", err)
	}
	params, err := domain.Resolve(domain.DefaultParameters(), defaults, overrides)
	if err != nil {
		return nil, err
	}
	for _, layer := range []domain.Overrides{defaults, overrides} {
		if len(layer.Unused) > 0 {
			logger.Warn(context.Background(), "Unrecognized execution parameters", "keys", layer.Unused)
		}
		if len(layer.Ignored) > 0 {
			logger.Warn(context.Background(), "Execution parameters ignored, derived from speedOfFillProfile", "keys", layer.Ignored)
		}
	}

	o := &Orchestrator{
		params:   params,
		registry: domain.NewRegistry(),
		targets:  domain.NewTargetCollection(),
		broker:   broker,
		quotes:   quotes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.telemetry == nil {
		o.telemetry = nopTelemetry{}
	}
	if o.newID == nil {
		o.newID = utils.NewSnowflakeID(1).Prefixed("WO")
	}

	o.events = newEventEmitter(o.publisher, o.now)
	o.market = newMarketOrderHandler(broker, o.events)
	o.limit = newLimitOrderHandler(broker, quotes, params, o.events)

	logger.Info(context.Background(), "Execution orchestrator ready",
		"speed_of_fill", params.SpeedOfFill,
		"retry_interval", params.RetryInterval,
		"max_retries", params.MaxRetries,
		"retry_change_pct", params.RetryChangePct.String(),
		"min_price_pct", params.MinPricePct.String(),
		"order_adjustment_pct", params.OrderAdjustmentPct.String(),
	)
	return o, nil
}

// Execute 执行一轮：应用回报、合并目标、校验并派发工作订单、清理终态
func (o *Orchestrator) Execute(ctx context.Context, targets []domain.PortfolioTarget) CycleReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	var report CycleReport
	report.Events = o.applyEvents(ctx)

	o.telemetry.StartTimer(executeTimer)
	defer o.telemetry.StopTimer(executeTimer)

	o.mergeTargets(ctx, targets)
	o.validateOrders(ctx, &report)
	o.createOrders(ctx, &report)
	o.dispatch(ctx, &report)
	o.prune(ctx, &report)

	o.telemetry.UpdateCharts(ctx, o.Stats())
	return report
}

// HandleOrderEvent 接收券商回报，只写入收件箱，下一轮 Execute 开始时应用
func (o *Orchestrator) HandleOrderEvent(evt domain.OrderEvent) {
	o.inbox.Notify(evt)
}

// Restore 从检查点恢复注册表，未终结订单的目标重新放回待执行集合
func (o *Orchestrator) Restore(ctx context.Context, orders []domain.WorkingOrder) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.registry.Restore(orders)
	var targets []domain.PortfolioTarget
	for _, wo := range o.registry.Snapshot() {
		if !wo.IsTerminal() {
			targets = append(targets, wo.Target)
		}
	}
	o.targets.AddRange(targets)
	logger.Info(ctx, "Working orders restored", "count", o.registry.Len(), "targets", o.targets.Len())
}

// Registry 只读访问注册表
func (o *Orchestrator) Registry() *domain.Registry { return o.registry }

// Parameters 解析后的执行参数
func (o *Orchestrator) Parameters() domain.ResolvedParameters { return *o.params }

// PendingTargets 当前待执行目标
func (o *Orchestrator) PendingTargets() []domain.PortfolioTarget { return o.targets.All() }

// Stats 注册表统计
func (o *Orchestrator) Stats() domain.RegistryStats {
	stats := o.registry.Stats()
	stats.PendingTargets = o.targets.Len()
	return stats
}

func (o *Orchestrator) applyEvents(ctx context.Context) int {
	events := o.inbox.Drain()
	for _, evt := range events {
		o.applyEvent(ctx, evt)
	}
	return len(events)
}

func (o *Orchestrator) applyEvent(ctx context.Context, evt domain.OrderEvent) {
	id, live, ok := o.registry.ResolveBrokerOrder(evt.OrderID)
	if !ok {
		logger.Debug(ctx, "Order event for unknown broker order", "broker_order_id", evt.OrderID, "type", evt.Type)
		return
	}

	var (
		typ        domain.ExecutionEventType
		cancelLive string
		after      domain.WorkingOrder
	)
	err := o.registry.Update(id, func(w *domain.WorkingOrder) error {
		if w.IsTerminal() {
			return nil
		}
		switch evt.Type {
		case domain.OrderEventFill, domain.OrderEventPartialFill:
			total := w.Target.Quantity.Abs()
			if evt.Type == domain.OrderEventFill && live {
				w.FilledQuantity = total
			} else {
				w.FilledQuantity = decimal.Min(total, w.FilledQuantity.Add(evt.Quantity.Abs()))
			}
			if live {
				w.ReduceLive(evt.Quantity)
			}
			switch {
			case w.FilledQuantity.GreaterThanOrEqual(total):
				if !live && w.IsLive() {
					cancelLive = w.BrokerOrderID
				}
				w.State = domain.OrderStateFilled
				w.Reason = ""
				typ = domain.EventOrderFilled
			case !live && w.State == domain.OrderStateAwaitingFill:
				// 旧单迟到成交，当前挂单数量偏大，下一次评估立即按剩余数量重挂
				w.LastActionAt = time.Time{}
			}
		case domain.OrderEventCancelled, domain.OrderEventRejected:
			// 旧单的撤单回报由改价流程触发，忽略
			if !live || !w.IsLive() {
				return nil
			}
			w.Retire("")
			w.LiveQuantity = decimal.Zero
			w.State = domain.OrderStateExhausted
			if evt.Type == domain.OrderEventRejected {
				w.Reason = domain.ReasonRejected
				typ = domain.EventOrderRejected
			} else {
				w.Reason = domain.ReasonBrokerCancelled
				typ = domain.EventOrderExhausted
			}
		default:
			return fmt.Errorf("unknown order event type %q", evt.Type)
		}
		after = w.Clone()
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "Failed to apply order event", "broker_order_id", evt.OrderID, "type", evt.Type, "error", err)
		return
	}
	if typ == "" {
		return
	}

	logger.Info(ctx, "Order event applied", "order_id", after.ID, "broker_order_id", evt.OrderID,
		"type", evt.Type, "state", after.State, "filled", after.FilledQuantity.String())
	o.events.emit(ctx, typ, &after)

	if cancelLive != "" {
		if err := o.broker.CancelOrder(ctx, cancelLive); err != nil {
			logger.Warn(ctx, "Failed to cancel replacement after late fill", "order_id", after.ID,
				"broker_order_id", cancelLive, "error", err)
		}
	}
}

func (o *Orchestrator) mergeTargets(ctx context.Context, targets []domain.PortfolioTarget) {
	if len(targets) == 0 {
		return
	}
	valid := make([]domain.PortfolioTarget, 0, len(targets))
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			logger.Warn(ctx, "Invalid portfolio target skipped", "symbol", t.Symbol, "tag", t.Tag, "error", err)
			continue
		}
		valid = append(valid, t)
	}
	if changed := o.targets.AddRange(valid); len(changed) > 0 {
		logger.Debug(ctx, "Portfolio targets merged", "changed", changed)
	}
}

// validateOrders 撤销目标已被替换、移除或不再需要的工作订单
func (o *Orchestrator) validateOrders(ctx context.Context, report *CycleReport) {
	for _, wo := range o.registry.Snapshot() {
		if wo.IsTerminal() {
			continue
		}
		reason := o.staleReason(ctx, wo)
		if reason == "" {
			continue
		}
		if o.cancel(ctx, wo, reason) {
			report.Cancelled++
		}
	}
}

func (o *Orchestrator) staleReason(ctx context.Context, wo domain.WorkingOrder) string {
	cur, ok := o.targets.Get(wo.Target.Symbol)
	switch {
	case !ok:
		return domain.ReasonRemoved
	case !cur.Equal(wo.Target):
		return domain.ReasonSuperseded
	case o.validator != nil && !o.validator.IsDesired(ctx, cur):
		o.targets.Remove(cur.Symbol)
		return domain.ReasonNotDesired
	}
	return ""
}

// cancel 撤销券商挂单后移除工作订单；撤单失败时保留，下一轮重试
func (o *Orchestrator) cancel(ctx context.Context, wo domain.WorkingOrder, reason string) bool {
	if wo.IsLive() {
		if err := o.broker.CancelOrder(ctx, wo.BrokerOrderID); err != nil {
			logger.Warn(ctx, "Failed to cancel working order", "order_id", wo.ID, "broker_order_id", wo.BrokerOrderID,
				"symbol", wo.Target.Symbol, "reason", reason, "error", err)
			return false
		}
	}
	now := o.now()
	if err := o.events.apply(ctx, o.registry, wo.ID, domain.EventOrderCancelled, func(w *domain.WorkingOrder) {
		w.State = domain.OrderStateCancelled
		w.Reason = reason
		w.LastActionAt = now
	}); err != nil {
		logger.Warn(ctx, "Failed to mark working order cancelled", "order_id", wo.ID, "error", err)
	}
	o.registry.Remove(wo.ID)
	logger.Info(ctx, "Working order cancelled", "order_id", wo.ID, "broker_order_id", wo.BrokerOrderID,
		"symbol", wo.Target.Symbol, "reason", reason)
	return true
}

func (o *Orchestrator) createOrders(ctx context.Context, report *CycleReport) {
	for _, t := range o.targets.All() {
		if _, ok := o.registry.GetBySymbol(t.Symbol); ok {
			continue
		}
		if o.validator != nil && !o.validator.IsDesired(ctx, t) {
			o.targets.Remove(t.Symbol)
			logger.Debug(ctx, "Portfolio target not desired", "symbol", t.Symbol)
			continue
		}
		wo := domain.NewWorkingOrder(o.newID(), t, o.now())
		if err := o.registry.Add(wo); err != nil {
			logger.Error(ctx, "Failed to register working order", "symbol", t.Symbol, "error", err)
			continue
		}
		report.Created++
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, report *CycleReport) {
	for _, id := range o.registry.IDs() {
		wo, ok := o.registry.Get(id)
		if !ok || wo.IsTerminal() {
			continue
		}
		report.Dispatched++
		if err := o.dispatchOne(ctx, wo); err != nil {
			report.Failed++
			logger.Warn(ctx, "Working order dispatch failed", "order_id", wo.ID, "symbol", wo.Target.Symbol,
				"kind", wo.Kind, "state", wo.State, "error", err)
		}
	}
}

// dispatchOne 按类型派发，单个订单的错误与 panic 不影响本轮其他订单
func (o *Orchestrator) dispatchOne(ctx context.Context, wo domain.WorkingOrder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while dispatching %s: %v", wo.ID, r)
		}
	}()

	switch wo.Kind {
	case domain.OrderKindMarket:
		err = o.market.Handle(ctx, o.registry, wo)
		if errors.Is(err, domain.ErrBrokerRejection) {
			if uerr := o.registry.Update(wo.ID, func(w *domain.WorkingOrder) error {
				w.State = domain.OrderStatePending
				return nil
			}); uerr != nil {
				logger.Warn(ctx, "Failed to revert rejected market order", "order_id", wo.ID, "error", uerr)
			}
		}
		return err
	case domain.OrderKindLimit:
		return o.limit.Handle(ctx, o.registry, wo)
	default:
		return fmt.Errorf("%w: unknown order kind %q", domain.ErrInvalidTarget, wo.Kind)
	}
}

// prune 清理已完成目标与终态工作订单，EXHAUSTED 保留以便观察与接收迟到成交
func (o *Orchestrator) prune(ctx context.Context, report *CycleReport) {
	cleared := o.targets.ClearFulfilled(func(t domain.PortfolioTarget) bool {
		wo, ok := o.registry.GetBySymbol(t.Symbol)
		if !ok || !wo.Target.Equal(t) {
			return false
		}
		return wo.State == domain.OrderStateFilled || wo.State == domain.OrderStateAcknowledged
	})
	for _, wo := range o.registry.Snapshot() {
		if wo.IsTerminal() {
			o.registry.Remove(wo.ID)
			report.Pruned++
		}
	}
	if cleared > 0 || report.Pruned > 0 {
		logger.Debug(ctx, "Execution cycle pruned", "targets", cleared, "orders", report.Pruned)
	}
}

type nopTelemetry struct{}

func (nopTelemetry) StartTimer(string)                                  {}
func (nopTelemetry) StopTimer(string)                                   {}
func (nopTelemetry) UpdateCharts(context.Context, domain.RegistryStats) {}
