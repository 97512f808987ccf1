// Package telemetry 把编排计时、注册表图表与生命周期事件导出为 Prometheus 指标
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"github.com/wyfcoding/smartexecution/pkg/metrics"
)

var allStates = []domain.OrderState{
	domain.OrderStatePending,
	domain.OrderStateAwaitingFill,
	domain.OrderStateRepricing,
	domain.OrderStateFilled,
	domain.OrderStateExhausted,
	domain.OrderStateCancelled,
	domain.OrderStateAcknowledged,
	domain.OrderStateRejected,
}

// Prometheus 实现 domain.Telemetry
type Prometheus struct {
	m      *metrics.Metrics
	mu     sync.Mutex
	timers map[string]time.Time
	now    func() time.Time
}

// NewPrometheus 构造函数
func NewPrometheus(m *metrics.Metrics) *Prometheus {
	return &Prometheus{m: m, timers: make(map[string]time.Time), now: time.Now}
}

func (p *Prometheus) StartTimer(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers[name] = p.now()
}

// StopTimer 未启动的计时器直接忽略
func (p *Prometheus) StopTimer(name string) {
	p.mu.Lock()
	start, ok := p.timers[name]
	delete(p.timers, name)
	p.mu.Unlock()

	if !ok {
		return
	}
	p.m.TimerDuration.WithLabelValues(name).Observe(p.now().Sub(start).Seconds())
}

// UpdateCharts 所有状态都写入，没有订单的状态归零
func (p *Prometheus) UpdateCharts(ctx context.Context, stats domain.RegistryStats) {
	for _, s := range allStates {
		p.m.WorkingOrders.WithLabelValues(string(s)).Set(float64(stats.ByState[s]))
	}
	p.m.PendingTargets.Set(float64(stats.PendingTargets))
	logger.Debug(ctx, "Execution charts updated", "total", stats.Total, "pending_targets", stats.PendingTargets)
}

// EventCounter 实现 domain.EventPublisher，按事件类型累加计数
type EventCounter struct {
	m *metrics.Metrics
}

// NewEventCounter 构造函数
func NewEventCounter(m *metrics.Metrics) *EventCounter {
	return &EventCounter{m: m}
}

func (c *EventCounter) Publish(_ context.Context, evt domain.ExecutionEvent) error {
	switch evt.Type {
	case domain.EventOrderSubmitted:
		c.m.OrdersSubmitted.WithLabelValues(string(evt.Kind)).Inc()
	case domain.EventOrderRepriced:
		c.m.OrdersRepriced.Inc()
	case domain.EventOrderFilled:
		c.m.OrdersFilled.Inc()
	case domain.EventOrderCancelled:
		c.m.OrdersCancelled.Inc()
	case domain.EventOrderExhausted:
		c.m.OrdersExhausted.Inc()
	case domain.EventOrderRejected:
		c.m.OrdersRejected.WithLabelValues(string(evt.Kind)).Inc()
	}
	return nil
}
