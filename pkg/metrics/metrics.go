// Package metrics 提供 Prometheus helper，包含执行层使用的 counter/gauge/histogram
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// 编排周期等计时器耗时，按 timer 名称区分
	TimerDuration *prometheus.HistogramVec
	// 提交订单数，按订单类型区分
	OrdersSubmitted *prometheus.CounterVec
	// 改价次数
	OrdersRepriced prometheus.Counter
	// 成交订单数
	OrdersFilled prometheus.Counter
	// 撤单次数
	OrdersCancelled prometheus.Counter
	// 重试耗尽订单数
	OrdersExhausted prometheus.Counter
	// 券商拒单数，按订单类型区分
	OrdersRejected *prometheus.CounterVec
	// 当前工作订单数，按状态区分
	WorkingOrders *prometheus.GaugeVec
	// 待执行目标数
	PendingTargets prometheus.Gauge

	registry *prometheus.Registry
}

// New 创建指标实例并注册到独立的 registry
func New(serviceName string) *Metrics {
	m := &Metrics{
		TimerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "timer_duration_seconds",
			Help:      "Duration of instrumented execution sections",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"timer"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_submitted_total",
			Help:      "Orders submitted to the broker",
		}, []string{"kind"}),
		OrdersRepriced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_repriced_total",
			Help:      "Limit orders cancelled and resubmitted at a new price",
		}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_filled_total",
			Help:      "Working orders that reached the filled state",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_cancelled_total",
			Help:      "Working orders cancelled because their target changed",
		}),
		OrdersExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_exhausted_total",
			Help:      "Limit orders that used up their retry budget",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Broker rejections",
		}, []string{"kind"}),
		WorkingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "working_orders",
			Help:      "Working orders in the registry by state",
		}, []string{"state"}),
		PendingTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "pending_targets",
			Help:      "Targets waiting to be fulfilled",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.TimerDuration,
		m.OrdersSubmitted,
		m.OrdersRepriced,
		m.OrdersFilled,
		m.OrdersCancelled,
		m.OrdersExhausted,
		m.OrdersRejected,
		m.WorkingOrders,
		m.PendingTargets,
	)
	return m
}

// Registry 返回底层 registry，供测试读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	logger.Debug(context.Background(), "metrics handler created")
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
