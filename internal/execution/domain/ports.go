package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Broker 券商下单端口，数量带方向符号
type Broker interface {
	// SubmitMarketOrder 提交市价单，返回券商订单号
	SubmitMarketOrder(ctx context.Context, symbol string, quantity decimal.Decimal) (string, error)
	// SubmitLimitOrder 提交限价单，返回券商订单号
	SubmitLimitOrder(ctx context.Context, symbol string, quantity, price decimal.Decimal) (string, error)
	// CancelOrder 撤销券商订单
	CancelOrder(ctx context.Context, brokerOrderID string) error
}

// OrderEventType 券商回报类型
type OrderEventType string

const (
	OrderEventFill        OrderEventType = "fill"
	OrderEventPartialFill OrderEventType = "partial_fill"
	OrderEventCancelled   OrderEventType = "cancelled"
	OrderEventRejected    OrderEventType = "rejected"
)

// OrderEvent 券商订单回报
type OrderEvent struct {
	OrderID  string          `json:"order_id"`
	Type     OrderEventType  `json:"type"`
	Quantity decimal.Decimal `json:"quantity"` // 本次成交数量，绝对值
	Price    decimal.Decimal `json:"price"`
	At       time.Time       `json:"at"`
}

// QuoteProvider 行情端口
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// TargetSupplier 目标来源，由定时任务每轮拉取
type TargetSupplier interface {
	Targets(ctx context.Context) ([]PortfolioTarget, error)
}

// Telemetry 执行耗时与图表
type Telemetry interface {
	StartTimer(name string)
	StopTimer(name string)
	UpdateCharts(ctx context.Context, stats RegistryStats)
}

// EventPublisher 工作订单生命周期事件发布
type EventPublisher interface {
	Publish(ctx context.Context, evt ExecutionEvent) error
}

// TargetValidator 判断目标是否仍然需要执行（例如持仓已平）
type TargetValidator interface {
	IsDesired(ctx context.Context, target PortfolioTarget) bool
}

// CheckpointStore 注册表检查点存储
type CheckpointStore interface {
	SaveAll(ctx context.Context, orders []WorkingOrder) error
	LoadAll(ctx context.Context) ([]WorkingOrder, error)
}
