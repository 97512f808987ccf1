package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderState 工作订单状态
type OrderState string

const (
	OrderStatePending      OrderState = "PENDING"       // 尚未提交
	OrderStateAwaitingFill OrderState = "AWAITING_FILL" // 已挂单，等待成交
	OrderStateRepricing    OrderState = "REPRICING"     // 撤单改价中，仅在一次评估内出现
	OrderStateFilled       OrderState = "FILLED"        // 完全成交
	OrderStateExhausted    OrderState = "EXHAUSTED"     // 重试用尽，保留最后价格挂单
	OrderStateCancelled    OrderState = "CANCELLED"     // 目标被替换或移除后撤单
	OrderStateAcknowledged OrderState = "ACKNOWLEDGED"  // 市价单已被券商受理
	OrderStateRejected     OrderState = "REJECTED"      // 市价单被拒，随即回到 PENDING
)

// 剔除原因
const (
	ReasonRejected        = "rejected"
	ReasonMaxRetries      = "max_retries"
	ReasonBrokerCancelled = "broker_cancelled"
	ReasonSuperseded      = "superseded"
	ReasonRemoved         = "removed"
	ReasonNotDesired      = "not_desired"
)

// WorkingOrder 工作订单，一个目标对应一条，由 Registry 独占
type WorkingOrder struct {
	ID               string          `json:"id"`
	Target           PortfolioTarget `json:"target"`
	Kind             OrderKind       `json:"kind"`
	Side             TradeSide       `json:"side"`
	State            OrderState      `json:"state"`
	BrokerOrderID    string          `json:"broker_order_id,omitempty"`
	PreviousOrderIDs []string        `json:"previous_order_ids,omitempty"`
	LiveQuantity     decimal.Decimal `json:"live_quantity"` // 当前券商挂单未成交数量，带方向符号
	OriginalPrice    decimal.Decimal `json:"original_price"`
	LimitPrice       decimal.Decimal `json:"limit_price"`
	FloorPrice       decimal.Decimal `json:"floor_price"`
	RetryCount       int             `json:"retry_count"`
	FilledQuantity   decimal.Decimal `json:"filled_quantity"`
	CreatedAt        time.Time       `json:"created_at"`
	LastActionAt     time.Time       `json:"last_action_at"`
	Reason           string          `json:"reason,omitempty"`
}

// NewWorkingOrder 为目标创建待提交的工作订单
func NewWorkingOrder(id string, target PortfolioTarget, now time.Time) *WorkingOrder {
	return &WorkingOrder{
		ID:        id,
		Target:    target,
		Kind:      target.Kind,
		Side:      target.Side(),
		State:     OrderStatePending,
		CreatedAt: now,
	}
}

// RemainingQuantity 剩余待成交数量，带方向符号
func (o *WorkingOrder) RemainingQuantity() decimal.Decimal {
	rest := o.Target.Quantity.Abs().Sub(o.FilledQuantity)
	if !rest.IsPositive() {
		return decimal.Zero
	}
	if o.Side == TradeSideSell {
		return rest.Neg()
	}
	return rest
}

// ReduceLive 当前挂单成交 q 后扣减挂单数量
func (o *WorkingOrder) ReduceLive(q decimal.Decimal) {
	rest := o.LiveQuantity.Abs().Sub(q.Abs())
	switch {
	case !rest.IsPositive():
		o.LiveQuantity = decimal.Zero
	case o.Side == TradeSideSell:
		o.LiveQuantity = rest.Neg()
	default:
		o.LiveQuantity = rest
	}
}

// Oversized 当前挂单数量大于剩余数量（旧单迟到成交后出现），需要按剩余数量重挂
func (o *WorkingOrder) Oversized() bool {
	if !o.IsLive() || o.LiveQuantity.IsZero() {
		return false
	}
	rest := o.RemainingQuantity().Abs()
	return rest.IsPositive() && rest.LessThan(o.LiveQuantity.Abs())
}

// IsTerminal 终态订单在本轮结束时被清理
func (o *WorkingOrder) IsTerminal() bool {
	switch o.State {
	case OrderStateFilled, OrderStateCancelled, OrderStateAcknowledged:
		return true
	}
	return false
}

// IsLive 券商侧是否仍有挂单
func (o *WorkingOrder) IsLive() bool {
	if o.BrokerOrderID == "" {
		return false
	}
	switch o.State {
	case OrderStateAwaitingFill, OrderStateRepricing, OrderStateExhausted:
		return true
	}
	return false
}

// Retire 记录替换后的券商订单，旧单号保留以便识别迟到的成交
func (o *WorkingOrder) Retire(newBrokerOrderID string) {
	if o.BrokerOrderID != "" {
		o.PreviousOrderIDs = append(o.PreviousOrderIDs, o.BrokerOrderID)
	}
	o.BrokerOrderID = newBrokerOrderID
}

// Clone 深拷贝
func (o *WorkingOrder) Clone() WorkingOrder {
	c := *o
	c.PreviousOrderIDs = slices.Clone(o.PreviousOrderIDs)
	return c
}
