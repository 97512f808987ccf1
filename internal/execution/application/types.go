package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

// WorkingOrderDTO 工作订单 DTO，价格与数量以字符串输出
type WorkingOrderDTO struct {
	ID               string   `json:"id"`
	Symbol           string   `json:"symbol"`
	Kind             string   `json:"kind"`
	Side             string   `json:"side"`
	State            string   `json:"state"`
	Quantity         string   `json:"quantity"`
	FilledQuantity   string   `json:"filled_quantity"`
	OriginalPrice    string   `json:"original_price"`
	LimitPrice       string   `json:"limit_price"`
	FloorPrice       string   `json:"floor_price"`
	RetryCount       int      `json:"retry_count"`
	BrokerOrderID    string   `json:"broker_order_id,omitempty"`
	PreviousOrderIDs []string `json:"previous_order_ids,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Tag              string   `json:"tag,omitempty"`
	CreatedAt        int64    `json:"created_at"`
	LastActionAt     int64    `json:"last_action_at"`
}

// SubmitTargetCommand 提交目标持仓命令
type SubmitTargetCommand struct {
	Symbol     string          `json:"symbol" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Kind       string          `json:"kind" binding:"omitempty,oneof=market limit"` // 默认 limit
	LimitPrice decimal.Decimal `json:"limit_price"`
	TickSize   decimal.Decimal `json:"tick_size"`
	Tag        string          `json:"tag"`
}

// Target 转换为领域目标
func (c SubmitTargetCommand) Target() domain.PortfolioTarget {
	kind := domain.OrderKind(c.Kind)
	if kind == "" {
		kind = domain.OrderKindLimit
	}
	return domain.PortfolioTarget{
		Symbol:     c.Symbol,
		Quantity:   c.Quantity,
		Kind:       kind,
		LimitPrice: c.LimitPrice,
		TickSize:   c.TickSize,
		Tag:        c.Tag,
	}
}

// UpdateQuoteCommand 推送报价命令（纸面交易）
type UpdateQuoteCommand struct {
	Symbol string          `json:"symbol" binding:"required"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Last   decimal.Decimal `json:"last"`
}

// StatsDTO 执行统计
type StatsDTO struct {
	domain.RegistryStats
	SpeedOfFill   string `json:"speed_of_fill"`
	RetryInterval string `json:"retry_interval"`
	MaxRetries    int    `json:"max_retries"`
}

func toWorkingOrderDTO(o domain.WorkingOrder) *WorkingOrderDTO {
	return &WorkingOrderDTO{
		ID:               o.ID,
		Symbol:           o.Target.Symbol,
		Kind:             string(o.Kind),
		Side:             string(o.Side),
		State:            string(o.State),
		Quantity:         o.Target.Quantity.String(),
		FilledQuantity:   o.FilledQuantity.String(),
		OriginalPrice:    o.OriginalPrice.String(),
		LimitPrice:       o.LimitPrice.String(),
		FloorPrice:       o.FloorPrice.String(),
		RetryCount:       o.RetryCount,
		BrokerOrderID:    o.BrokerOrderID,
		PreviousOrderIDs: o.PreviousOrderIDs,
		Reason:           o.Reason,
		Tag:              o.Target.Tag,
		CreatedAt:        unixOrZero(o.CreatedAt),
		LastActionAt:     unixOrZero(o.LastActionAt),
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
