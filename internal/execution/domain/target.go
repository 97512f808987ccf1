// Package domain 包含智能定价执行服务的领域模型
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TradeSide 交易方向
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// OrderKind 执行方式
type OrderKind string

const (
	OrderKindMarket OrderKind = "market" // 立即以市价成交
	OrderKindLimit  OrderKind = "limit"  // 智能定价限价单
)

// PortfolioTarget 目标持仓变动，以合约代码为唯一标识
type PortfolioTarget struct {
	// 合约代码，例如 "SPXW 241220C05900000"
	Symbol string `json:"symbol"`
	// 有符号数量：正数买入，负数卖出，0 表示不再需要
	Quantity decimal.Decimal `json:"quantity"`
	// 执行方式
	Kind OrderKind `json:"kind"`
	// 策略给定的基准价，为 0 时使用报价中间价
	LimitPrice decimal.Decimal `json:"limit_price"`
	// 合约最小变动价位，为 0 时不取整
	TickSize decimal.Decimal `json:"tick_size"`
	// 日志标签
	Tag string `json:"tag,omitempty"`
}

// Side 由数量符号得出交易方向
func (t PortfolioTarget) Side() TradeSide {
	if t.Quantity.IsNegative() {
		return TradeSideSell
	}
	return TradeSideBuy
}

// IsFlat 数量为 0，表示撤销该合约的目标
func (t PortfolioTarget) IsFlat() bool {
	return t.Quantity.IsZero()
}

// Equal 比较两个目标是否一致，不一致即视为替换
func (t PortfolioTarget) Equal(o PortfolioTarget) bool {
	return t.Symbol == o.Symbol &&
		t.Kind == o.Kind &&
		t.Quantity.Equal(o.Quantity) &&
		t.LimitPrice.Equal(o.LimitPrice) &&
		t.TickSize.Equal(o.TickSize)
}

// Validate 校验目标参数
func (t PortfolioTarget) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidTarget)
	}
	if t.IsFlat() {
		return nil
	}
	switch t.Kind {
	case OrderKindMarket, OrderKindLimit:
	default:
		return fmt.Errorf("%w: unknown order kind %q for %s", ErrInvalidTarget, t.Kind, t.Symbol)
	}
	if t.LimitPrice.IsNegative() {
		return fmt.Errorf("%w: negative limit price for %s", ErrInvalidTarget, t.Symbol)
	}
	if t.TickSize.IsNegative() {
		return fmt.Errorf("%w: negative tick size for %s", ErrInvalidTarget, t.Symbol)
	}
	return nil
}
