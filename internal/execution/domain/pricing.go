package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Quote 合约报价快照
type Quote struct {
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
	Mid  decimal.Decimal `json:"mid"`
	Last decimal.Decimal `json:"last"`
}

// Reference 返回定价基准：中间价，其次买卖价均值，其次最新价，最后取对手价
func (q Quote) Reference(side TradeSide) (decimal.Decimal, bool) {
	switch {
	case q.Mid.IsPositive():
		return q.Mid, true
	case q.Bid.IsPositive() && q.Ask.IsPositive():
		return q.Bid.Add(q.Ask).Div(two), true
	case q.Last.IsPositive():
		return q.Last, true
	case side == TradeSideBuy && q.Ask.IsPositive():
		return q.Ask, true
	case side == TradeSideSell && q.Bid.IsPositive():
		return q.Bid, true
	}
	return decimal.Zero, false
}

// PricePlan 一笔限价单的定价边界
type PricePlan struct {
	Base  decimal.Decimal // 调整前的原始价格 P
	Start decimal.Decimal // 首次挂单价
	Bound decimal.Decimal // 卖单下限 / 买单上限
}

// PlanLimitPrice 计算首次挂单价与最差价格边界
// 卖单下限 minPricePct×P 向上取整，买单上限 (2−minPricePct)×P 向下取整
func PlanLimitPrice(base decimal.Decimal, side TradeSide, p *ResolvedParameters, tick decimal.Decimal) (PricePlan, error) {
	if !base.IsPositive() {
		return PricePlan{}, fmt.Errorf("%w: non-positive base price %s", ErrQuoteUnavailable, base)
	}
	grid := p.Grid(tick)

	var start, bound decimal.Decimal
	if side == TradeSideSell {
		start = base.Mul(decimal.NewFromInt(1).Sub(p.OrderAdjustmentPct))
		bound = CeilToGrid(base.Mul(p.MinPricePct), grid)
	} else {
		start = base.Mul(decimal.NewFromInt(1).Add(p.OrderAdjustmentPct))
		bound = FloorToGrid(base.Mul(two.Sub(p.MinPricePct)), grid)
	}
	start = RoundToGrid(start, grid)
	if !start.IsPositive() && grid.IsPositive() {
		start = grid
	}

	return PricePlan{Base: base, Start: Clamp(start, bound, side), Bound: bound}, nil
}

// NextLimitPrice 由上一次价格向对手方移动一步，不越过边界
// 取整导致价格未变化时至少移动一个价位
func NextLimitPrice(prev, bound decimal.Decimal, side TradeSide, p *ResolvedParameters, tick decimal.Decimal) decimal.Decimal {
	grid := p.Grid(tick)

	var next decimal.Decimal
	switch {
	case p.AdjustmentIncrement.Valid && side == TradeSideSell:
		next = prev.Sub(p.AdjustmentIncrement.Decimal)
	case p.AdjustmentIncrement.Valid:
		next = prev.Add(p.AdjustmentIncrement.Decimal)
	case side == TradeSideSell:
		next = prev.Mul(decimal.NewFromInt(1).Sub(p.RetryChangePct))
	default:
		next = prev.Mul(decimal.NewFromInt(1).Add(p.RetryChangePct))
	}

	next = RoundToGrid(next, grid)
	if grid.IsPositive() && next.Equal(prev) {
		if side == TradeSideSell {
			next = prev.Sub(grid)
		} else {
			next = prev.Add(grid)
		}
	}
	return Clamp(next, bound, side)
}

// Clamp 卖单不低于下限，买单不高于上限
func Clamp(price, bound decimal.Decimal, side TradeSide) decimal.Decimal {
	if side == TradeSideSell {
		return decimal.Max(price, bound)
	}
	return decimal.Min(price, bound)
}

// RoundToGrid 取整到最近的价位，grid 为 0 时原样返回
func RoundToGrid(price, grid decimal.Decimal) decimal.Decimal {
	if !grid.IsPositive() {
		return price
	}
	return price.Div(grid).Round(0).Mul(grid)
}

// CeilToGrid 向上取整到价位
func CeilToGrid(price, grid decimal.Decimal) decimal.Decimal {
	if !grid.IsPositive() {
		return price
	}
	return price.Div(grid).Ceil().Mul(grid)
}

// FloorToGrid 向下取整到价位
func FloorToGrid(price, grid decimal.Decimal) decimal.Decimal {
	if !grid.IsPositive() {
		return price
	}
	return price.Div(grid).Floor().Mul(grid)
}
