package domain

import (
	"sort"
	"sync"
)

// TargetCollection 待执行目标集合，按合约代码去重，后到的目标替换旧目标
// 目标是期望的最终持仓：已完成的目标被记住，重复下发时不再执行，直到该合约出现不同的目标
type TargetCollection struct {
	mu        sync.RWMutex
	targets   map[string]PortfolioTarget
	fulfilled map[string]PortfolioTarget
}

// NewTargetCollection 创建空集合
func NewTargetCollection() *TargetCollection {
	return &TargetCollection{
		targets:   make(map[string]PortfolioTarget),
		fulfilled: make(map[string]PortfolioTarget),
	}
}

// AddRange 合并一批目标，数量为 0 的目标移除对应合约，返回发生变化的合约代码
func (c *TargetCollection) AddRange(targets []PortfolioTarget) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changed []string
	for _, t := range targets {
		if done, ok := c.fulfilled[t.Symbol]; ok {
			if !t.IsFlat() && done.Equal(t) {
				continue
			}
			delete(c.fulfilled, t.Symbol)
		}
		cur, exists := c.targets[t.Symbol]
		switch {
		case t.IsFlat():
			if !exists {
				continue
			}
			delete(c.targets, t.Symbol)
		case exists && cur.Equal(t):
			continue
		default:
			c.targets[t.Symbol] = t
		}
		changed = append(changed, t.Symbol)
	}
	return changed
}

// Fulfilled 查询合约最近一次已完成的目标
func (c *TargetCollection) Fulfilled(symbol string) (PortfolioTarget, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.fulfilled[symbol]
	return t, ok
}

// Remove 移除指定合约的目标
func (c *TargetCollection) Remove(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.targets[symbol]; !ok {
		return false
	}
	delete(c.targets, symbol)
	return true
}

// Get 查询指定合约的目标
func (c *TargetCollection) Get(symbol string) (PortfolioTarget, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.targets[symbol]
	return t, ok
}

// All 按合约代码排序返回全部目标
func (c *TargetCollection) All() []PortfolioTarget {
	c.mu.RLock()
	out := make([]PortfolioTarget, 0, len(c.targets))
	for _, t := range c.targets {
		out = append(out, t)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ClearFulfilled 移除满足条件（已完成）的目标并记为已完成，返回移除数量
func (c *TargetCollection) ClearFulfilled(fulfilled func(PortfolioTarget) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for sym, t := range c.targets {
		if fulfilled(t) {
			delete(c.targets, sym)
			c.fulfilled[sym] = t
			n++
		}
	}
	return n
}

// Len 目标数量
func (c *TargetCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.targets)
}
