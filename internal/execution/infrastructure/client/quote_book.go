// Package client 提供券商与行情适配器：内存行情簿、纸面券商与 Kafka 券商网关
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

// QuoteBook 内存行情簿，按合约保存最新报价
type QuoteBook struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewQuoteBook 创建空行情簿
func NewQuoteBook() *QuoteBook {
	return &QuoteBook{quotes: make(map[string]domain.Quote)}
}

// Quote 实现 domain.QuoteProvider
func (b *QuoteBook) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: no quote for %s", domain.ErrQuoteUnavailable, symbol)
	}
	return q, nil
}

// UpdateQuote 覆盖合约的最新报价
func (b *QuoteBook) UpdateQuote(_ context.Context, symbol string, q domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = q
}

// Len 已有报价的合约数
func (b *QuoteBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.quotes)
}
