package client

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

// ErrUnknownOrder 撤销不存在或已成交的订单
var ErrUnknownOrder = errors.New("unknown broker order")

// EventSink 接收券商回报，通常是 Orchestrator.HandleOrderEvent
type EventSink func(evt domain.OrderEvent)

type restingOrder struct {
	id       string
	symbol   string
	side     domain.TradeSide
	quantity decimal.Decimal // 绝对值
	price    decimal.Decimal
}

// PaperBroker 纸面券商：市价单立即成交，限价单在报价穿越限价时成交
type PaperBroker struct {
	mu      sync.Mutex
	book    *QuoteBook
	resting map[string]*restingOrder
	sink    EventSink
	nextID  func() string
	now     func() time.Time
}

// NewPaperBroker 创建纸面券商，订单号由雪花算法生成
func NewPaperBroker(book *QuoteBook, nodeID int64) *PaperBroker {
	return &PaperBroker{
		book:    book,
		resting: make(map[string]*restingOrder),
		sink:    func(domain.OrderEvent) {},
		nextID:  utils.NewSnowflakeID(nodeID).Prefixed("ORD"),
		now:     time.Now,
	}
}

// SetEventSink 设置回报接收方。编排器依赖券商构造，因此回报接收方在之后注入
func (b *PaperBroker) SetEventSink(sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sink != nil {
		b.sink = sink
	}
}

// SubmitMarketOrder 以当前参考价立即全部成交
func (b *PaperBroker) SubmitMarketOrder(ctx context.Context, symbol string, quantity decimal.Decimal) (string, error) {
	if quantity.IsZero() {
		return "", fmt.Errorf("paper broker: zero quantity for %s", symbol)
	}
	side := domain.PortfolioTarget{Quantity: quantity}.Side()
	price := decimal.Zero
	if q, err := b.book.Quote(ctx, symbol); err == nil {
		price, _ = q.Reference(side)
	}

	b.mu.Lock()
	id := b.nextID()
	sink := b.sink
	b.mu.Unlock()

	logger.Info(ctx, "Paper market order filled", "order_id", id, "symbol", symbol, "quantity", quantity.String(), "price", price.String())
	sink(domain.OrderEvent{OrderID: id, Type: domain.OrderEventFill, Quantity: quantity.Abs(), Price: price, At: b.now()})
	return id, nil
}

// SubmitLimitOrder 挂出限价单，若当前报价已穿越则立即成交
func (b *PaperBroker) SubmitLimitOrder(ctx context.Context, symbol string, quantity, price decimal.Decimal) (string, error) {
	if quantity.IsZero() {
		return "", fmt.Errorf("paper broker: zero quantity for %s", symbol)
	}
	if !price.IsPositive() {
		return "", fmt.Errorf("paper broker: invalid limit price %s for %s", price, symbol)
	}

	o := &restingOrder{
		symbol:   symbol,
		side:     domain.PortfolioTarget{Quantity: quantity}.Side(),
		quantity: quantity.Abs(),
		price:    price,
	}

	b.mu.Lock()
	o.id = b.nextID()
	b.resting[o.id] = o
	b.mu.Unlock()

	logger.Debug(ctx, "Paper limit order resting", "order_id", o.id, "symbol", symbol, "quantity", quantity.String(), "price", price.String())
	if q, err := b.book.Quote(ctx, symbol); err == nil {
		b.match(ctx, symbol, q)
	}
	return o.id, nil
}

// CancelOrder 撤销挂单并回报 cancelled
func (b *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	b.mu.Lock()
	o, ok := b.resting[brokerOrderID]
	if ok {
		delete(b.resting, brokerOrderID)
	}
	sink := b.sink
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, brokerOrderID)
	}
	logger.Debug(ctx, "Paper order cancelled", "order_id", o.id, "symbol", o.symbol)
	sink(domain.OrderEvent{OrderID: o.id, Type: domain.OrderEventCancelled, Price: o.price, At: b.now()})
	return nil
}

// UpdateQuote 更新行情簿并撮合该合约的挂单
func (b *PaperBroker) UpdateQuote(ctx context.Context, symbol string, q domain.Quote) {
	b.book.UpdateQuote(ctx, symbol, q)
	b.match(ctx, symbol, q)
}

// Resting 当前挂单数
func (b *PaperBroker) Resting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resting)
}

func (b *PaperBroker) match(ctx context.Context, symbol string, q domain.Quote) {
	b.mu.Lock()
	var fills []domain.OrderEvent
	for id, o := range b.resting {
		if o.symbol != symbol || !crosses(o, q) {
			continue
		}
		delete(b.resting, id)
		fills = append(fills, domain.OrderEvent{OrderID: id, Type: domain.OrderEventFill, Quantity: o.quantity, Price: o.price, At: b.now()})
	}
	sink := b.sink
	b.mu.Unlock()

	for _, evt := range fills {
		logger.Info(ctx, "Paper limit order filled", "order_id", evt.OrderID, "symbol", symbol, "price", evt.Price.String())
		sink(evt)
	}
}

// crosses 买单在卖一不高于限价时成交，卖单在买一不低于限价时成交
func crosses(o *restingOrder, q domain.Quote) bool {
	if o.side == domain.TradeSideBuy {
		return q.Ask.IsPositive() && q.Ask.LessThanOrEqual(o.price)
	}
	return q.Bid.IsPositive() && q.Bid.GreaterThanOrEqual(o.price)
}
