package client

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"github.com/wyfcoding/smartexecution/pkg/mq"
	"github.com/wyfcoding/smartexecution/pkg/utils"
)

// OrderRequestType 网关请求类型
type OrderRequestType string

const (
	RequestSubmitMarket OrderRequestType = "submit_market"
	RequestSubmitLimit  OrderRequestType = "submit_limit"
	RequestCancel       OrderRequestType = "cancel"
)

// OrderRequest 发往券商网关的下单/撤单请求
type OrderRequest struct {
	Type      OrderRequestType `json:"type"`
	OrderID   string           `json:"order_id"`
	Symbol    string           `json:"symbol,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	CreatedAt time.Time        `json:"created_at"`
}

// GatewayBroker 通过 Kafka 与券商网关交互。订单号由本地生成，回报经 broker.order.events 主题返回
type GatewayBroker struct {
	producer *mq.KafkaProducer
	topic    string
	nextID   func() string
}

// NewGatewayBroker 构造函数
func NewGatewayBroker(producer *mq.KafkaProducer, topic string, nodeID int64) *GatewayBroker {
	return &GatewayBroker{
		producer: producer,
		topic:    topic,
		nextID:   utils.NewSnowflakeID(nodeID).Prefixed("ORD"),
	}
}

func (g *GatewayBroker) SubmitMarketOrder(ctx context.Context, symbol string, quantity decimal.Decimal) (string, error) {
	req := OrderRequest{Type: RequestSubmitMarket, OrderID: g.nextID(), Symbol: symbol, Quantity: quantity}
	if err := g.send(ctx, req); err != nil {
		return "", err
	}
	return req.OrderID, nil
}

func (g *GatewayBroker) SubmitLimitOrder(ctx context.Context, symbol string, quantity, price decimal.Decimal) (string, error) {
	req := OrderRequest{Type: RequestSubmitLimit, OrderID: g.nextID(), Symbol: symbol, Quantity: quantity, Price: price}
	if err := g.send(ctx, req); err != nil {
		return "", err
	}
	return req.OrderID, nil
}

func (g *GatewayBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return g.send(ctx, OrderRequest{Type: RequestCancel, OrderID: brokerOrderID})
}

func (g *GatewayBroker) send(ctx context.Context, req OrderRequest) error {
	req.CreatedAt = time.Now()
	if err := g.producer.SendMessage(ctx, g.topic, req.OrderID, req); err != nil {
		return fmt.Errorf("gateway %s %s: %w", req.Type, req.OrderID, err)
	}
	logger.Debug(ctx, "Gateway order request sent", "type", req.Type, "order_id", req.OrderID, "symbol", req.Symbol)
	return nil
}
