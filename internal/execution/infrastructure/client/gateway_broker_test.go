package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/smartexecution/pkg/mq"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestGatewayBroker_PublishesRequests(t *testing.T) {
	w := &captureWriter{}
	g := NewGatewayBroker(mq.NewProducerWithWriter(w), "broker.order.requests", 3)
	ctx := context.Background()

	limitID, err := g.SubmitLimitOrder(ctx, "SPX", d("-1"), d("0.9"))
	require.NoError(t, err)
	marketID, err := g.SubmitMarketOrder(ctx, "QQQ", d("2"))
	require.NoError(t, err)
	assert.NotEqual(t, limitID, marketID)
	require.NoError(t, g.CancelOrder(ctx, limitID))

	require.Len(t, w.msgs, 3)
	var reqs []OrderRequest
	for _, m := range w.msgs {
		assert.Equal(t, "broker.order.requests", m.Topic)
		var req OrderRequest
		require.NoError(t, json.Unmarshal(m.Value, &req))
		assert.Equal(t, req.OrderID, string(m.Key))
		reqs = append(reqs, req)
	}

	assert.Equal(t, RequestSubmitLimit, reqs[0].Type)
	assert.Equal(t, limitID, reqs[0].OrderID)
	assert.True(t, reqs[0].Quantity.Equal(d("-1")))
	assert.True(t, reqs[0].Price.Equal(d("0.9")))
	assert.Equal(t, RequestSubmitMarket, reqs[1].Type)
	assert.Equal(t, "QQQ", reqs[1].Symbol)
	assert.Equal(t, RequestCancel, reqs[2].Type)
	assert.Equal(t, limitID, reqs[2].OrderID)
}

func TestGatewayBroker_SendFailure(t *testing.T) {
	g := NewGatewayBroker(mq.NewProducerWithWriter(&captureWriter{err: errors.New("kafka down")}), "t", 1)

	id, err := g.SubmitLimitOrder(context.Background(), "SPX", d("1"), d("1"))
	assert.Error(t, err)
	assert.Empty(t, id)
	assert.Error(t, g.CancelOrder(context.Background(), "ORD-1"))
}
