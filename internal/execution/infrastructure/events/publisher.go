// Package events 发布工作订单生命周期事件
package events

import (
	"context"
	"errors"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/mq"
)

// KafkaPublisher 以工作订单 ID 为 key 写入事件主题，同一订单的事件保持分区内有序
type KafkaPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaPublisher 构造函数，producer 应以异步模式创建
func NewKafkaPublisher(producer *mq.KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt domain.ExecutionEvent) error {
	return p.producer.SendMessage(ctx, p.topic, evt.OrderID, evt)
}

// Fanout 依次发布到所有下游，单个下游失败不影响其他下游
type Fanout []domain.EventPublisher

func (f Fanout) Publish(ctx context.Context, evt domain.ExecutionEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
