package application

import (
	"context"
	"time"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// Clock 时间来源，测试中替换为可控时钟
type Clock func() time.Time

// eventEmitter 修改注册表并发布生命周期事件
// 事件在注册表锁外发布，发布失败只记录日志
type eventEmitter struct {
	publisher domain.EventPublisher
	now       Clock
}

func newEventEmitter(publisher domain.EventPublisher, now Clock) *eventEmitter {
	if now == nil {
		now = time.Now
	}
	return &eventEmitter{publisher: publisher, now: now}
}

// apply 在锁内修改工作订单，成功后发布 typ 事件；typ 为空时不发布
func (e *eventEmitter) apply(ctx context.Context, reg *domain.Registry, id string, typ domain.ExecutionEventType, fn func(o *domain.WorkingOrder)) error {
	var after domain.WorkingOrder
	err := reg.Update(id, func(o *domain.WorkingOrder) error {
		fn(o)
		after = o.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	if typ != "" {
		e.emit(ctx, typ, &after)
	}
	return nil
}

func (e *eventEmitter) emit(ctx context.Context, typ domain.ExecutionEventType, o *domain.WorkingOrder) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, domain.NewExecutionEvent(typ, o, e.now())); err != nil {
		logger.Warn(ctx, "Failed to publish execution event", "type", typ, "order_id", o.ID, "error", err)
	}
}
