// Package redis 以 Redis Hash 保存工作订单注册表快照
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

const workingOrdersKey = "execution:working_orders"

type workingOrderRepository struct {
	client redis.UniversalClient
	key    string
}

// NewWorkingOrderRepository 创建 Redis 快照存储，field 为工作订单 ID，value 为 JSON
func NewWorkingOrderRepository(client redis.UniversalClient) domain.CheckpointStore {
	return &workingOrderRepository{client: client, key: workingOrdersKey}
}

// SaveAll 以事务整体替换快照
func (r *workingOrderRepository) SaveAll(ctx context.Context, orders []domain.WorkingOrder) error {
	values := make(map[string]any, len(orders))
	for i := range orders {
		data, err := json.Marshal(&orders[i])
		if err != nil {
			return fmt.Errorf("marshal working order %s: %w", orders[i].ID, err)
		}
		values[orders[i].ID] = data
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "working_order_repository.save_all failed", "key", r.key, "count", len(orders), "error", err)
		return err
	}
	return nil
}

// LoadAll 读取快照，顺序由注册表恢复时决定
func (r *workingOrderRepository) LoadAll(ctx context.Context) ([]domain.WorkingOrder, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders := make([]domain.WorkingOrder, 0, len(raw))
	for id, data := range raw {
		var o domain.WorkingOrder
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			logger.Warn(ctx, "Corrupt working order checkpoint skipped", "order_id", id, "error", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}
