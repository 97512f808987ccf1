// Package memory 进程内快照存储，重启后丢失，用于本地与纸面交易
package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

// WorkingOrderRepository 保存最近一次快照的深拷贝
type WorkingOrderRepository struct {
	mu     sync.RWMutex
	orders []domain.WorkingOrder
}

// NewWorkingOrderRepository 构造函数
func NewWorkingOrderRepository() *WorkingOrderRepository {
	return &WorkingOrderRepository{}
}

func (r *WorkingOrderRepository) SaveAll(_ context.Context, orders []domain.WorkingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = cloneAll(orders)
	return nil
}

func (r *WorkingOrderRepository) LoadAll(context.Context) ([]domain.WorkingOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.orders), nil
}

// Reset 清空快照，测试用
func (r *WorkingOrderRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = nil
}

func cloneAll(orders []domain.WorkingOrder) []domain.WorkingOrder {
	out := make([]domain.WorkingOrder, len(orders))
	for i := range orders {
		out[i] = orders[i].Clone()
	}
	return out
}
