package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

// ExecutionQueryService 处理工作订单相关的查询操作（Queries）。
type ExecutionQueryService struct {
	orch *Orchestrator
}

// NewExecutionQueryService 构造函数。
func NewExecutionQueryService(orch *Orchestrator) *ExecutionQueryService {
	return &ExecutionQueryService{orch: orch}
}

// ListWorkingOrders 列出工作订单，state 为空时返回全部
func (q *ExecutionQueryService) ListWorkingOrders(_ context.Context, state string) ([]*WorkingOrderDTO, error) {
	snap := q.orch.Registry().Snapshot()
	dtos := make([]*WorkingOrderDTO, 0, len(snap))
	for _, o := range snap {
		if state != "" && string(o.State) != state {
			continue
		}
		dtos = append(dtos, toWorkingOrderDTO(o))
	}
	return dtos, nil
}

// GetWorkingOrder 按 ID 查询工作订单
func (q *ExecutionQueryService) GetWorkingOrder(_ context.Context, id string) (*WorkingOrderDTO, error) {
	o, ok := q.orch.Registry().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return toWorkingOrderDTO(o), nil
}

// PendingTargets 待执行目标
func (q *ExecutionQueryService) PendingTargets(_ context.Context) []domain.PortfolioTarget {
	return q.orch.PendingTargets()
}

// Stats 执行统计
func (q *ExecutionQueryService) Stats(_ context.Context) *StatsDTO {
	p := q.orch.Parameters()
	return &StatsDTO{
		RegistryStats: q.orch.Stats(),
		SpeedOfFill:   string(p.SpeedOfFill),
		RetryInterval: p.RetryInterval.String(),
		MaxRetries:    p.MaxRetries,
	}
}
