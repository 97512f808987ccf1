package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// TargetQueue 目标缓冲队列，HTTP 与消息消费者写入，定时任务每轮取出
type TargetQueue struct {
	mu      sync.Mutex
	targets []domain.PortfolioTarget
}

// NewTargetQueue 构造函数
func NewTargetQueue() *TargetQueue {
	return &TargetQueue{}
}

// Push 追加目标
func (q *TargetQueue) Push(targets ...domain.PortfolioTarget) {
	q.mu.Lock()
	q.targets = append(q.targets, targets...)
	q.mu.Unlock()
}

// Targets 取出并清空，实现 domain.TargetSupplier
func (q *TargetQueue) Targets(context.Context) ([]domain.PortfolioTarget, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.targets
	q.targets = nil
	return out, nil
}

// Worker 定时驱动执行循环，并在循环外保存注册表检查点
type Worker struct {
	orch     *Orchestrator
	supplier domain.TargetSupplier
	store    domain.CheckpointStore
	interval time.Duration
}

// NewWorker 构造函数，store 可为 nil
func NewWorker(orch *Orchestrator, supplier domain.TargetSupplier, store domain.CheckpointStore, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Worker{orch: orch, supplier: supplier, store: store, interval: interval}
}

// Restore 加载最近一次检查点
func (w *Worker) Restore(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	orders, err := w.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	w.orch.Restore(ctx, orders)
	return nil
}

// RunOnce 拉取目标、执行一轮并保存检查点
func (w *Worker) RunOnce(ctx context.Context) CycleReport {
	var targets []domain.PortfolioTarget
	if w.supplier != nil {
		var err error
		if targets, err = w.supplier.Targets(ctx); err != nil {
			logger.Error(ctx, "Failed to fetch portfolio targets", "error", err)
		}
	}

	start := time.Now()
	report := w.orch.Execute(ctx, targets)
	logger.Debug(ctx, "Execution cycle finished",
		"duration", time.Since(start),
		"targets", len(targets),
		"events", report.Events,
		"created", report.Created,
		"cancelled", report.Cancelled,
		"dispatched", report.Dispatched,
		"failed", report.Failed,
		"pruned", report.Pruned,
	)

	if w.store != nil {
		if err := w.store.SaveAll(ctx, w.orch.Registry().Snapshot()); err != nil {
			logger.Error(ctx, "Failed to checkpoint working orders", "error", err)
		}
	}
	return report
}

// Run 按固定间隔执行，直到 ctx 结束
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info(ctx, "Execution worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Execution worker stopped")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}
