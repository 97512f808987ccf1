// Package mysql 以 GORM 保存工作订单注册表快照
package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var upsertColumns = []string{
	"symbol", "kind", "side", "state", "target_quantity", "target_price", "tick_size", "tag",
	"broker_order_id", "previous_order_ids", "live_quantity", "original_price", "limit_price", "floor_price",
	"retry_count", "filled_quantity", "order_created_at", "last_action_at", "reason", "updated_at",
}

type workingOrderRepository struct {
	db *gorm.DB
}

// NewWorkingOrderRepository 创建并返回 MySQL 快照存储
func NewWorkingOrderRepository(db *gorm.DB) domain.CheckpointStore {
	return &workingOrderRepository{db: db}
}

// AutoMigrate 创建快照表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkingOrderModel{})
}

// SaveAll 在一个事务内删除快照中已不存在的订单并 upsert 其余订单
func (r *workingOrderRepository) SaveAll(ctx context.Context, orders []domain.WorkingOrder) error {
	defer logger.LogDuration(ctx, "working_order_repository.save_all", "count", len(orders))()

	models := make([]*WorkingOrderModel, 0, len(orders))
	ids := make([]string, 0, len(orders))
	for i := range orders {
		m, err := toWorkingOrderModel(&orders[i])
		if err != nil {
			return fmt.Errorf("encode working order %s: %w", orders[i].ID, err)
		}
		models = append(models, m)
		ids = append(ids, orders[i].ID)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Unscoped()
		if len(ids) > 0 {
			del = del.Where("order_id NOT IN ?", ids)
		} else {
			del = del.Where("1 = 1")
		}
		if err := del.Delete(&WorkingOrderModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&models).Error
	})
	if err != nil {
		logger.Error(ctx, "working_order_repository.save_all failed", "count", len(orders), "error", err)
		return err
	}
	return nil
}

// LoadAll 读取全部快照
func (r *workingOrderRepository) LoadAll(ctx context.Context) ([]domain.WorkingOrder, error) {
	var models []*WorkingOrderModel
	if err := r.db.WithContext(ctx).Order("order_created_at ASC, order_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]domain.WorkingOrder, 0, len(models))
	for _, m := range models {
		o, err := toWorkingOrder(m)
		if err != nil {
			logger.Warn(ctx, "Corrupt working order row skipped", "order_id", m.OrderID, "error", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}
