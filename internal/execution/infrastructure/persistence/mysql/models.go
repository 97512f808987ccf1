package mysql

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"gorm.io/gorm"
)

// WorkingOrderModel MySQL 工作订单快照表映射
type WorkingOrderModel struct {
	gorm.Model
	OrderID          string          `gorm:"column:order_id;type:varchar(64);uniqueIndex;not null;comment:工作订单ID"`
	Symbol           string          `gorm:"column:symbol;type:varchar(64);index;not null;comment:合约代码"`
	Kind             string          `gorm:"column:kind;type:varchar(10);not null;comment:执行方式"`
	Side             string          `gorm:"column:side;type:varchar(10);not null;comment:方向"`
	State            string          `gorm:"column:state;type:varchar(20);not null;comment:状态"`
	TargetQuantity   decimal.Decimal `gorm:"column:target_quantity;type:decimal(32,18);not null;comment:目标数量(带符号)"`
	TargetPrice      decimal.Decimal `gorm:"column:target_price;type:decimal(32,18);default:0;comment:策略基准价"`
	TickSize         decimal.Decimal `gorm:"column:tick_size;type:decimal(32,18);default:0;comment:最小变动价位"`
	Tag              string          `gorm:"column:tag;type:varchar(128);comment:标签"`
	BrokerOrderID    string          `gorm:"column:broker_order_id;type:varchar(64);index;comment:当前券商订单ID"`
	PreviousOrderIDs string          `gorm:"column:previous_order_ids;type:text;comment:已替换的券商订单ID"`
	LiveQuantity     decimal.Decimal `gorm:"column:live_quantity;type:decimal(32,18);default:0;comment:当前挂单未成交数量(带符号)"`
	OriginalPrice    decimal.Decimal `gorm:"column:original_price;type:decimal(32,18);default:0;comment:首次挂单价"`
	LimitPrice       decimal.Decimal `gorm:"column:limit_price;type:decimal(32,18);default:0;comment:当前挂单价"`
	FloorPrice       decimal.Decimal `gorm:"column:floor_price;type:decimal(32,18);default:0;comment:价格边界"`
	RetryCount       int             `gorm:"column:retry_count;default:0;comment:重试次数"`
	FilledQuantity   decimal.Decimal `gorm:"column:filled_quantity;type:decimal(32,18);default:0;comment:已成交数量"`
	OrderCreatedAt   time.Time       `gorm:"column:order_created_at;not null;comment:工作订单创建时间"`
	LastActionAt     *time.Time      `gorm:"column:last_action_at;comment:最近一次券商操作时间"`
	Reason           string          `gorm:"column:reason;type:varchar(32);comment:剔除原因"`
}

func (WorkingOrderModel) TableName() string {
	return "execution_working_orders"
}

func toWorkingOrderModel(o *domain.WorkingOrder) (*WorkingOrderModel, error) {
	prev := ""
	if len(o.PreviousOrderIDs) > 0 {
		data, err := json.Marshal(o.PreviousOrderIDs)
		if err != nil {
			return nil, err
		}
		prev = string(data)
	}
	var lastAction *time.Time
	if !o.LastActionAt.IsZero() {
		t := o.LastActionAt
		lastAction = &t
	}
	return &WorkingOrderModel{
		OrderID:          o.ID,
		Symbol:           o.Target.Symbol,
		Kind:             string(o.Kind),
		Side:             string(o.Side),
		State:            string(o.State),
		TargetQuantity:   o.Target.Quantity,
		TargetPrice:      o.Target.LimitPrice,
		TickSize:         o.Target.TickSize,
		Tag:              o.Target.Tag,
		BrokerOrderID:    o.BrokerOrderID,
		PreviousOrderIDs: prev,
		LiveQuantity:     o.LiveQuantity,
		OriginalPrice:    o.OriginalPrice,
		LimitPrice:       o.LimitPrice,
		FloorPrice:       o.FloorPrice,
		RetryCount:       o.RetryCount,
		FilledQuantity:   o.FilledQuantity,
		OrderCreatedAt:   o.CreatedAt,
		LastActionAt:     lastAction,
		Reason:           o.Reason,
	}, nil
}

func toWorkingOrder(m *WorkingOrderModel) (domain.WorkingOrder, error) {
	o := domain.WorkingOrder{
		ID: m.OrderID,
		Target: domain.PortfolioTarget{
			Symbol:     m.Symbol,
			Quantity:   m.TargetQuantity,
			Kind:       domain.OrderKind(m.Kind),
			LimitPrice: m.TargetPrice,
			TickSize:   m.TickSize,
			Tag:        m.Tag,
		},
		Kind:           domain.OrderKind(m.Kind),
		Side:           domain.TradeSide(m.Side),
		State:          domain.OrderState(m.State),
		BrokerOrderID:  m.BrokerOrderID,
		LiveQuantity:   m.LiveQuantity,
		OriginalPrice:  m.OriginalPrice,
		LimitPrice:     m.LimitPrice,
		FloorPrice:     m.FloorPrice,
		RetryCount:     m.RetryCount,
		FilledQuantity: m.FilledQuantity,
		CreatedAt:      m.OrderCreatedAt,
		Reason:         m.Reason,
	}
	if m.LastActionAt != nil {
		o.LastActionAt = *m.LastActionAt
	}
	if m.PreviousOrderIDs != "" {
		if err := json.Unmarshal([]byte(m.PreviousOrderIDs), &o.PreviousOrderIDs); err != nil {
			return domain.WorkingOrder{}, err
		}
	}
	return o, nil
}
