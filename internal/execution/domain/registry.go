package domain

import (
	"fmt"
	"sort"
	"sync"
)

// RegistryStats 工作订单统计，用于监控与 /stats 接口
type RegistryStats struct {
	Total          int                `json:"total"`
	ByState        map[OrderState]int `json:"by_state"`
	ByKind         map[OrderKind]int  `json:"by_kind"`
	PendingTargets int                `json:"pending_targets"`
}

// Registry 工作订单注册表
// 以工作订单 ID 为主键，同时维护合约代码与券商订单号索引（含已退役单号）
type Registry struct {
	mu       sync.RWMutex
	orders   map[string]*WorkingOrder
	bySymbol map[string]string
	byBroker map[string]string
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		orders:   make(map[string]*WorkingOrder),
		bySymbol: make(map[string]string),
		byBroker: make(map[string]string),
	}
}

// Add 登记新的工作订单，同一合约只允许一条
func (r *Registry) Add(o *WorkingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("working order %s already registered", o.ID)
	}
	if id, ok := r.bySymbol[o.Target.Symbol]; ok {
		return fmt.Errorf("symbol %s already has working order %s", o.Target.Symbol, id)
	}
	c := o.Clone()
	r.orders[o.ID] = &c
	r.index(&c)
	return nil
}

// Get 按 ID 查询，返回副本
func (r *Registry) Get(id string) (WorkingOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return WorkingOrder{}, false
	}
	return o.Clone(), true
}

// GetBySymbol 按合约代码查询，返回副本
func (r *Registry) GetBySymbol(symbol string) (WorkingOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySymbol[symbol]
	if !ok {
		return WorkingOrder{}, false
	}
	return r.orders[id].Clone(), true
}

// Update 在锁内修改工作订单，fn 返回错误时放弃本次修改
func (r *Registry) Update(id string, fn func(o *WorkingOrder) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	r.unindex(cur)
	r.orders[id] = &next
	r.index(&next)
	return nil
}

// Remove 删除工作订单及其索引
func (r *Registry) Remove(id string) (WorkingOrder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return WorkingOrder{}, false
	}
	r.unindex(o)
	delete(r.orders, id)
	return *o, true
}

// ResolveBrokerOrder 由券商订单号找到工作订单，live 表示是否为当前挂单
func (r *Registry) ResolveBrokerOrder(brokerOrderID string) (id string, live bool, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok = r.byBroker[brokerOrderID]
	if !ok {
		return "", false, false
	}
	return id, r.orders[id].BrokerOrderID == brokerOrderID, true
}

// IDs 返回按创建时间排序的 ID 列表，保证每轮派发顺序稳定
func (r *Registry) IDs() []string {
	snap := r.Snapshot()
	ids := make([]string, len(snap))
	for i := range snap {
		ids[i] = snap[i].ID
	}
	return ids
}

// Snapshot 返回全部工作订单的深拷贝，按创建时间与 ID 排序
func (r *Registry) Snapshot() []WorkingOrder {
	r.mu.RLock()
	out := make([]WorkingOrder, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len 工作订单数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Stats 按状态与类型汇总
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Total:   len(r.orders),
		ByState: make(map[OrderState]int),
		ByKind:  make(map[OrderKind]int),
	}
	for _, o := range r.orders {
		stats.ByState[o.State]++
		stats.ByKind[o.Kind]++
	}
	return stats
}

// Restore 用检查点数据替换注册表内容，同一合约重复时保留较新的一条
func (r *Registry) Restore(orders []WorkingOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = make(map[string]*WorkingOrder, len(orders))
	r.bySymbol = make(map[string]string, len(orders))
	r.byBroker = make(map[string]string, len(orders))

	sorted := make([]WorkingOrder, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	for i := range sorted {
		c := sorted[i].Clone()
		if prev, ok := r.bySymbol[c.Target.Symbol]; ok {
			r.unindex(r.orders[prev])
			delete(r.orders, prev)
		}
		r.orders[c.ID] = &c
		r.index(&c)
	}
}

func (r *Registry) index(o *WorkingOrder) {
	r.bySymbol[o.Target.Symbol] = o.ID
	if o.BrokerOrderID != "" {
		r.byBroker[o.BrokerOrderID] = o.ID
	}
	for _, prev := range o.PreviousOrderIDs {
		r.byBroker[prev] = o.ID
	}
}

func (r *Registry) unindex(o *WorkingOrder) {
	if r.bySymbol[o.Target.Symbol] == o.ID {
		delete(r.bySymbol, o.Target.Symbol)
	}
	if o.BrokerOrderID != "" {
		delete(r.byBroker, o.BrokerOrderID)
	}
	for _, prev := range o.PreviousOrderIDs {
		delete(r.byBroker, prev)
	}
}

// EventInbox 券商回报收件箱，可在任意 goroutine 写入，由执行循环统一取出
type EventInbox struct {
	mu     sync.Mutex
	events []OrderEvent
}

// Notify 追加一条回报
func (b *EventInbox) Notify(evt OrderEvent) {
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Drain 取出并清空全部回报，保持到达顺序
func (b *EventInbox) Drain() []OrderEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.events
	b.events = nil
	return out
}

// Len 待处理回报数量
func (b *EventInbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
