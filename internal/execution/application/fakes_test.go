package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type brokerCall struct {
	Op       string // market, limit, cancel
	ID       string
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

type fakeBroker struct {
	mu        sync.Mutex
	seq       int
	calls     []brokerCall
	submitErr error
	cancelErr error
	panicOn   string
}

func (b *fakeBroker) SubmitMarketOrder(_ context.Context, symbol string, qty decimal.Decimal) (string, error) {
	return b.submit("market", symbol, qty, decimal.Zero)
}

func (b *fakeBroker) SubmitLimitOrder(_ context.Context, symbol string, qty, price decimal.Decimal) (string, error) {
	return b.submit("limit", symbol, qty, price)
}

func (b *fakeBroker) submit(op, symbol string, qty, price decimal.Decimal) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if symbol == b.panicOn {
		panic("broker exploded")
	}
	call := brokerCall{Op: op, Symbol: symbol, Quantity: qty, Price: price}
	if b.submitErr != nil {
		b.calls = append(b.calls, call)
		return "", b.submitErr
	}
	b.seq++
	call.ID = fmt.Sprintf("B-%d", b.seq)
	b.calls = append(b.calls, call)
	return call.ID, nil
}

func (b *fakeBroker) CancelOrder(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, brokerCall{Op: "cancel", ID: id})
	return b.cancelErr
}

func (b *fakeBroker) ops(op string) []brokerCall {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []brokerCall
	for _, c := range b.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBroker) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fakeQuotes struct {
	quotes map[string]domain.Quote
}

func (q *fakeQuotes) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	quote, ok := q.quotes[symbol]
	if !ok {
		return domain.Quote{}, errors.New("no market data")
	}
	return quote, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time            { return c.now }
func (c *fakeClock) Advance(dur time.Duration) { c.now = c.now.Add(dur) }

type recordingTelemetry struct {
	started, stopped []string
	charts           []domain.RegistryStats
}

func (r *recordingTelemetry) StartTimer(name string) { r.started = append(r.started, name) }
func (r *recordingTelemetry) StopTimer(name string)  { r.stopped = append(r.stopped, name) }
func (r *recordingTelemetry) UpdateCharts(_ context.Context, s domain.RegistryStats) {
	r.charts = append(r.charts, s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ExecutionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt domain.ExecutionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []domain.ExecutionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.ExecutionEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeValidator struct {
	undesired map[string]bool
}

func (v *fakeValidator) IsDesired(_ context.Context, t domain.PortfolioTarget) bool {
	return !v.undesired[t.Symbol]
}

type harness struct {
	orch      *Orchestrator
	broker    *fakeBroker
	quotes    *fakeQuotes
	clock     *fakeClock
	telemetry *recordingTelemetry
	publisher *recordingPublisher
}

func newHarness(t *testing.T, overrides map[string]any, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		broker:    &fakeBroker{},
		quotes:    &fakeQuotes{quotes: map[string]domain.Quote{}},
		clock:     &fakeClock{now: time.Date(2024, 12, 20, 14, 30, 0, 0, time.UTC)},
		telemetry: &recordingTelemetry{},
		publisher: &recordingPublisher{},
	}
	seq := 0
	all := append([]Option{
		WithClock(h.clock.Now),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("WO-%d", seq) }),
		WithTelemetry(h.telemetry),
		WithPublisher(h.publisher),
	}, opts...)

	orch, err := NewOrchestrator(Config{Overrides: overrides}, h.broker, h.quotes, all...)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) run(targets ...domain.PortfolioTarget) CycleReport {
	return h.orch.Execute(context.Background(), targets)
}

func (h *harness) order(t *testing.T, symbol string) domain.WorkingOrder {
	t.Helper()
	wo, ok := h.orch.Registry().GetBySymbol(symbol)
	require.True(t, ok, "working order for %s", symbol)
	return wo
}

func limit(symbol, qty, price string) domain.PortfolioTarget {
	t := domain.PortfolioTarget{Symbol: symbol, Quantity: d(qty), Kind: domain.OrderKindLimit}
	if price != "" {
		t.LimitPrice = d(price)
	}
	return t
}

func market(symbol, qty string) domain.PortfolioTarget {
	return domain.PortfolioTarget{Symbol: symbol, Quantity: d(qty), Kind: domain.OrderKindMarket}
}

func flat(symbol string) domain.PortfolioTarget {
	return domain.PortfolioTarget{Symbol: symbol}
}
