package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

var scenarioParams = map[string]any{
	"retryChangePct":     0.1,
	"minPricePct":        0.7,
	"orderAdjustmentPct": 0,
	"speedOfFillProfile": "Fast",
}

func TestNewOrchestrator_InvalidConfiguration(t *testing.T) {
	broker := &fakeBroker{}

	_, err := NewOrchestrator(Config{Overrides: map[string]any{"speedOfFillProfile": "Sloth"}}, broker, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewOrchestrator(Config{Defaults: map[string]any{"minPricePct": 2}}, broker, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewOrchestrator(Config{}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	assert.Zero(t, broker.total(), "no order is placed when configuration is invalid")
}

func TestNewOrchestrator_OverridesWinOverDefaults(t *testing.T) {
	orch, err := NewOrchestrator(Config{
		Defaults:  map[string]any{"speedOfFillProfile": "Patient", "retryChangePct": 0.2},
		Overrides: map[string]any{"speedOfFillProfile": "Normal", "maxRetries": 99},
	}, &fakeBroker{}, nil)
	require.NoError(t, err)

	p := orch.Parameters()
	assert.Equal(t, domain.SpeedOfFillNormal, p.SpeedOfFill)
	assert.Equal(t, 3*time.Minute, p.RetryInterval)
	assert.Equal(t, 5, p.MaxRetries)
	assert.True(t, p.RetryChangePct.Equal(d("0.2")))
}

func TestExecute_SellRepricingScenario(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")

	h.run(target)
	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateAwaitingFill, wo.State)
	assert.True(t, wo.FloorPrice.Equal(d("0.7")))

	h.clock.Advance(30 * time.Second)
	h.run(target)
	assert.Len(t, h.broker.ops("limit"), 1, "no action inside the retry interval")

	for i := 0; i < 4; i++ {
		h.clock.Advance(time.Minute)
		h.run(target)
	}

	limits := h.broker.ops("limit")
	require.Len(t, limits, 4)
	for i, want := range []string{"1", "0.9", "0.81", "0.729"} {
		assert.True(t, limits[i].Price.Equal(d(want)), "attempt %d: want %s got %s", i, want, limits[i].Price)
		assert.True(t, limits[i].Quantity.Equal(d("-1")))
		assert.True(t, limits[i].Price.GreaterThanOrEqual(d("0.7")))
	}
	cancels := h.broker.ops("cancel")
	require.Len(t, cancels, 3)
	assert.Equal(t, []string{"B-1", "B-2", "B-3"}, []string{cancels[0].ID, cancels[1].ID, cancels[2].ID})

	wo = h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, domain.ReasonMaxRetries, wo.Reason)
	assert.Equal(t, 3, wo.RetryCount)
	assert.Equal(t, "B-4", wo.BrokerOrderID, "exhausted order stays working")

	calls := h.broker.total()
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Minute)
		h.run()
	}
	assert.Equal(t, calls, h.broker.total(), "exhausted orders are never resubmitted")

	assert.Equal(t, []domain.ExecutionEventType{
		domain.EventOrderSubmitted,
		domain.EventOrderRepriced,
		domain.EventOrderRepriced,
		domain.EventOrderRepriced,
		domain.EventOrderExhausted,
	}, h.publisher.types())
}

func TestExecute_BuyMovesUpWithinCeiling(t *testing.T) {
	h := newHarness(t, map[string]any{"retryChangePct": 0.25, "minPricePct": 0.8, "speedOfFillProfile": "Patient"})
	h.quotes.quotes["QQQ"] = domain.Quote{Bid: d("1.9"), Ask: d("2.1")}
	target := limit("QQQ", "3", "")

	h.run(target)
	for i := 0; i < 8; i++ {
		h.clock.Advance(5 * time.Minute)
		h.run(target)
	}

	limits := h.broker.ops("limit")
	require.NotEmpty(t, limits)
	assert.True(t, limits[0].Price.Equal(d("1.6")), "first buy price is 0.8P, got %s", limits[0].Price)
	for i := 1; i < len(limits); i++ {
		assert.True(t, limits[i].Price.GreaterThan(limits[i-1].Price), "buy price only moves up")
		assert.True(t, limits[i].Price.LessThanOrEqual(d("2.4")), "never above (2-minPricePct)P")
	}
	assert.Equal(t, domain.OrderStateExhausted, h.order(t, "QQQ").State)
	assert.Equal(t, 7, h.order(t, "QQQ").RetryCount)
}

func TestExecute_FirstPriceAdjustment(t *testing.T) {
	h := newHarness(t, nil) // orderAdjustmentPct = -0.2
	h.quotes.quotes["BUY"] = domain.Quote{Mid: d("10")}
	h.quotes.quotes["SELL"] = domain.Quote{Mid: d("10")}

	h.run(limit("BUY", "1", ""), limit("SELL", "-1", ""))

	prices := map[string]decimal.Decimal{}
	for _, c := range h.broker.ops("limit") {
		prices[c.Symbol] = c.Price
	}
	assert.True(t, prices["BUY"].Equal(d("8")), "buy starts at 0.8P, got %s", prices["BUY"])
	assert.True(t, prices["SELL"].Equal(d("12")), "sell starts at 1.2P, got %s", prices["SELL"])
}

func TestExecute_FillIsTerminal(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")

	h.run(target)
	h.clock.Advance(time.Minute)
	h.run(target)
	wo := h.order(t, "SPX")
	require.Equal(t, "B-2", wo.BrokerOrderID)

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-2", Type: domain.OrderEventFill, Quantity: d("1"), Price: d("0.9")})
	report := h.run(target)
	assert.Equal(t, 1, report.Events)
	assert.Equal(t, 1, report.Pruned)

	_, ok := h.orch.Registry().GetBySymbol("SPX")
	assert.False(t, ok, "filled order is pruned")
	assert.Empty(t, h.orch.PendingTargets(), "fulfilled target is cleared")

	calls := h.broker.total()
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run()
	}
	assert.Equal(t, calls, h.broker.total())
	assert.Contains(t, h.publisher.types(), domain.EventOrderFilled)
}

func TestExecute_LateFillOnRetiredOrderCancelsReplacement(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")

	h.run(target)
	h.clock.Advance(time.Minute)
	h.run(target)

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventFill, Quantity: d("1"), Price: d("1")})
	h.run(target)

	cancels := h.broker.ops("cancel")
	require.Len(t, cancels, 2)
	assert.Equal(t, "B-2", cancels[1].ID, "live replacement is cancelled")
	_, ok := h.orch.Registry().GetBySymbol("SPX")
	assert.False(t, ok)
}

func TestExecute_PartialFillKeepsRetryCount(t *testing.T) {
	h := newHarness(t, nil)
	target := limit("IWM", "5", "2.00")

	h.run(target)
	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventPartialFill, Quantity: d("2")})
	h.run(target)

	wo := h.order(t, "IWM")
	assert.Equal(t, domain.OrderStateAwaitingFill, wo.State)
	assert.True(t, wo.FilledQuantity.Equal(d("2")))
	assert.Equal(t, 0, wo.RetryCount)

	h.clock.Advance(time.Minute)
	h.run(target)

	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.True(t, limits[0].Price.Equal(d("1.6")))
	assert.True(t, limits[1].Quantity.Equal(d("3")), "resubmission uses the remaining quantity")
	assert.True(t, limits[1].Price.Equal(d("2.6")), "default step walks straight to the ceiling")
	assert.Equal(t, 1, h.order(t, "IWM").RetryCount)

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-2", Type: domain.OrderEventFill, Quantity: d("3")})
	h.run(target)
	_, ok := h.orch.Registry().GetBySymbol("IWM")
	assert.False(t, ok)
}

func TestExecute_RemoveTargetCancelsExactlyOnce(t *testing.T) {
	h := newHarness(t, scenarioParams)

	h.run(limit("SPX", "-1", "1.00"))
	report := h.run(flat("SPX"))
	assert.Equal(t, 1, report.Cancelled)

	// 撤单确认迟到，注册表已无此单
	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventCancelled})
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run()
	}

	cancels := h.broker.ops("cancel")
	require.Len(t, cancels, 1)
	assert.Equal(t, "B-1", cancels[0].ID)
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Len(t, h.broker.ops("limit"), 1)
	assert.Contains(t, h.publisher.types(), domain.EventOrderCancelled)
}

func TestExecute_SupersededTargetReplacesOrder(t *testing.T) {
	h := newHarness(t, scenarioParams)

	h.run(limit("SPX", "-1", "1.00"))
	report := h.run(limit("SPX", "-2", "1.00"))

	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, report.Created)
	assert.Len(t, h.broker.ops("cancel"), 1)
	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.True(t, limits[1].Quantity.Equal(d("-2")))

	wo := h.order(t, "SPX")
	assert.Equal(t, "WO-2", wo.ID)
	assert.Equal(t, "B-2", wo.BrokerOrderID)
}

func TestExecute_CancelFailureRetriedNextCycle(t *testing.T) {
	h := newHarness(t, scenarioParams)
	h.run(limit("SPX", "-1", "1.00"))

	h.broker.cancelErr = errors.New("venue busy")
	h.run(flat("SPX"))
	_, ok := h.orch.Registry().GetBySymbol("SPX")
	assert.True(t, ok, "entry kept while the broker order is still live")

	h.broker.cancelErr = nil
	report := h.run()
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Len(t, h.broker.ops("cancel"), 2)
}

func TestExecute_SubmitRejectionExhaustsLimitOrder(t *testing.T) {
	h := newHarness(t, scenarioParams)
	h.broker.submitErr = errors.New("insufficient buying power")
	target := limit("SPX", "-1", "1.00")

	report := h.run(target)
	assert.Equal(t, 1, report.Failed)

	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, domain.ReasonRejected, wo.Reason)

	h.broker.submitErr = nil
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run(target)
	}
	assert.Len(t, h.broker.ops("limit"), 1, "rejected limit order is not resubmitted")
}

func TestExecute_CancelRejectionDuringRepriceKeepsOldPrice(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")
	h.run(target)

	h.broker.cancelErr = errors.New("too late to cancel")
	h.clock.Advance(time.Minute)
	report := h.run(target)
	assert.Equal(t, 1, report.Failed)

	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateAwaitingFill, wo.State)
	assert.True(t, wo.LimitPrice.Equal(d("1")))
	assert.Equal(t, 0, wo.RetryCount)
	assert.Equal(t, "B-1", wo.BrokerOrderID)

	h.broker.cancelErr = nil
	h.run(target)
	assert.Len(t, h.broker.ops("limit"), 1, "waits another interval")

	h.clock.Advance(time.Minute)
	h.run(target)
	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.True(t, limits[1].Price.Equal(d("0.9")))
}

func TestExecute_ResubmitRejectionExhausts(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")
	h.run(target)

	h.broker.submitErr = errors.New("price band")
	h.clock.Advance(time.Minute)
	h.run(target)

	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, domain.ReasonRejected, wo.Reason)
	assert.Empty(t, wo.BrokerOrderID)
	assert.Equal(t, []string{"B-1"}, wo.PreviousOrderIDs)
}

func TestExecute_BrokerCancelExhaustsOrder(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")
	h.run(target)

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventCancelled})
	h.run(target)

	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, domain.ReasonBrokerCancelled, wo.Reason)

	h.run(flat("SPX"))
	assert.Empty(t, h.broker.ops("cancel"), "nothing live to cancel")
	assert.Equal(t, 0, h.orch.Registry().Len())
}

func TestExecute_QuoteUnavailableStaysPending(t *testing.T) {
	h := newHarness(t, nil)
	target := limit("SPX", "1", "")

	report := h.run(target)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.OrderStatePending, h.order(t, "SPX").State)
	assert.Zero(t, h.broker.total())

	h.quotes.quotes["SPX"] = domain.Quote{Last: d("5")}
	h.run(target)
	limits := h.broker.ops("limit")
	require.Len(t, limits, 1)
	assert.True(t, limits[0].Price.Equal(d("4")))
	assert.True(t, h.order(t, "SPX").OriginalPrice.Equal(d("5")))
}

func TestExecute_MarketPath(t *testing.T) {
	h := newHarness(t, nil)

	h.run(market("AAPL", "-10"))
	markets := h.broker.ops("market")
	require.Len(t, markets, 1)
	assert.True(t, markets[0].Quantity.Equal(d("-10")))
	_, ok := h.orch.Registry().GetBySymbol("AAPL")
	assert.False(t, ok, "acknowledged market order is terminal")
	assert.Empty(t, h.orch.PendingTargets())

	h.run()
	assert.Len(t, h.broker.ops("market"), 1)
}

func TestExecute_MarketRejectionRevertsToPending(t *testing.T) {
	h := newHarness(t, nil)
	h.broker.submitErr = errors.New("halted")

	report := h.run(market("AAPL", "1"))
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.OrderStatePending, h.order(t, "AAPL").State)

	h.broker.submitErr = nil
	h.run()
	assert.Len(t, h.broker.ops("market"), 2)
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Contains(t, h.publisher.types(), domain.EventOrderRejected)
}

func TestExecute_PanicIsolatedPerOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.broker.panicOn = "BAD"

	report := h.run(limit("BAD", "1", "1"), limit("GOOD", "1", "1"))
	assert.Equal(t, 1, report.Failed)
	limits := h.broker.ops("limit")
	require.Len(t, limits, 1)
	assert.Equal(t, "GOOD", limits[0].Symbol)
}

func TestExecute_TargetValidator(t *testing.T) {
	v := &fakeValidator{undesired: map[string]bool{}}
	h := newHarness(t, nil, WithTargetValidator(v))

	h.run(limit("SPX", "1", "1"))
	require.Len(t, h.broker.ops("limit"), 1)

	v.undesired["SPX"] = true
	report := h.run()
	assert.Equal(t, 1, report.Cancelled)
	assert.Empty(t, h.orch.PendingTargets())

	h.run(limit("QQQ", "1", "1"), limit("SPX", "2", "1"))
	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.Equal(t, "QQQ", limits[1].Symbol)
}

func TestExecute_InvalidTargetsSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.run(domain.PortfolioTarget{Symbol: "SPX", Quantity: d("1"), Kind: "stop"}, domain.PortfolioTarget{Quantity: d("1")})
	assert.Zero(t, h.broker.total())
	assert.Empty(t, h.orch.PendingTargets())
}

func TestExecute_IdempotentWithoutInput(t *testing.T) {
	h := newHarness(t, nil)
	target := limit("SPX", "1", "1")
	h.run(target)

	calls := h.broker.total()
	for i := 0; i < 5; i++ {
		h.run()
		h.run(target)
	}
	assert.Equal(t, calls, h.broker.total())
}

func TestExecute_TelemetryAroundCycle(t *testing.T) {
	h := newHarness(t, nil)
	h.run(limit("SPX", "1", "1"), limit("QQQ", "1", "1"))

	assert.Equal(t, []string{"Execution.Execute"}, h.telemetry.started)
	assert.Equal(t, []string{"Execution.Execute"}, h.telemetry.stopped)
	require.Len(t, h.telemetry.charts, 1)
	assert.Equal(t, 2, h.telemetry.charts[0].Total)
	assert.Equal(t, 2, h.telemetry.charts[0].ByState[domain.OrderStateAwaitingFill])
	assert.Equal(t, 2, h.telemetry.charts[0].PendingTargets)
}

func TestOrchestrator_Restore(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")
	h.run(target)
	snap := h.orch.Registry().Snapshot()

	restored := newHarness(t, scenarioParams)
	restored.orch.Restore(context.Background(), snap)
	require.Len(t, restored.orch.PendingTargets(), 1)

	restored.run()
	assert.Zero(t, restored.broker.total(), "restored order is not resubmitted")

	restored.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventFill, Quantity: d("1")})
	restored.run()
	assert.Equal(t, 0, restored.orch.Registry().Len())
}

func TestExecute_FulfilledMarketTargetNotRetraded(t *testing.T) {
	h := newHarness(t, nil)
	target := market("SPY", "5")

	for i := 0; i < 3; i++ {
		h.run(target)
	}
	require.Len(t, h.broker.ops("market"), 1, "unchanged end-state target trades once")
	assert.Empty(t, h.orch.PendingTargets())

	h.run(market("SPY", "6"))
	markets := h.broker.ops("market")
	require.Len(t, markets, 2)
	assert.True(t, markets[1].Quantity.Equal(d("6")))

	h.run(flat("SPY"))
	h.run(market("SPY", "6"))
	assert.Len(t, h.broker.ops("market"), 3, "going flat resets the fulfilled target")
}

func TestExecute_FulfilledLimitTargetNotRetraded(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")

	h.run(target)
	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventFill, Quantity: d("1"), Price: d("1")})
	h.run(target)
	require.Equal(t, 0, h.orch.Registry().Len())

	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run(target)
	}
	assert.Len(t, h.broker.ops("limit"), 1)
	assert.Empty(t, h.broker.ops("cancel"))
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Empty(t, h.orch.PendingTargets())

	h.run(limit("SPX", "-2", "1.00"))
	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.True(t, limits[1].Quantity.Equal(d("-2")))
}

func TestExecute_LateFillAtBoundResizesLiveOrder(t *testing.T) {
	h := newHarness(t, map[string]any{
		"retryChangePct":     0.5,
		"minPricePct":        0.7,
		"orderAdjustmentPct": 0,
		"speedOfFillProfile": "Normal",
	})
	target := limit("SPX", "-2", "1.00")

	h.run(target)
	h.clock.Advance(3 * time.Minute)
	h.run(target)
	wo := h.order(t, "SPX")
	require.True(t, wo.LimitPrice.Equal(d("0.7")), "walked straight to the floor")
	require.True(t, wo.LiveQuantity.Equal(d("-2")))

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventPartialFill, Quantity: d("1")})
	h.run(target)

	limits := h.broker.ops("limit")
	require.Len(t, limits, 3)
	assert.True(t, limits[2].Price.Equal(d("0.7")), "same price at the floor")
	assert.True(t, limits[2].Quantity.Equal(d("-1")), "resized to the remaining quantity")
	cancels := h.broker.ops("cancel")
	require.Len(t, cancels, 2)
	assert.Equal(t, "B-2", cancels[1].ID)

	wo = h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateAwaitingFill, wo.State)
	assert.Equal(t, "B-3", wo.BrokerOrderID)
	assert.True(t, wo.LiveQuantity.Equal(wo.RemainingQuantity()))
	assert.Equal(t, 2, wo.RetryCount)

	calls := h.broker.total()
	h.clock.Advance(3 * time.Minute)
	h.run(target)
	assert.Equal(t, calls, h.broker.total(), "correctly sized order at the floor is left alone")
	assert.Equal(t, 3, h.order(t, "SPX").RetryCount)
}

func TestExecute_LateFillResizesExhaustedOrder(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-3", "1.00")

	h.run(target)
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run(target)
	}
	require.Equal(t, 3, h.order(t, "SPX").RetryCount)
	require.Equal(t, "B-4", h.order(t, "SPX").BrokerOrderID)

	// 重试用尽的同一轮里按剩余数量重挂
	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventPartialFill, Quantity: d("1")})
	h.run(target)
	wo := h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, domain.ReasonMaxRetries, wo.Reason)
	assert.Equal(t, "B-5", wo.BrokerOrderID)
	assert.True(t, wo.LiveQuantity.Equal(d("-2")))

	// 已 EXHAUSTED 的订单同样重挂
	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-2", Type: domain.OrderEventPartialFill, Quantity: d("1")})
	h.run(target)
	wo = h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateExhausted, wo.State)
	assert.Equal(t, "B-6", wo.BrokerOrderID)
	assert.True(t, wo.LiveQuantity.Equal(d("-1")))
	assert.Equal(t, 3, wo.RetryCount, "resizing is not a retry")

	limits := h.broker.ops("limit")
	require.Len(t, limits, 6)
	for _, c := range limits[4:] {
		assert.True(t, c.Price.Equal(d("0.729")), "exhausted orders keep their last price")
	}
	assert.True(t, limits[4].Quantity.Equal(d("-2")))
	assert.True(t, limits[5].Quantity.Equal(d("-1")))

	calls := h.broker.total()
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.run(target)
	}
	assert.Equal(t, calls, h.broker.total())
}

func TestExecute_PartialFillOnLiveOrderDoesNotResize(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-3", "1.00")
	h.run(target)

	h.orch.HandleOrderEvent(domain.OrderEvent{OrderID: "B-1", Type: domain.OrderEventPartialFill, Quantity: d("1")})
	h.run(target)

	wo := h.order(t, "SPX")
	assert.True(t, wo.LiveQuantity.Equal(d("-2")))
	assert.False(t, wo.Oversized())
	assert.Len(t, h.broker.ops("limit"), 1)
}

func TestExecute_InterruptedRepriceRecovers(t *testing.T) {
	h := newHarness(t, scenarioParams)
	target := limit("SPX", "-1", "1.00")
	h.run(target)

	h.broker.panicOn = "SPX"
	h.clock.Advance(time.Minute)
	report := h.run(target)
	require.Equal(t, 1, report.Failed)
	wo := h.order(t, "SPX")
	require.Equal(t, domain.OrderStateRepricing, wo.State)
	assert.Empty(t, wo.BrokerOrderID, "cancelled order is retired before resubmitting")

	h.broker.panicOn = ""
	h.run(target)

	wo = h.order(t, "SPX")
	assert.Equal(t, domain.OrderStateAwaitingFill, wo.State)
	assert.Equal(t, "B-2", wo.BrokerOrderID)
	assert.Equal(t, []string{"B-1"}, wo.PreviousOrderIDs)
	limits := h.broker.ops("limit")
	require.Len(t, limits, 2)
	assert.True(t, limits[1].Quantity.Equal(d("-1")))
	assert.Len(t, h.broker.ops("cancel"), 1, "no second cancel for the retired order")
}
