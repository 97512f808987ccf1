package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
)

func TestWorkingOrderRepository_StoresCopies(t *testing.T) {
	repo := NewWorkingOrderRepository()
	ctx := context.Background()

	o := domain.NewWorkingOrder("WO-1", domain.PortfolioTarget{
		Symbol: "SPX", Quantity: decimal.NewFromInt(1), Kind: domain.OrderKindLimit,
	}, time.Now())
	o.PreviousOrderIDs = []string{"ORD-1"}
	orders := []domain.WorkingOrder{*o}
	require.NoError(t, repo.SaveAll(ctx, orders))

	orders[0].PreviousOrderIDs[0] = "mutated"
	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ORD-1", got[0].PreviousOrderIDs[0])

	repo.Reset()
	got, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
