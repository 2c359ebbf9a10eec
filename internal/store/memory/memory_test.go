package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
)

func TestSaleAndItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	sale := domain.Sale{ID: "sale-1", ShopID: "main-shop", Kind: domain.SaleKindInShop, CreatedAt: time.Now()}
	require.NoError(t, s.InsertSale(ctx, sale))
	require.NoError(t, s.InsertSaleItems(ctx, []domain.SaleItem{
		{ID: "item-1", SaleID: "sale-1", Name: "Cable", Quantity: 2, UnitPrice: decimal.NewFromInt(5000)},
	}))

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Len(t, sales[0].Items, 1)
	assert.Equal(t, "Cable", sales[0].Items[0].Name)

	// Mutating the listed copy leaves the store untouched.
	sales[0].Items[0].Name = "changed"
	again, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cable", again[0].Items[0].Name)

	require.NoError(t, s.DeleteSaleItems(ctx, "sale-1"))
	require.NoError(t, s.DeleteSale(ctx, "sale-1"))
	sales, err = s.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestWriteErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.InsertSale(ctx, domain.Sale{}), store.ErrInvalidRecord)
	assert.ErrorIs(t, s.InsertSaleItems(ctx, []domain.SaleItem{{SaleID: "missing"}}), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateSale(ctx, domain.Sale{ID: "missing"}), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSale(ctx, "missing"), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRepair(ctx, domain.Repair{ID: "missing"}), store.ErrNotFound)

	require.NoError(t, s.InsertSale(ctx, domain.Sale{ID: "dup"}))
	assert.ErrorIs(t, s.InsertSale(ctx, domain.Sale{ID: "dup"}), store.ErrInvalidRecord)
}

func TestSubscribeCoalescesAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, s.InsertRepair(context.Background(), domain.Repair{ID: "r1"}))
	require.NoError(t, s.InsertRepair(context.Background(), domain.Repair{ID: "r2"}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
	select {
	case <-ch:
		t.Fatal("bursts should coalesce into one pending signal")
	default:
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSeededStoreHasTodaysActivity(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 3)

	repairs, err := s.ListRepairs(ctx)
	require.NoError(t, err)
	require.Len(t, repairs, 2)
	assert.Equal(t, "95000", repairs[0].TotalCost.String())
	assert.Equal(t, domain.PaymentPaid, repairs[0].PaymentStatus)

	inventory, err := s.ListInventoryItems(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, inventory)
}
