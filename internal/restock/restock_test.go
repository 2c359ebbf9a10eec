package restock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestSuggestRanksByUrgency(t *testing.T) {
	now := time.Date(2024, time.May, 10, 18, 0, 0, 0, time.UTC)
	inventory := []domain.InventoryItem{
		{Name: "Screen Protector", Stock: 0, ReorderThreshold: 5, CostPrice: dec("3000"), Supplier: "Glassworks"},
		{Name: "Phone Case", Stock: 40, ReorderThreshold: 8, CostPrice: dec("4500")},
		{Name: "Galaxy A52 Screen", Stock: 2, ReorderThreshold: 2, CostPrice: dec("70000"), Supplier: "Parts Direct"},
		{Name: "Earphones", Stock: 3},
	}
	sales := []domain.Sale{
		{CreatedAt: now.Add(-2 * time.Hour), Items: []domain.SaleItem{{Name: "screen protector", Quantity: 5}, {Name: "Phone Case", Quantity: 2}}},
		{CreatedAt: now.AddDate(0, 0, -20), Items: []domain.SaleItem{{Name: "Phone Case", Quantity: 100}}},
	}
	repairs := []domain.Repair{
		{CreatedAt: now.AddDate(0, 0, -3), Parts: []domain.RepairPart{{Name: "Galaxy A52 Screen", Quantity: 3}}},
	}

	got := NewAdvisor(10*24*time.Hour, 10).Suggest(now, inventory, nil, sales, repairs)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "Screen Protector", first.Name)
	assert.Equal(t, ReasonOutOfStock, first.Reason)
	assert.Equal(t, 5, first.UnitsSold)
	assert.Equal(t, 10, first.SuggestedQty)
	assert.True(t, first.EstimatedCost.Equal(dec("30000")))
	assert.Equal(t, "Glassworks", first.Supplier)

	second := got[1]
	assert.Equal(t, "Galaxy A52 Screen", second.Name)
	assert.Equal(t, 3, second.UnitsUsed)
	assert.Equal(t, 2, second.SuggestedQty)
	assert.Equal(t, ReasonRepairDemand, second.Reason)
	assert.Less(t, second.Urgency, first.Urgency)
}

func TestSuggestWithoutCatalogue(t *testing.T) {
	got := NewAdvisor(0, 0).Suggest(time.Now(), nil, nil, nil, nil)
	assert.Empty(t, got)
}
