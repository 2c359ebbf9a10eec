package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func sale(id string, method domain.PaymentKind, at time.Time, items ...domain.SaleItem) domain.Sale {
	s := domain.Sale{ID: id, PaymentKind: method, CreatedAt: at, Items: items}
	s.Recompute()
	return s
}

func item(name string, qty int, price string) domain.SaleItem {
	return domain.SaleItem{Name: name, Quantity: qty, UnitPrice: dec(price)}
}

func TestSaleTotals(t *testing.T) {
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		sale("s1", domain.PaymentCash, now, item("Charger", 2, "15000"), item("Case", 1, "10000")),
		sale("s2", domain.PaymentMobileMoney, now, item("Cable", 3, "5000")),
	}

	totals := SaleTotals(sales)
	assert.Equal(t, "55000", totals.Revenue.String())
	assert.Equal(t, 2, totals.Transactions)
	assert.Equal(t, 6, totals.Units)

	empty := SaleTotals(nil)
	assert.True(t, empty.Revenue.IsZero())
	assert.Zero(t, empty.Transactions)
}

func TestBreakdownKeepsFirstSeenOrder(t *testing.T) {
	words := []string{"case", "cable", "case", "screen", "cable", "case"}
	b := GroupBy(words, func(w string) string { return w }, func(n int, _ string) int { return n + 1 })

	assert.Equal(t, []string{"case", "cable", "screen"}, b.Keys())
	assert.Equal(t, 3, b.Value("case"))
	assert.Equal(t, 2, b.Value("cable"))
	assert.Equal(t, 1, b.Value("screen"))
	assert.Zero(t, b.Value("missing"))
}

func TestPaymentBreakdownSumsToGrandTotal(t *testing.T) {
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		sale("s1", domain.PaymentMobileMoney, now, item("Charger", 1, "15000")),
		sale("s2", domain.PaymentCash, now, item("Case", 2, "12500.50")),
		sale("s3", "", now, item("Cable", 1, "5000")),
		sale("s4", domain.PaymentMobileMoney, now, item("Earphones", 1, "30000")),
	}

	byMethod := ByPaymentMethod(sales)
	require.Len(t, byMethod, 3)
	assert.Equal(t, domain.PaymentMobileMoney, byMethod[0].Method)
	assert.Equal(t, domain.PaymentCash, byMethod[1].Method)
	assert.Equal(t, UnspecifiedPayment, byMethod[2].Method)
	assert.Equal(t, 2, byMethod[0].Count)

	sum := decimal.Zero
	count := 0
	for _, entry := range byMethod {
		sum = sum.Add(entry.Amount)
		count += entry.Count
	}
	totals := SaleTotals(sales)
	assert.True(t, sum.Equal(totals.Revenue), "breakdown %s != total %s", sum, totals.Revenue)
	assert.Equal(t, totals.Transactions, count)

	byProduct := ByProduct(sales)
	productSum := decimal.Zero
	units := 0
	for _, entry := range byProduct {
		productSum = productSum.Add(entry.Revenue)
		units += entry.Quantity
	}
	assert.True(t, productSum.Equal(totals.Revenue))
	assert.Equal(t, totals.Units, units)
}

func TestDailyTrendLabelsAndBoundaries(t *testing.T) {
	// Friday 10 May 2024.
	now := time.Date(2024, time.May, 10, 15, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		sale("s1", domain.PaymentCash, time.Date(2024, time.May, 9, 23, 59, 59, 0, time.UTC), item("A", 1, "100")),
		sale("s2", domain.PaymentCash, time.Date(2024, time.May, 10, 0, 0, 1, 0, time.UTC), item("B", 1, "250")),
		sale("s3", domain.PaymentCash, time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC), item("C", 1, "999")),
	}

	points := Trend(sales, now, domain.Daily, 3, func(s domain.Sale) decimal.Decimal { return s.Total })
	require.Len(t, points, 3)
	assert.Equal(t, []string{"Wed", "Thu", "Fri"}, []string{points[0].Label, points[1].Label, points[2].Label})
	assert.True(t, points[0].Revenue.IsZero())
	assert.Equal(t, "100", points[1].Revenue.String())
	assert.Equal(t, "250", points[2].Revenue.String())
	assert.Equal(t, 1, points[2].Count)
}

func TestWeeklyAndMonthlyTrendLabels(t *testing.T) {
	now := time.Date(2024, time.May, 10, 15, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		sale("recent", domain.PaymentCash, now.Add(-time.Hour), item("A", 1, "10")),
		sale("last-week", domain.PaymentCash, now.AddDate(0, 0, -8), item("A", 1, "20")),
		sale("march", domain.PaymentCash, time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC), item("A", 1, "40")),
	}
	value := func(s domain.Sale) decimal.Decimal { return s.Total }

	weekly := Trend(sales, now, domain.Weekly, 4, value)
	require.Len(t, weekly, 4)
	assert.Equal(t, "Week 1", weekly[0].Label)
	assert.Equal(t, "Week 4", weekly[3].Label)
	assert.Equal(t, "10", weekly[3].Revenue.String())
	assert.Equal(t, "20", weekly[2].Revenue.String())

	monthly := Trend(sales, now, domain.Monthly, 3, value)
	require.Len(t, monthly, 3)
	assert.Equal(t, []string{"Mar", "Apr", "May"}, []string{monthly[0].Label, monthly[1].Label, monthly[2].Label})
	assert.Equal(t, "40", monthly[0].Revenue.String())
	assert.True(t, monthly[1].Revenue.IsZero())
	assert.Equal(t, "30", monthly[2].Revenue.String())
}

func TestTrendWithoutBuckets(t *testing.T) {
	assert.Empty(t, Trend([]domain.Sale{}, time.Now(), domain.Daily, 0, func(s domain.Sale) decimal.Decimal { return s.Total }))
}
