package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/period"
)

// UnspecifiedPayment labels sales recorded without a payment method.
const UnspecifiedPayment domain.PaymentKind = "unspecified"

type Totals struct {
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
	Units        int             `json:"units"`
}

func SaleTotals(sales []domain.Sale) Totals {
	totals := Totals{Revenue: decimal.Zero}
	for _, sale := range sales {
		totals.Revenue = totals.Revenue.Add(sale.Total)
		totals.Transactions++
		totals.Units += sale.Units()
	}
	return totals
}

// Breakdown is a keyed accumulation that remembers the order in which keys
// were first seen.
type Breakdown[K comparable, V any] struct {
	order  []K
	values map[K]V
}

func NewBreakdown[K comparable, V any]() *Breakdown[K, V] {
	return &Breakdown[K, V]{values: make(map[K]V)}
}

// Update applies fn to the current value for key, starting from V's zero value.
func (b *Breakdown[K, V]) Update(key K, fn func(V) V) {
	current, ok := b.values[key]
	if !ok {
		b.order = append(b.order, key)
	}
	b.values[key] = fn(current)
}

func (b *Breakdown[K, V]) Keys() []K {
	return append([]K(nil), b.order...)
}

func (b *Breakdown[K, V]) Value(key K) V {
	return b.values[key]
}

func (b *Breakdown[K, V]) Len() int {
	return len(b.order)
}

func (b *Breakdown[K, V]) Each(fn func(K, V)) {
	for _, key := range b.order {
		fn(key, b.values[key])
	}
}

func GroupBy[T any, K comparable, V any](items []T, key func(T) K, add func(V, T) V) *Breakdown[K, V] {
	b := NewBreakdown[K, V]()
	for _, item := range items {
		b.Update(key(item), func(v V) V { return add(v, item) })
	}
	return b
}

func ByPaymentMethod(sales []domain.Sale) []domain.PaymentTotal {
	b := GroupBy(sales,
		func(s domain.Sale) domain.PaymentKind {
			if s.PaymentKind == "" {
				return UnspecifiedPayment
			}
			return s.PaymentKind
		},
		func(acc domain.PaymentTotal, s domain.Sale) domain.PaymentTotal {
			acc.Count++
			acc.Amount = acc.Amount.Add(s.Total)
			return acc
		})

	out := make([]domain.PaymentTotal, 0, b.Len())
	b.Each(func(method domain.PaymentKind, total domain.PaymentTotal) {
		total.Method = method
		out = append(out, total)
	})
	return out
}

func ByProduct(sales []domain.Sale) []domain.ProductTotal {
	b := NewBreakdown[string, domain.ProductTotal]()
	for _, sale := range sales {
		for _, item := range sale.Items {
			b.Update(item.Name, func(acc domain.ProductTotal) domain.ProductTotal {
				acc.Quantity += item.Quantity
				acc.Revenue = acc.Revenue.Add(item.Subtotal())
				return acc
			})
		}
	}

	out := make([]domain.ProductTotal, 0, b.Len())
	b.Each(func(name string, total domain.ProductTotal) {
		total.Name = name
		out = append(out, total)
	})
	return out
}

type bucket struct {
	label string
	start time.Time
	end   time.Time // zero means open-ended
}

func (b bucket) contains(ts time.Time) bool {
	if ts.Before(b.start) {
		return false
	}
	return b.end.IsZero() || ts.Before(b.end)
}

func trendBuckets(now time.Time, g domain.Granularity, n int) []bucket {
	buckets := make([]bucket, 0, n)
	switch g {
	case domain.Daily:
		today := period.StartOfDay(now)
		for i := 0; i < n; i++ {
			start := today.AddDate(0, 0, -(n - 1 - i))
			buckets = append(buckets, bucket{label: start.Format("Mon"), start: start, end: start.AddDate(0, 0, 1)})
		}
	case domain.Weekly:
		for i := 0; i < n; i++ {
			b := bucket{
				label: fmt.Sprintf("Week %d", i+1),
				start: now.AddDate(0, 0, -7*(n-i)),
			}
			if i < n-1 {
				b.end = now.AddDate(0, 0, -7*(n-1-i))
			}
			buckets = append(buckets, b)
		}
	case domain.Monthly:
		y, m, _ := now.Date()
		thisMonth := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		for i := 0; i < n; i++ {
			start := thisMonth.AddDate(0, -(n - 1 - i), 0)
			buckets = append(buckets, bucket{label: start.Format("Jan"), start: start, end: start.AddDate(0, 1, 0)})
		}
	}
	return buckets
}

// Trend returns n buckets ending at now, oldest first. Every bucket is
// present even when no record falls into it.
func Trend[T period.Stamped](records []T, now time.Time, g domain.Granularity, n int, value func(T) decimal.Decimal) []domain.TrendPoint {
	if n < 1 {
		return []domain.TrendPoint{}
	}
	buckets := trendBuckets(now, g, n)
	points := make([]domain.TrendPoint, len(buckets))
	for i, b := range buckets {
		points[i] = domain.TrendPoint{Label: b.label, Start: b.start, Revenue: decimal.Zero}
	}

	for _, rec := range records {
		ts := rec.OccurredAt().In(now.Location())
		for i, b := range buckets {
			if b.contains(ts) {
				points[i].Revenue = points[i].Revenue.Add(value(rec))
				points[i].Count++
				break
			}
		}
	}
	return points
}
