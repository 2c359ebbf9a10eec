// Package restock suggests reorder quantities for a shop's catalogue from its
// stock levels and recent demand.
package restock

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"repairdesk/backend/internal/costing"
	"repairdesk/backend/internal/domain"
)

const (
	ReasonOutOfStock   = "out_of_stock"
	ReasonBelowReorder = "below_reorder_point"
	ReasonFastMoving   = "fast_moving"
	ReasonRepairDemand = "repair_demand"
)

type Advisor struct {
	lookback  time.Duration
	coverDays float64
	minScore  float64
}

// NewAdvisor returns an advisor that measures demand over lookback and aims
// to hold coverDays of stock.
func NewAdvisor(lookback time.Duration, coverDays int) *Advisor {
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	if coverDays < 1 {
		coverDays = 14
	}
	return &Advisor{lookback: lookback, coverDays: float64(coverDays), minScore: 0.25}
}

type demand struct {
	sold int
	used int
}

// Suggest scores every catalogue item and returns those worth reordering,
// most urgent first. Records older than the lookback are ignored.
func (a *Advisor) Suggest(now time.Time, inventory []domain.InventoryItem, purchases []domain.Purchase, sales []domain.Sale, repairs []domain.Repair) []domain.RestockSuggestion {
	since := now.Add(-a.lookback)
	fold := cases.Fold()
	usage := make(map[string]*demand, len(inventory))
	for _, item := range inventory {
		usage[fold.String(item.Name)] = &demand{}
	}

	for _, sale := range sales {
		if sale.CreatedAt.Before(since) || sale.CreatedAt.After(now) {
			continue
		}
		for _, line := range sale.Items {
			if d, ok := usage[fold.String(line.Name)]; ok {
				d.sold += line.Quantity
			}
		}
	}
	for _, repair := range repairs {
		if repair.CreatedAt.Before(since) || repair.CreatedAt.After(now) {
			continue
		}
		for _, part := range repair.Parts {
			if d, ok := usage[fold.String(part.Name)]; ok {
				d.used += part.Quantity
			}
		}
		for _, extra := range repair.AdditionalItems {
			if extra.Source != domain.SourceInventory {
				continue
			}
			if d, ok := usage[fold.String(extra.Name)]; ok {
				d.used += extra.Quantity
			}
		}
	}

	resolver := costing.NewResolver(inventory, purchases)
	days := math.Max(a.lookback.Hours()/24, 1)

	suggestions := make([]domain.RestockSuggestion, 0, 8)
	for _, item := range inventory {
		d := usage[fold.String(item.Name)]
		velocity := float64(d.sold+d.used) / days

		shortfall := 1.0
		if item.ReorderThreshold > 0 {
			shortfall = clamp(1-float64(item.Stock)/float64(2*item.ReorderThreshold), 0, 1)
		} else if item.Stock > 0 {
			shortfall = 0
		}
		cover := 1.0
		if velocity > 0 {
			cover = clamp(1-float64(item.Stock)/(velocity*a.coverDays), 0, 1)
		} else if item.Stock > 0 {
			cover = 0
		}
		repairShare := 0.0
		if total := d.sold + d.used; total > 0 {
			repairShare = float64(d.used) / float64(total)
		}

		score := 0.55*shortfall + 0.35*cover + 0.10*repairShare
		if item.Stock <= 0 {
			score = math.Max(score, 0.95)
		}
		if score < a.minScore {
			continue
		}

		target := int(math.Ceil(velocity * a.coverDays))
		if floor := 2 * item.ReorderThreshold; floor > target {
			target = floor
		}
		qty := target - item.Stock
		if qty < 1 {
			continue
		}

		unitCost := resolver.ResolveCost(item.Name)
		suggestions = append(suggestions, domain.RestockSuggestion{
			Name:          item.Name,
			Stock:         item.Stock,
			Threshold:     item.ReorderThreshold,
			UnitsSold:     d.sold,
			UnitsUsed:     d.used,
			DailyVelocity: round2(velocity),
			SuggestedQty:  qty,
			UnitCost:      unitCost,
			EstimatedCost: unitCost.Mul(decimal.NewFromInt(int64(qty))),
			Supplier:      resolver.ResolveSupplier(item.Name),
			Reason:        deriveReason(item, shortfall, cover, repairShare),
			Urgency:       round2(clamp(score, 0, 1)),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Urgency == suggestions[j].Urgency {
			return suggestions[i].EstimatedCost.GreaterThan(suggestions[j].EstimatedCost)
		}
		return suggestions[i].Urgency > suggestions[j].Urgency
	})
	return suggestions
}

func deriveReason(item domain.InventoryItem, shortfall, cover, repairShare float64) string {
	if item.Stock <= 0 {
		return ReasonOutOfStock
	}

	type reasonWeight struct {
		code  string
		value float64
	}
	reasons := []reasonWeight{
		{code: ReasonBelowReorder, value: shortfall},
		{code: ReasonFastMoving, value: cover},
		{code: ReasonRepairDemand, value: repairShare},
	}
	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].value > reasons[j].value
	})
	return reasons[0].code
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
