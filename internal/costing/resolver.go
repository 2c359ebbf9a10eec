// Package costing attributes a unit cost and a supplier to item names using
// the inventory catalogue and the purchase history.
package costing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"repairdesk/backend/internal/domain"
)

const UnknownSupplier = "Unknown"

type purchaseHit struct {
	cost     decimal.Decimal
	supplier string
	at       int64
}

// Resolver answers cost and supplier lookups. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	inventory map[string]domain.InventoryItem
	purchases map[string]purchaseHit
}

func NewResolver(inventory []domain.InventoryItem, purchases []domain.Purchase) *Resolver {
	r := &Resolver{
		inventory: make(map[string]domain.InventoryItem, len(inventory)),
		purchases: make(map[string]purchaseHit),
	}
	for _, item := range inventory {
		key := normalize(item.Name)
		if key == "" {
			continue
		}
		if _, seen := r.inventory[key]; !seen {
			r.inventory[key] = item
		}
	}
	for _, purchase := range purchases {
		stamp := purchase.PurchasedAt.UnixNano()
		for _, line := range purchase.Items {
			key := normalize(line.Name)
			if key == "" {
				continue
			}
			if prev, ok := r.purchases[key]; ok && prev.at >= stamp {
				continue
			}
			r.purchases[key] = purchaseHit{cost: line.CostPrice, supplier: purchase.Supplier, at: stamp}
		}
	}
	return r
}

func normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// ResolveCost returns the unit cost for name: the admin override, then the
// catalogue cost, then the most recent purchase, else zero.
func (r *Resolver) ResolveCost(name string) decimal.Decimal {
	key := normalize(name)
	if item, ok := r.inventory[key]; ok {
		if item.AdminCostPrice.IsPositive() {
			return item.AdminCostPrice
		}
		if item.CostPrice.IsPositive() {
			return item.CostPrice
		}
	}
	if hit, ok := r.purchases[key]; ok {
		return hit.cost
	}
	return decimal.Zero
}

func (r *Resolver) ResolveSupplier(name string) string {
	key := normalize(name)
	if item, ok := r.inventory[key]; ok && strings.TrimSpace(item.Supplier) != "" {
		return item.Supplier
	}
	if hit, ok := r.purchases[key]; ok && strings.TrimSpace(hit.supplier) != "" {
		return hit.supplier
	}
	return UnknownSupplier
}

// Line is one costed line item.
type Line struct {
	Name     string
	Quantity int
	UnitCost decimal.Decimal
	Supplier string
}

func (l Line) Cost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (r *Resolver) SaleLines(sale domain.Sale) []Line {
	lines := make([]Line, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, Line{
			Name:     item.Name,
			Quantity: item.Quantity,
			UnitCost: r.ResolveCost(item.Name),
			Supplier: r.ResolveSupplier(item.Name),
		})
	}
	return lines
}

// RepairLines costs the parts and additional items of a repair. A part's own
// non-zero cost wins over lookup. Outsourced items that are not also listed
// as parts carry no cost but still name their supplier; outsourced items that
// are listed as parts are already covered by the part line.
func (r *Resolver) RepairLines(repair domain.Repair) []Line {
	lines := make([]Line, 0, len(repair.Parts)+len(repair.AdditionalItems))
	partNames := make(map[string]struct{}, len(repair.Parts))
	for _, part := range repair.Parts {
		partNames[normalize(part.Name)] = struct{}{}
		cost := part.UnitCost
		if cost.IsZero() {
			cost = r.ResolveCost(part.Name)
		}
		lines = append(lines, Line{
			Name:     part.Name,
			Quantity: part.Quantity,
			UnitCost: cost,
			Supplier: r.ResolveSupplier(part.Name),
		})
	}

	for _, extra := range repair.AdditionalItems {
		line := Line{Name: extra.Name, Quantity: extra.Quantity, Supplier: r.ResolveSupplier(extra.Name)}
		switch extra.Source {
		case domain.SourceOutsourced:
			if _, listed := partNames[normalize(extra.Name)]; listed {
				continue
			}
			line.UnitCost = decimal.Zero
		default:
			line.UnitCost = r.ResolveCost(extra.Name)
		}
		lines = append(lines, line)
	}
	return lines
}

// RepairCost is the total cost charged against a repair's revenue: every
// costed line plus the separately recorded outsourced cost.
func (r *Resolver) RepairCost(repair domain.Repair) decimal.Decimal {
	total := repair.OutsourcedCost
	for _, line := range r.RepairLines(repair) {
		total = total.Add(line.Cost())
	}
	return total
}

func (r *Resolver) SaleCost(sale domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.SaleLines(sale) {
		total = total.Add(line.Cost())
	}
	return total
}
