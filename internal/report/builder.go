// Package report assembles and renders shop reports from a record snapshot.
package report

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"repairdesk/backend/internal/aggregate"
	"repairdesk/backend/internal/costing"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/period"
)

const missingReference = "N/A"

type Input struct {
	ShopID      string
	Selection   period.Selection
	Sales       []domain.Sale
	Repairs     []domain.Repair
	Inventory   []domain.InventoryItem
	Purchases   []domain.Purchase
	Currency    string
	Version     uint64
	GeneratedAt time.Time
}

// Build produces the report document for the selected days. It never fails:
// records with missing data contribute zero.
func Build(in Input) domain.ReportDocument {
	sales := period.Filter(forShop(in.Sales, in.ShopID, func(s domain.Sale) string { return s.ShopID }), in.Selection)
	repairs := period.Filter(forShop(in.Repairs, in.ShopID, func(r domain.Repair) string { return r.ShopID }), in.Selection)
	inventory := forShop(in.Inventory, in.ShopID, func(i domain.InventoryItem) string { return i.ShopID })
	resolver := costing.NewResolver(inventory, in.Purchases)

	doc := domain.ReportDocument{
		Title:           "Daily Report",
		ShopID:          in.ShopID,
		Dates:           in.Selection.Keys(),
		Currency:        in.Currency,
		GeneratedAt:     in.GeneratedAt,
		SnapshotVersion: in.Version,
		Accessories:     zeroTotals(),
		Repairs:         zeroTotals(),
		Transactions:    []domain.TransactionProfit{},
		Payments:        []domain.PaymentReference{},
	}
	if len(doc.Dates) != 1 {
		doc.Title = "Sales Report"
	}

	suppliers := newSupplierLedger()

	for _, sale := range sales {
		lines := resolver.SaleLines(sale)
		cost := decimal.Zero
		for _, line := range lines {
			cost = cost.Add(line.Cost())
			suppliers.add(line, domain.RecordSale, sale.ID)
		}
		tp := profitLine(domain.RecordSale, sale.ID, saleLabel(sale), sale.Total, cost)
		doc.Transactions = append(doc.Transactions, tp)
		doc.Accessories = addProfit(doc.Accessories, tp)

		if ref, ok := salePayment(sale); ok {
			doc.Payments = append(doc.Payments, ref)
		}
	}

	for _, repair := range repairs {
		if repair.IsBillable() {
			lines := resolver.RepairLines(repair)
			cost := repair.OutsourcedCost
			for _, line := range lines {
				cost = cost.Add(line.Cost())
				suppliers.add(line, domain.RecordRepair, repair.ID)
			}
			tp := profitLine(domain.RecordRepair, repair.ID, repairLabel(repair), repair.Revenue(), cost)
			doc.Transactions = append(doc.Transactions, tp)
			doc.Repairs = addProfit(doc.Repairs, tp)
		}

		if ref, ok := repairPayment(repair); ok {
			doc.Payments = append(doc.Payments, ref)
		}
	}

	doc.Overall = doc.Accessories.Plus(doc.Repairs)
	doc.Suppliers = suppliers.summaries()
	doc.PaymentTotals = aggregate.ByPaymentMethod(sales)
	doc.TopProducts = aggregate.ByProduct(sales)
	slices.SortStableFunc(doc.TopProducts, func(a, b domain.ProductTotal) int {
		return b.Revenue.Cmp(a.Revenue)
	})
	doc.Inventory = InventoryStatus(inventory)
	return doc
}

func forShop[T any](records []T, shopID string, shopOf func(T) string) []T {
	if shopID == "" {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if owner := shopOf(rec); owner == "" || owner == shopID {
			out = append(out, rec)
		}
	}
	return out
}

func zeroTotals() domain.CategoryTotals {
	return domain.CategoryTotals{Revenue: decimal.Zero, Cost: decimal.Zero, Profit: decimal.Zero}
}

func profitLine(kind domain.RecordKind, id, label string, revenue, cost decimal.Decimal) domain.TransactionProfit {
	return domain.TransactionProfit{
		Kind:    kind,
		ID:      id,
		Label:   label,
		Revenue: revenue,
		Cost:    cost,
		Profit:  revenue.Sub(cost),
	}
}

func addProfit(totals domain.CategoryTotals, tp domain.TransactionProfit) domain.CategoryTotals {
	totals.Count++
	totals.Revenue = totals.Revenue.Add(tp.Revenue)
	totals.Cost = totals.Cost.Add(tp.Cost)
	totals.Profit = totals.Profit.Add(tp.Profit)
	return totals
}

func saleLabel(sale domain.Sale) string {
	names := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return string(sale.Kind) + " sale"
	}
	return strings.Join(names, ", ")
}

func repairLabel(repair domain.Repair) string {
	label := strings.TrimSpace(repair.DeviceModel)
	if repair.TicketNumber != "" {
		label = "#" + repair.TicketNumber + " " + label
	}
	return strings.TrimSpace(label)
}

func salePayment(sale domain.Sale) (domain.PaymentReference, bool) {
	if sale.PaymentKind == "" && sale.PaymentReference == "" {
		return domain.PaymentReference{}, false
	}
	reference := strings.TrimSpace(sale.PaymentReference)
	if reference == "" {
		reference = missingReference
	}
	amount := sale.AmountPaid
	if !amount.IsPositive() {
		amount = sale.Total
	}
	return domain.PaymentReference{
		RecordKind: domain.RecordSale,
		RecordID:   sale.ID,
		Method:     sale.PaymentKind,
		Reference:  reference,
		Amount:     amount,
		Bank:       sale.Bank,
	}, true
}

func repairPayment(repair domain.Repair) (domain.PaymentReference, bool) {
	if repair.PaymentKind == "" && repair.PaymentReference == "" {
		return domain.PaymentReference{}, false
	}
	return domain.PaymentReference{
		RecordKind: domain.RecordRepair,
		RecordID:   repair.ID,
		Method:     repair.PaymentKind,
		Reference:  strings.TrimSpace(repair.PaymentReference),
		Amount:     repair.AmountPaid,
		Bank:       repair.Bank,
	}, true
}

type supplierEntry struct {
	summary   domain.SupplierSummary
	itemKeys  map[string]struct{}
	repairIDs map[string]struct{}
	saleIDs   map[string]struct{}
}

type supplierLedger struct {
	breakdown *aggregate.Breakdown[string, *supplierEntry]
}

func newSupplierLedger() *supplierLedger {
	return &supplierLedger{breakdown: aggregate.NewBreakdown[string, *supplierEntry]()}
}

func (l *supplierLedger) add(line costing.Line, kind domain.RecordKind, recordID string) {
	l.breakdown.Update(line.Supplier, func(entry *supplierEntry) *supplierEntry {
		if entry == nil {
			entry = &supplierEntry{
				summary:   domain.SupplierSummary{Supplier: line.Supplier, TotalCost: decimal.Zero, Items: []string{}},
				itemKeys:  map[string]struct{}{},
				repairIDs: map[string]struct{}{},
				saleIDs:   map[string]struct{}{},
			}
		}
		entry.summary.TotalCost = entry.summary.TotalCost.Add(line.Cost())
		key := cases.Fold().String(strings.TrimSpace(line.Name))
		if _, seen := entry.itemKeys[key]; !seen {
			entry.itemKeys[key] = struct{}{}
			entry.summary.Items = append(entry.summary.Items, line.Name)
		}
		if kind == domain.RecordRepair {
			entry.repairIDs[recordID] = struct{}{}
		} else {
			entry.saleIDs[recordID] = struct{}{}
		}
		return entry
	})
}

// summaries returns suppliers by descending total cost; ties keep the order
// in which suppliers were first seen.
func (l *supplierLedger) summaries() []domain.SupplierSummary {
	out := make([]domain.SupplierSummary, 0, l.breakdown.Len())
	l.breakdown.Each(func(_ string, entry *supplierEntry) {
		entry.summary.RepairCount = len(entry.repairIDs)
		entry.summary.SaleCount = len(entry.saleIDs)
		out = append(out, entry.summary)
	})
	slices.SortStableFunc(out, func(a, b domain.SupplierSummary) int {
		return b.TotalCost.Cmp(a.TotalCost)
	})
	return out
}

func StockLevelOf(item domain.InventoryItem) domain.StockLevel {
	switch {
	case item.Stock <= 0:
		return domain.StockOut
	case item.Stock <= item.ReorderThreshold:
		return domain.StockLow
	default:
		return domain.StockAdequate
	}
}

func InventoryStatus(items []domain.InventoryItem) domain.InventoryStatus {
	status := domain.InventoryStatus{OutOfStock: []domain.StockEntry{}, LowStock: []domain.StockEntry{}}
	for _, item := range items {
		level := StockLevelOf(item)
		entry := domain.StockEntry{Name: item.Name, Stock: item.Stock, Threshold: item.ReorderThreshold, Level: level}
		switch level {
		case domain.StockOut:
			status.OutOfStock = append(status.OutOfStock, entry)
		case domain.StockLow:
			status.LowStock = append(status.LowStock, entry)
		default:
			status.Adequate++
		}
	}
	return status
}
