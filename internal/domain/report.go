package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

func (g Granularity) Valid() bool {
	switch g {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

type TrendPoint struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

type CategoryTotals struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

func (c CategoryTotals) Plus(other CategoryTotals) CategoryTotals {
	return CategoryTotals{
		Count:   c.Count + other.Count,
		Revenue: c.Revenue.Add(other.Revenue),
		Cost:    c.Cost.Add(other.Cost),
		Profit:  c.Profit.Add(other.Profit),
	}
}

type RecordKind string

const (
	RecordSale   RecordKind = "sale"
	RecordRepair RecordKind = "repair"
)

type TransactionProfit struct {
	Kind    RecordKind      `json:"kind"`
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

type SupplierSummary struct {
	Supplier    string          `json:"supplier"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Items       []string        `json:"items"`
	RepairCount int             `json:"repair_count"`
	SaleCount   int             `json:"sale_count"`
}

type PaymentReference struct {
	RecordKind RecordKind      `json:"record_kind"`
	RecordID   string          `json:"record_id"`
	Method     PaymentKind     `json:"method"`
	Reference  string          `json:"reference"`
	Amount     decimal.Decimal `json:"amount"`
	Bank       string          `json:"bank,omitempty"`
}

type PaymentTotal struct {
	Method PaymentKind     `json:"method"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type ProductTotal struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type StockLevel string

const (
	StockOut      StockLevel = "out_of_stock"
	StockLow      StockLevel = "low"
	StockAdequate StockLevel = "adequate"
)

type StockEntry struct {
	Name      string     `json:"name"`
	Stock     int        `json:"stock"`
	Threshold int        `json:"threshold"`
	Level     StockLevel `json:"level"`
}

type InventoryStatus struct {
	OutOfStock []StockEntry `json:"out_of_stock"`
	LowStock   []StockEntry `json:"low_stock"`
	Adequate   int          `json:"adequate"`
}

type ReportDocument struct {
	Title           string              `json:"title"`
	ShopID          string              `json:"shop_id"`
	Dates           []string            `json:"dates"`
	Currency        string              `json:"currency"`
	GeneratedAt     time.Time           `json:"generated_at"`
	SnapshotVersion uint64              `json:"snapshot_version"`
	Accessories     CategoryTotals      `json:"accessories"`
	Repairs         CategoryTotals      `json:"repairs"`
	Overall         CategoryTotals      `json:"overall"`
	Transactions    []TransactionProfit `json:"transactions"`
	Suppliers       []SupplierSummary   `json:"suppliers"`
	Payments        []PaymentReference  `json:"payments"`
	PaymentTotals   []PaymentTotal      `json:"payment_totals"`
	TopProducts     []ProductTotal      `json:"top_products"`
	Inventory       InventoryStatus     `json:"inventory"`
}

type PeriodSummary struct {
	ShopID       string          `json:"shop_id"`
	Granularity  Granularity     `json:"granularity"`
	Reference    time.Time       `json:"reference"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
	Units        int             `json:"units"`
	RepairCount  int             `json:"repair_count"`
	RepairIncome decimal.Decimal `json:"repair_income"`
	ByPayment    []PaymentTotal  `json:"by_payment"`
	ByProduct    []ProductTotal  `json:"by_product"`
}

type RestockSuggestion struct {
	Name          string          `json:"name"`
	Stock         int             `json:"stock"`
	Threshold     int             `json:"threshold"`
	UnitsSold     int             `json:"units_sold"`
	UnitsUsed     int             `json:"units_used_in_repairs"`
	DailyVelocity float64         `json:"daily_velocity"`
	SuggestedQty  int             `json:"suggested_qty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	Supplier      string          `json:"supplier"`
	Reason        string          `json:"reason"`
	Urgency       float64         `json:"urgency"`
}
