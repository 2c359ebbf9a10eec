package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SaleKind string

const (
	SaleKindInShop    SaleKind = "in_shop"
	SaleKindRetail    SaleKind = "retail"
	SaleKindWholesale SaleKind = "wholesale"
)

type PaymentKind string

const (
	PaymentCash        PaymentKind = "cash"
	PaymentMobileMoney PaymentKind = "mobile_money"
	PaymentBankDeposit PaymentKind = "bank_deposit"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentCash, PaymentMobileMoney, PaymentBankDeposit:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type SaleStatus string

const (
	SaleOpen   SaleStatus = "open"
	SaleClosed SaleStatus = "closed"
)

type SaleItem struct {
	ID        string          `json:"id" db:"id"`
	SaleID    string          `json:"sale_id" db:"sale_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID               string           `json:"id"`
	ShopID           string           `json:"shop_id"`
	Kind             SaleKind         `json:"kind"`
	Status           SaleStatus       `json:"status"`
	Items            []SaleItem       `json:"items"`
	Total            decimal.Decimal  `json:"total"`
	ManualTotal      *decimal.Decimal `json:"manual_total,omitempty"`
	PaymentKind      PaymentKind      `json:"payment_kind,omitempty"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	Bank             string           `json:"bank,omitempty"`
	AmountPaid       decimal.Decimal  `json:"amount_paid"`
	Balance          decimal.Decimal  `json:"balance"`
	CustomerName     string           `json:"customer_name,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
}

func (s Sale) OccurredAt() time.Time { return s.CreatedAt }

// LinesTotal is the sum of line subtotals regardless of any manual override.
func (s Sale) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (s Sale) Units() int {
	units := 0
	for _, item := range s.Items {
		units += item.Quantity
	}
	return units
}

// Recompute derives Total, Balance and PaymentStatus from the lines, the
// manual override and the amount paid.
func (s *Sale) Recompute() {
	if s.ManualTotal != nil {
		s.Total = *s.ManualTotal
	} else {
		s.Total = s.LinesTotal()
	}
	s.Balance = decimal.Max(s.Total.Sub(s.AmountPaid), decimal.Zero)
	s.PaymentStatus = paymentStatusFor(s.Total, s.AmountPaid)
}

type RepairStatus string

const (
	RepairReceived      RepairStatus = "received"
	RepairDiagnosing    RepairStatus = "diagnosing"
	RepairAwaitingParts RepairStatus = "awaiting_parts"
	RepairInProgress    RepairStatus = "in_progress"
	RepairCompleted     RepairStatus = "completed"
	RepairCollected     RepairStatus = "collected"
)

var repairStatusRank = map[RepairStatus]int{
	RepairReceived:      0,
	RepairDiagnosing:    1,
	RepairAwaitingParts: 2,
	RepairInProgress:    3,
	RepairCompleted:     4,
	RepairCollected:     5,
}

// Rank returns the lifecycle position of the status, or -1 when unknown.
func (s RepairStatus) Rank() int {
	rank, ok := repairStatusRank[s]
	if !ok {
		return -1
	}
	return rank
}

func (s RepairStatus) CanAdvanceTo(next RepairStatus) bool {
	return s.Rank() >= 0 && next.Rank() > s.Rank()
}

type ItemSource string

const (
	SourceInventory  ItemSource = "inventory"
	SourceOutsourced ItemSource = "outsourced"
)

type RepairPart struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type RepairItem struct {
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	Source   ItemSource `json:"source"`
}

type Repair struct {
	ID                string           `json:"id"`
	ShopID            string           `json:"shop_id"`
	TicketNumber      string           `json:"ticket_number,omitempty"`
	CustomerName      string           `json:"customer_name"`
	CustomerPhone     string           `json:"customer_phone,omitempty"`
	DeviceModel       string           `json:"device_model"`
	Issue             string           `json:"issue"`
	Status            RepairStatus     `json:"status"`
	Parts             []RepairPart     `json:"parts"`
	AdditionalItems   []RepairItem     `json:"additional_items"`
	OutsourcedCost    decimal.Decimal  `json:"outsourced_cost"`
	LaborCost         decimal.Decimal  `json:"labor_cost"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	TotalAgreedAmount *decimal.Decimal `json:"total_agreed_amount,omitempty"`
	AmountPaid        decimal.Decimal  `json:"amount_paid"`
	Balance           decimal.Decimal  `json:"balance"`
	PaymentStatus     PaymentStatus    `json:"payment_status"`
	PaymentKind       PaymentKind      `json:"payment_kind,omitempty"`
	PaymentReference  string           `json:"payment_reference,omitempty"`
	Bank              string           `json:"bank,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
}

func (r Repair) OccurredAt() time.Time { return r.CreatedAt }

// IsBillable reports whether the record is a ticketed repair rather than a
// deposit-only entry.
func (r Repair) IsBillable() bool {
	return strings.TrimSpace(r.TicketNumber) != ""
}

// Revenue is the agreed amount when one was negotiated, else the computed total.
func (r Repair) Revenue() decimal.Decimal {
	if r.TotalAgreedAmount != nil {
		return *r.TotalAgreedAmount
	}
	return r.TotalCost
}

func (r Repair) PartsCost() decimal.Decimal {
	total := decimal.Zero
	for _, part := range r.Parts {
		total = total.Add(part.UnitCost.Mul(decimal.NewFromInt(int64(part.Quantity))))
	}
	return total
}

// ComputeTotal recalculates TotalCost, Balance and PaymentStatus.
func (r *Repair) ComputeTotal() {
	r.TotalCost = r.PartsCost().Add(r.OutsourcedCost).Add(r.LaborCost)
	r.Balance = decimal.Max(r.Revenue().Sub(r.AmountPaid), decimal.Zero)
	r.PaymentStatus = paymentStatusFor(r.Revenue(), r.AmountPaid)
}

type InventoryItem struct {
	ID               string          `json:"id" db:"id"`
	ShopID           string          `json:"shop_id" db:"shop_id"`
	Name             string          `json:"name" db:"name"`
	Stock            int             `json:"stock" db:"stock"`
	ReorderThreshold int             `json:"reorder_threshold" db:"reorder_threshold"`
	CostPrice        decimal.Decimal `json:"cost_price" db:"cost_price"`
	AdminCostPrice   decimal.Decimal `json:"admin_cost_price" db:"admin_cost_price"`
	SellingPrice     decimal.Decimal `json:"selling_price" db:"selling_price"`
	Supplier         string          `json:"supplier" db:"supplier"`
}

type PurchaseItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type Purchase struct {
	ID          string         `json:"id"`
	ShopID      string         `json:"shop_id"`
	Supplier    string         `json:"supplier"`
	Items       []PurchaseItem `json:"items"`
	PurchasedAt time.Time      `json:"purchased_at"`
}

func paymentStatusFor(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentPending
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}
