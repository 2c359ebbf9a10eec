package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is either a Sale or a Repair.
type Record interface {
	RecordKind() RecordKind
	OccurredAt() time.Time
}

func (Sale) RecordKind() RecordKind   { return RecordSale }
func (Repair) RecordKind() RecordKind { return RecordRepair }

type ReceiptLine struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// ReceiptView is the uniform shape printed for both sales and repairs.
type ReceiptView struct {
	Kind          RecordKind      `json:"kind"`
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	ShopID        string          `json:"shop_id"`
	Customer      string          `json:"customer,omitempty"`
	Subject       string          `json:"subject,omitempty"`
	IssuedAt      time.Time       `json:"issued_at"`
	Lines         []ReceiptLine   `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentKind   PaymentKind     `json:"payment_kind,omitempty"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Reference     string          `json:"reference,omitempty"`
}
