package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleItemRequest struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PaymentRequest struct {
	Kind       PaymentKind     `json:"kind"`
	Reference  string          `json:"reference,omitempty"`
	Bank       string          `json:"bank,omitempty"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type SaleCreateRequest struct {
	ShopID       string            `json:"shop_id"`
	Kind         SaleKind          `json:"kind"`
	CustomerName string            `json:"customer_name,omitempty"`
	Items        []SaleItemRequest `json:"items"`
	ManualTotal  *decimal.Decimal  `json:"manual_total,omitempty"`
	Payment      *PaymentRequest   `json:"payment,omitempty"`
	Timestamp    *time.Time        `json:"timestamp,omitempty"`
}

type RepairCreateRequest struct {
	ShopID            string           `json:"shop_id"`
	TicketNumber      string           `json:"ticket_number,omitempty"`
	CustomerName      string           `json:"customer_name"`
	CustomerPhone     string           `json:"customer_phone,omitempty"`
	DeviceModel       string           `json:"device_model"`
	Issue             string           `json:"issue"`
	Parts             []RepairPart     `json:"parts,omitempty"`
	AdditionalItems   []RepairItem     `json:"additional_items,omitempty"`
	OutsourcedCost    decimal.Decimal  `json:"outsourced_cost"`
	LaborCost         decimal.Decimal  `json:"labor_cost"`
	TotalAgreedAmount *decimal.Decimal `json:"total_agreed_amount,omitempty"`
	Deposit           *PaymentRequest  `json:"deposit,omitempty"`
}

type RepairStatusRequest struct {
	Status RepairStatus `json:"status"`
}

type DayCloseResult struct {
	ShopID     string `json:"shop_id"`
	Date       string `json:"date"`
	ArchiveKey string `json:"archive_key"`
	Report     string `json:"report"`
}
