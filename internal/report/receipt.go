package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
)

// NewReceiptView normalises a sale or a repair into one printable shape.
func NewReceiptView(rec domain.Record) domain.ReceiptView {
	switch r := rec.(type) {
	case domain.Sale:
		return saleReceipt(r)
	case *domain.Sale:
		return saleReceipt(*r)
	case domain.Repair:
		return repairReceipt(r)
	case *domain.Repair:
		return repairReceipt(*r)
	}
	return domain.ReceiptView{}
}

func saleReceipt(sale domain.Sale) domain.ReceiptView {
	lines := make([]domain.ReceiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, domain.ReceiptLine{
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		})
	}
	return domain.ReceiptView{
		Kind:          domain.RecordSale,
		ID:            sale.ID,
		Number:        shortNumber(sale.ID),
		ShopID:        sale.ShopID,
		Customer:      sale.CustomerName,
		Subject:       string(sale.Kind),
		IssuedAt:      sale.CreatedAt,
		Lines:         lines,
		Total:         sale.Total,
		AmountPaid:    sale.AmountPaid,
		Balance:       sale.Balance,
		PaymentKind:   sale.PaymentKind,
		PaymentStatus: sale.PaymentStatus,
		Reference:     sale.PaymentReference,
	}
}

func repairReceipt(repair domain.Repair) domain.ReceiptView {
	revenue := repair.Revenue()
	description := strings.TrimSpace(repair.DeviceModel + " - " + repair.Issue)
	lines := []domain.ReceiptLine{{
		Description: "Repair: " + strings.Trim(description, " -"),
		Quantity:    1,
		UnitPrice:   revenue,
		Subtotal:    revenue,
	}}
	// Parts and extras are covered by the repair price.
	for _, part := range repair.Parts {
		lines = append(lines, domain.ReceiptLine{
			Description: part.Name,
			Quantity:    part.Quantity,
			UnitPrice:   decimal.Zero,
			Subtotal:    decimal.Zero,
		})
	}
	for _, extra := range repair.AdditionalItems {
		lines = append(lines, domain.ReceiptLine{
			Description: extra.Name,
			Quantity:    extra.Quantity,
			UnitPrice:   decimal.Zero,
			Subtotal:    decimal.Zero,
		})
	}

	number := repair.TicketNumber
	if number == "" {
		number = shortNumber(repair.ID)
	}
	return domain.ReceiptView{
		Kind:          domain.RecordRepair,
		ID:            repair.ID,
		Number:        number,
		ShopID:        repair.ShopID,
		Customer:      repair.CustomerName,
		Subject:       repair.DeviceModel,
		IssuedAt:      repair.CreatedAt,
		Lines:         lines,
		Total:         revenue,
		AmountPaid:    repair.AmountPaid,
		Balance:       repair.Balance,
		PaymentKind:   repair.PaymentKind,
		PaymentStatus: repair.PaymentStatus,
		Reference:     repair.PaymentReference,
	}
}

func shortNumber(id string) string {
	id = strings.ToUpper(id)
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// RenderReceipt prints a receipt as text, with the same emphasis rules as Render.
func RenderReceipt(view domain.ReceiptView, currency string, bold bool) string {
	w := newTextWriter(bold, currency)

	title := "Sales Receipt"
	if view.Kind == domain.RecordRepair {
		title = "Repair Receipt"
	}
	w.heading(title)
	w.line("No: %s", view.Number)
	w.line("Shop: %s", view.ShopID)
	w.line("Date: %s", view.IssuedAt.Format("2006-01-02 15:04"))
	if view.Customer != "" {
		w.line("Customer: %s", view.Customer)
	}

	w.heading("Items")
	for _, l := range view.Lines {
		w.line("%s x%d @ %s = %s", l.Description, l.Quantity, w.money(l.UnitPrice), w.money(l.Subtotal))
	}

	w.heading("Payment")
	w.total("Total", view.Total)
	w.line("Paid: %s", w.money(view.AmountPaid))
	w.line("Balance: %s", w.money(view.Balance))
	status := fmt.Sprintf("Status: %s", view.PaymentStatus)
	if view.PaymentKind != "" {
		status += fmt.Sprintf(" via %s", view.PaymentKind)
	}
	if view.Reference != "" {
		status += fmt.Sprintf(" (ref %s)", view.Reference)
	}
	w.line(status)
	return w.String()
}
