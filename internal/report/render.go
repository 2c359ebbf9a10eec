package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"repairdesk/backend/internal/domain"
)

// emphasisMarker wraps headings in bold output (chat-style bold).
const emphasisMarker = "*"

type textWriter struct {
	b        strings.Builder
	bold     bool
	printer  *message.Printer
	currency string
}

func newTextWriter(bold bool, currency string) *textWriter {
	return &textWriter{bold: bold, printer: message.NewPrinter(language.English), currency: currency}
}

func (w *textWriter) heading(title string) {
	if w.b.Len() > 0 {
		w.b.WriteString("\n")
	}
	w.line(w.emph(strings.ToUpper(title)))
}

func (w *textWriter) emph(s string) string {
	if !w.bold {
		return s
	}
	return emphasisMarker + s + emphasisMarker
}

func (w *textWriter) line(format string, args ...any) {
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteString("\n")
}

// total writes an emphasised "label: amount" line.
func (w *textWriter) total(label string, d decimal.Decimal) {
	w.line(w.emph(label + ": " + w.money(d)))
}

func (w *textWriter) money(d decimal.Decimal) string {
	amount := FormatAmount(w.printer, d)
	if w.currency == "" {
		return amount
	}
	return w.currency + " " + amount
}

func (w *textWriter) String() string { return w.b.String() }

// FormatAmount renders d with English thousands grouping. Whole amounts have
// no fraction digits; anything else is shown to two places.
func FormatAmount(p *message.Printer, d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return p.Sprintf("%d", d.IntPart())
	}
	f, _ := d.Round(2).Float64()
	return p.Sprintf("%.2f", f)
}

// Render produces the shareable text form of a report. The bold and plain
// variants differ only by emphasis markers.
func Render(doc domain.ReportDocument, bold bool) string {
	w := newTextWriter(bold, doc.Currency)

	w.heading(doc.Title)
	w.line("Shop: %s", doc.ShopID)
	w.line("Date: %s", strings.Join(doc.Dates, ", "))
	if !doc.GeneratedAt.IsZero() {
		w.line("Generated: %s", doc.GeneratedAt.Format("2006-01-02 15:04"))
	}

	writeCategory(w, "Accessories", doc.Accessories)
	writeCategory(w, "Repairs", doc.Repairs)
	writeCategory(w, "Total", doc.Overall)

	if len(doc.Transactions) > 0 {
		w.heading("Transactions")
		for _, tp := range doc.Transactions {
			w.line("- %s %s: revenue %s, cost %s, profit %s",
				tp.Kind, tp.Label, w.money(tp.Revenue), w.money(tp.Cost), w.money(tp.Profit))
		}
	}

	if len(doc.Suppliers) > 0 {
		w.heading("Suppliers")
		for _, s := range doc.Suppliers {
			w.line("- %s: %s (%s), repairs %d, sales %d",
				s.Supplier, w.money(s.TotalCost), strings.Join(s.Items, ", "), s.RepairCount, s.SaleCount)
		}
	}

	if len(doc.Payments) > 0 {
		w.heading("Payments")
		for _, p := range doc.Payments {
			method := string(p.Method)
			if method == "" {
				method = "unspecified"
			}
			entry := fmt.Sprintf("- %s %s ref %s: %s", p.RecordKind, method, displayReference(p.Reference), w.money(p.Amount))
			if p.Bank != "" {
				entry += " (" + p.Bank + ")"
			}
			w.line(entry)
		}
	}

	if len(doc.PaymentTotals) > 0 {
		w.heading("Payment Totals")
		for _, pt := range doc.PaymentTotals {
			w.line("- %s: %d sale(s), %s", pt.Method, pt.Count, w.money(pt.Amount))
		}
	}

	if len(doc.TopProducts) > 0 {
		w.heading("Top Products")
		for _, p := range doc.TopProducts {
			w.line("- %s x%s: %s", p.Name, w.printer.Sprintf("%d", p.Quantity), w.money(p.Revenue))
		}
	}

	w.heading("Inventory")
	w.line("Out of stock: %s", stockNames(doc.Inventory.OutOfStock, false))
	w.line("Low stock: %s", stockNames(doc.Inventory.LowStock, true))
	w.line("Adequate: %d", doc.Inventory.Adequate)

	return w.String()
}

func writeCategory(w *textWriter, title string, totals domain.CategoryTotals) {
	w.heading(title)
	w.line("Transactions: %d", totals.Count)
	w.total("Revenue", totals.Revenue)
	w.total("Cost", totals.Cost)
	w.total("Profit", totals.Profit)
}

func displayReference(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return "-"
	}
	return ref
}

func stockNames(entries []domain.StockEntry, withLevels bool) string {
	if len(entries) == 0 {
		return "none"
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if withLevels {
			names = append(names, fmt.Sprintf("%s (%d/%d)", e.Name, e.Stock, e.Threshold))
		} else {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, ", ")
}
