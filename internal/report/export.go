package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"repairdesk/backend/internal/domain"
)

// CSV flattens a report into section,key,value rows.
func CSV(doc domain.ReportDocument) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"section", "key", "value"}}
	for _, date := range doc.Dates {
		rows = append(rows, []string{"summary", "date", date})
	}
	rows = append(rows,
		[]string{"summary", "shop_id", doc.ShopID},
		[]string{"summary", "snapshot_version", strconv.FormatUint(doc.SnapshotVersion, 10)},
	)
	for _, c := range []struct {
		name   string
		totals domain.CategoryTotals
	}{
		{"accessories", doc.Accessories},
		{"repairs", doc.Repairs},
		{"overall", doc.Overall},
	} {
		rows = append(rows,
			[]string{c.name, "count", strconv.Itoa(c.totals.Count)},
			[]string{c.name, "revenue", c.totals.Revenue.StringFixed(2)},
			[]string{c.name, "cost", c.totals.Cost.StringFixed(2)},
			[]string{c.name, "profit", c.totals.Profit.StringFixed(2)},
		)
	}
	for _, s := range doc.Suppliers {
		rows = append(rows, []string{"supplier", s.Supplier, s.TotalCost.StringFixed(2)})
	}
	for _, p := range doc.PaymentTotals {
		rows = append(rows,
			[]string{"payment", string(p.Method) + "_count", strconv.Itoa(p.Count)},
			[]string{"payment", string(p.Method) + "_amount", p.Amount.StringFixed(2)},
		)
	}
	for _, p := range doc.Payments {
		rows = append(rows, []string{"reference", string(p.Method) + ":" + p.Reference, p.Amount.StringFixed(2)})
	}
	for _, e := range doc.Inventory.OutOfStock {
		rows = append(rows, []string{"inventory_out", e.Name, strconv.Itoa(e.Stock)})
	}
	for _, e := range doc.Inventory.LowStock {
		rows = append(rows, []string{"inventory_low", e.Name, strconv.Itoa(e.Stock)})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
