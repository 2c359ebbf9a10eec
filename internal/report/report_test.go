package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"repairdesk/backend/internal/costing"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/period"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var eat = time.FixedZone("EAT", 3*60*60)

func reportDay() time.Time { return time.Date(2024, time.May, 10, 0, 0, 0, 0, eat) }

func fixtureInput() Input {
	day := reportDay()
	agreed := dec("180000")

	sales := []domain.Sale{
		{
			ID: "sale-1", ShopID: "main-shop", Kind: domain.SaleKindInShop,
			Items: []domain.SaleItem{
				{Name: "Screen Protector", Quantity: 3, UnitPrice: dec("10000")},
				{Name: "USB-C Cable", Quantity: 1, UnitPrice: dec("15000")},
			},
			PaymentKind: domain.PaymentMobileMoney,
			CreatedAt:   day.Add(9 * time.Hour),
		},
		{
			ID: "sale-2", ShopID: "main-shop", Kind: domain.SaleKindWholesale,
			Items: []domain.SaleItem{
				{Name: "Phone Case", Quantity: 10, UnitPrice: dec("8000")},
			},
			PaymentKind: domain.PaymentBankDeposit, PaymentReference: "DEP-7781", Bank: "Stanbic",
			AmountPaid: dec("80000"),
			CreatedAt:  day.Add(13 * time.Hour),
		},
		{
			ID: "sale-other-day", ShopID: "main-shop",
			Items:     []domain.SaleItem{{Name: "Phone Case", Quantity: 1, UnitPrice: dec("8000")}},
			CreatedAt: day.AddDate(0, 0, -1).Add(23*time.Hour + 59*time.Minute),
		},
	}
	for i := range sales {
		sales[i].Recompute()
	}

	repairs := []domain.Repair{
		{
			ID: "rep-1", ShopID: "main-shop", TicketNumber: "T-100", DeviceModel: "iPhone 11",
			Parts:     []domain.RepairPart{{Name: "Battery iPhone 11", Quantity: 2, UnitCost: dec("200")}},
			TotalCost: dec("1000"),
			CreatedAt: day.Add(10 * time.Hour),
		},
		{
			ID: "rep-2", ShopID: "main-shop", TicketNumber: "T-101", DeviceModel: "Galaxy A52",
			Parts: []domain.RepairPart{{Name: "Galaxy A52 Screen", Quantity: 1}},
			AdditionalItems: []domain.RepairItem{
				{Name: "Back Glass", Quantity: 1, Source: domain.SourceOutsourced},
			},
			OutsourcedCost:    dec("20000"),
			TotalCost:         dec("150000"),
			TotalAgreedAmount: &agreed,
			AmountPaid:        dec("100000"), PaymentKind: domain.PaymentCash,
			CreatedAt: day.Add(11 * time.Hour),
		},
		{
			ID: "rep-deposit", ShopID: "main-shop", DeviceModel: "Tecno Spark",
			AmountPaid: dec("5000"), PaymentKind: domain.PaymentMobileMoney, PaymentReference: "MM-55",
			CreatedAt: day.Add(12 * time.Hour),
		},
	}

	inventory := []domain.InventoryItem{
		{Name: "Screen Protector", Stock: 0, ReorderThreshold: 5, CostPrice: dec("3000"), Supplier: "Glassworks"},
		{Name: "USB-C Cable", Stock: 4, ReorderThreshold: 5, CostPrice: dec("6000"), Supplier: "Cable Hub"},
		{Name: "Phone Case", Stock: 40, ReorderThreshold: 5, CostPrice: dec("4500"), Supplier: "Case World"},
		{Name: "Galaxy A52 Screen", Stock: 5, ReorderThreshold: 5, CostPrice: dec("70000"), Supplier: "Parts Direct"},
	}
	purchases := []domain.Purchase{
		{Supplier: "Battery Depot", PurchasedAt: day.AddDate(0, -1, 0), Items: []domain.PurchaseItem{{Name: "Battery iPhone 11", CostPrice: dec("250")}}},
		{Supplier: "Glass Fixers", PurchasedAt: day.AddDate(0, 0, -3), Items: []domain.PurchaseItem{{Name: "Back Glass", CostPrice: dec("20000")}}},
	}

	return Input{
		ShopID:      "main-shop",
		Selection:   period.Days(eat, day),
		Sales:       sales,
		Repairs:     repairs,
		Inventory:   inventory,
		Purchases:   purchases,
		Currency:    "UGX",
		Version:     7,
		GeneratedAt: day.Add(20 * time.Hour),
	}
}

func TestRepairProfitUsesTotalCostWhenNoAgreedAmount(t *testing.T) {
	in := fixtureInput()
	in.Sales = nil
	in.Repairs = in.Repairs[:1]

	doc := Build(in)
	require.Len(t, doc.Transactions, 1)
	assert.Equal(t, "1000", doc.Transactions[0].Revenue.String())
	assert.Equal(t, "400", doc.Transactions[0].Cost.String())
	assert.Equal(t, "600", doc.Transactions[0].Profit.String())
	assert.Equal(t, "600", doc.Repairs.Profit.String())
}

func TestBuildSplitsCategories(t *testing.T) {
	doc := Build(fixtureInput())

	assert.Equal(t, "Daily Report", doc.Title)
	assert.Equal(t, []string{"2024-05-10"}, doc.Dates)
	assert.Equal(t, uint64(7), doc.SnapshotVersion)

	// 3x3000 + 6000 and 10x4500
	assert.Equal(t, 2, doc.Accessories.Count)
	assert.Equal(t, "125000", doc.Accessories.Revenue.String())
	assert.Equal(t, "60000", doc.Accessories.Cost.String())
	assert.Equal(t, "65000", doc.Accessories.Profit.String())

	// rep-1: 1000 - 400; rep-2: 180000 - (70000 + 0 + 20000)
	assert.Equal(t, 2, doc.Repairs.Count)
	assert.Equal(t, "181000", doc.Repairs.Revenue.String())
	assert.Equal(t, "90400", doc.Repairs.Cost.String())
	assert.Equal(t, "90600", doc.Repairs.Profit.String())

	assert.Equal(t, "306000", doc.Overall.Revenue.String())
	assert.Equal(t, "155600", doc.Overall.Profit.String())
}

func TestSupplierSummaryMatchesResolvedLineCosts(t *testing.T) {
	in := fixtureInput()
	doc := Build(in)

	resolver := costing.NewResolver(in.Inventory, in.Purchases)
	want := decimal.Zero
	for _, sale := range period.Filter(in.Sales, in.Selection) {
		for _, line := range resolver.SaleLines(sale) {
			want = want.Add(line.Cost())
		}
	}
	for _, repair := range period.Filter(in.Repairs, in.Selection) {
		if !repair.IsBillable() {
			continue
		}
		for _, line := range resolver.RepairLines(repair) {
			want = want.Add(line.Cost())
		}
	}

	got := decimal.Zero
	for _, s := range doc.Suppliers {
		got = got.Add(s.TotalCost)
	}
	assert.True(t, want.Equal(got), "supplier total %s, line total %s", got, want)

	require.NotEmpty(t, doc.Suppliers)
	assert.Equal(t, "Parts Direct", doc.Suppliers[0].Supplier)
	for i := 1; i < len(doc.Suppliers); i++ {
		assert.False(t, doc.Suppliers[i].TotalCost.GreaterThan(doc.Suppliers[i-1].TotalCost))
	}

	var glass *domain.SupplierSummary
	for i := range doc.Suppliers {
		if doc.Suppliers[i].Supplier == "Glass Fixers" {
			glass = &doc.Suppliers[i]
		}
	}
	require.NotNil(t, glass, "outsourced item keeps its supplier")
	assert.True(t, glass.TotalCost.IsZero())
	assert.Equal(t, 1, glass.RepairCount)
	assert.Equal(t, 0, glass.SaleCount)
	assert.Equal(t, []string{"Back Glass"}, glass.Items)
}

func TestPaymentReferences(t *testing.T) {
	doc := Build(fixtureInput())

	byRecord := map[string]domain.PaymentReference{}
	for _, p := range doc.Payments {
		byRecord[p.RecordID] = p
	}
	require.Len(t, byRecord, 4)

	assert.Equal(t, "N/A", byRecord["sale-1"].Reference)
	assert.Equal(t, "45000", byRecord["sale-1"].Amount.String())
	assert.Equal(t, "DEP-7781", byRecord["sale-2"].Reference)
	assert.Equal(t, "Stanbic", byRecord["sale-2"].Bank)
	assert.Equal(t, "", byRecord["rep-2"].Reference)
	assert.Equal(t, "MM-55", byRecord["rep-deposit"].Reference)
	assert.Equal(t, "5000", byRecord["rep-deposit"].Amount.String())
}

func TestInventoryStatusClassification(t *testing.T) {
	status := InventoryStatus([]domain.InventoryItem{
		{Name: "A", Stock: 0, ReorderThreshold: 3},
		{Name: "B", Stock: 1, ReorderThreshold: 3},
		{Name: "C", Stock: 3, ReorderThreshold: 3},
		{Name: "D", Stock: 4, ReorderThreshold: 3},
		{Name: "E", Stock: 2, ReorderThreshold: 0},
	})

	require.Len(t, status.OutOfStock, 1)
	assert.Equal(t, "A", status.OutOfStock[0].Name)
	require.Len(t, status.LowStock, 2)
	assert.Equal(t, "B", status.LowStock[0].Name)
	assert.Equal(t, "C", status.LowStock[1].Name)
	assert.Equal(t, 2, status.Adequate)
}

func TestBuildWithoutRecordsIsZeroed(t *testing.T) {
	doc := Build(Input{Selection: period.Days(eat, reportDay())})

	assert.True(t, doc.Overall.Revenue.IsZero())
	assert.Empty(t, doc.Transactions)
	assert.Empty(t, doc.Suppliers)
	assert.Contains(t, Render(doc, false), "Revenue: 0")
}

func TestRenderVariantsDifferOnlyInMarkup(t *testing.T) {
	doc := Build(fixtureInput())

	plain := Render(doc, false)
	bold := Render(doc, true)

	assert.NotEqual(t, plain, bold)
	assert.NotContains(t, plain, emphasisMarker)
	assert.Equal(t, plain, strings.ReplaceAll(bold, emphasisMarker, ""))
	assert.Contains(t, bold, "*DAILY REPORT*")
	assert.Contains(t, bold, "*Revenue: UGX 125,000*")
	assert.Contains(t, plain, "Revenue: UGX 125,000")
	assert.Contains(t, plain, "Out of stock: Screen Protector")
	assert.Contains(t, plain, "Low stock: USB-C Cable (4/5), Galaxy A52 Screen (5/5)")
}

func TestFormatAmountGroupsThousands(t *testing.T) {
	p := message.NewPrinter(language.English)

	assert.Equal(t, "1,234,567", FormatAmount(p, dec("1234567")))
	assert.Equal(t, "1,234.50", FormatAmount(p, dec("1234.5")))
	assert.Equal(t, "0", FormatAmount(p, decimal.Zero))
	assert.Equal(t, "-12,000", FormatAmount(p, dec("-12000")))
}

func TestCSVExport(t *testing.T) {
	out, err := CSV(Build(fixtureInput()))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "section,key,value\n"))
	assert.Contains(t, out, "summary,date,2024-05-10\n")
	assert.Contains(t, out, "overall,revenue,306000.00\n")
	assert.Contains(t, out, "reference,bank_deposit:DEP-7781,80000.00\n")
}

func TestReceiptViewNormalisesBothRecordKinds(t *testing.T) {
	in := fixtureInput()

	saleView := NewReceiptView(in.Sales[1])
	assert.Equal(t, domain.RecordSale, saleView.Kind)
	require.Len(t, saleView.Lines, 1)
	assert.Equal(t, "80000", saleView.Lines[0].Subtotal.String())
	assert.Equal(t, domain.PaymentPaid, saleView.PaymentStatus)

	repairView := NewReceiptView(&in.Repairs[1])
	assert.Equal(t, domain.RecordRepair, repairView.Kind)
	assert.Equal(t, "T-101", repairView.Number)
	assert.Equal(t, "180000", repairView.Total.String())
	require.Len(t, repairView.Lines, 3)
	assert.Equal(t, "Repair: Galaxy A52", repairView.Lines[0].Description)
	assert.Equal(t, "Galaxy A52 Screen", repairView.Lines[1].Description)
	assert.Equal(t, "Back Glass", repairView.Lines[2].Description)
	for _, l := range repairView.Lines[1:] {
		assert.True(t, l.Subtotal.IsZero(), l.Description)
	}

	plain := RenderReceipt(repairView, "UGX", false)
	bold := RenderReceipt(repairView, "UGX", true)
	assert.Equal(t, plain, strings.ReplaceAll(bold, emphasisMarker, ""))
	assert.Contains(t, plain, "Total: UGX 180,000")
	assert.Contains(t, bold, "*Total: UGX 180,000*")
	assert.Contains(t, plain, "Galaxy A52 Screen x1 @ UGX 0 = UGX 0")
}
