package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/archive"
	"repairdesk/backend/internal/cache"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/service"
	"repairdesk/backend/internal/store/memory"
)

// newTestAPI wires the full request path over the seeded in-memory store.
func newTestAPI(t *testing.T) (http.Handler, *recordstore.Store) {
	t.Helper()

	repo := memory.NewSeeded()
	records := recordstore.New(repo)
	_, err := records.Load(context.Background())
	require.NoError(t, err)

	svc := service.New(records, repo, cache.NoopReportCache{}, archive.NewMemoryArchive(), service.Options{
		DefaultShopID: "main-shop",
		Currency:      "UGX",
		Location:      time.Local,
	})
	return New(svc, "*").Handler(), records
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandleHealth(t *testing.T) {
	h, records := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, records.Snapshot().Version, body["snapshot_version"])
}

func TestSecurityHeadersAreSet(t *testing.T) {
	h, _ := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "route not found")

	rec = do(t, h, http.MethodPut, "/api/v1/sales", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateAndListSales(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{
		"items":   []map[string]any{{"name": "Phone Case", "quantity": 2, "unit_price": "12000"}},
		"payment": map[string]any{"kind": "cash"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[domain.Sale](t, rec)
	assert.Equal(t, "24000", sale.Total.String())
	assert.Equal(t, domain.PaymentPaid, sale.PaymentStatus)

	rec = do(t, h, http.MethodGet, "/api/v1/sales?shop_id=main-shop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Sales []domain.Sale `json:"sales"`
	}](t, rec)
	assert.Len(t, listed.Sales, 4)

	rec = do(t, h, http.MethodDelete, "/api/v1/sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/v1/sales/"+sale.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSaleRejectsBadInput(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{"items": []map[string]any{{"name": "", "quantity": 1, "unit_price": "1"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWholesaleFlow(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/wholesale/main-shop", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/wholesale/main-shop/items", map[string]any{"name": "Phone Case", "quantity": 2, "unit_price": "100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/v1/wholesale/main-shop/items", map[string]any{"name": "Charger 20W", "quantity": 1, "unit_price": "50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	open := decode[domain.Sale](t, rec)
	assert.Equal(t, "250", open.Total.String())
	assert.Equal(t, domain.SaleOpen, open.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/wholesale/main-shop/close", map[string]any{"kind": "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[domain.Sale](t, rec)
	assert.Equal(t, open.ID, closed.ID)
	assert.Equal(t, domain.SaleClosed, closed.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/wholesale/main-shop/close", map[string]any{"kind": "cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRepairEndpoints(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/repairs", map[string]any{
		"ticket_number": "T-3001",
		"customer_name": "Amina",
		"device_model":  "Tecno Spark 10",
		"issue":         "Charging port",
		"labor_cost":    "25000",
		"deposit":       map[string]any{"kind": "mobile_money", "reference": "MM-5", "amount_paid": "10000"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	repair := decode[domain.Repair](t, rec)
	assert.Equal(t, domain.PaymentPartial, repair.PaymentStatus)

	rec = do(t, h, http.MethodPost, "/api/v1/repairs/"+repair.ID+"/status", map[string]any{"status": "diagnosing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/repairs/"+repair.ID+"/status", map[string]any{"status": "received"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/repairs/"+repair.ID+"/payments", map[string]any{"kind": "cash", "amount_paid": "15000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[domain.Repair](t, rec)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)

	rec = do(t, h, http.MethodPost, "/api/v1/repairs/missing/payments", map[string]any{"kind": "cash", "amount_paid": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDailyReportFormats(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/reports/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[domain.ReportDocument](t, rec)
	assert.Equal(t, "Daily Report", doc.Title)
	assert.Len(t, doc.Transactions, 4)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/daily?format=text&bold=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "*DAILY REPORT*"))

	rec = do(t, h, http.MethodGet, "/api/v1/reports/daily?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "section,key,value"))

	rec = do(t, h, http.MethodGet, "/api/v1/reports/daily?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/daily?date=10-05-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultiDayReportTitle(t *testing.T) {
	h, _ := newTestAPI(t)
	today := time.Now().Format("2006-01-02")
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

	rec := do(t, h, http.MethodGet, "/api/v1/reports/daily?date="+yesterday+"&date="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[domain.ReportDocument](t, rec)
	assert.Equal(t, "Sales Report", doc.Title)
	assert.Equal(t, []string{yesterday, today}, doc.Dates)
}

func TestSummaryTrendAndOrphans(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/reports/summary?period=weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[domain.PeriodSummary](t, rec)
	assert.Equal(t, 3, summary.Transactions)
	assert.Equal(t, 2, summary.RepairCount)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/summary?period=hourly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/trend?period=daily&buckets=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trend := decode[struct {
		Points []domain.TrendPoint `json:"points"`
	}](t, rec)
	assert.Len(t, trend.Points, 3)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/trend?period=daily&buckets=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trend = decode[struct {
		Points []domain.TrendPoint `json:"points"`
	}](t, rec)
	assert.Len(t, trend.Points, service.MaxTrendBuckets)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/orphans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sales":[]}`, rec.Body.String())
}

func TestCloseDayEndpoint(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/reports/daily/close", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[domain.DayCloseResult](t, rec)
	assert.Equal(t, "main-shop", result.ShopID)
	assert.Equal(t, "daily/main-shop/"+result.Date+".txt", result.ArchiveKey)
	assert.Contains(t, result.Report, "DAILY REPORT")
}

func TestReceiptEndpoint(t *testing.T) {
	h, records := newTestAPI(t)
	sale := records.Snapshot().Sales[0]

	rec := do(t, h, http.MethodGet, "/api/v1/receipts/sale/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[domain.ReceiptView](t, rec)
	assert.Equal(t, sale.ID, view.ID)

	rec = do(t, h, http.MethodGet, "/api/v1/receipts/sale/"+sale.ID+"?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodGet, "/api/v1/receipts/invoice/"+sale.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestockEndpoint(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/reports/restock?days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Suggestions []domain.RestockSuggestion `json:"suggestions"`
	}](t, rec)
	require.NotEmpty(t, body.Suggestions)
	assert.Equal(t, "Charger 20W", body.Suggestions[0].Name)
}
