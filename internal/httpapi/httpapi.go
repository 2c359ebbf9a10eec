package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/report"
	"repairdesk/backend/internal/service"
)

type API struct {
	service       *service.Service
	allowedOrigin string
	log           zerolog.Logger
}

func New(svc *service.Service, allowedOrigin string) *API {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
		log:           logger.Component("http"),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(a.securityHeaders)
	r.Use(a.requestLogger)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { writeMethodNotAllowed(w) })
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", a.handleSnapshot)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", a.handleListSales)
			r.With(middleware.AllowContentType("application/json")).Post("/", a.handleCreateSale)
			r.Delete("/{id}", a.handleDeleteSale)
		})

		r.Route("/wholesale/{shopID}", func(r chi.Router) {
			r.Get("/", a.handleOpenWholesale)
			r.Post("/items", a.handleAddWholesaleItem)
			r.Post("/close", a.handleCloseWholesale)
		})

		r.Route("/repairs", func(r chi.Router) {
			r.Get("/", a.handleListRepairs)
			r.With(middleware.AllowContentType("application/json")).Post("/", a.handleCreateRepair)
			r.Post("/{id}/status", a.handleRepairStatus)
			r.Post("/{id}/payments", a.handleRepairPayment)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", a.handleDailyReport)
			r.Post("/daily/close", a.handleCloseDay)
			r.Get("/summary", a.handlePeriodSummary)
			r.Get("/trend", a.handleTrend)
			r.Get("/orphans", a.handleOrphans)
			r.Get("/restock", a.handleRestock)
		})

		r.Get("/receipts/{kind}/{id}", a.handleReceipt)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"at":               time.Now().UTC().Format(time.RFC3339),
		"snapshot_version": a.service.Snapshot().Version,
	})
}

func (a *API) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := a.service.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"counts": map[string]int{
			"sales":     len(snap.Sales),
			"repairs":   len(snap.Repairs),
			"inventory": len(snap.Inventory),
			"purchases": len(snap.Purchases),
		},
	})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales := a.service.ListSales(r.Context(), r.URL.Query().Get("shop_id"))
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, task, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := a.service.DeleteSale(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (a *API) handleOpenWholesale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.OpenWholesaleSale(r.Context(), chi.URLParam(r, "shopID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleAddWholesaleItem(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, task, err := a.service.AddWholesaleItem(r.Context(), chi.URLParam(r, "shopID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleCloseWholesale(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, task, err := a.service.CloseWholesaleSale(r.Context(), chi.URLParam(r, "shopID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleListRepairs(w http.ResponseWriter, r *http.Request) {
	repairs := a.service.ListRepairs(r.Context(), r.URL.Query().Get("shop_id"))
	writeJSON(w, http.StatusOK, map[string]any{"repairs": repairs})
}

func (a *API) handleCreateRepair(w http.ResponseWriter, r *http.Request) {
	var req domain.RepairCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, task, err := a.service.RecordRepair(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repair)
}

func (a *API) handleRepairStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.RepairStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, task, err := a.service.AdvanceRepairStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repair)
}

func (a *API) handleRepairPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, task, err := a.service.RecordRepairPayment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := awaitWrite(r.Context(), task); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repair)
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dates, err := a.parseDates(query["date"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	doc, err := a.service.Report(r.Context(), query.Get("shop_id"), dates...)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	switch format {
	case "csv":
		body, err := report.CSV(doc)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"report-%s-%s.csv\"", doc.ShopID, strings.Join(doc.Dates, "_")))
		_, _ = w.Write([]byte(body))
	case "text":
		writeText(w, report.Render(doc, parseBool(query.Get("bold"))))
	case "", "json":
		writeJSON(w, http.StatusOK, doc)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
	}
}

func (a *API) handleCloseDay(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	day, err := a.service.ParseDay(query.Get("date"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	result, err := a.service.CloseDay(r.Context(), query.Get("shop_id"), day)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ref := time.Time{}
	if raw := query.Get("date"); raw != "" {
		day, err := a.service.ParseDay(raw)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		// End of the requested day, so the whole day falls inside the window.
		ref = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	summary, err := a.service.PeriodSummary(r.Context(), query.Get("shop_id"), ref, granularityParam(query.Get("period")))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleTrend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	buckets := parsePositiveLimit(query.Get("buckets"), service.DefaultTrendBuckets, service.MaxTrendBuckets)

	points, err := a.service.Trend(r.Context(), query.Get("shop_id"), granularityParam(query.Get("period")), buckets)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

func (a *API) handleOrphans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	day, err := a.service.ParseDay(query.Get("date"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": a.service.OrphanedSales(r.Context(), query.Get("shop_id"), day)})
}

func (a *API) handleRestock(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days := parsePositiveLimit(query.Get("days"), 0, 365)
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": a.service.RestockSuggestions(r.Context(), query.Get("shop_id"), days),
	})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	kind := domain.RecordKind(strings.ToLower(chi.URLParam(r, "kind")))
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	if strings.EqualFold(query.Get("format"), "text") {
		text, err := a.service.RenderReceipt(r.Context(), kind, id, parseBool(query.Get("bold")))
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeText(w, text)
		return
	}

	view, err := a.service.Receipt(r.Context(), kind, id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) parseDates(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		raw = []string{""}
	}
	dates := make([]time.Time, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			day, err := a.service.ParseDay(part)
			if err != nil {
				return nil, err
			}
			dates = append(dates, day)
		}
	}
	return dates, nil
}

func granularityParam(raw string) domain.Granularity {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.Daily
	}
	return domain.Granularity(raw)
}

// awaitWrite waits for the dispatched write so the response reflects what was
// stored. If the client goes away the write still completes in the background.
func awaitWrite(ctx context.Context, task *recordstore.Task) error {
	if task == nil {
		return nil
	}
	return task.Wait(ctx)
}
