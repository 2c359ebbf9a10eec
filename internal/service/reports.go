package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/aggregate"
	"repairdesk/backend/internal/archive"
	"repairdesk/backend/internal/cache"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/period"
	"repairdesk/backend/internal/report"
	"repairdesk/backend/internal/restock"
	"repairdesk/backend/internal/store"
)

// Trend bucket limits shared with callers that parse bucket counts.
const (
	DefaultTrendBuckets = 7
	MaxTrendBuckets     = 60
)

const (
	defaultLookbackDays = 30
	defaultCoverDays    = 14
)

// shopPurger is implemented by caches that can drop every entry for a shop.
type shopPurger interface {
	PurgeShop(ctx context.Context, shopID string) (int, error)
}

// Report builds the report for the given local days, today when none are
// given. Documents are cached per snapshot version; cache failures only cost
// a rebuild.
func (s *Service) Report(ctx context.Context, shopID string, dates ...time.Time) (domain.ReportDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReportDocument{}, err
	}
	shopID = s.shopOrDefault(shopID)
	if len(dates) == 0 {
		dates = []time.Time{s.clock()}
	}
	sel := period.Days(s.loc, dates...)
	snap := s.records.Snapshot()
	key := cache.ReportKey(shopID, strings.Join(sel.Keys(), "+"), snap.Epoch, snap.Version)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	} else if ok {
		return *cached, nil
	}

	doc := report.Build(report.Input{
		ShopID:      shopID,
		Selection:   sel,
		Sales:       snap.Sales,
		Repairs:     snap.Repairs,
		Inventory:   snap.Inventory,
		Purchases:   snap.Purchases,
		Currency:    s.currency,
		Version:     snap.Version,
		GeneratedAt: s.clock(),
	})

	if err := s.cache.Set(ctx, key, &doc, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return doc, nil
}

func (s *Service) DailyReport(ctx context.Context, shopID string, date time.Time) (domain.ReportDocument, error) {
	return s.Report(ctx, shopID, date)
}

func (s *Service) RenderDailyReport(ctx context.Context, shopID string, date time.Time, bold bool) (string, error) {
	doc, err := s.DailyReport(ctx, shopID, date)
	if err != nil {
		return "", err
	}
	return report.Render(doc, bold), nil
}

func (s *Service) DailyReportCSV(ctx context.Context, shopID string, date time.Time) (string, error) {
	doc, err := s.DailyReport(ctx, shopID, date)
	if err != nil {
		return "", err
	}
	return report.CSV(doc)
}

// ParseDay resolves a YYYY-MM-DD query value in the service location.
func (s *Service) ParseDay(raw string) (time.Time, error) {
	day, err := period.ParseDay(strings.TrimSpace(raw), s.clock(), s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return day, nil
}

// PeriodSummary totals the shop's sales and repairs in the window ending at
// ref. A zero ref means now.
func (s *Service) PeriodSummary(_ context.Context, shopID string, ref time.Time, g domain.Granularity) (domain.PeriodSummary, error) {
	if !g.Valid() {
		return domain.PeriodSummary{}, fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, g)
	}
	shopID = s.shopOrDefault(shopID)
	if ref.IsZero() {
		ref = s.clock()
	}
	ref = ref.In(s.loc)

	snap := s.records.Snapshot()
	sales := period.SelectByWindow(s.salesFor(snap.Sales, shopID), ref, g)
	repairs := period.SelectByWindow(s.repairsFor(snap.Repairs, shopID), ref, g)

	totals := aggregate.SaleTotals(sales)
	summary := domain.PeriodSummary{
		ShopID:       shopID,
		Granularity:  g,
		Reference:    ref,
		Revenue:      totals.Revenue,
		Transactions: totals.Transactions,
		Units:        totals.Units,
		RepairIncome: decimal.Zero,
		ByPayment:    aggregate.ByPaymentMethod(sales),
		ByProduct:    aggregate.ByProduct(sales),
	}
	for _, repair := range repairs {
		if !repair.IsBillable() {
			continue
		}
		summary.RepairCount++
		summary.RepairIncome = summary.RepairIncome.Add(repair.Revenue())
	}
	return summary, nil
}

// Trend returns n sales revenue buckets ending now, oldest first.
func (s *Service) Trend(_ context.Context, shopID string, g domain.Granularity, n int) ([]domain.TrendPoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, g)
	}
	if n == 0 {
		n = DefaultTrendBuckets
	}
	if n < 0 || n > MaxTrendBuckets {
		return nil, fmt.Errorf("%w: buckets must be between 1 and %d", ErrInvalidRequest, MaxTrendBuckets)
	}
	sales := s.salesFor(s.records.Snapshot().Sales, s.shopOrDefault(shopID))
	return aggregate.Trend(sales, s.clock(), g, n, func(sale domain.Sale) decimal.Decimal { return sale.Total }), nil
}

func (s *Service) Receipt(_ context.Context, kind domain.RecordKind, id string) (domain.ReceiptView, error) {
	snap := s.records.Snapshot()
	switch kind {
	case domain.RecordSale:
		if sale, ok := snap.FindSale(id); ok {
			return report.NewReceiptView(sale), nil
		}
	case domain.RecordRepair:
		if repair, ok := snap.FindRepair(id); ok {
			return report.NewReceiptView(repair), nil
		}
	default:
		return domain.ReceiptView{}, fmt.Errorf("%w: unknown record kind %q", ErrInvalidRequest, kind)
	}
	return domain.ReceiptView{}, store.ErrNotFound
}

func (s *Service) RenderReceipt(ctx context.Context, kind domain.RecordKind, id string, bold bool) (string, error) {
	view, err := s.Receipt(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return report.RenderReceipt(view, s.currency, bold), nil
}

// CloseDay archives the plain-text daily report and drops the shop's cached
// reports.
func (s *Service) CloseDay(ctx context.Context, shopID string, date time.Time) (domain.DayCloseResult, error) {
	shopID = s.shopOrDefault(shopID)
	day := period.DayKey(date, s.loc)

	s.ledger.mu.Lock()
	if slot, ok := s.ledger.slots[ledgerKey(shopID, day)]; ok && slot.sale.Status == domain.SaleOpen {
		s.log.Warn().Str("shop_id", shopID).Str("sale_id", slot.sale.ID).Msg("closing day with an open wholesale sale")
	}
	s.ledger.mu.Unlock()

	text, err := s.RenderDailyReport(ctx, shopID, date, false)
	if err != nil {
		return domain.DayCloseResult{}, err
	}

	key := archive.DailyReportKey(shopID, day)
	if err := s.archive.Put(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return domain.DayCloseResult{}, fmt.Errorf("archive daily report: %w", err)
	}

	if purger, ok := s.cache.(shopPurger); ok {
		if removed, err := purger.PurgeShop(ctx, shopID); err != nil {
			s.log.Warn().Err(err).Str("shop_id", shopID).Msg("report cache purge failed")
		} else {
			s.log.Debug().Int("removed", removed).Str("shop_id", shopID).Msg("report cache purged")
		}
	}

	s.log.Info().Str("shop_id", shopID).Str("date", day).Str("key", key).Msg("day closed")
	return domain.DayCloseResult{ShopID: shopID, Date: day, ArchiveKey: key, Report: text}, nil
}

// OrphanedSales lists closed sales on date that carry a positive total but no
// line items, which is what a failed item insert leaves behind.
func (s *Service) OrphanedSales(_ context.Context, shopID string, date time.Time) []domain.Sale {
	sel := period.Days(s.loc, date)
	sales := period.Filter(s.salesFor(s.records.Snapshot().Sales, s.shopOrDefault(shopID)), sel)

	out := []domain.Sale{}
	for _, sale := range sales {
		if sale.Kind == domain.SaleKindWholesale || sale.Status != domain.SaleClosed {
			continue
		}
		if sale.ManualTotal == nil && len(sale.Items) == 0 && sale.Total.IsPositive() {
			out = append(out, sale)
		}
	}
	return out
}

// RestockSuggestions ranks the shop's catalogue for reordering. lookbackDays
// overrides the default demand window when positive.
func (s *Service) RestockSuggestions(_ context.Context, shopID string, lookbackDays int) []domain.RestockSuggestion {
	shopID = s.shopOrDefault(shopID)
	advisor := s.restock
	if lookbackDays > 0 {
		advisor = restock.NewAdvisor(time.Duration(lookbackDays)*24*time.Hour, defaultCoverDays)
	}

	snap := s.records.Snapshot()
	inventory := make([]domain.InventoryItem, 0, len(snap.Inventory))
	for _, item := range snap.Inventory {
		if item.ShopID == shopID {
			inventory = append(inventory, item)
		}
	}
	return advisor.Suggest(s.clock(), inventory, snap.Purchases, s.salesFor(snap.Sales, shopID), s.repairsFor(snap.Repairs, shopID))
}

func (s *Service) salesFor(sales []domain.Sale, shopID string) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.ShopID == shopID {
			out = append(out, sale)
		}
	}
	return out
}

func (s *Service) repairsFor(repairs []domain.Repair, shopID string) []domain.Repair {
	out := make([]domain.Repair, 0, len(repairs))
	for _, repair := range repairs {
		if repair.ShopID == shopID {
			out = append(out, repair)
		}
	}
	return out
}
