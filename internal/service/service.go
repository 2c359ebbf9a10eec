package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/archive"
	"repairdesk/backend/internal/cache"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/restock"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var (
	ErrNoOpenSale        = errors.New("no open wholesale sale")
	ErrSaleClosed        = errors.New("sale already closed")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Options struct {
	DefaultShopID string
	Currency      string
	Location      *time.Location
	CacheTTL      time.Duration
	Now           func() time.Time
}

type Service struct {
	records  *recordstore.Store
	writer   store.Writer
	cache    cache.ReportCache
	archive  archive.ReportArchive
	ledger   *wholesaleLedger
	restock  *restock.Advisor
	log      zerolog.Logger
	now      func() time.Time
	loc      *time.Location
	shopID   string
	currency string
	cacheTTL time.Duration
}

func New(records *recordstore.Store, writer store.Writer, reportCache cache.ReportCache, reportArchive archive.ReportArchive, opts Options) *Service {
	if opts.DefaultShopID == "" {
		opts.DefaultShopID = "main-shop"
	}
	if opts.Currency == "" {
		opts.Currency = "UGX"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if reportArchive == nil {
		reportArchive = archive.NewMemoryArchive()
	}

	return &Service{
		records:  records,
		writer:   writer,
		cache:    reportCache,
		archive:  reportArchive,
		ledger:   newWholesaleLedger(),
		restock:  restock.NewAdvisor(defaultLookbackDays*24*time.Hour, defaultCoverDays),
		log:      logger.Component("service"),
		now:      opts.Now,
		loc:      opts.Location,
		shopID:   opts.DefaultShopID,
		currency: opts.Currency,
		cacheTTL: opts.CacheTTL,
	}
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) Currency() string { return s.currency }

func (s *Service) Snapshot() *recordstore.Snapshot { return s.records.Snapshot() }

func (s *Service) shopOrDefault(shopID string) string {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return s.shopID
	}
	return shopID
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) ListSales(_ context.Context, shopID string) []domain.Sale {
	return s.salesFor(s.records.Snapshot().Sales, s.shopOrDefault(shopID))
}

// RecordSale stores a closed sale. The parent row and its items are written
// by two sequential calls on the returned task.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, *recordstore.Task, error) {
	if req.Kind == "" {
		req.Kind = domain.SaleKindInShop
	}
	if req.Kind == domain.SaleKindWholesale {
		return domain.Sale{}, nil, fmt.Errorf("%w: wholesale sales are built through the wholesale ledger", ErrInvalidRequest)
	}
	if req.Kind != domain.SaleKindInShop && req.Kind != domain.SaleKindRetail {
		return domain.Sale{}, nil, fmt.Errorf("%w: unknown sale kind %q", ErrInvalidRequest, req.Kind)
	}

	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.Sale{}, nil, err
	}
	if len(items) == 0 && req.ManualTotal == nil {
		return domain.Sale{}, nil, fmt.Errorf("%w: a sale needs items or a manual total", ErrInvalidRequest)
	}
	if req.ManualTotal != nil && req.ManualTotal.IsNegative() {
		return domain.Sale{}, nil, fmt.Errorf("%w: manual total must not be negative", ErrInvalidRequest)
	}

	createdAt := s.clock()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		createdAt = req.Timestamp.In(s.loc)
	}

	sale := domain.Sale{
		ID:           xid.New("sale"),
		ShopID:       s.shopOrDefault(req.ShopID),
		Kind:         req.Kind,
		Status:       domain.SaleClosed,
		Items:        items,
		ManualTotal:  req.ManualTotal,
		CustomerName: strings.TrimSpace(req.CustomerName),
		CreatedAt:    createdAt,
		ClosedAt:     &createdAt,
	}
	for i := range sale.Items {
		sale.Items[i].ID = xid.New("item")
		sale.Items[i].SaleID = sale.ID
	}
	sale.Recompute()
	if err := applyPayment(&sale, req.Payment); err != nil {
		return domain.Sale{}, nil, err
	}

	task := s.records.Dispatch(ctx, "record sale", s.insertSaleWrite(sale))
	return sale, task, nil
}

func (s *Service) insertSaleWrite(sale domain.Sale) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := s.writer.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("insert sale %s: %w", sale.ID, err)
		}
		if err := s.writer.InsertSaleItems(ctx, sale.Items); err != nil {
			s.log.Error().Err(err).Str("sale_id", sale.ID).Int("items", len(sale.Items)).
				Msg("sale items not stored; sale row left without items")
			return fmt.Errorf("insert items for sale %s: %w", sale.ID, err)
		}
		return nil
	}
}

func (s *Service) DeleteSale(ctx context.Context, id string) (*recordstore.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: sale id is required", ErrInvalidRequest)
	}
	if _, ok := s.records.Snapshot().FindSale(id); !ok {
		return nil, store.ErrNotFound
	}
	if s.ledger.holds(id) {
		return nil, fmt.Errorf("%w: sale %s is the open wholesale sale", ErrInvalidRequest, id)
	}

	return s.records.Dispatch(ctx, "delete sale", func(ctx context.Context) error {
		if err := s.writer.DeleteSaleItems(ctx, id); err != nil {
			return fmt.Errorf("delete items for sale %s: %w", id, err)
		}
		return s.writer.DeleteSale(ctx, id)
	}), nil
}

func (s *Service) ListRepairs(_ context.Context, shopID string) []domain.Repair {
	return s.repairsFor(s.records.Snapshot().Repairs, s.shopOrDefault(shopID))
}

func (s *Service) RecordRepair(ctx context.Context, req domain.RepairCreateRequest) (domain.Repair, *recordstore.Task, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.DeviceModel = strings.TrimSpace(req.DeviceModel)
	if req.CustomerName == "" || req.DeviceModel == "" {
		return domain.Repair{}, nil, fmt.Errorf("%w: customer name and device model are required", ErrInvalidRequest)
	}
	if req.OutsourcedCost.IsNegative() || req.LaborCost.IsNegative() {
		return domain.Repair{}, nil, fmt.Errorf("%w: costs must not be negative", ErrInvalidRequest)
	}
	if req.TotalAgreedAmount != nil && req.TotalAgreedAmount.IsNegative() {
		return domain.Repair{}, nil, fmt.Errorf("%w: agreed amount must not be negative", ErrInvalidRequest)
	}

	parts := make([]domain.RepairPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		part.Name = strings.TrimSpace(part.Name)
		if part.Name == "" || part.Quantity < 1 || part.UnitCost.IsNegative() {
			return domain.Repair{}, nil, fmt.Errorf("%w: invalid part %q", ErrInvalidRequest, part.Name)
		}
		parts = append(parts, part)
	}
	extras := make([]domain.RepairItem, 0, len(req.AdditionalItems))
	for _, item := range req.AdditionalItems {
		item.Name = strings.TrimSpace(item.Name)
		if item.Source == "" {
			item.Source = domain.SourceInventory
		}
		if item.Name == "" || item.Quantity < 1 || (item.Source != domain.SourceInventory && item.Source != domain.SourceOutsourced) {
			return domain.Repair{}, nil, fmt.Errorf("%w: invalid additional item %q", ErrInvalidRequest, item.Name)
		}
		extras = append(extras, item)
	}

	repair := domain.Repair{
		ID:                xid.New("repair"),
		ShopID:            s.shopOrDefault(req.ShopID),
		TicketNumber:      strings.TrimSpace(req.TicketNumber),
		CustomerName:      req.CustomerName,
		CustomerPhone:     strings.TrimSpace(req.CustomerPhone),
		DeviceModel:       req.DeviceModel,
		Issue:             strings.TrimSpace(req.Issue),
		Status:            domain.RepairReceived,
		Parts:             parts,
		AdditionalItems:   extras,
		OutsourcedCost:    req.OutsourcedCost,
		LaborCost:         req.LaborCost,
		TotalAgreedAmount: req.TotalAgreedAmount,
		AmountPaid:        decimal.Zero,
		CreatedAt:         s.clock(),
	}
	if req.Deposit != nil {
		if err := applyRepairPayment(&repair, *req.Deposit); err != nil {
			return domain.Repair{}, nil, err
		}
	}
	repair.ComputeTotal()

	task := s.records.Dispatch(ctx, "record repair", func(ctx context.Context) error {
		return s.writer.InsertRepair(ctx, repair)
	})
	return repair, task, nil
}

// AdvanceRepairStatus moves a repair forward through its lifecycle. Moving
// backwards or sideways is rejected.
func (s *Service) AdvanceRepairStatus(ctx context.Context, id string, next domain.RepairStatus) (domain.Repair, *recordstore.Task, error) {
	repair, ok := s.records.Snapshot().FindRepair(id)
	if !ok {
		return domain.Repair{}, nil, store.ErrNotFound
	}
	if next.Rank() < 0 {
		return domain.Repair{}, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, next)
	}
	if !repair.Status.CanAdvanceTo(next) {
		return domain.Repair{}, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, repair.Status, next)
	}

	repair.Status = next
	if next.Rank() >= domain.RepairCompleted.Rank() && repair.CompletedAt == nil {
		completed := s.clock()
		repair.CompletedAt = &completed
	}

	task := s.records.Dispatch(ctx, "advance repair status", func(ctx context.Context) error {
		return s.writer.UpdateRepair(ctx, repair)
	})
	return repair, task, nil
}

func (s *Service) RecordRepairPayment(ctx context.Context, id string, req domain.PaymentRequest) (domain.Repair, *recordstore.Task, error) {
	repair, ok := s.records.Snapshot().FindRepair(id)
	if !ok {
		return domain.Repair{}, nil, store.ErrNotFound
	}
	if !req.AmountPaid.IsPositive() {
		return domain.Repair{}, nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidRequest)
	}
	if err := applyRepairPayment(&repair, req); err != nil {
		return domain.Repair{}, nil, err
	}
	repair.ComputeTotal()

	task := s.records.Dispatch(ctx, "record repair payment", func(ctx context.Context) error {
		return s.writer.UpdateRepair(ctx, repair)
	})
	return repair, task, nil
}

func normalizeItems(reqs []domain.SaleItemRequest) ([]domain.SaleItem, error) {
	items := make([]domain.SaleItem, 0, len(reqs))
	for _, req := range reqs {
		name := strings.TrimSpace(req.Name)
		if name == "" || req.Quantity < 1 || req.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: invalid line item %q", ErrInvalidRequest, name)
		}
		items = append(items, domain.SaleItem{Name: name, Quantity: req.Quantity, UnitPrice: req.UnitPrice})
	}
	return items, nil
}

// applyPayment records the payment on a sale whose Total is already known.
// A missing amount is read as paid in full.
func applyPayment(sale *domain.Sale, req *domain.PaymentRequest) error {
	if req == nil {
		sale.Recompute()
		return nil
	}
	if req.Kind != "" && !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown payment kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.AmountPaid.IsNegative() {
		return fmt.Errorf("%w: amount paid must not be negative", ErrInvalidRequest)
	}
	sale.PaymentKind = req.Kind
	sale.PaymentReference = strings.TrimSpace(req.Reference)
	sale.Bank = strings.TrimSpace(req.Bank)
	sale.AmountPaid = req.AmountPaid
	if !sale.AmountPaid.IsPositive() {
		sale.AmountPaid = sale.Total
	}
	sale.Recompute()
	return nil
}

func applyRepairPayment(repair *domain.Repair, req domain.PaymentRequest) error {
	if req.Kind != "" && !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown payment kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.AmountPaid.IsNegative() {
		return fmt.Errorf("%w: amount paid must not be negative", ErrInvalidRequest)
	}
	if req.Kind != "" {
		repair.PaymentKind = req.Kind
	}
	if ref := strings.TrimSpace(req.Reference); ref != "" {
		repair.PaymentReference = ref
	}
	if bank := strings.TrimSpace(req.Bank); bank != "" {
		repair.Bank = bank
	}
	repair.AmountPaid = repair.AmountPaid.Add(req.AmountPaid)
	return nil
}
