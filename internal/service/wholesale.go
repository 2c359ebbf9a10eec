package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/period"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/xid"
)

// wholesaleSlot is the day's wholesale sale for one shop. last is the most
// recent write for the slot; every new write waits for it so the parent row
// always lands before its items and updates.
type wholesaleSlot struct {
	sale domain.Sale
	last *recordstore.Task
}

type wholesaleLedger struct {
	mu    sync.Mutex
	slots map[string]*wholesaleSlot
}

func newWholesaleLedger() *wholesaleLedger {
	return &wholesaleLedger{slots: make(map[string]*wholesaleSlot)}
}

func ledgerKey(shopID string, day string) string {
	return shopID + "|" + day
}

func (l *wholesaleLedger) holds(saleID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, slot := range l.slots {
		if slot.sale.ID == saleID && slot.sale.Status == domain.SaleOpen {
			return true
		}
	}
	return false
}

// openSlot returns the shop's open slot for today or, failing that, the
// oldest open slot left over from an earlier day. Callers hold l.mu.
func (l *wholesaleLedger) openSlot(shopID string, today string) *wholesaleSlot {
	if slot, ok := l.slots[ledgerKey(shopID, today)]; ok && slot.sale.Status == domain.SaleOpen {
		return slot
	}
	var (
		oldestKey  string
		oldestSlot *wholesaleSlot
	)
	for k, slot := range l.slots {
		if !strings.HasPrefix(k, shopID+"|") || slot.sale.Status != domain.SaleOpen {
			continue
		}
		if oldestSlot == nil || k < oldestKey {
			oldestKey, oldestSlot = k, slot
		}
	}
	return oldestSlot
}

// forget undoes a slot whose opening write failed. It is a no-op when the
// slot has been replaced since.
func (l *wholesaleLedger) forget(key string, slot, previous *wholesaleSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots[key] != slot {
		return
	}
	if previous != nil {
		l.slots[key] = previous
		return
	}
	delete(l.slots, key)
}

// dropLine removes a line whose insert failed from the slot's sale.
func (l *wholesaleLedger) dropLine(slot *wholesaleSlot, itemID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot.sale.Status != domain.SaleOpen {
		return
	}
	slot.sale.Items = slices.DeleteFunc(slot.sale.Items, func(item domain.SaleItem) bool { return item.ID == itemID })
	slot.sale.Recompute()
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Items = slices.Clone(sale.Items)
	return sale
}

// HydrateLedger restores open wholesale sales from snap, keyed by the local
// day they were opened on. Slots that already exist are left alone.
func (s *Service) HydrateLedger(snap *recordstore.Snapshot) int {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()

	restored := 0
	for _, sale := range snap.Sales {
		if sale.Kind != domain.SaleKindWholesale || sale.Status != domain.SaleOpen {
			continue
		}
		key := ledgerKey(sale.ShopID, period.DayKey(sale.CreatedAt, s.loc))
		if _, exists := s.ledger.slots[key]; exists {
			continue
		}
		s.ledger.slots[key] = &wholesaleSlot{sale: cloneSale(sale)}
		restored++
	}
	if restored > 0 {
		s.log.Info().Int("open_sales", restored).Msg("wholesale ledger restored")
	}
	return restored
}

// OpenWholesaleSale returns the shop's open wholesale sale: today's, or one
// left open from an earlier day.
func (s *Service) OpenWholesaleSale(_ context.Context, shopID string) (domain.Sale, error) {
	shopID = s.shopOrDefault(shopID)

	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	slot := s.ledger.openSlot(shopID, period.DayKey(s.clock(), s.loc))
	if slot == nil {
		return domain.Sale{}, ErrNoOpenSale
	}
	return cloneSale(slot.sale), nil
}

// AddWholesaleItem appends a line to today's open wholesale sale, opening one
// when the shop has none.
func (s *Service) AddWholesaleItem(ctx context.Context, shopID string, req domain.SaleItemRequest) (domain.Sale, *recordstore.Task, error) {
	items, err := normalizeItems([]domain.SaleItemRequest{req})
	if err != nil {
		return domain.Sale{}, nil, err
	}
	line := items[0]

	shopID = s.shopOrDefault(shopID)
	now := s.clock()
	key := ledgerKey(shopID, period.DayKey(now, s.loc))

	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()

	slot := s.ledger.slots[key]
	previous := slot
	created := false
	if slot == nil || slot.sale.Status != domain.SaleOpen {
		var prev *recordstore.Task
		if slot != nil {
			prev = slot.last
		}
		slot = &wholesaleSlot{
			sale: domain.Sale{
				ID:        xid.New("sale"),
				ShopID:    shopID,
				Kind:      domain.SaleKindWholesale,
				Status:    domain.SaleOpen,
				Items:     []domain.SaleItem{},
				CreatedAt: now,
			},
			last: prev,
		}
		s.ledger.slots[key] = slot
		created = true
	}

	line.ID = xid.New("item")
	line.SaleID = slot.sale.ID
	slot.sale.Items = append(slot.sale.Items, line)
	slot.sale.Recompute()

	sale := cloneSale(slot.sale)
	prev := slot.last
	opened := slot
	slot.last = s.records.Dispatch(ctx, "add wholesale item", func(ctx context.Context) error {
		waitFor(ctx, prev)
		if created {
			if err := s.writer.InsertSale(ctx, sale); err != nil {
				s.ledger.forget(key, opened, previous)
				return fmt.Errorf("open wholesale sale %s: %w", sale.ID, err)
			}
		}
		if err := s.writer.InsertSaleItems(ctx, []domain.SaleItem{line}); err != nil {
			s.log.Error().Err(err).Str("sale_id", sale.ID).Str("item", line.Name).Msg("wholesale item not stored")
			s.ledger.dropLine(opened, line.ID)
			return fmt.Errorf("add item to sale %s: %w", sale.ID, err)
		}
		if !created {
			return s.writer.UpdateSale(ctx, sale)
		}
		return nil
	})

	if created {
		s.log.Info().Str("shop_id", shopID).Str("sale_id", sale.ID).Msg("wholesale sale opened")
	}
	return sale, slot.last, nil
}

// CloseWholesaleSale records the payment and closes the shop's open wholesale
// sale, today's or one left open from an earlier day. Closing is terminal: a
// second close reports ErrSaleClosed and the next item added opens a fresh
// sale.
func (s *Service) CloseWholesaleSale(ctx context.Context, shopID string, payment domain.PaymentRequest) (domain.Sale, *recordstore.Task, error) {
	if !payment.Kind.Valid() {
		return domain.Sale{}, nil, fmt.Errorf("%w: payment kind is required to close a sale", ErrInvalidRequest)
	}

	shopID = s.shopOrDefault(shopID)
	now := s.clock()
	today := period.DayKey(now, s.loc)

	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()

	slot := s.ledger.openSlot(shopID, today)
	if slot == nil {
		if _, ok := s.ledger.slots[ledgerKey(shopID, today)]; ok {
			return domain.Sale{}, nil, ErrSaleClosed
		}
		return domain.Sale{}, nil, ErrNoOpenSale
	}

	closed := cloneSale(slot.sale)
	if err := applyPayment(&closed, &payment); err != nil {
		return domain.Sale{}, nil, err
	}
	closedAt := now
	if closedAt.Before(closed.CreatedAt) {
		closedAt = closed.CreatedAt
	}
	closed.Status = domain.SaleClosed
	closed.ClosedAt = &closedAt
	slot.sale = closed

	update := cloneSale(closed)
	prev := slot.last
	slot.last = s.records.Dispatch(ctx, "close wholesale sale", func(ctx context.Context) error {
		waitFor(ctx, prev)
		return s.writer.UpdateSale(ctx, update)
	})

	s.log.Info().Str("shop_id", shopID).Str("sale_id", closed.ID).Str("total", closed.Total.String()).Msg("wholesale sale closed")
	return cloneSale(closed), slot.last, nil
}

// waitFor blocks until prev has finished. Its outcome is not checked: a
// failed predecessor makes the dependent write fail on its own.
func waitFor(ctx context.Context, prev *recordstore.Task) {
	if prev == nil {
		return
	}
	_ = prev.Wait(ctx)
}
