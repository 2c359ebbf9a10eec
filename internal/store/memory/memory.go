package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	sales       map[string]domain.Sale
	saleOrder   []string
	saleItems   map[string][]domain.SaleItem
	repairs     map[string]domain.Repair
	repairOrder []string
	inventory   []domain.InventoryItem
	purchases   []domain.Purchase

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

func New() *Store {
	return &Store{
		sales:       make(map[string]domain.Sale),
		saleItems:   make(map[string][]domain.SaleItem),
		repairs:     make(map[string]domain.Repair),
		subscribers: make(map[int]chan struct{}),
	}
}

// NewSeeded returns a store with a small demo catalogue, purchase history and
// a few of today's sales and repairs.
func NewSeeded() *Store {
	s := New()
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	shop := "main-shop"
	d := decimal.RequireFromString

	s.inventory = []domain.InventoryItem{
		{ID: "inv-screen-protector", ShopID: shop, Name: "Screen Protector", Stock: 24, ReorderThreshold: 10, CostPrice: d("3000"), SellingPrice: d("10000"), Supplier: "Glassworks"},
		{ID: "inv-usbc-cable", ShopID: shop, Name: "USB-C Cable", Stock: 4, ReorderThreshold: 5, CostPrice: d("6000"), AdminCostPrice: d("5500"), SellingPrice: d("15000"), Supplier: "Cable Hub"},
		{ID: "inv-phone-case", ShopID: shop, Name: "Phone Case", Stock: 40, ReorderThreshold: 8, CostPrice: d("4500"), SellingPrice: d("12000"), Supplier: "Case World"},
		{ID: "inv-charger-20w", ShopID: shop, Name: "Charger 20W", Stock: 0, ReorderThreshold: 3, CostPrice: d("18000"), SellingPrice: d("35000"), Supplier: "Power Plus"},
		{ID: "inv-earphones", ShopID: shop, Name: "Earphones", Stock: 12, ReorderThreshold: 4, SellingPrice: d("20000")},
		{ID: "inv-a52-screen", ShopID: shop, Name: "Galaxy A52 Screen", Stock: 2, ReorderThreshold: 2, CostPrice: d("70000"), Supplier: "Parts Direct"},
	}
	s.purchases = []domain.Purchase{
		{ID: "pur-001", ShopID: shop, Supplier: "Sound Traders", PurchasedAt: today.AddDate(0, 0, -20), Items: []domain.PurchaseItem{
			{Name: "Earphones", Quantity: 20, CostPrice: d("9000")},
		}},
		{ID: "pur-002", ShopID: shop, Supplier: "Battery Depot", PurchasedAt: today.AddDate(0, 0, -6), Items: []domain.PurchaseItem{
			{Name: "Battery iPhone 11", Quantity: 5, CostPrice: d("55000")},
		}},
	}

	seedSales := []domain.Sale{
		{ShopID: shop, Kind: domain.SaleKindInShop, Status: domain.SaleClosed, PaymentKind: domain.PaymentCash, CreatedAt: today.Add(9*time.Hour + 15*time.Minute),
			Items: []domain.SaleItem{{Name: "Screen Protector", Quantity: 2, UnitPrice: d("10000")}, {Name: "Phone Case", Quantity: 1, UnitPrice: d("12000")}}},
		{ShopID: shop, Kind: domain.SaleKindRetail, Status: domain.SaleClosed, PaymentKind: domain.PaymentMobileMoney, PaymentReference: "MM-90211", CreatedAt: today.Add(11 * time.Hour),
			Items: []domain.SaleItem{{Name: "Earphones", Quantity: 1, UnitPrice: d("20000")}}},
		{ShopID: shop, Kind: domain.SaleKindInShop, Status: domain.SaleClosed, PaymentKind: domain.PaymentCash, CreatedAt: today.AddDate(0, 0, -1).Add(16 * time.Hour),
			Items: []domain.SaleItem{{Name: "USB-C Cable", Quantity: 2, UnitPrice: d("15000")}}},
	}
	for _, sale := range seedSales {
		sale.ID = xid.New("sale")
		for i := range sale.Items {
			sale.Items[i].ID = xid.New("item")
			sale.Items[i].SaleID = sale.ID
		}
		sale.AmountPaid = sale.LinesTotal()
		sale.Recompute()
		s.putSale(sale)
	}

	agreed := d("150000")
	seedRepairs := []domain.Repair{
		{ShopID: shop, TicketNumber: "T-1001", CustomerName: "Grace N.", DeviceModel: "iPhone 11", Issue: "Battery drains fast", Status: domain.RepairCompleted,
			Parts: []domain.RepairPart{{Name: "Battery iPhone 11", Quantity: 1, UnitCost: d("55000")}}, LaborCost: d("40000"), CreatedAt: today.Add(10 * time.Hour),
			AmountPaid: d("95000"), PaymentKind: domain.PaymentCash},
		{ShopID: shop, TicketNumber: "T-1002", CustomerName: "Peter K.", DeviceModel: "Galaxy A52", Issue: "Cracked screen", Status: domain.RepairInProgress,
			Parts: []domain.RepairPart{{Name: "Galaxy A52 Screen", Quantity: 1, UnitCost: d("70000")}}, LaborCost: d("30000"), TotalAgreedAmount: &agreed,
			AdditionalItems: []domain.RepairItem{{Name: "Screen Protector", Quantity: 1, Source: domain.SourceInventory}},
			CreatedAt:       today.Add(12 * time.Hour), AmountPaid: d("50000"), PaymentKind: domain.PaymentBankDeposit, PaymentReference: "DEP-4410", Bank: "Stanbic"},
	}
	for _, repair := range seedRepairs {
		repair.ID = xid.New("repair")
		repair.ComputeTotal()
		s.repairs[repair.ID] = repair
		s.repairOrder = append(s.repairOrder, repair.ID)
	}

	return s
}

func (s *Store) putSale(sale domain.Sale) {
	items := sale.Items
	sale.Items = nil
	if _, exists := s.sales[sale.ID]; !exists {
		s.saleOrder = append(s.saleOrder, sale.ID)
	}
	s.sales[sale.ID] = sale
	if len(items) > 0 {
		s.saleItems[sale.ID] = slices.Clone(items)
	}
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.saleOrder))
	for _, id := range s.saleOrder {
		sale := s.sales[id]
		sale.Items = slices.Clone(s.saleItems[id])
		if sale.Items == nil {
			sale.Items = []domain.SaleItem{}
		}
		out = append(out, sale)
	}
	return out, nil
}

func (s *Store) ListRepairs(_ context.Context) ([]domain.Repair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Repair, 0, len(s.repairOrder))
	for _, id := range s.repairOrder {
		out = append(out, cloneRepair(s.repairs[id]))
	}
	return out, nil
}

func (s *Store) ListInventoryItems(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.inventory), nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		p.Items = slices.Clone(p.Items)
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.Sale) error {
	if strings.TrimSpace(sale.ID) == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	if _, exists := s.sales[sale.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("sale %s already exists: %w", sale.ID, store.ErrInvalidRecord)
	}
	sale.Items = nil
	s.putSale(sale)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) InsertSaleItems(_ context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, item := range items {
		if _, ok := s.sales[item.SaleID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("sale %s: %w", item.SaleID, store.ErrNotFound)
		}
	}
	for _, item := range items {
		s.saleItems[item.SaleID] = append(s.saleItems[item.SaleID], item)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	if _, ok := s.sales[sale.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	sale.Items = nil
	s.sales[sale.ID] = sale
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.sales[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.sales, id)
	delete(s.saleItems, id)
	s.saleOrder = slices.DeleteFunc(s.saleOrder, func(existing string) bool { return existing == id })
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) DeleteSaleItems(_ context.Context, saleID string) error {
	s.mu.Lock()
	delete(s.saleItems, saleID)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) InsertRepair(_ context.Context, repair domain.Repair) error {
	if strings.TrimSpace(repair.ID) == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	if _, exists := s.repairs[repair.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("repair %s already exists: %w", repair.ID, store.ErrInvalidRecord)
	}
	s.repairs[repair.ID] = cloneRepair(repair)
	s.repairOrder = append(s.repairOrder, repair.ID)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) UpdateRepair(_ context.Context, repair domain.Repair) error {
	s.mu.Lock()
	if _, ok := s.repairs[repair.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.repairs[repair.ID] = cloneRepair(repair)
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetInventory replaces the catalogue; used by tests and demo tooling.
func (s *Store) SetInventory(items []domain.InventoryItem) {
	s.mu.Lock()
	s.inventory = slices.Clone(items)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) AddPurchase(p domain.Purchase) {
	s.mu.Lock()
	p.Items = slices.Clone(p.Items)
	s.purchases = append(s.purchases, p)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subscribers, id)
		close(ch)
		s.subMu.Unlock()
	}()
	return ch, nil
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func cloneRepair(r domain.Repair) domain.Repair {
	r.Parts = slices.Clone(r.Parts)
	r.AdditionalItems = slices.Clone(r.AdditionalItems)
	if r.TotalAgreedAmount != nil {
		agreed := *r.TotalAgreedAmount
		r.TotalAgreedAmount = &agreed
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		r.CompletedAt = &completed
	}
	return r
}
