package store

import (
	"context"
	"errors"

	"repairdesk/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Reader lists the four record collections. Sales are returned with their
// line items attached.
type Reader interface {
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListRepairs(ctx context.Context) ([]domain.Repair, error)
	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
}

// Writer persists record changes. Sales and their items are written in
// separate calls; nothing makes the pair atomic.
type Writer interface {
	InsertSale(ctx context.Context, sale domain.Sale) error
	InsertSaleItems(ctx context.Context, items []domain.SaleItem) error
	UpdateSale(ctx context.Context, sale domain.Sale) error
	DeleteSale(ctx context.Context, id string) error
	DeleteSaleItems(ctx context.Context, saleID string) error
	InsertRepair(ctx context.Context, repair domain.Repair) error
	UpdateRepair(ctx context.Context, repair domain.Repair) error
}

// Notifier delivers a signal whenever any collection changes. The channel
// coalesces bursts and is closed when ctx ends.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

type Repository interface {
	Reader
	Writer
	Notifier
}
