// Package recordstore keeps an in-memory snapshot of every record collection
// and refreshes it whenever the backing store reports a change.
package recordstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

// Snapshot is an immutable view of all collections. Callers must not modify
// the slices it holds. Versions are only ordered within one Epoch; every Store
// starts a new epoch.
type Snapshot struct {
	Epoch     string                 `json:"epoch"`
	Version   uint64                 `json:"version"`
	LoadedAt  time.Time              `json:"loaded_at"`
	Sales     []domain.Sale          `json:"-"`
	Repairs   []domain.Repair        `json:"-"`
	Inventory []domain.InventoryItem `json:"-"`
	Purchases []domain.Purchase      `json:"-"`
}

func (s *Snapshot) FindSale(id string) (domain.Sale, bool) {
	for _, sale := range s.Sales {
		if sale.ID == id {
			return sale, true
		}
	}
	return domain.Sale{}, false
}

func (s *Snapshot) FindRepair(id string) (domain.Repair, bool) {
	for _, repair := range s.Repairs {
		if repair.ID == id {
			return repair, true
		}
	}
	return domain.Repair{}, false
}

type Store struct {
	src     store.Reader
	log     zerolog.Logger
	now     func() time.Time
	epoch   string
	tickets atomic.Uint64

	mu      sync.RWMutex
	current *Snapshot

	listenersMu sync.Mutex
	listeners   []func(*Snapshot)
}

func New(src store.Reader) *Store {
	epoch := xid.New("epoch")
	return &Store{
		src:   src,
		log:   logger.Component("recordstore"),
		now:   time.Now,
		epoch: epoch,
		current: &Snapshot{
			Epoch:     epoch,
			Sales:     []domain.Sale{},
			Repairs:   []domain.Repair{},
			Inventory: []domain.InventoryItem{},
			Purchases: []domain.Purchase{},
		},
	}
}

// Epoch identifies this store's version sequence.
func (s *Store) Epoch() string { return s.epoch }

func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run after each newly installed snapshot.
func (s *Store) OnChange(fn func(*Snapshot)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Load fetches all four collections and installs them as a new snapshot.
// Each call takes a version ticket up front; a result whose ticket is older
// than the installed snapshot is discarded and the installed one returned.
// On error the installed snapshot is left as it was.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	ticket := s.tickets.Add(1)

	next := &Snapshot{Epoch: s.epoch, Version: ticket}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sales, err := s.src.ListSales(gctx)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}
		next.Sales = sales
		return nil
	})
	g.Go(func() error {
		repairs, err := s.src.ListRepairs(gctx)
		if err != nil {
			return fmt.Errorf("repairs: %w", err)
		}
		next.Repairs = repairs
		return nil
	})
	g.Go(func() error {
		items, err := s.src.ListInventoryItems(gctx)
		if err != nil {
			return fmt.Errorf("inventory: %w", err)
		}
		next.Inventory = items
		return nil
	})
	g.Go(func() error {
		purchases, err := s.src.ListPurchases(gctx)
		if err != nil {
			return fmt.Errorf("purchases: %w", err)
		}
		next.Purchases = purchases
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Uint64("ticket", ticket).Msg("reload failed; keeping previous snapshot")
		return s.Snapshot(), fmt.Errorf("reload records: %w", err)
	}
	next.LoadedAt = s.now()

	s.mu.Lock()
	if ticket <= s.current.Version {
		current := s.current
		s.mu.Unlock()
		s.log.Debug().Uint64("ticket", ticket).Uint64("installed", current.Version).Msg("discarding superseded reload")
		return current, nil
	}
	s.current = next
	s.mu.Unlock()

	s.listenersMu.Lock()
	listeners := append([]func(*Snapshot){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}

// Watch reloads on every change notification until ctx ends or the
// notification channel closes. Reload failures are logged, not returned.
func (s *Store) Watch(ctx context.Context, n store.Notifier) error {
	changes, err := n.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			_, _ = s.Load(ctx)
		}
	}
}
