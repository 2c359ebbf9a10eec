package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db          *sqlx.DB
	databaseURL string
	log         zerolog.Logger
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, databaseURL: databaseURL, log: logger.Component("postgres")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type saleRow struct {
	ID               string              `db:"id"`
	ShopID           string              `db:"shop_id"`
	Kind             string              `db:"kind"`
	Status           string              `db:"status"`
	Total            decimal.Decimal     `db:"total"`
	ManualTotal      decimal.NullDecimal `db:"manual_total"`
	PaymentKind      string              `db:"payment_kind"`
	PaymentStatus    string              `db:"payment_status"`
	PaymentReference string              `db:"payment_reference"`
	Bank             string              `db:"bank"`
	AmountPaid       decimal.Decimal     `db:"amount_paid"`
	Balance          decimal.Decimal     `db:"balance"`
	CustomerName     string              `db:"customer_name"`
	CreatedAt        time.Time           `db:"created_at"`
	ClosedAt         sql.NullTime        `db:"closed_at"`
}

func (r saleRow) toDomain() domain.Sale {
	sale := domain.Sale{
		ID:               r.ID,
		ShopID:           r.ShopID,
		Kind:             domain.SaleKind(r.Kind),
		Status:           domain.SaleStatus(r.Status),
		Total:            r.Total,
		PaymentKind:      domain.PaymentKind(r.PaymentKind),
		PaymentStatus:    domain.PaymentStatus(r.PaymentStatus),
		PaymentReference: r.PaymentReference,
		Bank:             r.Bank,
		AmountPaid:       r.AmountPaid,
		Balance:          r.Balance,
		CustomerName:     r.CustomerName,
		CreatedAt:        r.CreatedAt,
		Items:            []domain.SaleItem{},
	}
	if r.ManualTotal.Valid {
		manual := r.ManualTotal.Decimal
		sale.ManualTotal = &manual
	}
	if r.ClosedAt.Valid {
		closed := r.ClosedAt.Time
		sale.ClosedAt = &closed
	}
	return sale
}

// ListSales attaches line items when they can be read. A failed item query
// is logged and the sales are returned without items.
func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows := make([]saleRow, 0, 256)
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, shop_id, kind, status, total, manual_total, payment_kind, payment_status,
		       payment_reference, bank, amount_paid, balance, customer_name, created_at, closed_at
		FROM sales
		ORDER BY created_at, id
	`); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	sales := make([]domain.Sale, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		index[row.ID] = len(sales)
		sales = append(sales, row.toDomain())
	}

	items := make([]domain.SaleItem, 0, len(rows)*2)
	if err := s.db.SelectContext(ctx, &items, `
		SELECT id, sale_id, name, quantity, unit_price
		FROM sale_items
		ORDER BY sale_id, id
	`); err != nil {
		s.log.Error().Err(err).Msg("list sale items failed; returning sales without items")
		return sales, nil
	}
	for _, item := range items {
		if i, ok := index[item.SaleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	return sales, nil
}

type repairRow struct {
	ID                string              `db:"id"`
	ShopID            string              `db:"shop_id"`
	TicketNumber      string              `db:"ticket_number"`
	CustomerName      string              `db:"customer_name"`
	CustomerPhone     string              `db:"customer_phone"`
	DeviceModel       string              `db:"device_model"`
	Issue             string              `db:"issue"`
	Status            string              `db:"status"`
	Parts             []byte              `db:"parts"`
	AdditionalItems   []byte              `db:"additional_items"`
	OutsourcedCost    decimal.Decimal     `db:"outsourced_cost"`
	LaborCost         decimal.Decimal     `db:"labor_cost"`
	TotalCost         decimal.Decimal     `db:"total_cost"`
	TotalAgreedAmount decimal.NullDecimal `db:"total_agreed_amount"`
	AmountPaid        decimal.Decimal     `db:"amount_paid"`
	Balance           decimal.Decimal     `db:"balance"`
	PaymentStatus     string              `db:"payment_status"`
	PaymentKind       string              `db:"payment_kind"`
	PaymentReference  string              `db:"payment_reference"`
	Bank              string              `db:"bank"`
	CreatedAt         time.Time           `db:"created_at"`
	CompletedAt       sql.NullTime        `db:"completed_at"`
}

// toDomain maps a row. Malformed parts or additional items JSON is logged and
// read as an empty list so the repair itself is kept.
func (r repairRow) toDomain(log zerolog.Logger) domain.Repair {
	repair := domain.Repair{
		ID:               r.ID,
		ShopID:           r.ShopID,
		TicketNumber:     r.TicketNumber,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		DeviceModel:      r.DeviceModel,
		Issue:            r.Issue,
		Status:           domain.RepairStatus(r.Status),
		OutsourcedCost:   r.OutsourcedCost,
		LaborCost:        r.LaborCost,
		TotalCost:        r.TotalCost,
		AmountPaid:       r.AmountPaid,
		Balance:          r.Balance,
		PaymentStatus:    domain.PaymentStatus(r.PaymentStatus),
		PaymentKind:      domain.PaymentKind(r.PaymentKind),
		PaymentReference: r.PaymentReference,
		Bank:             r.Bank,
		CreatedAt:        r.CreatedAt,
	}
	if err := unmarshalList(r.Parts, &repair.Parts); err != nil {
		log.Error().Err(err).Str("repair_id", r.ID).Msg("malformed repair parts; reading as empty")
	}
	if err := unmarshalList(r.AdditionalItems, &repair.AdditionalItems); err != nil {
		log.Error().Err(err).Str("repair_id", r.ID).Msg("malformed additional items; reading as empty")
	}
	if r.TotalAgreedAmount.Valid {
		agreed := r.TotalAgreedAmount.Decimal
		repair.TotalAgreedAmount = &agreed
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time
		repair.CompletedAt = &completed
	}
	return repair
}

// unmarshalList decodes a JSON array into dest. dest is an empty list when
// raw is empty or malformed.
func unmarshalList[T any](raw []byte, dest *[]T) error {
	*dest = []T{}
	if len(raw) == 0 {
		return nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	if list != nil {
		*dest = list
	}
	return nil
}

func (s *Store) ListRepairs(ctx context.Context) ([]domain.Repair, error) {
	rows := make([]repairRow, 0, 128)
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, shop_id, ticket_number, customer_name, customer_phone, device_model, issue, status,
		       parts, additional_items, outsourced_cost, labor_cost, total_cost, total_agreed_amount,
		       amount_paid, balance, payment_status, payment_kind, payment_reference, bank,
		       created_at, completed_at
		FROM repairs
		ORDER BY created_at, id
	`); err != nil {
		return nil, fmt.Errorf("list repairs: %w", err)
	}

	repairs := make([]domain.Repair, 0, len(rows))
	for _, row := range rows {
		repairs = append(repairs, row.toDomain(s.log))
	}
	return repairs, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, 128)
	if err := s.db.SelectContext(ctx, &items, `
		SELECT id, shop_id, name, stock, reorder_threshold, cost_price, admin_cost_price, selling_price, supplier
		FROM inventory_items
		ORDER BY name
	`); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

type purchaseRow struct {
	ID          string    `db:"id"`
	ShopID      string    `db:"shop_id"`
	Supplier    string    `db:"supplier"`
	Items       []byte    `db:"items"`
	PurchasedAt time.Time `db:"purchased_at"`
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows := make([]purchaseRow, 0, 128)
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, shop_id, supplier, items, purchased_at
		FROM purchases
		ORDER BY purchased_at, id
	`); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, row.toDomain(s.log))
	}
	return purchases, nil
}

func (r purchaseRow) toDomain(log zerolog.Logger) domain.Purchase {
	p := domain.Purchase{ID: r.ID, ShopID: r.ShopID, Supplier: r.Supplier, PurchasedAt: r.PurchasedAt}
	if err := unmarshalList(r.Items, &p.Items); err != nil {
		log.Error().Err(err).Str("purchase_id", r.ID).Msg("malformed purchase items; reading as empty")
	}
	return p
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) error {
	if sale.ID == "" || sale.ShopID == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, shop_id, kind, status, total, manual_total, payment_kind, payment_status,
		                   payment_reference, bank, amount_paid, balance, customer_name, created_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ID, sale.ShopID, sale.Kind, sale.Status, sale.Total, nullDecimal(sale.ManualTotal), sale.PaymentKind,
		sale.PaymentStatus, sale.PaymentReference, sale.Bank, sale.AmountPaid, sale.Balance, sale.CustomerName,
		sale.CreatedAt, sale.ClosedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sale %s already exists: %w", sale.ID, store.ErrInvalidRecord)
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (s *Store) InsertSaleItems(ctx context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, name, quantity, unit_price)
		VALUES (:id, :sale_id, :name, :quantity, :unit_price)
	`, items)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sale items: %w", store.ErrInvalidRecord)
		}
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, total = $3, manual_total = $4, payment_kind = $5, payment_status = $6,
		    payment_reference = $7, bank = $8, amount_paid = $9, balance = $10, customer_name = $11,
		    closed_at = $12
		WHERE id = $1
	`, sale.ID, sale.Status, sale.Total, nullDecimal(sale.ManualTotal), sale.PaymentKind, sale.PaymentStatus,
		sale.PaymentReference, sale.Bank, sale.AmountPaid, sale.Balance, sale.CustomerName, sale.ClosedAt)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	return expectRow(res)
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	return expectRow(res)
}

func (s *Store) DeleteSaleItems(ctx context.Context, saleID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	return nil
}

func (s *Store) InsertRepair(ctx context.Context, repair domain.Repair) error {
	if repair.ID == "" || repair.ShopID == "" {
		return store.ErrInvalidRecord
	}
	parts, extras, err := marshalRepairLists(repair)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO repairs (id, shop_id, ticket_number, customer_name, customer_phone, device_model, issue, status,
		                     parts, additional_items, outsourced_cost, labor_cost, total_cost, total_agreed_amount,
		                     amount_paid, balance, payment_status, payment_kind, payment_reference, bank,
		                     created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, repair.ID, repair.ShopID, repair.TicketNumber, repair.CustomerName, repair.CustomerPhone, repair.DeviceModel,
		repair.Issue, repair.Status, parts, extras, repair.OutsourcedCost, repair.LaborCost, repair.TotalCost,
		nullDecimal(repair.TotalAgreedAmount), repair.AmountPaid, repair.Balance, repair.PaymentStatus,
		repair.PaymentKind, repair.PaymentReference, repair.Bank, repair.CreatedAt, repair.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("repair %s already exists: %w", repair.ID, store.ErrInvalidRecord)
		}
		return fmt.Errorf("insert repair: %w", err)
	}
	return nil
}

func (s *Store) UpdateRepair(ctx context.Context, repair domain.Repair) error {
	parts, extras, err := marshalRepairLists(repair)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE repairs
		SET ticket_number = $2, customer_name = $3, customer_phone = $4, device_model = $5, issue = $6,
		    status = $7, parts = $8, additional_items = $9, outsourced_cost = $10, labor_cost = $11,
		    total_cost = $12, total_agreed_amount = $13, amount_paid = $14, balance = $15,
		    payment_status = $16, payment_kind = $17, payment_reference = $18, bank = $19, completed_at = $20
		WHERE id = $1
	`, repair.ID, repair.TicketNumber, repair.CustomerName, repair.CustomerPhone, repair.DeviceModel, repair.Issue,
		repair.Status, parts, extras, repair.OutsourcedCost, repair.LaborCost, repair.TotalCost,
		nullDecimal(repair.TotalAgreedAmount), repair.AmountPaid, repair.Balance, repair.PaymentStatus,
		repair.PaymentKind, repair.PaymentReference, repair.Bank, repair.CompletedAt)
	if err != nil {
		return fmt.Errorf("update repair: %w", err)
	}
	return expectRow(res)
}

func marshalRepairLists(repair domain.Repair) (string, string, error) {
	parts := repair.Parts
	if parts == nil {
		parts = []domain.RepairPart{}
	}
	extras := repair.AdditionalItems
	if extras == nil {
		extras = []domain.RepairItem{}
	}
	rawParts, err := json.Marshal(parts)
	if err != nil {
		return "", "", err
	}
	rawExtras, err := json.Marshal(extras)
	if err != nil {
		return "", "", err
	}
	return string(rawParts), string(rawExtras), nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
