// Package sqlstore implements the repository over database/sql through sqlx.
// Queries are written with ? placeholders and rebound for the driver, so the
// same code serves Postgres and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

// Dialect carries what differs between database engines.
type Dialect struct {
	Name              string
	// LockClause is appended to SELECTs that must hold a row lock until commit.
	LockClause        string
	Types             ColumnTypes
	IsUniqueViolation func(error) bool
}

var (
	PostgresTypes = ColumnTypes{Money: "NUMERIC(12,2)", Timestamp: "TIMESTAMPTZ", Date: "DATE", Bool: "BOOLEAN"}
	SQLiteTypes   = ColumnTypes{Money: "TEXT", Timestamp: "DATETIME", Date: "DATE", Bool: "BOOLEAN"}
)

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

func New(db *sqlx.DB, dialect Dialect) *Store {
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

const medicineColumns = `id, name, company, formula, batch_no, rack_number, price, retailers_price,
	packet_price, units_per_box, discount_type, discount, stock, expiry_date, created_at, updated_at`

const saleColumns = `id, sale_date, subtotal, discount_amount, price_deducted, extra, final_amount,
	net_amount, total_profit, returned_amount, sold_by`

// saleItemSelect loads a sale's items with the quantity already returned.
const saleItemSelect = `SELECT si.id, si.sale_id, si.medicine_id, si.medicine_name, si.quantity,
	si.selling_price_per_unit, si.purchase_price_per_unit, si.discount_per_unit, si.total_price,
	COALESCE((SELECT SUM(ri.quantity) FROM return_items ri WHERE ri.sale_item_id = si.id), 0) AS returned_quantity
	FROM sale_items si WHERE si.sale_id = ? ORDER BY si.medicine_name, si.id`

const (
	purchaseColumns   = `id, medicine_id, medicine_name, quantity, unit_price, total_amount, purchase_date, notes`
	returnColumns     = `id, sale_id, returned_at, refund_amount, reason, processed_by`
	returnItemColumns = `id, return_id, sale_item_id, quantity, returned_price, restocked`
	auditColumns      = `id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at`
)

// WithinTx runs fn in a database transaction. The transaction is committed when
// fn returns nil and rolled back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	err := s.db.GetContext(ctx, &m, s.db.Rebind(`SELECT `+medicineColumns+` FROM medicines WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) ListMedicines(ctx context.Context, filter store.MedicineFilter) ([]domain.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines`
	args := []any{}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query += ` WHERE LOWER(name) LIKE ? OR LOWER(formula) LIKE ?`
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY LOWER(name), id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	medicines := make([]domain.Medicine, 0, 64)
	if err := s.db.SelectContext(ctx, &medicines, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return medicines, nil
}

func (s *Store) ListPurchases(ctx context.Context, filter store.PurchaseFilter) ([]domain.PurchaseRecord, error) {
	where, args := []string{}, []any{}
	if filter.MedicineID != "" {
		where = append(where, "medicine_id = ?")
		args = append(args, filter.MedicineID)
	}
	where, args = appendRange(where, args, "purchase_date", filter.From, filter.To)

	query := `SELECT ` + purchaseColumns + ` FROM purchase_records` + joinWhere(where) + ` ORDER BY purchase_date DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	purchases := make([]domain.PurchaseRecord, 0, 64)
	if err := s.db.SelectContext(ctx, &purchases, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	if err := s.db.GetContext(ctx, &sale, s.db.Rebind(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}

	items := make([]domain.SaleItem, 0, 8)
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(saleItemSelect), id); err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	sale.Items = items

	returns := make([]domain.Return, 0, 2)
	if err := s.db.SelectContext(ctx, &returns, s.db.Rebind(`SELECT `+returnColumns+` FROM returns WHERE sale_id = ? ORDER BY returned_at, id`), id); err != nil {
		return nil, fmt.Errorf("load returns: %w", err)
	}
	for i := range returns {
		lines := make([]domain.ReturnItem, 0, 4)
		if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(`SELECT `+returnItemColumns+` FROM return_items WHERE return_id = ? ORDER BY id`), returns[i].ID); err != nil {
			return nil, fmt.Errorf("load return items: %w", err)
		}
		returns[i].Items = lines
	}
	sale.Returns = returns
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	where, args := appendRange(nil, nil, "sale_date", filter.From, filter.To)
	query := `SELECT ` + saleColumns + ` FROM sales` + joinWhere(where) + ` ORDER BY sale_date DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	sales := make([]domain.Sale, 0, 64)
	if err := s.db.SelectContext(ctx, &sales, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO audit_logs (`+auditColumns+`)
		VALUES (:id, :actor_username, :actor_role, :action, :entity_type, :entity_id, :detail, :created_at)`, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	logs := make([]domain.AuditLog, 0, 64)
	if err := s.db.SelectContext(ctx, &logs, s.db.Rebind(query), from.UTC(), to.UTC()); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username", "username and password are required")
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO users (username, password, role, active, created_at)
		VALUES (:username, :password, :role, :active, :created_at)`, user)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 8)
	if err := s.db.SelectContext(ctx, &users, `SELECT username, password, role, active, created_at FROM users ORDER BY username`); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("password", "password is required")
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password = ? WHERE username = ?`), password, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func appendRange(where []string, args []any, column string, from, to *time.Time) ([]string, []any) {
	if from != nil {
		where = append(where, column+" >= ?")
		args = append(args, from.UTC())
	}
	if to != nil {
		where = append(where, column+" < ?")
		args = append(args, to.UTC())
	}
	return where, args
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}
