package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// ColumnTypes fills the $money, $timestamp, $date and $bool placeholders of the
// schema for one engine.
type ColumnTypes struct {
	Money     string
	Timestamp string
	Date      string
	Bool      string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active $bool NOT NULL DEFAULT TRUE,
		created_at $timestamp NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		formula TEXT NOT NULL DEFAULT '',
		batch_no TEXT NOT NULL DEFAULT '',
		rack_number TEXT NOT NULL DEFAULT '',
		price $money NOT NULL,
		retailers_price $money NOT NULL,
		packet_price $money NOT NULL,
		units_per_box INTEGER NOT NULL CHECK (units_per_box >= 1),
		discount_type TEXT NOT NULL,
		discount $money NOT NULL,
		stock INTEGER NOT NULL CHECK (stock >= 0),
		expiry_date $date NOT NULL,
		created_at $timestamp NOT NULL,
		updated_at $timestamp NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines (name)`,
	`CREATE TABLE IF NOT EXISTS purchase_records (
		id TEXT PRIMARY KEY,
		medicine_id TEXT NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price $money NOT NULL,
		total_amount $money NOT NULL,
		purchase_date $timestamp NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_records_date ON purchase_records (purchase_date)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sale_date $timestamp NOT NULL,
		subtotal $money NOT NULL,
		discount_amount $money NOT NULL,
		price_deducted $money NOT NULL,
		extra $money NOT NULL,
		final_amount $money NOT NULL,
		net_amount $money NOT NULL,
		total_profit $money NOT NULL,
		returned_amount $money NOT NULL,
		sold_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (sale_date)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		medicine_id TEXT REFERENCES medicines(id) ON DELETE SET NULL,
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		selling_price_per_unit $money NOT NULL,
		purchase_price_per_unit $money NOT NULL,
		discount_per_unit $money NOT NULL,
		total_price $money NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
	`CREATE TABLE IF NOT EXISTS returns (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		returned_at $timestamp NOT NULL,
		refund_amount $money NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		processed_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_sale ON returns (sale_id)`,
	`CREATE TABLE IF NOT EXISTS return_items (
		id TEXT PRIMARY KEY,
		return_id TEXT NOT NULL REFERENCES returns(id) ON DELETE CASCADE,
		sale_item_id TEXT NOT NULL REFERENCES sale_items(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		returned_price $money NOT NULL,
		restocked $bool NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_return_items_sale_item ON return_items (sale_item_id)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at $timestamp NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs (created_at)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	r := strings.NewReplacer(
		"$money", s.dialect.Types.Money,
		"$timestamp", s.dialect.Types.Timestamp,
		"$date", s.dialect.Types.Date,
		"$bool", s.dialect.Types.Bool,
	)
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
