package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type sqlTx struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (t *sqlTx) locked(query string) string {
	if t.dialect.LockClause == "" {
		return t.tx.Rebind(query)
	}
	return t.tx.Rebind(query + " " + t.dialect.LockClause)
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	return t.mapErr(err)
}

func (t *sqlTx) mapErr(err error) error {
	if err != nil && t.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (t *sqlTx) GetMedicineForUpdate(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := t.tx.GetContext(ctx, &m, t.locked(`SELECT `+medicineColumns+` FROM medicines WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (t *sqlTx) CreateMedicine(ctx context.Context, m domain.Medicine) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO medicines (`+medicineColumns+`)
		VALUES (:id, :name, :company, :formula, :batch_no, :rack_number, :price, :retailers_price,
		:packet_price, :units_per_box, :discount_type, :discount, :stock, :expiry_date, :created_at, :updated_at)`, m)
	return t.mapErr(err)
}

func (t *sqlTx) UpdateMedicine(ctx context.Context, m domain.Medicine) error {
	res, err := t.tx.NamedExecContext(ctx, `UPDATE medicines SET name = :name, company = :company,
		formula = :formula, batch_no = :batch_no, rack_number = :rack_number, price = :price,
		retailers_price = :retailers_price, packet_price = :packet_price, units_per_box = :units_per_box,
		discount_type = :discount_type, discount = :discount, stock = :stock, expiry_date = :expiry_date,
		updated_at = :updated_at
		WHERE id = :id`, m)
	if err != nil {
		return t.mapErr(err)
	}
	return requireAffected(res)
}

func (t *sqlTx) DeleteMedicine(ctx context.Context, id string) error {
	if err := t.exec(ctx, `UPDATE sale_items SET medicine_id = NULL WHERE medicine_id = ?`, id); err != nil {
		return err
	}
	if err := t.exec(ctx, `DELETE FROM purchase_records WHERE medicine_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM medicines WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) IncrementStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return store.Invalid("quantity", "must not be negative")
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE medicines SET stock = stock + ?, updated_at = ? WHERE id = ?`),
		qty, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) DecrementStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return store.Invalid("quantity", "must not be negative")
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE medicines SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`),
		qty, time.Now().UTC(), id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current struct {
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	if err := t.tx.GetContext(ctx, &current, t.tx.Rebind(`SELECT name, stock FROM medicines WHERE id = ?`), id); err != nil {
		return notFound(err)
	}
	return &store.InsufficientStockError{MedicineID: id, Name: current.Name, Requested: qty, Available: current.Stock}
}

func (t *sqlTx) CreatePurchase(ctx context.Context, p domain.PurchaseRecord) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO purchase_records (`+purchaseColumns+`)
		VALUES (:id, :medicine_id, :medicine_name, :quantity, :unit_price, :total_amount, :purchase_date, :notes)`, p)
	return t.mapErr(err)
}

func (t *sqlTx) CreateSale(ctx context.Context, s domain.Sale) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO sales (`+saleColumns+`)
		VALUES (:id, :sale_date, :subtotal, :discount_amount, :price_deducted, :extra, :final_amount,
		:net_amount, :total_profit, :returned_amount, :sold_by)`, s)
	return t.mapErr(err)
}

func (t *sqlTx) CreateSaleItem(ctx context.Context, it domain.SaleItem) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO sale_items (id, sale_id, medicine_id, medicine_name, quantity,
		selling_price_per_unit, purchase_price_per_unit, discount_per_unit, total_price)
		VALUES (:id, :sale_id, :medicine_id, :medicine_name, :quantity,
		:selling_price_per_unit, :purchase_price_per_unit, :discount_per_unit, :total_price)`, it)
	return t.mapErr(err)
}

func (t *sqlTx) GetSaleForUpdate(ctx context.Context, id string) (*domain.Sale, error) {
	var s domain.Sale
	if err := t.tx.GetContext(ctx, &s, t.locked(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (t *sqlTx) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	items := make([]domain.SaleItem, 0, 8)
	if err := t.tx.SelectContext(ctx, &items, t.tx.Rebind(saleItemSelect), saleID); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *sqlTx) UpdateSaleFigures(ctx context.Context, s domain.Sale) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE sales SET net_amount = ?, total_profit = ?, returned_amount = ? WHERE id = ?`),
		s.NetAmount, s.TotalProfit, s.ReturnedAmount, s.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteSale removes the sale and its children explicitly so SQLite databases
// without foreign key enforcement behave like Postgres.
func (t *sqlTx) DeleteSale(ctx context.Context, id string) error {
	if err := t.exec(ctx, `DELETE FROM return_items WHERE return_id IN (SELECT id FROM returns WHERE sale_id = ?)`, id); err != nil {
		return err
	}
	if err := t.exec(ctx, `DELETE FROM returns WHERE sale_id = ?`, id); err != nil {
		return err
	}
	if err := t.exec(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM sales WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) ListReturnItems(ctx context.Context, saleID string) ([]domain.ReturnItem, error) {
	lines := make([]domain.ReturnItem, 0, 8)
	err := t.tx.SelectContext(ctx, &lines, t.tx.Rebind(`SELECT ri.id, ri.return_id, ri.sale_item_id, ri.quantity, ri.returned_price, ri.restocked
		FROM return_items ri JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = ? ORDER BY ri.id`), saleID)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (t *sqlTx) CreateReturn(ctx context.Context, r domain.Return) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO returns (`+returnColumns+`)
		VALUES (:id, :sale_id, :returned_at, :refund_amount, :reason, :processed_by)`, r)
	return t.mapErr(err)
}

func (t *sqlTx) CreateReturnItem(ctx context.Context, it domain.ReturnItem) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO return_items (`+returnItemColumns+`)
		VALUES (:id, :return_id, :sale_item_id, :quantity, :returned_price, :restocked)`, it)
	return t.mapErr(err)
}
