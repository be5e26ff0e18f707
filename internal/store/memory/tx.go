package memory

import (
	"context"
	"slices"
	"time"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type memTx struct {
	l *ledger
}

func (t *memTx) GetMedicineForUpdate(_ context.Context, id string) (*domain.Medicine, error) {
	m, ok := t.l.medicines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (t *memTx) CreateMedicine(_ context.Context, m domain.Medicine) error {
	if _, exists := t.l.medicines[m.ID]; exists {
		return store.ErrConflict
	}
	t.l.medicines[m.ID] = m
	return nil
}

func (t *memTx) UpdateMedicine(_ context.Context, m domain.Medicine) error {
	if _, ok := t.l.medicines[m.ID]; !ok {
		return store.ErrNotFound
	}
	t.l.medicines[m.ID] = m
	return nil
}

func (t *memTx) DeleteMedicine(_ context.Context, id string) error {
	if _, ok := t.l.medicines[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.l.medicines, id)
	t.l.purchases = slices.DeleteFunc(t.l.purchases, func(p domain.PurchaseRecord) bool {
		return p.MedicineID == id
	})
	for saleID, items := range t.l.saleItems {
		for i := range items {
			if items[i].MedicineID != nil && *items[i].MedicineID == id {
				items[i].MedicineID = nil
			}
		}
		t.l.saleItems[saleID] = items
	}
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, id string, qty int) error {
	m, ok := t.l.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	if qty < 0 {
		return store.Invalid("quantity", "must not be negative")
	}
	m.Stock += qty
	m.UpdatedAt = time.Now().UTC()
	t.l.medicines[id] = m
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, id string, qty int) error {
	m, ok := t.l.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	if qty < 0 {
		return store.Invalid("quantity", "must not be negative")
	}
	if m.Stock < qty {
		return &store.InsufficientStockError{MedicineID: id, Name: m.Name, Requested: qty, Available: m.Stock}
	}
	m.Stock -= qty
	m.UpdatedAt = time.Now().UTC()
	t.l.medicines[id] = m
	return nil
}

func (t *memTx) CreatePurchase(_ context.Context, p domain.PurchaseRecord) error {
	if _, ok := t.l.medicines[p.MedicineID]; !ok {
		return store.ErrNotFound
	}
	t.l.purchases = append(t.l.purchases, p)
	return nil
}

func (t *memTx) CreateSale(_ context.Context, s domain.Sale) error {
	if _, exists := t.l.sales[s.ID]; exists {
		return store.ErrConflict
	}
	s.Items = nil
	s.Returns = nil
	t.l.sales[s.ID] = s
	return nil
}

func (t *memTx) CreateSaleItem(_ context.Context, it domain.SaleItem) error {
	if _, ok := t.l.sales[it.SaleID]; !ok {
		return store.ErrNotFound
	}
	it.ReturnedQuantity = 0
	t.l.saleItems[it.SaleID] = append(t.l.saleItems[it.SaleID], it)
	return nil
}

func (t *memTx) GetSaleForUpdate(_ context.Context, id string) (*domain.Sale, error) {
	s, ok := t.l.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (t *memTx) ListSaleItems(_ context.Context, saleID string) ([]domain.SaleItem, error) {
	if _, ok := t.l.sales[saleID]; !ok {
		return nil, store.ErrNotFound
	}
	return t.l.itemsWithReturns(saleID), nil
}

func (t *memTx) UpdateSaleFigures(_ context.Context, s domain.Sale) error {
	current, ok := t.l.sales[s.ID]
	if !ok {
		return store.ErrNotFound
	}
	current.NetAmount = s.NetAmount
	current.TotalProfit = s.TotalProfit
	current.ReturnedAmount = s.ReturnedAmount
	t.l.sales[s.ID] = current
	return nil
}

func (t *memTx) DeleteSale(_ context.Context, id string) error {
	if _, ok := t.l.sales[id]; !ok {
		return store.ErrNotFound
	}
	for _, r := range t.l.returns[id] {
		delete(t.l.returnItems, r.ID)
	}
	delete(t.l.returns, id)
	delete(t.l.saleItems, id)
	delete(t.l.sales, id)
	return nil
}

func (t *memTx) ListReturnItems(_ context.Context, saleID string) ([]domain.ReturnItem, error) {
	result := make([]domain.ReturnItem, 0, 8)
	for _, r := range t.l.returns[saleID] {
		result = append(result, t.l.returnItems[r.ID]...)
	}
	return result, nil
}

func (t *memTx) CreateReturn(_ context.Context, r domain.Return) error {
	if _, ok := t.l.sales[r.SaleID]; !ok {
		return store.ErrNotFound
	}
	r.Items = nil
	t.l.returns[r.SaleID] = append(t.l.returns[r.SaleID], r)
	return nil
}

func (t *memTx) CreateReturnItem(_ context.Context, it domain.ReturnItem) error {
	for _, returns := range t.l.returns {
		for _, r := range returns {
			if r.ID == it.ReturnID {
				t.l.returnItems[it.ReturnID] = append(t.l.returnItems[it.ReturnID], it)
				return nil
			}
		}
	}
	return store.ErrNotFound
}
