package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/logging"
	"apotekku/backend/internal/reconcile"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type checkoutLine struct {
	medicine domain.Medicine
	qty      int
	discount decimal.Decimal
	total    decimal.Decimal
}

// Checkout sells the requested quantities as one sale. Every medicine row is
// locked before its stock is read; any shortfall aborts the whole sale.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.SaleDetail, error) {
	ids := make([]string, 0, len(req.Items))
	for id, qty := range req.Items {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, store.Invalid("items", "cart is empty")
	}
	// A fixed lock order keeps two checkouts over the same medicines from
	// deadlocking.
	sort.Strings(ids)

	if req.PriceDeducted.IsNegative() {
		return nil, store.Invalid("price_deducted", "must not be negative")
	}
	if req.Extra.IsNegative() {
		return nil, store.Invalid("extra", "must not be negative")
	}
	if req.Discount != nil && req.Discount.IsNegative() {
		return nil, store.Invalid("discount", "must not be negative")
	}

	saleID := xid.New("sale")
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		lines := make([]checkoutLine, 0, len(ids))
		subtotal, lineDiscounts := decimal.Zero, decimal.Zero
		for _, id := range ids {
			qty := req.Items[id]
			m, err := tx.GetMedicineForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("medicine %s: %w", id, err)
			}
			if qty > m.Stock {
				return &store.InsufficientStockError{MedicineID: m.ID, Name: m.Name, Requested: qty, Available: m.Stock}
			}

			q := decimal.NewFromInt(int64(qty))
			disc := m.CalculatedDiscount()
			subtotal = subtotal.Add(m.Price.Mul(q))
			lineDiscounts = lineDiscounts.Add(disc.Mul(q))
			lines = append(lines, checkoutLine{
				medicine: *m,
				qty:      qty,
				discount: disc.RoundBank(2),
				total:    m.Price.Sub(disc).Mul(q).RoundBank(2),
			})
		}

		discount := lineDiscounts.RoundBank(2)
		if req.Discount != nil {
			discount = req.Discount.RoundBank(2)
		}
		subtotal = subtotal.RoundBank(2)
		final := reconcile.FinalAmount(subtotal, discount, req.PriceDeducted, req.Extra)
		if final.IsNegative() {
			return store.Invalid("discount", "adjustments exceed the sale subtotal")
		}

		sale := domain.Sale{
			ID:             saleID,
			SaleDate:       s.now(),
			Subtotal:       subtotal,
			DiscountAmount: discount,
			PriceDeducted:  req.PriceDeducted.RoundBank(2),
			Extra:          req.Extra.RoundBank(2),
			FinalAmount:    final,
			NetAmount:      final,
			TotalProfit:    decimal.Zero,
			ReturnedAmount: decimal.Zero,
			SoldBy:         actorName(ctx),
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		for _, l := range lines {
			medicineID := l.medicine.ID
			item := domain.SaleItem{
				ID:                   xid.New("si"),
				SaleID:               saleID,
				MedicineID:           &medicineID,
				MedicineName:         l.medicine.Name,
				Quantity:             l.qty,
				SellingPricePerUnit:  l.medicine.Price,
				PurchasePricePerUnit: l.medicine.PurchasePerUnitPrice(),
				DiscountPerUnit:      l.discount,
				TotalPrice:           l.total,
			}
			if err := tx.CreateSaleItem(ctx, item); err != nil {
				return fmt.Errorf("create sale item: %w", err)
			}
			if err := tx.DecrementStock(ctx, medicineID, l.qty); err != nil {
				return err
			}
		}

		_, _, err := refreshFigures(ctx, tx, saleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterSaleChange(ctx)
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		logging.LogError(s.log, "service", "Checkout", "sale committed but could not be reloaded", saleID, err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"sale_id": saleID,
		"lines":   len(sale.Items),
		"final":   sale.FinalAmount.String(),
	}).Info("checkout completed")
	s.logAudit(ctx, "sale_checkout", "sale", saleID, fmt.Sprintf("lines=%d,final=%s", len(sale.Items), sale.FinalAmount))

	detail := sale.Detail()
	return &detail, nil
}
