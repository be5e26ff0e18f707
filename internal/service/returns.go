package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/reconcile"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

// CreateReturn records a return against a sale. Lines with a zero quantity are
// ignored; if none remain nothing is persisted and, once the sale is known to
// exist, ErrEmptyReturn is returned. Restocked lines put the units back on the
// shelf and the sale figures are recomputed in the same transaction.
func (s *Service) CreateReturn(ctx context.Context, saleID string, req domain.ReturnRequest) (*domain.Return, error) {
	requested := make([]domain.ReturnLineRequest, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 0 {
			return nil, store.Invalid("quantity", "must not be negative")
		}
		if line.Quantity > 0 {
			requested = append(requested, line)
		}
	}
	ret := domain.Return{
		ID:          xid.New("ret"),
		SaleID:      saleID,
		ReturnedAt:  s.now(),
		Reason:      strings.TrimSpace(req.Reason),
		ProcessedBy: actorName(ctx),
	}
	var figures reconcile.Figures
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetSaleForUpdate(ctx, saleID); err != nil {
			return fmt.Errorf("sale %s: %w", saleID, err)
		}
		// Checked after the lookup so a missing sale reports not found.
		if len(requested) == 0 {
			return store.ErrEmptyReturn
		}
		items, err := tx.ListSaleItems(ctx, saleID)
		if err != nil {
			return err
		}
		byID := make(map[string]domain.SaleItem, len(items))
		for _, it := range items {
			byID[it.ID] = it
		}

		// Validate every line before writing, counting repeated lines for the
		// same item together.
		pending := map[string]int{}
		refund := decimal.Zero
		lines := make([]domain.ReturnItem, 0, len(requested))
		for _, line := range requested {
			it, ok := byID[line.SaleItemID]
			if !ok {
				return fmt.Errorf("sale item %s: %w", line.SaleItemID, store.ErrNotFound)
			}
			returnable := it.NetQuantity() - pending[it.ID]
			if line.Quantity > returnable {
				return &store.OverReturnError{SaleItemID: it.ID, Name: it.MedicineName, Requested: line.Quantity, Returnable: returnable}
			}
			pending[it.ID] += line.Quantity

			restock := line.Restock && it.MedicineID != nil
			price := reconcile.LinePrice(it, line.Quantity)
			refund = refund.Add(price)
			lines = append(lines, domain.ReturnItem{
				ID:            xid.New("ri"),
				ReturnID:      ret.ID,
				SaleItemID:    it.ID,
				Quantity:      line.Quantity,
				ReturnedPrice: price,
				Restocked:     restock,
			})
		}

		ret.RefundAmount = refund
		if err := tx.CreateReturn(ctx, ret); err != nil {
			return fmt.Errorf("create return: %w", err)
		}
		back := map[string]int{}
		for _, l := range lines {
			if err := tx.CreateReturnItem(ctx, l); err != nil {
				return fmt.Errorf("create return item: %w", err)
			}
			if l.Restocked {
				back[*byID[l.SaleItemID].MedicineID] += l.Quantity
			}
		}
		if _, err := restock(ctx, tx, back, false); err != nil {
			return err
		}

		_, figures, err = refreshFigures(ctx, tx, saleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	ret.Items = nil

	s.afterSaleChange(ctx)
	s.log.WithFields(logrus.Fields{
		"sale_id":   saleID,
		"return_id": ret.ID,
		"refund":    ret.RefundAmount.String(),
		"policy":    string(figures.Policy),
	}).Info("return processed")
	s.logAudit(ctx, "sale_return", "sale", saleID, fmt.Sprintf("return=%s,refund=%s,net=%s", ret.ID, ret.RefundAmount, figures.NetAmount))

	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	for _, r := range sale.Returns {
		if r.ID == ret.ID {
			return &r, nil
		}
	}
	return &ret, nil
}
