package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/report"
	"apotekku/backend/internal/store"
)

func (s *Service) GetSale(ctx context.Context, id string) (*domain.SaleDetail, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := sale.Detail()
	return &detail, nil
}

// ListSales returns the sales between dateFrom and dateTo inclusive, newest
// first. Both bounds default to today.
func (s *Service) ListSales(ctx context.Context, dateFrom string, dateTo string) (*domain.SaleList, error) {
	from, err := s.parseDay("date_from", dateFrom)
	if err != nil {
		return nil, err
	}
	to, err := s.parseDay("date_to", dateTo)
	if err != nil {
		return nil, err
	}
	today := s.today()
	if from == nil {
		from = &today
	}
	if to == nil {
		to = &today
	}
	if to.Before(*from) {
		return nil, store.Invalid("date_to", "must not be before date_from")
	}

	end := to.AddDate(0, 0, 1)
	sales, err := s.repo.ListSales(ctx, store.SaleFilter{From: from, To: &end})
	if err != nil {
		return nil, err
	}
	amount, profit := report.ListTotals(sales)

	return &domain.SaleList{
		Sales:       sales,
		TotalSales:  len(sales),
		TotalAmount: amount,
		TotalProfit: profit,
		DateFrom:    from.Format(dateLayout),
		DateTo:      to.Format(dateLayout),
	}, nil
}

// DeleteSale removes a sale with its items and returns. Units still held by
// the customer go back to stock for medicines that still exist.
func (s *Service) DeleteSale(ctx context.Context, id string) (*domain.DeleteSaleResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var restocked map[string]int
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetSaleForUpdate(ctx, id); err != nil {
			return fmt.Errorf("sale %s: %w", id, err)
		}
		items, err := tx.ListSaleItems(ctx, id)
		if err != nil {
			return err
		}
		held := map[string]int{}
		for _, it := range items {
			if it.MedicineID != nil && it.NetQuantity() > 0 {
				held[*it.MedicineID] += it.NetQuantity()
			}
		}
		if restocked, err = restock(ctx, tx, held, true); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	s.afterSaleChange(ctx)
	s.log.WithFields(logrus.Fields{"sale_id": id, "restocked": len(restocked)}).Info("sale deleted")
	s.logAudit(ctx, "sale_delete", "sale", id, fmt.Sprintf("restocked_lines=%d", len(restocked)))

	return &domain.DeleteSaleResponse{SaleID: id, Restocked: restocked}, nil
}

// RecomputeSale re-derives the stored figures of a sale. The result is the
// same however often it runs.
func (s *Service) RecomputeSale(ctx context.Context, id string) (*domain.SaleDetail, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, _, err := refreshFigures(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterSaleChange(ctx)
	s.logAudit(ctx, "sale_recompute", "sale", id, "")

	return s.GetSale(ctx, id)
}
