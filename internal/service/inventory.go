package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

const (
	initialPurchaseNote    = "Initial stock purchase"
	additionalPurchaseNote = "Additional stock purchase"
)

// ListMedicines searches by name or formula. With expiringOnly set, only
// medicines that are expired or expire within the warning window are kept.
func (s *Service) ListMedicines(ctx context.Context, query string, expiringOnly bool) ([]domain.MedicineView, error) {
	medicines, err := s.repo.ListMedicines(ctx, store.MedicineFilter{Query: query})
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]domain.MedicineView, 0, len(medicines))
	for _, m := range medicines {
		v := m.View(now)
		if expiringOnly && !v.IsExpired && !v.IsExpiringSoon {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) GetMedicine(ctx context.Context, id string) (*domain.MedicineDetail, error) {
	m, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}
	purchases, err := s.repo.ListPurchases(ctx, store.PurchaseFilter{MedicineID: id})
	if err != nil {
		return nil, err
	}

	detail := domain.MedicineDetail{
		MedicineView:        m.View(s.now()),
		TotalPurchaseAmount: decimal.Zero,
	}
	for _, p := range purchases {
		detail.TotalPurchased += p.Quantity
		detail.TotalPurchaseAmount = detail.TotalPurchaseAmount.Add(p.TotalAmount)
	}
	if len(purchases) > 0 {
		last := purchases[0]
		detail.LastPurchase = &last
	}
	return &detail, nil
}

// CreateMedicine adds a medicine with its opening stock and records that stock
// as the first purchase.
func (s *Service) CreateMedicine(ctx context.Context, req domain.MedicineCreateRequest) (*domain.MedicineView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	expiry, err := s.parseDay("expiry_date", req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if expiry == nil {
		return nil, store.Invalid("expiry_date", "is required")
	}
	if req.InitialStock < 1 {
		return nil, store.Invalid("initial_stock", "must be at least 1")
	}

	now := s.now()
	m := domain.Medicine{
		ID:             xid.New("med"),
		Name:           strings.TrimSpace(req.Name),
		Company:        strings.TrimSpace(req.Company),
		Formula:        strings.TrimSpace(req.Formula),
		BatchNo:        strings.TrimSpace(req.BatchNo),
		RackNumber:     strings.TrimSpace(req.RackNumber),
		RetailersPrice: req.RetailersPrice,
		PacketPrice:    req.PacketPrice,
		UnitsPerBox:    req.UnitsPerBox,
		DiscountType:   req.DiscountType,
		Discount:       req.Discount,
		Stock:          req.InitialStock,
		ExpiryDate:     *expiry,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.DiscountType == "" {
		m.DiscountType = domain.DiscountTypePercent
	}
	if m.Name == "" {
		return nil, store.Invalid("name", "is required")
	}
	m.Reprice()
	if fe := m.Validate(now); fe != nil {
		return nil, store.Invalid(fe.Field, "%s", fe.Message)
	}

	note := strings.TrimSpace(req.PurchaseNote)
	if note == "" {
		note = initialPurchaseNote
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateMedicine(ctx, m); err != nil {
			return err
		}
		return tx.CreatePurchase(ctx, purchaseFor(m, m.Stock, m.PurchasePerUnitPrice(), note, now))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "medicine_create", "medicine", m.ID, fmt.Sprintf("name=%s,stock=%d", m.Name, m.Stock))
	view := m.View(now)
	return &view, nil
}

// UpdateMedicine applies the set fields. AdditionalStock, when positive, is
// added to stock and recorded as a purchase.
func (s *Service) UpdateMedicine(ctx context.Context, id string, req domain.MedicineUpdateRequest) (*domain.MedicineView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if req.AdditionalStock < 0 {
		return nil, store.Invalid("additional_stock", "must not be negative")
	}
	var expiry *time.Time
	if req.ExpiryDate != nil {
		parsed, err := s.parseDay("expiry_date", *req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		expiry = parsed
	}

	now := s.now()
	var updated domain.Medicine
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetMedicineForUpdate(ctx, id)
		if err != nil {
			return err
		}
		m := *current
		applyMedicineUpdate(&m, req, expiry)
		if strings.TrimSpace(m.Name) == "" {
			return store.Invalid("name", "is required")
		}
		m.Reprice()
		m.Stock += req.AdditionalStock
		m.UpdatedAt = now
		if fe := m.Validate(now); fe != nil {
			return store.Invalid(fe.Field, "%s", fe.Message)
		}
		if err := tx.UpdateMedicine(ctx, m); err != nil {
			return err
		}

		if req.AdditionalStock > 0 {
			note := strings.TrimSpace(req.PurchaseNote)
			if note == "" {
				note = additionalPurchaseNote
			}
			if err := tx.CreatePurchase(ctx, purchaseFor(m, req.AdditionalStock, m.PurchasePerUnitPrice(), note, now)); err != nil {
				return err
			}
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "medicine_update", "medicine", id, fmt.Sprintf("stock=%d,added=%d", updated.Stock, req.AdditionalStock))
	view := updated.View(now)
	return &view, nil
}

func applyMedicineUpdate(m *domain.Medicine, req domain.MedicineUpdateRequest, expiry *time.Time) {
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Company != nil {
		m.Company = strings.TrimSpace(*req.Company)
	}
	if req.Formula != nil {
		m.Formula = strings.TrimSpace(*req.Formula)
	}
	if req.BatchNo != nil {
		m.BatchNo = strings.TrimSpace(*req.BatchNo)
	}
	if req.RackNumber != nil {
		m.RackNumber = strings.TrimSpace(*req.RackNumber)
	}
	if req.RetailersPrice != nil {
		m.RetailersPrice = *req.RetailersPrice
	}
	if req.PacketPrice != nil {
		m.PacketPrice = *req.PacketPrice
	}
	if req.UnitsPerBox != nil {
		m.UnitsPerBox = *req.UnitsPerBox
	}
	if req.DiscountType != nil {
		m.DiscountType = *req.DiscountType
	}
	if req.Discount != nil {
		m.Discount = *req.Discount
	}
	if expiry != nil {
		m.ExpiryDate = *expiry
	}
}

// DeleteMedicine removes the medicine and its purchase history. Past sale
// items keep their name snapshot.
func (s *Service) DeleteMedicine(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	var name string
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.GetMedicineForUpdate(ctx, id)
		if err != nil {
			return err
		}
		name = m.Name
		return tx.DeleteMedicine(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "medicine_delete", "medicine", id, "name="+name)
	return nil
}

// RecordPurchase restocks a medicine. UnitPrice defaults to the medicine's
// purchase price per unit.
func (s *Service) RecordPurchase(ctx context.Context, medicineID string, req domain.PurchaseCreateRequest) (*domain.PurchaseRecord, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, store.Invalid("quantity", "must be at least 1")
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, store.Invalid("unit_price", "must not be negative")
	}

	now := s.now()
	var record domain.PurchaseRecord
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.GetMedicineForUpdate(ctx, medicineID)
		if err != nil {
			return err
		}
		unit := m.PurchasePerUnitPrice()
		if req.UnitPrice != nil {
			unit = req.UnitPrice.RoundBank(2)
		}
		note := strings.TrimSpace(req.Notes)
		if note == "" {
			note = additionalPurchaseNote
		}
		record = purchaseFor(*m, req.Quantity, unit, note, now)
		if err := tx.IncrementStock(ctx, m.ID, req.Quantity); err != nil {
			return err
		}
		return tx.CreatePurchase(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "purchase_create", "medicine", medicineID, fmt.Sprintf("qty=%d,total=%s", record.Quantity, record.TotalAmount))
	return &record, nil
}

func (s *Service) ListPurchases(ctx context.Context, medicineID string) ([]domain.PurchaseRecord, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, store.PurchaseFilter{MedicineID: medicineID})
}

// PurchaseSummary reports purchase totals for today, all time and an optional
// inclusive date range, plus the purchase value of the stock on hand.
func (s *Service) PurchaseSummary(ctx context.Context, startDate string, endDate string) (*domain.PurchaseSummary, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	start, err := s.parseDay("start_date", startDate)
	if err != nil {
		return nil, err
	}
	end, err := s.parseDay("end_date", endDate)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.ListPurchases(ctx, store.PurchaseFilter{})
	if err != nil {
		return nil, err
	}
	medicines, err := s.repo.ListMedicines(ctx, store.MedicineFilter{})
	if err != nil {
		return nil, err
	}

	today := s.today()
	tomorrow := today.AddDate(0, 0, 1)
	out := &domain.PurchaseSummary{
		TodayTotal:            decimal.Zero,
		AllTimeTotal:          decimal.Zero,
		DateRangeTotal:        decimal.Zero,
		CurrentInventoryValue: decimal.Zero,
		TodayPurchases:        []domain.PurchaseRecord{},
		FilteredPurchases:     []domain.PurchaseRecord{},
		TodayDate:             today.Format(dateLayout),
	}

	var rangeFrom, rangeTo time.Time
	if start != nil {
		if end == nil || end.Before(*start) {
			end = start
		}
		rangeFrom, rangeTo = *start, end.AddDate(0, 0, 1)
		out.HasDateRange = true
		out.StartDate = start.Format(dateLayout)
		out.EndDate = end.Format(dateLayout)
	}

	for _, p := range all {
		out.AllTimeTotal = out.AllTimeTotal.Add(p.TotalAmount)
		if !p.PurchaseDate.Before(today) && p.PurchaseDate.Before(tomorrow) {
			out.TodayTotal = out.TodayTotal.Add(p.TotalAmount)
			out.TodayPurchases = append(out.TodayPurchases, p)
		}
		if out.HasDateRange && !p.PurchaseDate.Before(rangeFrom) && p.PurchaseDate.Before(rangeTo) {
			out.DateRangeTotal = out.DateRangeTotal.Add(p.TotalAmount)
			out.FilteredPurchases = append(out.FilteredPurchases, p)
		}
	}
	for _, m := range medicines {
		value := m.PurchasePerUnitPrice().Mul(decimal.NewFromInt(int64(m.Stock)))
		out.CurrentInventoryValue = out.CurrentInventoryValue.Add(value)
	}
	out.CurrentInventoryValue = out.CurrentInventoryValue.RoundBank(2)

	return out, nil
}

func purchaseFor(m domain.Medicine, qty int, unit decimal.Decimal, note string, at time.Time) domain.PurchaseRecord {
	return domain.PurchaseRecord{
		ID:           xid.New("pur"),
		MedicineID:   m.ID,
		MedicineName: m.Name,
		Quantity:     qty,
		UnitPrice:    unit,
		TotalAmount:  unit.Mul(decimal.NewFromInt(int64(qty))).RoundBank(2),
		PurchaseDate: at,
		Notes:        note,
	}
}
