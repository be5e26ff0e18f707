package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/logging"
	"apotekku/backend/internal/store"
)

const cartCheckoutLockTTL = 30 * time.Second

// GetCart prices the cart against current medicine data. Lines whose medicine
// no longer exists are dropped from the cart.
func (s *Service) GetCart(ctx context.Context, cartID string) (*domain.CartView, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, store.Invalid("cart_id", "is required")
	}
	lines, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	view := &domain.CartView{
		CartID:         cartID,
		Items:          []domain.CartLine{},
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
	}
	for _, id := range ids {
		m, err := s.repo.GetMedicine(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			if err := s.carts.Remove(ctx, cartID, id); err != nil {
				logging.LogError(s.log, "service", "GetCart", "failed to drop stale cart line", id, err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		qty := decimal.NewFromInt(int64(lines[id]))
		disc := m.CalculatedDiscount()
		line := domain.CartLine{
			MedicineID: m.ID,
			Name:       m.Name,
			Quantity:   lines[id],
			Price:      m.Price,
			Discount:   disc.RoundBank(2),
			Total:      m.Price.Sub(disc).Mul(qty).RoundBank(2),
			Stock:      m.Stock,
		}
		view.Items = append(view.Items, line)
		view.Subtotal = view.Subtotal.Add(m.Price.Mul(qty))
		view.DiscountAmount = view.DiscountAmount.Add(disc.Mul(qty))
	}
	view.Subtotal = view.Subtotal.RoundBank(2)
	view.DiscountAmount = view.DiscountAmount.RoundBank(2)
	view.Total = view.Subtotal.Sub(view.DiscountAmount)
	return view, nil
}

// UpdateCart adds to, sets or removes a cart line. The resulting quantity may
// not exceed the stock on hand.
func (s *Service) UpdateCart(ctx context.Context, cartID string, req domain.CartUpdateRequest) (*domain.CartView, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, store.Invalid("cart_id", "is required")
	}
	action := req.Action
	if action == "" {
		action = "add"
	}

	switch action {
	case "remove":
		if err := s.carts.Remove(ctx, cartID, req.MedicineID); err != nil {
			return nil, err
		}
		return s.GetCart(ctx, cartID)
	case "add", "update":
	default:
		return nil, store.Invalid("action", "must be add, update or remove")
	}

	m, err := s.repo.GetMedicine(ctx, req.MedicineID)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(s.now()) {
		return nil, store.Invalid("medicine_id", "%s is expired", m.Name)
	}

	current, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	want := req.Quantity
	if action == "add" {
		if req.Quantity < 1 {
			return nil, store.Invalid("quantity", "must be at least 1")
		}
		want = current[m.ID] + req.Quantity
	}
	if want > m.Stock {
		return nil, &store.InsufficientStockError{MedicineID: m.ID, Name: m.Name, Requested: want, Available: m.Stock}
	}

	if action == "add" {
		_, err = s.carts.Add(ctx, cartID, m.ID, req.Quantity)
	} else {
		err = s.carts.Set(ctx, cartID, m.ID, want)
	}
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, cartID)
}

func (s *Service) ClearCart(ctx context.Context, cartID string) error {
	return s.carts.Clear(ctx, strings.TrimSpace(cartID))
}

// CheckoutCart sells the cart's contents and empties it. Only one checkout of
// a given cart runs at a time.
func (s *Service) CheckoutCart(ctx context.Context, cartID string, req domain.CartCheckoutRequest) (*domain.SaleDetail, error) {
	cartID = strings.TrimSpace(cartID)
	release, err := s.locker.Obtain(ctx, "cart:"+cartID, cartCheckoutLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, fmt.Errorf("%w: checkout already in progress", store.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logging.LogError(s.log, "service", "CheckoutCart", "failed to release cart lock", cartID, err)
		}
	}()

	lines, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	detail, err := s.Checkout(ctx, domain.CheckoutRequest{
		Items:         lines,
		Discount:      req.Discount,
		PriceDeducted: req.PriceDeducted,
		Extra:         req.Extra,
	})
	if err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, cartID); err != nil {
		logging.LogError(s.log, "service", "CheckoutCart", "failed to clear cart after checkout", cartID, err)
	}
	return detail, nil
}
