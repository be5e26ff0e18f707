package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiringSoonWindow is how far ahead a medicine counts as expiring soon.
const ExpiringSoonWindow = 120 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// UnitPriceFromPacket splits a box price over its units, rounded half to even
// at 2 places.
func UnitPriceFromPacket(packetPrice decimal.Decimal, unitsPerBox int) decimal.Decimal {
	if unitsPerBox < 1 {
		return decimal.Zero
	}
	return packetPrice.Div(decimal.NewFromInt(int64(unitsPerBox))).RoundBank(2)
}

func (m Medicine) PurchasePerUnitPrice() decimal.Decimal {
	return UnitPriceFromPacket(m.RetailersPrice, m.UnitsPerBox)
}

func (m Medicine) SellingPerUnitPrice() decimal.Decimal {
	return UnitPriceFromPacket(m.PacketPrice, m.UnitsPerBox)
}

// CalculatedDiscount is the per-unit discount in money. It is not rounded so
// line totals can be rounded once.
func (m Medicine) CalculatedDiscount() decimal.Decimal {
	if m.DiscountType == DiscountTypeFlat {
		return m.Discount
	}
	return m.Price.Mul(m.Discount).Div(hundred)
}

func (m Medicine) SellingPrice() decimal.Decimal {
	return m.Price.Sub(m.CalculatedDiscount())
}

func (m Medicine) IsExpired(now time.Time) bool {
	return dateOnly(m.ExpiryDate).Before(dateOnly(now))
}

func (m Medicine) IsExpiringSoon(now time.Time) bool {
	if m.Stock <= 0 || m.IsExpired(now) {
		return false
	}
	threshold := dateOnly(now).Add(ExpiringSoonWindow)
	return !dateOnly(m.ExpiryDate).After(threshold)
}

// Reprice derives the stored unit price from the packet price.
func (m *Medicine) Reprice() {
	if m.UnitsPerBox > 0 && m.PacketPrice.IsPositive() {
		m.Price = UnitPriceFromPacket(m.PacketPrice, m.UnitsPerBox)
	}
}

func (m Medicine) View(now time.Time) MedicineView {
	return MedicineView{
		Medicine:             m,
		PurchasePerUnitPrice: m.PurchasePerUnitPrice(),
		SellingPerUnitPrice:  m.SellingPerUnitPrice(),
		CalculatedDiscount:   m.CalculatedDiscount().RoundBank(2),
		SellingPrice:         m.SellingPrice().RoundBank(2),
		IsExpired:            m.IsExpired(now),
		IsExpiringSoon:       m.IsExpiringSoon(now),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
