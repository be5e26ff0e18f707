package domain

import "github.com/shopspring/decimal"

// UnitPrice is the effective price per unit after line discounts, quantized to
// two places with ties going to the even cent.
func (it SaleItem) UnitPrice() decimal.Decimal {
	if it.Quantity <= 0 {
		return decimal.Zero
	}
	return it.TotalPrice.Div(decimal.NewFromInt(int64(it.Quantity))).RoundBank(2)
}

func (it SaleItem) NetQuantity() int {
	return it.Quantity - it.ReturnedQuantity
}

func (it SaleItem) NetPrice() decimal.Decimal {
	return it.UnitPrice().Mul(decimal.NewFromInt(int64(it.NetQuantity())))
}

func (it SaleItem) ReturnedPrice() decimal.Decimal {
	return it.UnitPrice().Mul(decimal.NewFromInt(int64(it.ReturnedQuantity)))
}

func (it SaleItem) IsFullyReturned() bool {
	return it.ReturnedQuantity >= it.Quantity
}

func (s Sale) IsFullyReturned() bool {
	return s.FinalAmount.LessThanOrEqual(s.ReturnedAmount)
}

func (s Sale) TotalDiscount() decimal.Decimal {
	return s.DiscountAmount.Add(s.PriceDeducted)
}

func (s Sale) HasReturns() bool {
	for _, it := range s.Items {
		if it.ReturnedQuantity > 0 {
			return true
		}
	}
	return false
}

// Detail builds the read view of a sale. Items and Returns must be loaded.
func (s Sale) Detail() SaleDetail {
	lines := make([]SaleLineView, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, SaleLineView{
			SaleItem:        it,
			UnitPrice:       it.UnitPrice(),
			NetQuantity:     it.NetQuantity(),
			NetPrice:        it.NetPrice(),
			ReturnedPrice:   it.ReturnedPrice(),
			IsFullyReturned: it.IsFullyReturned(),
		})
	}
	return SaleDetail{
		Sale:            s,
		Lines:           lines,
		TotalDiscount:   s.TotalDiscount(),
		IsFullyReturned: s.IsFullyReturned(),
		HasReturns:      s.HasReturns(),
	}
}
