// Package reconcile derives a sale's cached money figures from its line items
// and return lines. It does no I/O; callers load the aggregate, call Compute and
// persist the result inside the same transaction.
package reconcile

import (
	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
)

// Policy names the formula variant applied to a whole sale.
type Policy string

const (
	// NoReturn applies while no item of the sale has been returned.
	NoReturn Policy = "no_return"
	// HasReturn applies once any single item has a returned quantity. Sale-level
	// discount and price deduction are added back for the entire sale.
	HasReturn Policy = "has_return"
)

// Figures are the cached fields stored on a sale.
type Figures struct {
	NetAmount      decimal.Decimal
	TotalProfit    decimal.Decimal
	ReturnedAmount decimal.Decimal
	Policy         Policy
}

// Apply copies the figures onto s.
func (f Figures) Apply(s *domain.Sale) {
	s.NetAmount = f.NetAmount
	s.TotalProfit = f.TotalProfit
	s.ReturnedAmount = f.ReturnedAmount
}

type formula interface {
	net(s domain.Sale, returned decimal.Decimal) decimal.Decimal
	profit(s domain.Sale, items []domain.SaleItem) decimal.Decimal
}

var formulas = map[Policy]formula{
	NoReturn:  noReturnFormula{},
	HasReturn: hasReturnFormula{},
}

type noReturnFormula struct{}

func (noReturnFormula) net(s domain.Sale, returned decimal.Decimal) decimal.Decimal {
	return floor(s.FinalAmount.Sub(returned))
}

func (noReturnFormula) profit(s domain.Sale, items []domain.SaleItem) decimal.Decimal {
	total := itemsProfit(items, func(it domain.SaleItem) int { return it.Quantity })
	total = total.Add(s.Extra).Sub(s.DiscountAmount).Sub(s.PriceDeducted)
	return floor(total)
}

type hasReturnFormula struct{}

func (hasReturnFormula) net(s domain.Sale, returned decimal.Decimal) decimal.Decimal {
	return floor(s.FinalAmount.Sub(returned).Add(s.DiscountAmount).Add(s.PriceDeducted))
}

func (hasReturnFormula) profit(s domain.Sale, items []domain.SaleItem) decimal.Decimal {
	total := itemsProfit(items, func(it domain.SaleItem) int { return it.NetQuantity() })
	return floor(total.Add(s.Extra))
}

// itemsProfit sums the margin over the quantity chosen by qty. The per-unit line
// discount is always charged on the full sold quantity.
func itemsProfit(items []domain.SaleItem, qty func(domain.SaleItem) int) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		margin := it.SellingPricePerUnit.Sub(it.PurchasePricePerUnit)
		total = total.Add(margin.Mul(decimal.NewFromInt(int64(qty(it)))))
		total = total.Sub(it.DiscountPerUnit.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// PolicyFor selects the formula variant from the items' returned quantities.
func PolicyFor(items []domain.SaleItem) Policy {
	for _, it := range items {
		if it.ReturnedQuantity > 0 {
			return HasReturn
		}
	}
	return NoReturn
}

// ReturnedAmount sums returned_price over every return line of a sale.
func ReturnedAmount(lines []domain.ReturnItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.ReturnedPrice)
	}
	return total
}

// Compute derives the cached figures for s. Items must carry their current
// ReturnedQuantity and returnLines must hold every return line of the sale.
func Compute(s domain.Sale, items []domain.SaleItem, returnLines []domain.ReturnItem) Figures {
	policy := PolicyFor(items)
	f := formulas[policy]
	returned := ReturnedAmount(returnLines).RoundBank(2)
	return Figures{
		NetAmount:      f.net(s, returned).RoundBank(2),
		TotalProfit:    f.profit(s, items).RoundBank(2),
		ReturnedAmount: returned,
		Policy:         policy,
	}
}

// FinalAmount is the amount charged at checkout.
func FinalAmount(subtotal, discount, priceDeducted, extra decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Sub(priceDeducted).Add(extra).RoundBank(2)
}

// LinePrice is the refund value of qty units of it.
func LinePrice(it domain.SaleItem, qty int) decimal.Decimal {
	return it.UnitPrice().Mul(decimal.NewFromInt(int64(qty))).RoundBank(2)
}

func floor(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
