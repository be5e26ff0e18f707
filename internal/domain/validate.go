package domain

import (
	"fmt"
	"time"
)

// FieldError describes one rejected medicine field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the money and date rules a medicine must satisfy before it is
// persisted. It returns the first violation found.
func (m Medicine) Validate(now time.Time) *FieldError {
	if m.UnitsPerBox < 1 {
		return &FieldError{Field: "units_per_box", Message: "must be at least 1"}
	}
	if m.RetailersPrice.IsNegative() {
		return &FieldError{Field: "retailers_price", Message: "must not be negative"}
	}
	if m.PacketPrice.IsNegative() {
		return &FieldError{Field: "packet_price", Message: "must not be negative"}
	}
	if m.Discount.IsNegative() {
		return &FieldError{Field: "discount", Message: "must not be negative"}
	}
	switch m.DiscountType {
	case DiscountTypeFlat:
		if m.Discount.GreaterThan(m.PacketPrice) {
			return &FieldError{Field: "discount", Message: "flat discount cannot exceed the packet price"}
		}
	case DiscountTypePercent:
		if m.Discount.GreaterThan(hundred) {
			return &FieldError{Field: "discount", Message: "percentage discount cannot exceed 100"}
		}
	default:
		return &FieldError{Field: "discount_type", Message: "must be percent or flat"}
	}
	if m.Stock < 0 {
		return &FieldError{Field: "stock", Message: "must not be negative"}
	}
	if m.ExpiryDate.IsZero() {
		return &FieldError{Field: "expiry_date", Message: "is required"}
	}
	if m.IsExpired(now) {
		return &FieldError{Field: "expiry_date", Message: "cannot be in the past"}
	}
	return nil
}
