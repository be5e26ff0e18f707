package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apotekku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOverReturn        = errors.New("return exceeds net quantity")
	ErrEmptyReturn       = errors.New("return has no items")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
)

// InsufficientStockError names the medicine that could not cover a checkout line.
type InsufficientStockError struct {
	MedicineID string
	Name       string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OverReturnError is raised when a return line asks for more than a sale item's
// net quantity.
type OverReturnError struct {
	SaleItemID string
	Name       string
	Requested  int
	Returnable int
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("cannot return %d of %s: only %d returnable", e.Requested, e.Name, e.Returnable)
}

func (e *OverReturnError) Unwrap() error { return ErrOverReturn }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MedicineFilter matches Query against name or formula, case-insensitively.
type MedicineFilter struct {
	Query string
	Limit int
}

type SaleFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type PurchaseFilter struct {
	MedicineID string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Repository is the read side plus the transaction entry point. Every write goes
// through WithinTx so stock, sales and returns change together or not at all.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetMedicine(ctx context.Context, id string) (*domain.Medicine, error)
	ListMedicines(ctx context.Context, filter MedicineFilter) ([]domain.Medicine, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]domain.PurchaseRecord, error)

	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Tx is a unit of work. Medicines read with GetMedicineForUpdate and sales read
// with GetSaleForUpdate stay locked until the transaction ends.
type Tx interface {
	GetMedicineForUpdate(ctx context.Context, id string) (*domain.Medicine, error)
	CreateMedicine(ctx context.Context, m domain.Medicine) error
	UpdateMedicine(ctx context.Context, m domain.Medicine) error
	// DeleteMedicine removes the medicine and its purchase records. Sale items
	// keep their name snapshot with a null medicine reference.
	DeleteMedicine(ctx context.Context, id string) error
	IncrementStock(ctx context.Context, id string, qty int) error
	// DecrementStock fails with *InsufficientStockError when stock would go
	// negative.
	DecrementStock(ctx context.Context, id string, qty int) error
	CreatePurchase(ctx context.Context, p domain.PurchaseRecord) error

	CreateSale(ctx context.Context, s domain.Sale) error
	CreateSaleItem(ctx context.Context, it domain.SaleItem) error
	GetSaleForUpdate(ctx context.Context, id string) (*domain.Sale, error)
	// ListSaleItems returns the sale's items with ReturnedQuantity filled.
	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)
	UpdateSaleFigures(ctx context.Context, s domain.Sale) error
	DeleteSale(ctx context.Context, id string) error

	ListReturnItems(ctx context.Context, saleID string) ([]domain.ReturnItem, error)
	CreateReturn(ctx context.Context, r domain.Return) error
	CreateReturnItem(ctx context.Context, it domain.ReturnItem) error
}
