package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountTypePercent = "percent"
	DiscountTypeFlat    = "flat"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Medicine struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Company        string          `json:"company" db:"company"`
	Formula        string          `json:"formula" db:"formula"`
	BatchNo        string          `json:"batch_no" db:"batch_no"`
	RackNumber     string          `json:"rack_number" db:"rack_number"`
	Price          decimal.Decimal `json:"price" db:"price"`
	RetailersPrice decimal.Decimal `json:"retailers_price" db:"retailers_price"`
	PacketPrice    decimal.Decimal `json:"packet_price" db:"packet_price"`
	UnitsPerBox    int             `json:"units_per_box" db:"units_per_box"`
	DiscountType   string          `json:"discount_type" db:"discount_type"`
	Discount       decimal.Decimal `json:"discount" db:"discount"`
	Stock          int             `json:"stock" db:"stock"`
	ExpiryDate     time.Time       `json:"expiry_date" db:"expiry_date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// MedicineView is the read model returned to clients, with derived prices and flags.
type MedicineView struct {
	Medicine
	PurchasePerUnitPrice decimal.Decimal `json:"purchase_per_unit_price"`
	SellingPerUnitPrice  decimal.Decimal `json:"selling_per_unit_price"`
	CalculatedDiscount   decimal.Decimal `json:"calculated_discount"`
	SellingPrice         decimal.Decimal `json:"selling_price"`
	IsExpired            bool            `json:"is_expired"`
	IsExpiringSoon       bool            `json:"is_expiring_soon"`
}

type MedicineDetail struct {
	MedicineView
	TotalPurchased      int             `json:"total_purchased"`
	TotalPurchaseAmount decimal.Decimal `json:"total_purchase_amount"`
	LastPurchase        *PurchaseRecord `json:"last_purchase,omitempty"`
}

type MedicineCreateRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Company        string          `json:"company" validate:"required,max=100"`
	Formula        string          `json:"formula" validate:"max=100"`
	BatchNo        string          `json:"batch_no" validate:"max=100"`
	RackNumber     string          `json:"rack_number" validate:"max=20"`
	RetailersPrice decimal.Decimal `json:"retailers_price"`
	PacketPrice    decimal.Decimal `json:"packet_price"`
	UnitsPerBox    int             `json:"units_per_box" validate:"min=1"`
	DiscountType   string          `json:"discount_type" validate:"omitempty,oneof=percent flat"`
	Discount       decimal.Decimal `json:"discount"`
	ExpiryDate     string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	InitialStock   int             `json:"initial_stock" validate:"min=1"`
	PurchaseNote   string          `json:"purchase_note" validate:"max=500"`
}

type MedicineUpdateRequest struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Company         *string          `json:"company,omitempty" validate:"omitempty,min=1,max=100"`
	Formula         *string          `json:"formula,omitempty" validate:"omitempty,max=100"`
	BatchNo         *string          `json:"batch_no,omitempty" validate:"omitempty,max=100"`
	RackNumber      *string          `json:"rack_number,omitempty" validate:"omitempty,max=20"`
	RetailersPrice  *decimal.Decimal `json:"retailers_price,omitempty"`
	PacketPrice     *decimal.Decimal `json:"packet_price,omitempty"`
	UnitsPerBox     *int             `json:"units_per_box,omitempty" validate:"omitempty,min=1"`
	DiscountType    *string          `json:"discount_type,omitempty" validate:"omitempty,oneof=percent flat"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	ExpiryDate      *string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	AdditionalStock int              `json:"additional_stock" validate:"min=0"`
	PurchaseNote    string           `json:"purchase_note" validate:"max=500"`
}

type PurchaseRecord struct {
	ID           string          `json:"id" db:"id"`
	MedicineID   string          `json:"medicine_id" db:"medicine_id"`
	MedicineName string          `json:"medicine_name" db:"medicine_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	PurchaseDate time.Time       `json:"purchase_date" db:"purchase_date"`
	Notes        string          `json:"notes" db:"notes"`
}

type PurchaseCreateRequest struct {
	Quantity  int              `json:"quantity" validate:"min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Notes     string           `json:"notes" validate:"max=500"`
}

type PurchaseSummary struct {
	TodayTotal            decimal.Decimal  `json:"today_total"`
	AllTimeTotal          decimal.Decimal  `json:"all_time_total"`
	DateRangeTotal        decimal.Decimal  `json:"date_range_total"`
	CurrentInventoryValue decimal.Decimal  `json:"current_inventory_value"`
	TodayPurchases        []PurchaseRecord `json:"today_purchases"`
	FilteredPurchases     []PurchaseRecord `json:"filtered_purchases"`
	StartDate             string           `json:"start_date"`
	EndDate               string           `json:"end_date"`
	TodayDate             string           `json:"today_date"`
	HasDateRange          bool             `json:"has_date_range"`
}

type Sale struct {
	ID             string          `json:"id" db:"id"`
	SaleDate       time.Time       `json:"sale_date" db:"sale_date"`
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	PriceDeducted  decimal.Decimal `json:"price_deducted" db:"price_deducted"`
	Extra          decimal.Decimal `json:"extra" db:"extra"`
	FinalAmount    decimal.Decimal `json:"final_amount" db:"final_amount"`
	NetAmount      decimal.Decimal `json:"net_amount" db:"net_amount"`
	TotalProfit    decimal.Decimal `json:"total_profit" db:"total_profit"`
	ReturnedAmount decimal.Decimal `json:"returned_amount" db:"returned_amount"`
	SoldBy         string          `json:"sold_by" db:"sold_by"`
	Items          []SaleItem      `json:"items,omitempty" db:"-"`
	Returns        []Return        `json:"returns,omitempty" db:"-"`
}

type SaleItem struct {
	ID                   string          `json:"id" db:"id"`
	SaleID               string          `json:"sale_id" db:"sale_id"`
	MedicineID           *string         `json:"medicine_id" db:"medicine_id"`
	MedicineName         string          `json:"medicine_name" db:"medicine_name"`
	Quantity             int             `json:"quantity" db:"quantity"`
	SellingPricePerUnit  decimal.Decimal `json:"selling_price_per_unit" db:"selling_price_per_unit"`
	PurchasePricePerUnit decimal.Decimal `json:"purchase_price_per_unit" db:"purchase_price_per_unit"`
	DiscountPerUnit      decimal.Decimal `json:"discount_per_unit" db:"discount_per_unit"`
	TotalPrice           decimal.Decimal `json:"total_price" db:"total_price"`
	ReturnedQuantity     int             `json:"returned_quantity" db:"returned_quantity"`
}

type Return struct {
	ID           string          `json:"id" db:"id"`
	SaleID       string          `json:"sale_id" db:"sale_id"`
	ReturnedAt   time.Time       `json:"returned_at" db:"returned_at"`
	RefundAmount decimal.Decimal `json:"refund_amount" db:"refund_amount"`
	Reason       string          `json:"reason" db:"reason"`
	ProcessedBy  string          `json:"processed_by" db:"processed_by"`
	Items        []ReturnItem    `json:"items,omitempty" db:"-"`
}

type ReturnItem struct {
	ID            string          `json:"id" db:"id"`
	ReturnID      string          `json:"return_id" db:"return_id"`
	SaleItemID    string          `json:"sale_item_id" db:"sale_item_id"`
	Quantity      int             `json:"quantity" db:"quantity"`
	ReturnedPrice decimal.Decimal `json:"returned_price" db:"returned_price"`
	Restocked     bool            `json:"restocked" db:"restocked"`
}

// CheckoutRequest sells the given medicine quantities in one sale. Discount is the
// sale-level discount; when nil the sum of the medicines' own discounts is used.
type CheckoutRequest struct {
	Items         map[string]int   `json:"items"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	PriceDeducted decimal.Decimal  `json:"price_deducted"`
	Extra         decimal.Decimal  `json:"extra"`
}

type CartCheckoutRequest struct {
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	PriceDeducted decimal.Decimal  `json:"price_deducted"`
	Extra         decimal.Decimal  `json:"extra"`
}

type CartUpdateRequest struct {
	MedicineID string `json:"medicine_id" validate:"required"`
	Quantity   int    `json:"quantity"`
	Action     string `json:"action" validate:"omitempty,oneof=add update remove"`
}

type CartLine struct {
	MedicineID string          `json:"medicine_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	Stock      int             `json:"stock"`
}

type CartView struct {
	CartID         string          `json:"cart_id"`
	Items          []CartLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

type ReturnLineRequest struct {
	SaleItemID string `json:"sale_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=0"`
	Restock    bool   `json:"restock"`
}

type ReturnRequest struct {
	Reason     string              `json:"reason" validate:"max=1000"`
	Items      []ReturnLineRequest `json:"items" validate:"dive"`
	ManagerPIN string              `json:"manager_pin"`
}

type DeleteSaleRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type DeleteSaleResponse struct {
	SaleID    string         `json:"sale_id"`
	Restocked map[string]int `json:"restocked"`
}

// SaleDetail is the read-only view of a sale aggregate with derived line figures.
type SaleDetail struct {
	Sale
	Lines           []SaleLineView  `json:"lines"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	IsFullyReturned bool            `json:"is_fully_returned"`
	HasReturns      bool            `json:"has_returns"`
}

type SaleLineView struct {
	SaleItem
	UnitPrice       decimal.Decimal `json:"unit_price"`
	NetQuantity     int             `json:"net_quantity"`
	NetPrice        decimal.Decimal `json:"net_price"`
	ReturnedPrice   decimal.Decimal `json:"returned_price"`
	IsFullyReturned bool            `json:"is_fully_returned"`
}

type SaleList struct {
	Sales       []Sale          `json:"sales"`
	TotalSales  int             `json:"total_sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	DateFrom    string          `json:"date_from"`
	DateTo      string          `json:"date_to"`
}

type PeriodSummary struct {
	TotalSales    int             `json:"total_sales"`
	GrossSales    decimal.Decimal `json:"gross_sales"`
	TotalNet      decimal.Decimal `json:"total_net"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalReturned decimal.Decimal `json:"total_returned"`
}

type Dashboard struct {
	Today          PeriodSummary `json:"today"`
	Weekly         PeriodSummary `json:"weekly"`
	Monthly        PeriodSummary `json:"monthly"`
	SixMonths      PeriodSummary `json:"six_months"`
	AllTime        PeriodSummary `json:"all_time"`
	WeeklyStart    string        `json:"weekly_start_date"`
	MonthlyStart   string        `json:"monthly_start_date"`
	SixMonthsStart string        `json:"six_months_start_date"`
	TodaySales     []Sale        `json:"today_sales"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string    `db:"username"`
	Password  string    `db:"password"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	ActorUsername string    `json:"actor_username" db:"actor_username"`
	ActorRole     string    `json:"actor_role" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entity_type" db:"entity_type"`
	EntityID      string    `json:"entity_id" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
