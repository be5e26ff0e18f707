package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

// Store keeps everything in process memory. A transaction works on a copy of the
// ledger while holding the write lock and swaps it in on success, so a failed
// transaction leaves nothing behind.
type Store struct {
	mu              sync.RWMutex
	ledger          *ledger
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

type ledger struct {
	medicines   map[string]domain.Medicine
	purchases   []domain.PurchaseRecord
	sales       map[string]domain.Sale
	saleItems   map[string][]domain.SaleItem
	returns     map[string][]domain.Return
	returnItems map[string][]domain.ReturnItem
}

func newLedger() *ledger {
	return &ledger{
		medicines:   make(map[string]domain.Medicine),
		purchases:   make([]domain.PurchaseRecord, 0, 64),
		sales:       make(map[string]domain.Sale),
		saleItems:   make(map[string][]domain.SaleItem),
		returns:     make(map[string][]domain.Return),
		returnItems: make(map[string][]domain.ReturnItem),
	}
}

func (l *ledger) clone() *ledger {
	out := &ledger{
		medicines:   make(map[string]domain.Medicine, len(l.medicines)),
		purchases:   slices.Clone(l.purchases),
		sales:       make(map[string]domain.Sale, len(l.sales)),
		saleItems:   make(map[string][]domain.SaleItem, len(l.saleItems)),
		returns:     make(map[string][]domain.Return, len(l.returns)),
		returnItems: make(map[string][]domain.ReturnItem, len(l.returnItems)),
	}
	for k, v := range l.medicines {
		out.medicines[k] = v
	}
	for k, v := range l.sales {
		out.sales[k] = v
	}
	for k, v := range l.saleItems {
		out.saleItems[k] = slices.Clone(v)
	}
	for k, v := range l.returns {
		out.returns[k] = slices.Clone(v)
	}
	for k, v := range l.returnItems {
		out.returnItems[k] = slices.Clone(v)
	}
	return out
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset the dev defaults are used with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logrus.Warn("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logrus.WithError(err).Fatalf("memory store: failed to hash seed password for %s", u.username)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store without users.
func New() *Store {
	return &Store{
		ledger:          newLedger(),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with dev users and a small medicine catalogue, each
// medicine stocked through an initial purchase record.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	seed := []struct {
		id, name, company, formula string
		retailers, packet          int64
		units                      int
		discountType               string
		discount                   int64
		stock                      int
		expiry                     time.Time
	}{
		{"med-paracetamol", "Paracetamol 500mg", "Kimia Farma", "Paracetamol", 8000, 10000, 10, domain.DiscountTypePercent, 0, 100, now.AddDate(2, 0, 0)},
		{"med-amoxicillin", "Amoxicillin 500mg", "Indofarma", "Amoxicillin", 24000, 30000, 10, domain.DiscountTypePercent, 10, 50, now.AddDate(1, 0, 0)},
		{"med-antasida", "Antasida Doen", "Phapros", "Aluminium hydroxide", 6000, 8000, 20, domain.DiscountTypeFlat, 50, 40, now.AddDate(0, 2, 0)},
		{"med-vitamin-c", "Vitamin C 500mg", "Sido Muncul", "Ascorbic acid", 15000, 20000, 20, domain.DiscountTypePercent, 5, 80, now.AddDate(1, 6, 0)},
	}
	for _, m := range seed {
		med := domain.Medicine{
			ID:             m.id,
			Name:           m.name,
			Company:        m.company,
			Formula:        m.formula,
			RetailersPrice: decimal.NewFromInt(m.retailers),
			PacketPrice:    decimal.NewFromInt(m.packet),
			UnitsPerBox:    m.units,
			DiscountType:   m.discountType,
			Discount:       decimal.NewFromInt(m.discount),
			Stock:          m.stock,
			ExpiryDate:     time.Date(m.expiry.Year(), m.expiry.Month(), m.expiry.Day(), 0, 0, 0, 0, time.UTC),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		med.Reprice()
		s.ledger.medicines[med.ID] = med

		unit := med.PurchasePerUnitPrice()
		s.ledger.purchases = append(s.ledger.purchases, domain.PurchaseRecord{
			ID:           xid.New("pur"),
			MedicineID:   med.ID,
			MedicineName: med.Name,
			Quantity:     med.Stock,
			UnitPrice:    unit,
			TotalAmount:  unit.Mul(decimal.NewFromInt(int64(med.Stock))),
			PurchaseDate: now,
			Notes:        "Initial stock purchase",
		})
	}
	return s
}

// WithinTx runs fn against a private copy of the ledger. Repository read methods
// must not be called from fn; use the Tx instead.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.ledger.clone()
	if err := fn(ctx, &memTx{l: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ledger = work
	return nil
}

func (s *Store) GetMedicine(_ context.Context, id string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.ledger.medicines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMedicines(_ context.Context, filter store.MedicineFilter) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]domain.Medicine, 0, len(s.ledger.medicines))
	for _, m := range s.ledger.medicines {
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) && !strings.Contains(strings.ToLower(m.Formula), q) {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) ListPurchases(_ context.Context, filter store.PurchaseFilter) ([]domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PurchaseRecord, 0, len(s.ledger.purchases))
	for _, p := range s.ledger.purchases {
		if filter.MedicineID != "" && p.MedicineID != filter.MedicineID {
			continue
		}
		if !inRange(p.PurchaseDate, filter.From, filter.To) {
			continue
		}
		result = append(result, p)
	}
	slices.SortStableFunc(result, func(a, b domain.PurchaseRecord) int {
		return b.PurchaseDate.Compare(a.PurchaseDate)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.ledger.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.Items = s.ledger.itemsWithReturns(id)
	returns := s.ledger.returns[id]
	sale.Returns = make([]domain.Return, 0, len(returns))
	for _, r := range returns {
		r.Items = slices.Clone(s.ledger.returnItems[r.ID])
		sale.Returns = append(sale.Returns, r)
	}
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.ledger.sales))
	for _, sale := range s.ledger.sales {
		if !inRange(sale.SaleDate, filter.From, filter.To) {
			continue
		}
		result = append(result, sale)
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username", "username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("password", "password is required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// itemsWithReturns copies the sale's items and fills ReturnedQuantity from the
// return lines recorded against them.
func (l *ledger) itemsWithReturns(saleID string) []domain.SaleItem {
	returned := map[string]int{}
	for _, r := range l.returns[saleID] {
		for _, it := range l.returnItems[r.ID] {
			returned[it.SaleItemID] += it.Quantity
		}
	}
	items := slices.Clone(l.saleItems[saleID])
	for i := range items {
		items[i].ReturnedQuantity = returned[items[i].ID]
	}
	return items
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
