package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store/memory"
)

// newTestAPI builds a full API over the seeded in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, nil, nil)
	auth := NewAuthManager(context.Background(), "test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, Options{AllowedOrigin: "*"})
}

func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newClient(t *testing.T, api *API, username, password string) *client {
	t.Helper()
	return &client{
		t:       t,
		handler: api.Handler(),
		token:   login(t, api, username, password),
		csrf:    fetchCSRFToken(t, api),
	}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-CSRF-Token", c.csrf)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "Admin", Password: "admin123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" || resp.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login response: %+v", resp)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMedicinesRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/medicines", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestListMedicinesWithToken(t *testing.T) {
	api := newTestAPI(t)
	c := newClient(t, api, "cashier", "cashier123")

	rec := c.do(http.MethodGet, "/api/v1/medicines?q=paracetamol", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Medicines []domain.MedicineView `json:"medicines"`
	}
	decodeBody(t, rec, &body)
	if len(body.Medicines) != 1 || body.Medicines[0].ID != "med-paracetamol" {
		t.Fatalf("unexpected medicines: %+v", body.Medicines)
	}
	if !body.Medicines[0].Price.Equal(body.Medicines[0].SellingPerUnitPrice) {
		t.Fatalf("expected stored price to follow the packet price")
	}
}

func TestCashierCannotManageMedicines(t *testing.T) {
	api := newTestAPI(t)
	c := newClient(t, api, "cashier", "cashier123")

	rec := c.do(http.MethodDelete, "/api/v1/medicines/med-paracetamol", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier delete, got %d", rec.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cashier", "cashier123")
	admin := newClient(t, api, "admin", "admin123")

	rec := cashier.do(http.MethodPost, "/api/v1/checkout", map[string]any{
		"items": map[string]int{"med-paracetamol": 3},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var checkout struct {
		Sale domain.SaleDetail `json:"sale"`
	}
	decodeBody(t, rec, &checkout)
	sale := checkout.Sale
	if !sale.FinalAmount.Equal(sale.NetAmount) || sale.FinalAmount.String() != "3000" {
		t.Fatalf("unexpected sale figures: final=%s net=%s", sale.FinalAmount, sale.NetAmount)
	}

	returnBody := map[string]any{
		"reason":      "damaged box",
		"manager_pin": "999999",
		"items":       []map[string]any{{"sale_item_id": sale.Lines[0].ID, "quantity": 1, "restock": true}},
	}
	rec = cashier.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/returns", returnBody)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong manager pin, got %d", rec.Code)
	}

	returnBody["manager_pin"] = "123456"
	rec = cashier.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/returns", returnBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("return expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	returnBody["items"] = []map[string]any{{"sale_item_id": sale.Lines[0].ID, "quantity": 5}}
	rec = cashier.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/returns", returnBody)
	if rec.Code != http.StatusConflict {
		t.Fatalf("over-return expected 409, got %d", rec.Code)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale expected 200, got %d", rec.Code)
	}
	var detail struct {
		Sale domain.SaleDetail `json:"sale"`
	}
	decodeBody(t, rec, &detail)
	if detail.Sale.NetAmount.String() != "2000" || detail.Sale.Lines[0].NetQuantity != 2 {
		t.Fatalf("unexpected sale after return: net=%s qty=%d", detail.Sale.NetAmount, detail.Sale.Lines[0].NetQuantity)
	}

	rec = cashier.do(http.MethodDelete, "/api/v1/sales/"+sale.ID, map[string]string{"manager_pin": "123456"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier delete expected 403, got %d", rec.Code)
	}

	rec = admin.do(http.MethodDelete, "/api/v1/sales/"+sale.ID, map[string]string{"manager_pin": "123456"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin delete expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var deleted domain.DeleteSaleResponse
	decodeBody(t, rec, &deleted)
	if deleted.Restocked["med-paracetamol"] != 2 {
		t.Fatalf("expected 2 units restocked, got %+v", deleted.Restocked)
	}

	rec = admin.do(http.MethodGet, "/api/v1/medicines/med-paracetamol", nil)
	var med struct {
		Medicine domain.MedicineDetail `json:"medicine"`
	}
	decodeBody(t, rec, &med)
	if med.Medicine.Stock != 100 {
		t.Fatalf("expected stock back at 100, got %d", med.Medicine.Stock)
	}

	rec = admin.do(http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted sale expected 404, got %d", rec.Code)
	}
}

func TestCheckoutErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t)
	c := newClient(t, api, "cashier", "cashier123")

	rec := c.do(http.MethodPost, "/api/v1/checkout", map[string]any{
		"items": map[string]int{"med-antasida": 41},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("shortfall expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodPost, "/api/v1/checkout", map[string]any{"items": map[string]int{}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty cart expected 422, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/api/v1/checkout", map[string]any{"items": map[string]int{"med-unknown": 1}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown medicine expected 404, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/api/v1/checkout", map[string]any{"lines": []string{"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field expected 400, got %d", rec.Code)
	}
}

func TestCreateMedicineValidation(t *testing.T) {
	api := newTestAPI(t)
	admin := newClient(t, api, "admin", "admin123")

	rec := admin.do(http.MethodPost, "/api/v1/medicines", map[string]any{
		"company":       "Sanbe",
		"units_per_box": 0,
		"expiry_date":   "2031-01-01",
		"initial_stock": 5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &body)
	if body.Fields["name"] != "required" || body.Fields["units_per_box"] != "min" {
		t.Fatalf("unexpected validation fields: %+v", body.Fields)
	}

	rec = admin.do(http.MethodPost, "/api/v1/medicines", map[string]any{
		"name":            "Ibuprofen 400mg",
		"company":         "Sanbe",
		"retailers_price": "9000",
		"packet_price":    "12000",
		"units_per_box":   10,
		"discount_type":   "flat",
		"discount":        "20000",
		"expiry_date":     "2031-01-01",
		"initial_stock":   5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("flat discount above packet price expected 422, got %d", rec.Code)
	}
	var rule map[string]string
	decodeBody(t, rec, &rule)
	if rule["field"] != "discount" {
		t.Fatalf("expected discount field error, got %+v", rule)
	}
}

func TestCartCheckoutOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	c := newClient(t, api, "cashier", "cashier123")

	rec := c.do(http.MethodPost, "/api/v1/carts/till-1/items", map[string]any{"medicine_id": "med-vitamin-c", "quantity": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("add to cart expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var cart domain.CartView
	decodeBody(t, rec, &cart)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 4 {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	rec = c.do(http.MethodPost, "/api/v1/carts/till-1/items", map[string]any{"medicine_id": "med-vitamin-c", "quantity": 1, "action": "bogus"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad action expected 422, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/api/v1/carts/till-1/checkout", map[string]any{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cart checkout expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodGet, "/api/v1/carts/till-1", nil)
	decodeBody(t, rec, &cart)
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart after checkout, got %+v", cart.Items)
	}
}

func TestReportsAndExports(t *testing.T) {
	api := newTestAPI(t)
	cashier := newClient(t, api, "cashier", "cashier123")
	admin := newClient(t, api, "admin", "admin123")

	rec := cashier.do(http.MethodPost, "/api/v1/checkout", map[string]any{"items": map[string]int{"med-amoxicillin": 2}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout expected 201, got %d", rec.Code)
	}

	rec = cashier.do(http.MethodGet, "/api/v1/reports/dashboard", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier dashboard expected 403, got %d", rec.Code)
	}

	rec = admin.do(http.MethodGet, "/api/v1/reports/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard expected 200, got %d", rec.Code)
	}
	var dash domain.Dashboard
	decodeBody(t, rec, &dash)
	if dash.Today.TotalSales != 1 || len(dash.TodaySales) != 1 {
		t.Fatalf("unexpected dashboard: %+v", dash.Today)
	}

	rec = admin.do(http.MethodGet, "/api/v1/reports/sales/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales export expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	book, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	rows, err := book.GetRows("Sales")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "Sale ID" || rows[2][0] != "TOTAL" {
		t.Fatalf("unexpected sales sheet: %v", rows)
	}

	rec = admin.do(http.MethodGet, "/api/v1/purchases/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase export expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "purchases-") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = admin.do(http.MethodGet, "/api/v1/audit-logs?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit logs expected 200, got %d", rec.Code)
	}
	var logs struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	decodeBody(t, rec, &logs)
	if len(logs.Logs) == 0 {
		t.Fatalf("expected checkout to be audited")
	}
}

func TestCashierManagement(t *testing.T) {
	api := newTestAPI(t)
	admin := newClient(t, api, "admin", "admin123")

	rec := admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "kasir2", Password: "rahasia1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cashier expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "kasir2", Password: "rahasia1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate cashier expected 409, got %d", rec.Code)
	}
	rec = admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "ab", Password: "rahasia1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short username expected 422, got %d", rec.Code)
	}

	rec = admin.do(http.MethodGet, "/api/v1/users/cashiers", nil)
	var body struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	decodeBody(t, rec, &body)
	if len(body.Cashiers) != 2 {
		t.Fatalf("expected seeded and new cashier, got %+v", body.Cashiers)
	}

	login(t, api, "kasir2", "rahasia1")
}

func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if !verifyPassword(hash, "secret") || verifyPassword(hash, "other") {
		t.Fatalf("hash helper produced an unusable hash")
	}
}
