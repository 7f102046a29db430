package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/motorbill/crm/fixtures"
	"github.com/motorbill/crm/model"
)

func setupTestAPI(t *testing.T) (*echo.Echo, *model.Store) {
	t.Helper()
	store := fixtures.NewTestStore(t)
	fixtures.SeedTestData(t, store)

	e := echo.New()
	ctrl := &controller{model: store}

	// Register routes without auth middleware for testing
	api := e.Group("/api/v1")
	api.GET("/clients", ctrl.apiClientList)
	api.GET("/clients/:id", ctrl.apiClientGet)
	api.POST("/clients", ctrl.apiClientCreate)
	api.GET("/invoices", ctrl.apiInvoiceList)
	api.GET("/invoices/:id", ctrl.apiInvoiceGet)
	api.POST("/invoices", ctrl.apiInvoiceCreate)
	api.PUT("/invoices/:id/paid", ctrl.apiInvoicePaid)

	return e, store
}

func setOwnerContext(c echo.Context, ownerID uint) {
	c.Set(string(ctxOwnerID), ownerID)
}

func callAPI(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	e.Router().Find(method, strings.SplitN(path, "?", 2)[0], c)
	setOwnerContext(c, fixtures.DefaultOwnerID)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	return rec
}

func TestAPIClientList(t *testing.T) {
	e, _ := setupTestAPI(t)

	rec := callAPI(t, e, http.MethodGet, "/api/v1/clients", "")

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIClientList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}

	// SeedTestData creates one client
	if len(result.Items) != 1 {
		t.Errorf("Items count = %d, want 1", len(result.Items))
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
}

func TestAPIClientGet(t *testing.T) {
	e, store := setupTestAPI(t)

	clients, err := store.ListClients(fixtures.DefaultOwnerID, "", false)
	if err != nil || len(clients) == 0 {
		t.Fatalf("no seeded clients: %v", err)
	}
	cl := clients[0]

	rec := callAPI(t, e, http.MethodGet, "/api/v1/clients/1", "")

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIClient
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.Name != cl.Name {
		t.Errorf("Name = %q, want %q", result.Name, cl.Name)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag header should be set")
	}
}

func TestAPIClientGet_NotFound(t *testing.T) {
	e, _ := setupTestAPI(t)

	rec := callAPI(t, e, http.MethodGet, "/api/v1/clients/9999", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAPIClientCreate(t *testing.T) {
	e, store := setupTestAPI(t)

	body := `{
		"name": "Harbor Fleet Services",
		"address": "8 Dock St, Ashdod",
		"country": "IL",
		"email": "fleet@example.com"
	}`

	rec := callAPI(t, e, http.MethodPost, "/api/v1/clients", body)

	if rec.Code != http.StatusCreated {
		t.Errorf("Status = %d, want %d. Body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var result APIClient
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.Name != "Harbor Fleet Services" {
		t.Errorf("Name = %q, want %q", result.Name, "Harbor Fleet Services")
	}
	if result.ID == 0 {
		t.Error("ID should be non-zero")
	}
	if rec.Header().Get("Location") == "" {
		t.Error("Location header should be set")
	}

	// verify in database
	cl, err := store.LoadClient(result.ID, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("LoadClient error: %v", err)
	}
	if cl.Name != "Harbor Fleet Services" {
		t.Errorf("DB Name = %q, want %q", cl.Name, "Harbor Fleet Services")
	}
}

func TestAPIClientCreate_ValidationError(t *testing.T) {
	e, _ := setupTestAPI(t)

	// missing required name
	rec := callAPI(t, e, http.MethodPost, "/api/v1/clients", `{"address": "Test"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var errResp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if errResp.Code != "validation_error" {
		t.Errorf("Error code = %q, want %q", errResp.Code, "validation_error")
	}
}

func TestAPIInvoiceCreateAndGet(t *testing.T) {
	e, store := setupTestAPI(t)

	body := `{
		"number": "INV-2026-001",
		"client_id": 1,
		"items": [
			{"name": "Detailing", "quantity": 2, "price": "100", "discount": "10"},
			{"name": "Floor mats", "quantity": 1, "price": "45"}
		]
	}`

	rec := callAPI(t, e, http.MethodPost, "/api/v1/invoices", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var created APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if created.Number != "INV-2026-001" {
		t.Errorf("Number = %q, want %q", created.Number, "INV-2026-001")
	}
	// 2x100 at 10% off is 180, plus 45: subtotal 225, 8% tax 18, total 243
	if created.Subtotal != "225" {
		t.Errorf("Subtotal = %q, want %q", created.Subtotal, "225")
	}
	if created.Total != "243" {
		t.Errorf("Total = %q, want %q", created.Total, "243")
	}
	if created.ClientName != "Dana Vered" {
		t.Errorf("ClientName = %q, want %q", created.ClientName, "Dana Vered")
	}

	// the detail route delivers the items
	inv, err := store.LoadInvoice(created.ID, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("LoadInvoice error: %v", err)
	}
	if len(inv.Items) != 2 {
		t.Errorf("stored items = %d, want 2", len(inv.Items))
	}
}

func TestAPIInvoiceCreate_DuplicateNumber(t *testing.T) {
	e, _ := setupTestAPI(t)

	body := `{
		"number": "INV-0007",
		"client_id": 1,
		"items": [{"name": "Detailing", "quantity": 1, "price": "100"}]
	}`

	rec := callAPI(t, e, http.MethodPost, "/api/v1/invoices", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: Status = %d, want %d. Body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = callAPI(t, e, http.MethodPost, "/api/v1/invoices", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("second create: Status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var errResp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if errResp.Code != "duplicate_number" {
		t.Errorf("Error code = %q, want %q", errResp.Code, "duplicate_number")
	}
}

func TestAPIInvoiceCreate_ForeignClient(t *testing.T) {
	e, store := setupTestAPI(t)

	other := &model.Client{OwnerID: 2, Name: "Someone Else"}
	if err := store.SaveClient(other, uint(2)); err != nil {
		t.Fatalf("SaveClient error: %v", err)
	}

	body := `{
		"number": "INV-0042",
		"client_id": ` + jsonUint(other.ID) + `,
		"items": [{"name": "Detailing", "quantity": 1, "price": "100"}]
	}`

	rec := callAPI(t, e, http.MethodPost, "/api/v1/invoices", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want %d. Body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestAPIInvoicePaid(t *testing.T) {
	e, _ := setupTestAPI(t)

	body := `{
		"number": "INV-0100",
		"client_id": 1,
		"items": [{"name": "Detailing", "quantity": 1, "price": "100"}]
	}`
	rec := callAPI(t, e, http.MethodPost, "/api/v1/invoices", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: Status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var created APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}

	rec = callAPI(t, e, http.MethodPut, "/api/v1/invoices/"+jsonUint(created.ID)+"/paid", `{"paid": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("paid: Status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = callAPI(t, e, http.MethodGet, "/api/v1/invoices/"+jsonUint(created.ID), "")
	var got APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if !got.Paid {
		t.Error("invoice should be marked paid")
	}
}

func jsonUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
