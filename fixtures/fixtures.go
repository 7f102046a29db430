// Package fixtures provides test data builders and an in-memory store for
// package tests.
package fixtures

import (
	"testing"
	"time"

	"github.com/motorbill/crm/model"
	"github.com/shopspring/decimal"
)

// DefaultOwnerID is the owner all fixture data belongs to unless overridden.
const DefaultOwnerID uint = 1

// NewTestStore opens a fresh in-memory sqlite store.
func NewTestStore(t *testing.T) *model.Store {
	t.Helper()
	store, err := model.OpenTestStore(&model.Config{Mode: "test"})
	if err != nil {
		t.Fatalf("cannot open test store: %v", err)
	}
	return store
}

// TestData is the seeded baseline: one client, one car, a company profile.
type TestData struct {
	Client  *model.Client
	Car     *model.Car
	Profile *model.CompanyProfile
}

// SeedTestData inserts a minimal consistent data set for DefaultOwnerID.
func SeedTestData(t *testing.T, store *model.Store) *TestData {
	t.Helper()

	client := &model.Client{
		OwnerID: DefaultOwnerID,
		Name:    "Dana Vered",
		Address: "12 Harbor Rd, Haifa",
		Phone:   "+972-50-1234567",
		Email:   "dana@example.com",
	}
	if err := store.SaveClient(client, DefaultOwnerID); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	car := &model.Car{
		OwnerID:   DefaultOwnerID,
		Make:      "Mazda",
		ModelName: "3",
		Year:      2021,
		Price:     decimal.NewFromInt(18500),
	}
	if err := store.SaveCar(car, DefaultOwnerID); err != nil {
		t.Fatalf("seed car: %v", err)
	}

	profile, err := store.LoadCompanyProfile(DefaultOwnerID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	profile.CompanyName = "Northside Motors"
	profile.Address = "1 Showroom Ave"
	profile.Currency = model.CurrencyUSD
	profile.TaxRate = decimal.NewFromInt(8)
	profile.Locale = model.LocaleEnglish
	profile.ShowNotes = true
	profile.ShowTerms = true
	if err := store.SaveCompanyProfile(profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	return &TestData{Client: client, Car: car, Profile: profile}
}

// SetTaxRate updates the seeded profile's tax rate.
func SetTaxRate(t *testing.T, store *model.Store, rate int64) {
	t.Helper()
	profile, err := store.LoadCompanyProfile(DefaultOwnerID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	profile.TaxRate = decimal.NewFromInt(rate)
	if err := store.SaveCompanyProfile(profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}
}

// InvoiceOption mutates an invoice fixture.
type InvoiceOption func(*model.Invoice)

// Invoice builds an invoice fixture with sensible defaults.
func Invoice(opts ...InvoiceOption) *model.Invoice {
	inv := &model.Invoice{
		OwnerID: DefaultOwnerID,
		Number:  "INV-0001",
		Date:    time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func WithNumber(n string) InvoiceOption {
	return func(inv *model.Invoice) { inv.Number = n }
}

func WithClientID(id uint) InvoiceOption {
	return func(inv *model.Invoice) { inv.ClientID = id }
}

func WithItems(items ...model.InvoiceItem) InvoiceOption {
	return func(inv *model.Invoice) { inv.Items = items }
}

func WithPaid(paid bool) InvoiceOption {
	return func(inv *model.Invoice) { inv.Paid = paid }
}

func WithNotes(notes string) InvoiceOption {
	return func(inv *model.Invoice) { inv.Notes = notes }
}

// Item builds one invoice line. Price is given in whole currency units,
// discount in percent; the amount is derived the same way the application
// does it.
func Item(name string, qty int, price float64, discount float64) model.InvoiceItem {
	p := decimal.NewFromFloat(price)
	d := decimal.NewFromFloat(discount)
	return model.InvoiceItem{
		Name:     name,
		Quantity: qty,
		Price:    p,
		Discount: d,
		Amount:   model.LineAmount(p, qty, d),
	}
}

// SampleItems is a small mixed item list.
func SampleItems() []model.InvoiceItem {
	return []model.InvoiceItem{
		Item("Mazda 3 (2021)", 1, 18500, 0),
		Item("Extended warranty", 1, 1200, 10),
		Item("Floor mats", 2, 45, 0),
	}
}
