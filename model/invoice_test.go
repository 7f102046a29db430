package model_test

import (
	"errors"
	"testing"

	"github.com/motorbill/crm/fixtures"
	"github.com/motorbill/crm/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestInvoice_CreateAndLoad(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	inv := fixtures.Invoice(
		fixtures.WithNumber("INV-0001"),
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Detailing", 2, 100.00, 10)),
	)
	// the draft's snapshot view is advisory; the store must re-bind from the
	// live client record
	inv.ClientName = "stale name"

	stored, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if stored.ID == 0 {
		t.Fatal("Invoice ID should be non-zero after create")
	}
	if stored.ClientName != data.Client.Name {
		t.Errorf("ClientName = %q, want re-bound %q", stored.ClientName, data.Client.Name)
	}

	// 100 x 2 at 10% discount, 8% tax
	if got := stored.Subtotal.StringFixed(2); got != "180.00" {
		t.Errorf("Subtotal = %s, want 180.00", got)
	}
	if got := stored.Tax.StringFixed(2); got != "14.40" {
		t.Errorf("Tax = %s, want 14.40", got)
	}
	if got := stored.Total.StringFixed(2); got != "194.40" {
		t.Errorf("Total = %s, want 194.40", got)
	}

	// round trip: reload and compare, no drift from re-serialization
	loaded, err := store.LoadInvoice(stored.ID, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("LoadInvoice failed: %v", err)
	}
	if !loaded.Subtotal.Equal(stored.Subtotal) || !loaded.Tax.Equal(stored.Tax) || !loaded.Total.Equal(stored.Total) {
		t.Errorf("reloaded totals differ: %s/%s/%s", loaded.Subtotal, loaded.Tax, loaded.Total)
	}
	if len(loaded.Items) != 1 {
		t.Fatalf("Items count = %d, want 1", len(loaded.Items))
	}
	if !loaded.Items[0].Amount.Equal(decimal.RequireFromString("180")) {
		t.Errorf("item amount = %s, want 180", loaded.Items[0].Amount)
	}
	if loaded.Items[0].ItemID == "" {
		t.Error("item should get a generated ItemID")
	}
}

func TestInvoice_CreateValidation(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	// no items
	inv := fixtures.Invoice(fixtures.WithClientID(data.Client.ID))
	if _, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID); !errors.Is(err, model.ErrInvalidInvoice) {
		t.Errorf("create without items: err = %v, want ErrInvalidInvoice", err)
	}

	// no client
	inv = fixtures.Invoice(fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)))
	if _, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID); !errors.Is(err, model.ErrInvalidInvoice) {
		t.Errorf("create without client: err = %v, want ErrInvalidInvoice", err)
	}

	// discount out of range
	bad := fixtures.Item("Mats", 1, 45, 0)
	bad.Discount = decimal.NewFromInt(120)
	inv = fixtures.Invoice(fixtures.WithClientID(data.Client.ID), fixtures.WithItems(bad))
	if _, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID); !errors.Is(err, model.ErrInvalidInvoice) {
		t.Errorf("create with discount 120: err = %v, want ErrInvalidInvoice", err)
	}
}

func TestInvoice_DuplicateNumber(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	first := fixtures.Invoice(
		fixtures.WithNumber("INV-0005"),
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
	)
	if _, err := store.CreateInvoice(first, fixtures.DefaultOwnerID); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := fixtures.Invoice(
		fixtures.WithNumber("INV-0005"),
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Wax", 1, 30, 0)),
	)
	if _, err := store.CreateInvoice(second, fixtures.DefaultOwnerID); !errors.Is(err, model.ErrDuplicateNumber) {
		t.Errorf("second create: err = %v, want ErrDuplicateNumber", err)
	}

	// updates exclude the record itself from the check
	loaded, err := store.LoadInvoice(first.ID, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("LoadInvoice failed: %v", err)
	}
	if _, err := store.UpdateInvoice(loaded.ID, loaded, fixtures.DefaultOwnerID); err != nil {
		t.Errorf("update with own number: %v", err)
	}
}

func TestInvoice_ClientOwnership(t *testing.T) {
	store := fixtures.NewTestStore(t)
	fixtures.SeedTestData(t, store)

	foreign := &model.Client{OwnerID: 2, Name: "Other Dealer's Client"}
	if err := store.SaveClient(foreign, uint(2)); err != nil {
		t.Fatalf("save foreign client: %v", err)
	}

	inv := fixtures.Invoice(
		fixtures.WithClientID(foreign.ID),
		fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
	)
	if _, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID); !errors.Is(err, model.ErrClientNotOwned) {
		t.Errorf("create with foreign client: err = %v, want ErrClientNotOwned", err)
	}
}

func TestInvoice_UpdateReSnapshotsOnClientChange(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	other := &model.Client{
		OwnerID: fixtures.DefaultOwnerID,
		Name:    "Yossi Peretz",
		Address: "8 Marina St",
		Email:   "yossi@example.com",
	}
	if err := store.SaveClient(other, fixtures.DefaultOwnerID); err != nil {
		t.Fatalf("save second client: %v", err)
	}

	inv := fixtures.Invoice(
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Mazda 3 (2021)", 1, 18500, 0)),
	)
	stored, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	// re-select the other client during the edit
	edited := *stored
	edited.Items = append([]model.InvoiceItem(nil), stored.Items...)
	edited.ClientID = other.ID

	updated, err := store.UpdateInvoice(stored.ID, &edited, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("UpdateInvoice failed: %v", err)
	}
	if updated.ClientName != "Yossi Peretz" {
		t.Errorf("ClientName = %q, want re-snapshot %q", updated.ClientName, "Yossi Peretz")
	}
	if updated.Number != stored.Number {
		t.Errorf("Number changed on client re-selection: %q", updated.Number)
	}
	if len(updated.Items) != 1 || !updated.Items[0].Amount.Equal(stored.Items[0].Amount) {
		t.Errorf("items changed on client re-selection")
	}
}

func TestInvoice_SnapshotIsHistorical(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	inv := fixtures.Invoice(
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
	)
	stored, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	originalName := stored.ClientName

	// edit the live client afterwards
	data.Client.Name = "Renamed Client"
	if err := store.SaveClient(data.Client, fixtures.DefaultOwnerID); err != nil {
		t.Fatalf("rename client: %v", err)
	}
	if err := store.ArchiveClient(data.Client.ID, fixtures.DefaultOwnerID, true); err != nil {
		t.Fatalf("archive client: %v", err)
	}

	loaded, err := store.LoadInvoice(stored.ID, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("LoadInvoice failed: %v", err)
	}
	if loaded.ClientName != originalName {
		t.Errorf("snapshot followed live client: %q, want %q", loaded.ClientName, originalName)
	}

	// an update that keeps the same client id also keeps the old snapshot
	updated, err := store.UpdateInvoice(loaded.ID, loaded, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("UpdateInvoice failed: %v", err)
	}
	if updated.ClientName != originalName {
		t.Errorf("update without client change re-snapshotted: %q", updated.ClientName)
	}
}

func TestInvoice_SetPaid(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	inv := fixtures.Invoice(
		fixtures.WithClientID(data.Client.ID),
		fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
	)
	stored, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID)
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	if err := store.SetInvoicePaid(stored.ID, fixtures.DefaultOwnerID, true); err != nil {
		t.Fatalf("SetInvoicePaid failed: %v", err)
	}
	loaded, _ := store.LoadInvoice(stored.ID, fixtures.DefaultOwnerID)
	if !loaded.Paid {
		t.Error("Paid should be true after toggle")
	}
	// nothing else touched
	if loaded.Number != stored.Number || len(loaded.Items) != 1 {
		t.Error("status toggle must not touch other fields")
	}

	if err := store.SetInvoicePaid(99999, fixtures.DefaultOwnerID, true); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("toggle of missing invoice: err = %v, want ErrRecordNotFound", err)
	}
}

func TestListInvoices(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	mk := func(number string, paid bool) {
		inv := fixtures.Invoice(
			fixtures.WithNumber(number),
			fixtures.WithClientID(data.Client.ID),
			fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
			fixtures.WithPaid(paid),
		)
		if _, err := store.CreateInvoice(inv, fixtures.DefaultOwnerID); err != nil {
			t.Fatalf("create %s: %v", number, err)
		}
	}
	mk("INV-0001", true)
	mk("INV-0002", false)
	mk("INV-0003", false)

	paid := true
	items, _, err := store.ListInvoices(fixtures.DefaultOwnerID, model.InvoiceListQuery{Paid: &paid})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 1 || items[0].Number != "INV-0001" {
		t.Errorf("paid filter returned %d items", len(items))
	}

	// search over number
	items, _, err = store.ListInvoices(fixtures.DefaultOwnerID, model.InvoiceListQuery{Search: "0003"})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 1 || items[0].Number != "INV-0003" {
		t.Errorf("number search returned %d items", len(items))
	}

	// search over snapshot client name
	items, _, err = store.ListInvoices(fixtures.DefaultOwnerID, model.InvoiceListQuery{Search: "Dana"})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("client-name search returned %d items, want 3", len(items))
	}

	// pagination
	items, next, err := store.ListInvoices(fixtures.DefaultOwnerID, model.InvoiceListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 2 || next != "2" {
		t.Errorf("page 1: %d items, next %q", len(items), next)
	}
	items, next, err = store.ListInvoices(fixtures.DefaultOwnerID, model.InvoiceListQuery{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 1 || next != "" {
		t.Errorf("page 2: %d items, next %q", len(items), next)
	}

	// other owners see nothing
	items, _, err = store.ListInvoices(42, model.InvoiceListQuery{})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("foreign owner sees %d invoices", len(items))
	}
}
