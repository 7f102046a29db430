package draft_test

import (
	"errors"
	"testing"

	"github.com/motorbill/crm/draft"
	"github.com/motorbill/crm/fixtures"
	"github.com/motorbill/crm/model"
	"github.com/shopspring/decimal"
)

// fakeGateway records calls and returns scripted results.
type fakeGateway struct {
	createCalls int
	updateCalls int
	failWith    error
	lastID      uint
}

func (g *fakeGateway) CreateInvoice(inv *model.Invoice, ownerID uint) (*model.Invoice, error) {
	g.createCalls++
	if g.failWith != nil {
		return nil, g.failWith
	}
	stored := *inv
	g.lastID++
	stored.ID = g.lastID
	stored.OwnerID = ownerID
	return &stored, nil
}

func (g *fakeGateway) UpdateInvoice(id uint, inv *model.Invoice, ownerID uint) (*model.Invoice, error) {
	g.updateCalls++
	if g.failWith != nil {
		return nil, g.failWith
	}
	stored := *inv
	stored.ID = id
	stored.OwnerID = ownerID
	return &stored, nil
}

var rate8 = decimal.NewFromInt(8)

func snapshot(id uint) draft.ClientSnapshot {
	return draft.ClientSnapshot{ClientID: id, Name: "Dana Vered"}
}

func TestDraft_StateTransitions(t *testing.T) {
	d := draft.New(fixtures.DefaultOwnerID, rate8, 0)

	if d.State() != draft.StateEmpty {
		t.Fatalf("new draft state = %s, want empty", d.State())
	}
	if got := d.Invoice().Number; got != "INV-0001" {
		t.Errorf("placeholder number = %q, want INV-0001", got)
	}

	if err := d.Apply(draft.SetClient{Snapshot: snapshot(1)}); err != nil {
		t.Fatal(err)
	}
	if d.State() != draft.StatePartial {
		t.Errorf("client only: state = %s, want partial", d.State())
	}

	if err := d.Apply(draft.SetItems{Items: fixtures.SampleItems()}); err != nil {
		t.Fatal(err)
	}
	if d.State() != draft.StateValid {
		t.Errorf("client and items: state = %s, want valid", d.State())
	}

	// dropping all items falls back to partial
	if err := d.Apply(draft.SetItems{}); err != nil {
		t.Fatal(err)
	}
	if d.State() != draft.StatePartial {
		t.Errorf("items removed: state = %s, want partial", d.State())
	}
}

func TestDraft_SetItemsRecomputesAtomically(t *testing.T) {
	d := draft.New(fixtures.DefaultOwnerID, rate8, 0)
	if err := d.Apply(draft.SetItems{Items: []model.InvoiceItem{fixtures.Item("Detailing", 2, 100, 10)}}); err != nil {
		t.Fatal(err)
	}

	inv := d.Invoice()
	if got := inv.Subtotal.StringFixed(2); got != "180.00" {
		t.Errorf("Subtotal = %s, want 180.00", got)
	}
	if got := inv.Tax.StringFixed(2); got != "14.40" {
		t.Errorf("Tax = %s, want 14.40", got)
	}
	if got := inv.Total.StringFixed(2); got != "194.40" {
		t.Errorf("Total = %s, want 194.40", got)
	}

	// mutate and revert restores the previous totals exactly
	before := d.Invoice()
	if err := d.Apply(draft.SetItems{Items: fixtures.SampleItems()}); err != nil {
		t.Fatal(err)
	}
	if err := d.Apply(draft.SetItems{Items: before.Items}); err != nil {
		t.Fatal(err)
	}
	after := d.Invoice()
	if !after.Subtotal.Equal(before.Subtotal) || !after.Tax.Equal(before.Tax) || !after.Total.Equal(before.Total) {
		t.Errorf("revert did not restore totals: %s/%s/%s", after.Subtotal, after.Tax, after.Total)
	}
}

func TestDraft_SaveRejectedWhenNotValid(t *testing.T) {
	gw := &fakeGateway{}
	d := draft.New(fixtures.DefaultOwnerID, rate8, 0)

	// empty draft
	if _, err := d.Save(gw); !errors.Is(err, draft.ErrNotSavable) {
		t.Errorf("save of empty draft: err = %v, want ErrNotSavable", err)
	}

	// client but no items
	if err := d.Apply(draft.SetClient{Snapshot: snapshot(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Save(gw); !errors.Is(err, draft.ErrNotSavable) {
		t.Errorf("save without items: err = %v, want ErrNotSavable", err)
	}
	if d.State() != draft.StatePartial {
		t.Errorf("state after rejected save = %s, want partial", d.State())
	}
	if gw.createCalls != 0 || gw.updateCalls != 0 {
		t.Errorf("gateway was called for an unsavable draft")
	}
}

func TestDraft_SaveCreateResetsDraft(t *testing.T) {
	gw := &fakeGateway{}
	d := draft.New(fixtures.DefaultOwnerID, rate8, 0)
	must(t, d.Apply(draft.SetClient{Snapshot: snapshot(1)}))
	must(t, d.Apply(draft.SetItems{Items: fixtures.SampleItems()}))
	must(t, d.Apply(draft.SetNotes{Text: "keys in glovebox"}))

	stored, err := d.Save(gw)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if stored.ID == 0 {
		t.Error("stored invoice should carry the persisted id")
	}
	if gw.createCalls != 1 || gw.updateCalls != 0 {
		t.Errorf("create-mode save calls: create %d update %d", gw.createCalls, gw.updateCalls)
	}
	if d.State() != draft.StateSaved {
		t.Errorf("state after save = %s, want saved", d.State())
	}

	// fresh draft with the next placeholder number
	next := d.Invoice()
	if next.Number != "INV-0002" {
		t.Errorf("next placeholder = %q, want INV-0002", next.Number)
	}
	if len(next.Items) != 0 || next.ClientID != 0 || next.Notes != "" {
		t.Error("draft should reset after a create-mode save")
	}
}

func TestDraft_SaveFailureLeavesDraftIntact(t *testing.T) {
	gw := &fakeGateway{failWith: model.ErrDuplicateNumber}
	d := draft.New(fixtures.DefaultOwnerID, rate8, 4)
	must(t, d.Apply(draft.SetClient{Snapshot: snapshot(1)}))
	must(t, d.Apply(draft.SetItems{Items: fixtures.SampleItems()}))

	before := d.Invoice()
	_, err := d.Save(gw)
	if !errors.Is(err, model.ErrDuplicateNumber) {
		t.Fatalf("Save err = %v, want ErrDuplicateNumber", err)
	}
	if d.State() != draft.StateSaveFailed {
		t.Errorf("state after failure = %s, want save_failed", d.State())
	}
	if !errors.Is(d.Err(), model.ErrDuplicateNumber) {
		t.Errorf("Err() = %v, want the save error", d.Err())
	}

	after := d.Invoice()
	if after.Number != before.Number || len(after.Items) != len(before.Items) || !after.Total.Equal(before.Total) {
		t.Error("failed save must not mutate the draft")
	}

	// the user picks a new number and retries
	gw.failWith = nil
	must(t, d.Apply(draft.SetDetails{Details: draft.Details{
		Number: "INV-0006",
		Date:   before.Date,
	}}))
	if d.State() != draft.StateValid {
		t.Errorf("state after edit = %s, want valid", d.State())
	}
	if _, err := d.Save(gw); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestDraft_EditModeRoutesUpdates(t *testing.T) {
	gw := &fakeGateway{lastID: 41}
	persisted := fixtures.Invoice(
		fixtures.WithNumber("INV-0042"),
		fixtures.WithClientID(7),
		fixtures.WithItems(fixtures.Item("Mats", 1, 45, 0)),
	)
	persisted.ID = 42

	d := draft.FromInvoice(fixtures.DefaultOwnerID, rate8, persisted)
	if d.State() != draft.StateValid {
		t.Fatalf("seeded draft state = %s, want valid", d.State())
	}
	if d.PersistedID() != 42 {
		t.Fatalf("PersistedID = %d, want 42", d.PersistedID())
	}

	must(t, d.Apply(draft.SetTerms{Text: "net 14"}))
	stored, err := d.Save(gw)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if gw.updateCalls != 1 || gw.createCalls != 0 {
		t.Errorf("edit-mode save calls: create %d update %d", gw.createCalls, gw.updateCalls)
	}
	if stored.ID != 42 {
		t.Errorf("updated id = %d, want 42", stored.ID)
	}

	// the draft now carries the canonical copy and keeps routing updates
	if d.Invoice().Terms != "net 14" {
		t.Error("draft should adopt the canonical stored invoice")
	}
	if _, err := d.Save(gw); !errors.Is(err, draft.ErrNotSavable) {
		// saved state needs another edit before re-saving
		t.Errorf("immediate re-save: err = %v, want ErrNotSavable", err)
	}
}

func TestPlaceholderNumber(t *testing.T) {
	if got := draft.PlaceholderNumber(0); got != "INV-0001" {
		t.Errorf("PlaceholderNumber(0) = %q", got)
	}
	if got := draft.PlaceholderNumber(122); got != "INV-0123" {
		t.Errorf("PlaceholderNumber(122) = %q", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
