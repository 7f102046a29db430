// Package draft holds the in-progress invoice of one editing session. It is
// a single-writer reducer: UI panels dispatch typed actions, the draft
// recomputes totals on every item change and routes saves as creates or
// updates through a persistence gateway.
package draft

import (
	"errors"
	"fmt"
	"time"

	"github.com/motorbill/crm/model"
	"github.com/shopspring/decimal"
)

// State describes where the draft is in its lifecycle.
type State string

const (
	StateEmpty      State = "empty"       // no client, no items
	StatePartial    State = "partial"     // client or items present, not both
	StateValid      State = "valid"       // client set and at least one item
	StateSaving     State = "saving"      // save round-trip in flight
	StateSaved      State = "saved"       // last save succeeded
	StateSaveFailed State = "save_failed" // transient, surfaced then back to valid
)

// ErrNotSavable is returned when Save is called on a draft that is not Valid.
// No gateway call is made in that case.
var ErrNotSavable = errors.New("draft is not ready to save")

// ClientSnapshot is the draft's advisory view of the selected client. The
// authoritative fields are re-bound from the live client record at save time.
type ClientSnapshot struct {
	ClientID uint
	Name     string
	Address  string
	Phone    string
	Email    string
}

// Details carries the header fields of the invoice.
type Details struct {
	Number              string
	Date                time.Time
	Paid                bool
	HideStatus          bool
	ShowStatusWatermark bool
}

// Action is one of the typed mutation variants accepted by Apply.
type Action interface{ isAction() }

type SetClient struct{ Snapshot ClientSnapshot }
type SetItems struct{ Items []model.InvoiceItem }
type SetDetails struct{ Details Details }
type SetNotes struct{ Text string }
type SetTerms struct{ Text string }

func (SetClient) isAction()  {}
func (SetItems) isAction()   {}
func (SetDetails) isAction() {}
func (SetNotes) isAction()   {}
func (SetTerms) isAction()   {}

// Gateway is the persistence surface the draft saves through. model.Store
// implements it.
type Gateway interface {
	CreateInvoice(inv *model.Invoice, ownerID uint) (*model.Invoice, error)
	UpdateInvoice(id uint, inv *model.Invoice, ownerID uint) (*model.Invoice, error)
}

// Draft is an in-progress invoice. It is confined to one editing session and
// not safe for concurrent use.
type Draft struct {
	ownerID     uint
	taxRate     decimal.Decimal
	persistedID uint // non-zero in edit mode
	seq         int64
	inv         model.Invoice
	state       State
	lastErr     error
}

// PlaceholderNumber derives the advisory default number for a new draft from
// the count of known invoices. Uniqueness is only checked at save time.
func PlaceholderNumber(knownInvoices int64) string {
	return fmt.Sprintf("INV-%04d", knownInvoices+1)
}

// New starts a create-mode draft. knownInvoices seeds the placeholder number.
func New(ownerID uint, taxRate decimal.Decimal, knownInvoices int64) *Draft {
	d := &Draft{
		ownerID: ownerID,
		taxRate: taxRate,
		seq:     knownInvoices,
		state:   StateEmpty,
	}
	d.inv.Number = PlaceholderNumber(d.seq)
	d.inv.Date = time.Now()
	return d
}

// FromInvoice starts an edit-mode draft seeded from a persisted invoice. All
// saves are routed as updates against its id.
func FromInvoice(ownerID uint, taxRate decimal.Decimal, inv *model.Invoice) *Draft {
	d := &Draft{
		ownerID:     ownerID,
		taxRate:     taxRate,
		persistedID: inv.ID,
		inv:         *inv,
	}
	d.inv.Items = append([]model.InvoiceItem(nil), inv.Items...)
	d.state = d.derive()
	return d
}

// derive computes the resting state from the draft's contents.
func (d *Draft) derive() State {
	hasClient := d.inv.ClientID != 0
	hasItems := len(d.inv.Items) > 0
	switch {
	case hasClient && hasItems:
		return StateValid
	case hasClient || hasItems:
		return StatePartial
	default:
		return StateEmpty
	}
}

// Apply dispatches one action. Item mutations recompute subtotal, tax and
// total in the same step, so totals are never observed out of sync with the
// items that produced them.
func (d *Draft) Apply(a Action) error {
	if d.state == StateSaving {
		return fmt.Errorf("draft is saving, cannot apply %T", a)
	}
	switch act := a.(type) {
	case SetClient:
		d.inv.ClientID = act.Snapshot.ClientID
		d.inv.ClientName = act.Snapshot.Name
		d.inv.ClientAddress = act.Snapshot.Address
		d.inv.ClientPhone = act.Snapshot.Phone
		d.inv.ClientEmail = act.Snapshot.Email
	case SetItems:
		d.inv.Items = append([]model.InvoiceItem(nil), act.Items...)
		d.inv.RecomputeTotals(d.taxRate)
	case SetDetails:
		d.inv.Number = act.Details.Number
		d.inv.Date = act.Details.Date
		d.inv.Paid = act.Details.Paid
		d.inv.HideStatus = act.Details.HideStatus
		d.inv.ShowStatusWatermark = act.Details.ShowStatusWatermark
	case SetNotes:
		d.inv.Notes = act.Text
	case SetTerms:
		d.inv.Terms = act.Text
	default:
		return fmt.Errorf("unknown action %T", a)
	}
	d.state = d.derive()
	return nil
}

// State returns the current lifecycle state.
func (d *Draft) State() State { return d.state }

// Err returns the error of the last failed save, if any.
func (d *Draft) Err() error { return d.lastErr }

// PersistedID returns the id the draft updates against, zero in create mode.
func (d *Draft) PersistedID() uint { return d.persistedID }

// Invoice returns a copy of the draft's invoice for rendering. Mutations must
// go through Apply.
func (d *Draft) Invoice() model.Invoice {
	out := d.inv
	out.Items = append([]model.InvoiceItem(nil), d.inv.Items...)
	return out
}

// Save persists the draft through the gateway. Only permitted from Valid; no
// gateway call is made otherwise. On success the draft resets to a fresh
// empty draft with an incremented placeholder number (create mode) or adopts
// the canonical stored invoice (edit mode). On failure the draft is left
// exactly as it was, back in Valid, with the error retrievable via Err.
func (d *Draft) Save(gw Gateway) (*model.Invoice, error) {
	if d.state != StateValid && d.state != StateSaveFailed {
		return nil, fmt.Errorf("%w: state %s", ErrNotSavable, d.state)
	}
	d.state = StateSaving
	d.lastErr = nil

	inv := d.inv
	inv.Items = append([]model.InvoiceItem(nil), d.inv.Items...)

	var stored *model.Invoice
	var err error
	if d.persistedID != 0 {
		stored, err = gw.UpdateInvoice(d.persistedID, &inv, d.ownerID)
	} else {
		stored, err = gw.CreateInvoice(&inv, d.ownerID)
	}
	if err != nil {
		// nothing of the in-progress draft was mutated; user-initiated
		// retry goes through Save again
		d.state = StateSaveFailed
		d.lastErr = err
		return nil, err
	}

	d.state = StateSaved
	if d.persistedID != 0 {
		// edit mode: subsequent edits continue on the canonical copy
		d.inv = *stored
		d.inv.Items = append([]model.InvoiceItem(nil), stored.Items...)
	} else {
		// create mode: fresh draft, next placeholder number. Saved stays
		// observable until the next Apply re-derives the state.
		d.seq++
		d.inv = model.Invoice{
			Number: PlaceholderNumber(d.seq),
			Date:   time.Now(),
		}
	}
	return stored, nil
}
