package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateNumber is returned when another invoice of the same owner
	// already uses the requested invoice number.
	ErrDuplicateNumber = fmt.Errorf("invoice number already in use")
	// ErrClientNotOwned is returned when the referenced client does not
	// belong to the calling owner.
	ErrClientNotOwned = fmt.Errorf("client does not belong to owner")
	// ErrInvalidInvoice is returned when a draft misses a client or items.
	ErrInvalidInvoice = fmt.Errorf("invoice is missing client or items")
)

// Invoice is a billing document for a client. The client fields are a
// snapshot taken at save time: invoices are historical documents, they do not
// follow later edits of the client record.
type Invoice struct {
	gorm.Model
	OwnerID             uint   `gorm:"index;index:idx_owner_number"`
	Number              string `gorm:"index:idx_owner_number"`
	Date                time.Time
	Paid                bool
	HideStatus          bool
	ShowStatusWatermark bool
	Items               []InvoiceItem
	Subtotal            decimal.Decimal `sql:"type:decimal(20,8);"`
	Tax                 decimal.Decimal `sql:"type:decimal(20,8);"`
	Total               decimal.Decimal `sql:"type:decimal(20,8);"`
	Notes               string
	Terms               string

	// client snapshot, captured by value
	ClientID      uint `gorm:"index"`
	ClientName    string
	ClientAddress string
	ClientPhone   string
	ClientEmail   string
}

// InvoiceItem contains one line of an invoice.
type InvoiceItem struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	OwnerID     uint
	InvoiceID   uint `gorm:"index"`
	Position    int
	ItemID      string // stable identifier within the invoice
	Name        string
	Description string
	Quantity    int             // >= 1
	Price       decimal.Decimal `sql:"type:decimal(20,8);"` // unit price, >= 0
	Discount    decimal.Decimal `sql:"type:decimal(20,8);"` // percent, 0-100
	Amount      decimal.Decimal `sql:"type:decimal(20,8);"` // LineAmount(price, qty, discount)
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// RecomputeTotals re-derives per-line amounts and the aggregate totals from
// the item list and tax rate. Item list and totals are updated together so
// they are never observed out of sync.
func (inv *Invoice) RecomputeTotals(taxRatePercent decimal.Decimal) {
	for i := range inv.Items {
		it := &inv.Items[i]
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		it.Amount = LineAmount(it.Price, it.Quantity, it.Discount)
	}
	t := ComputeTotals(inv.Items, taxRatePercent)
	inv.Subtotal = t.Subtotal
	inv.Tax = t.Tax
	inv.Total = t.Total
}

// validate checks the structural invariants of a draft before it may touch
// the database.
func (inv *Invoice) validate() error {
	if inv.ClientID == 0 || len(inv.Items) == 0 {
		return ErrInvalidInvoice
	}
	if strings.TrimSpace(inv.Number) == "" {
		return fmt.Errorf("%w: empty number", ErrInvalidInvoice)
	}
	for _, it := range inv.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: quantity below 1", ErrInvalidInvoice)
		}
		if it.Price.IsNegative() || it.Amount.IsNegative() {
			return fmt.Errorf("%w: negative price", ErrInvalidInvoice)
		}
		if it.Discount.IsNegative() || it.Discount.GreaterThan(hundred) {
			return fmt.Errorf("%w: discount out of range", ErrInvalidInvoice)
		}
	}
	return nil
}

// numberTaken reports whether another invoice of this owner uses the number.
// excludeID skips the invoice itself on updates.
func numberTaken(tx *gorm.DB, ownerID uint, number string, excludeID uint) (bool, error) {
	var count int64
	q := tx.Model(&Invoice{}).Where("owner_id = ? AND number = ?", ownerID, number)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// snapshotClient copies the live client fields onto the invoice. The draft's
// own view of the client is advisory; the authoritative values are re-read
// inside the save transaction.
func snapshotClient(tx *gorm.DB, inv *Invoice, ownerID uint) error {
	var client Client
	err := tx.Where("owner_id = ?", ownerID).First(&client, inv.ClientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotOwned
		}
		return err
	}
	inv.ClientName = client.Name
	inv.ClientAddress = client.Address
	inv.ClientPhone = client.Phone
	inv.ClientEmail = client.Email
	return nil
}

func normalizeItems(inv *Invoice, ownerID uint) {
	for i := range inv.Items {
		it := &inv.Items[i]
		it.ID = 0
		it.InvoiceID = inv.ID
		it.OwnerID = ownerID
		it.Position = i + 1
		if it.ItemID == "" {
			it.ItemID = uuid.NewString()
		}
	}
}

// CreateInvoice validates and persists a new invoice for the given owner and
// returns the canonical stored copy. The client snapshot is re-bound from the
// live client record, the number is checked for per-owner uniqueness and the
// totals are recomputed from the items inside the same transaction.
func (store *Store) CreateInvoice(inv *Invoice, ownerID uint) (*Invoice, error) {
	if err := inv.validate(); err != nil {
		return nil, err
	}
	profile, err := store.LoadCompanyProfile(ownerID)
	if err != nil {
		return nil, err
	}
	err = store.db.Transaction(func(tx *gorm.DB) error {
		taken, err := numberTaken(tx, ownerID, inv.Number, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateNumber
		}
		if err := snapshotClient(tx, inv, ownerID); err != nil {
			return err
		}
		inv.ID = 0
		inv.OwnerID = ownerID
		inv.RecomputeTotals(profile.TaxRate)
		items := inv.Items
		inv.Items = nil
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		inv.Items = items
		normalizeItems(inv, ownerID)
		if len(inv.Items) > 0 {
			if err := tx.Omit("ID").Create(&inv.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.LoadInvoice(inv.ID, ownerID)
}

// UpdateInvoice updates an invoice and fully replaces its items (hard delete
// + recreate). The client snapshot is refreshed only when the client id
// changed; the historical snapshot is kept otherwise.
func (store *Store) UpdateInvoice(id uint, inv *Invoice, ownerID uint) (*Invoice, error) {
	if id == 0 {
		return nil, fmt.Errorf("update invoice: id is zero")
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}
	profile, err := store.LoadCompanyProfile(ownerID)
	if err != nil {
		return nil, err
	}
	err = store.db.Transaction(func(tx *gorm.DB) error {
		var current Invoice
		if err := tx.Where("owner_id = ?", ownerID).First(&current, id).Error; err != nil {
			return err
		}
		taken, err := numberTaken(tx, ownerID, inv.Number, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateNumber
		}
		if inv.ClientID != current.ClientID {
			// the user re-selected a different client, re-snapshot
			if err := snapshotClient(tx, inv, ownerID); err != nil {
				return err
			}
		} else {
			inv.ClientName = current.ClientName
			inv.ClientAddress = current.ClientAddress
			inv.ClientPhone = current.ClientPhone
			inv.ClientEmail = current.ClientEmail
		}
		inv.ID = id
		inv.OwnerID = ownerID
		inv.CreatedAt = current.CreatedAt
		inv.RecomputeTotals(profile.TaxRate)

		items := inv.Items
		inv.Items = nil
		if err := tx.Model(&Invoice{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Select("Number", "Date", "Paid", "HideStatus", "ShowStatusWatermark",
				"Subtotal", "Tax", "Total", "Notes", "Terms",
				"ClientID", "ClientName", "ClientAddress", "ClientPhone", "ClientEmail").
			Updates(inv).Error; err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if err := tx.Where("invoice_id = ? AND owner_id = ?", id, ownerID).
			Delete(&InvoiceItem{}).Error; err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		inv.Items = items
		normalizeItems(inv, ownerID)
		if len(inv.Items) > 0 {
			if err := tx.Omit("ID").Create(&inv.Items).Error; err != nil {
				return fmt.Errorf("recreate items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.LoadInvoice(id, ownerID)
}

// SetInvoicePaid toggles only the paid flag, for quick status changes without
// resubmitting the whole document.
func (store *Store) SetInvoicePaid(id uint, ownerID uint, paid bool) error {
	res := store.db.Model(&Invoice{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("paid", paid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LoadInvoice loads an invoice with its items, owner-scoped.
func (store *Store) LoadInvoice(id any, ownerID uint) (*Invoice, error) {
	var inv Invoice
	result := store.db.Where("owner_id = ?", ownerID).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("owner_id = ?", ownerID).Order("position ASC")
		}).
		First(&inv, id)
	if err := result.Error; err != nil {
		return nil, fmt.Errorf("load invoice %v: %w", id, err)
	}
	return &inv, nil
}

// DeleteInvoice removes an invoice and all referenced items.
func (store *Store) DeleteInvoice(inv *Invoice, ownerID any) error {
	result := store.db.Where("owner_id = ?", ownerID).Select("Items").Delete(inv)
	return result.Error
}

// CountInvoices returns the number of invoices of the owner. The invoice
// editor derives its advisory placeholder number from this count.
func (store *Store) CountInvoices(ownerID uint) (int64, error) {
	var count int64
	err := store.db.Model(&Invoice{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}
