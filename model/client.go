package model

import (
	"fmt"
	"strings"

	"github.com/biter777/countries"
	"gorm.io/gorm"
)

var ErrNotAllowed = fmt.Errorf("not allowed")

// Client is a customer of the dealership. Invoices keep their own snapshot of
// these fields; editing or archiving a client never changes saved invoices.
type Client struct {
	gorm.Model
	OwnerID  uint `gorm:"index"`
	Name     string
	Address  string
	Country  string // ISO 3166-1 alpha-2
	Phone    string
	Email    string
	Archived bool
}

// normalizeCountry maps free-form country input to a two-letter code.
func normalizeCountry(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	c := countries.ByName(in)
	if c == countries.Unknown {
		return in
	}
	return c.Alpha2()
}

// SaveClient creates or updates a client.
func (store *Store) SaveClient(c *Client, ownerID any) error {
	uid, ok := ownerID.(uint)
	if !ok {
		return ErrNotAllowed
	}
	if c.OwnerID != uid {
		return ErrNotAllowed
	}
	c.Country = normalizeCountry(c.Country)
	return store.db.Save(c).Error
}

// LoadClient loads a client, owner-scoped.
func (store *Store) LoadClient(id any, ownerID any) (*Client, error) {
	var c Client
	result := store.db.Where("owner_id = ?", ownerID).First(&c, id)
	if result.Error != nil {
		return nil, fmt.Errorf("load client %v: %w", id, result.Error)
	}
	return &c, nil
}

// ListClients returns the owner's clients, optionally matching a search
// string, active clients first.
func (store *Store) ListClients(ownerID uint, search string, includeArchived bool) ([]Client, error) {
	tx := store.db.Where("owner_id = ?", ownerID)
	if !includeArchived {
		tx = tx.Where("archived = ?", false)
	}
	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("name LIKE ? OR email LIKE ?", like, like)
	}
	var cs []Client
	err := tx.Order("archived ASC, name ASC").Find(&cs).Error
	return cs, err
}

// ArchiveClient marks a client as archived. Saved invoices keep their
// snapshot and remain printable.
func (store *Store) ArchiveClient(id uint, ownerID uint, archived bool) error {
	res := store.db.Model(&Client{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
