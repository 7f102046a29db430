package model

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Car is one vehicle in the dealership catalog. The invoice editor offers
// cars as selectable line items; quantity and discount are applied there.
type Car struct {
	gorm.Model
	OwnerID     uint `gorm:"index"`
	Make        string
	ModelName   string
	Year        int
	Price       decimal.Decimal `sql:"type:decimal(20,8);"`
	Description string
	Sold        bool
}

// Title is the display name used for listings and invoice lines.
func (c *Car) Title() string {
	if c.Year > 0 {
		return fmt.Sprintf("%s %s (%d)", c.Make, c.ModelName, c.Year)
	}
	return fmt.Sprintf("%s %s", c.Make, c.ModelName)
}

// SaveCar creates or updates a catalog entry.
func (store *Store) SaveCar(car *Car, ownerID any) error {
	uid, ok := ownerID.(uint)
	if !ok {
		return ErrNotAllowed
	}
	if car.OwnerID != uid {
		return ErrNotAllowed
	}
	return store.db.Save(car).Error
}

// LoadCar loads a catalog entry, owner-scoped.
func (store *Store) LoadCar(id any, ownerID any) (*Car, error) {
	var car Car
	result := store.db.Where("owner_id = ?", ownerID).First(&car, id)
	if result.Error != nil {
		return nil, fmt.Errorf("load car %v: %w", id, result.Error)
	}
	return &car, nil
}

// ListCars returns the owner's catalog, unsold first.
func (store *Store) ListCars(ownerID uint, search string) ([]Car, error) {
	tx := store.db.Where("owner_id = ?", ownerID)
	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("make LIKE ? OR model_name LIKE ?", like, like)
	}
	var cars []Car
	err := tx.Order("sold ASC, make ASC, model_name ASC").Find(&cars).Error
	return cars, err
}
