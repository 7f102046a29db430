package model

import (
	"strconv"
)

// InvoiceListQuery captures filter, paging, and sorting options for listing invoices.
type InvoiceListQuery struct {
	Paid   *bool  // Optional: filter by paid status
	Search string // Optional: free text over number and client name
	Limit  int    // Page size (1-200); defaults to 50 when out of range
	Cursor string // Simple offset cursor encoded as a string: "0", "50", ...
	Sort   string // Sort mode: "date_desc" (default), "date_asc", "created_desc"
}

// ListInvoices returns a page of invoices for the given owner along with the
// next cursor. Owner-scoped and safe to call repeatedly for pagination.
//
// Paging model:
//   - Uses an offset-based cursor encoded as a string (q.Cursor).
//   - Fetches Limit+1 rows to determine if there is a next page; if so, trims
//     to Limit and returns nextCursor = offset + Limit (as string).
func (store *Store) ListInvoices(ownerID uint, q InvoiceListQuery) (items []Invoice, nextCursor string, err error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}

	offset := 0
	if q.Cursor != "" {
		if n, e := strconv.Atoi(q.Cursor); e == nil && n >= 0 {
			offset = n
		}
	}

	tx := store.db.Model(&Invoice{}).Where("owner_id = ?", ownerID)
	if q.Paid != nil {
		tx = tx.Where("paid = ?", *q.Paid)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		tx = tx.Where("number LIKE ? OR client_name LIKE ?", like, like)
	}

	switch q.Sort {
	case "date_asc":
		tx = tx.Order("date ASC, id ASC")
	case "created_desc":
		tx = tx.Order("created_at DESC, id DESC")
	default:
		tx = tx.Order("date DESC, id DESC")
	}

	var page []Invoice
	if err = tx.Offset(offset).Limit(q.Limit + 1).Find(&page).Error; err != nil {
		return nil, "", err
	}
	if len(page) > q.Limit {
		page = page[:q.Limit]
		nextCursor = strconv.Itoa(offset + q.Limit)
	}
	return page, nextCursor, nil
}

// ListInvoicesForExport loads all invoices of the owner with their items,
// ordered by date, for report generation.
func (store *Store) ListInvoicesForExport(ownerID uint) ([]Invoice, error) {
	var invs []Invoice
	err := store.db.Where("owner_id = ?", ownerID).
		Preload("Items", "owner_id = ?", ownerID).
		Order("date ASC, id ASC").
		Find(&invs).Error
	return invs, err
}
