package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/motorbill/crm/draft"
	"github.com/motorbill/crm/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type invoiceAPIListQuery struct {
	Status string `query:"status"` // paid, unpaid or empty for all
	Search string `query:"q"`
	Limit  int    `query:"limit"`
	Cursor string `query:"cursor"`
	Sort   string `query:"sort"`
}

func toAPIInvoice(inv *model.Invoice) APIInvoice {
	items := make([]APIInvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = APIInvoiceItem{
			ID:          it.ID,
			Position:    it.Position,
			ItemID:      it.ItemID,
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price.String(),
			Discount:    it.Discount.String(),
			Amount:      it.Amount.String(),
		}
	}

	return APIInvoice{
		ID:                  inv.ID,
		Number:              inv.Number,
		Date:                inv.Date,
		Paid:                inv.Paid,
		HideStatus:          inv.HideStatus,
		ShowStatusWatermark: inv.ShowStatusWatermark,
		Subtotal:            inv.Subtotal.String(),
		Tax:                 inv.Tax.String(),
		Total:               inv.Total.String(),
		Notes:               inv.Notes,
		Terms:               inv.Terms,
		ClientID:            inv.ClientID,
		ClientName:          inv.ClientName,
		ClientAddress:       inv.ClientAddress,
		ClientPhone:         inv.ClientPhone,
		ClientEmail:         inv.ClientEmail,
		Items:               items,
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
	}
}

func (ctrl *controller) apiInvoiceList(c echo.Context) error {
	ownerID := apiOwnerID(c)
	var q invoiceAPIListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}

	var paid *bool
	switch q.Status {
	case "paid":
		v := true
		paid = &v
	case "unpaid", "open":
		v := false
		paid = &v
	case "":
	default:
		return respond(c, http.StatusBadRequest, apiError("bad_query", "status must be paid or unpaid"))
	}

	invs, next, err := ctrl.model.ListInvoices(ownerID, model.InvoiceListQuery{
		Paid:   paid,
		Search: q.Search,
		Limit:  q.Limit,
		Cursor: q.Cursor,
		Sort:   q.Sort,
	})
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load invoices"))
	}

	items := make([]APIInvoice, len(invs))
	for i := range invs {
		// list view stays shallow, items are only delivered on the detail route
		out := toAPIInvoice(&invs[i])
		out.Items = nil
		items[i] = out
	}
	return respond(c, http.StatusOK, APIInvoiceList{Items: items, NextCursor: next})
}

func (ctrl *controller) apiInvoiceGet(c echo.Context) error {
	ownerID := apiOwnerID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	inv, err := ctrl.model.LoadInvoice(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "invoice not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load invoice"))
	}

	// weak ETag from id and last update, good enough for client-side caching
	c.Response().Header().Set("ETag",
		`W/"inv-`+strconv.FormatUint(uint64(inv.ID), 10)+
			`-`+strconv.FormatInt(inv.UpdatedAt.Unix(), 10)+`"`)

	return respond(c, http.StatusOK, toAPIInvoice(inv))
}

// APIInvoiceCreate is the input for POST /api/v1/invoices.
type APIInvoiceCreate struct {
	Number              string               `json:"number" xml:"number"`
	Date                time.Time            `json:"date" xml:"date"`
	Paid                bool                 `json:"paid" xml:"paid"`
	HideStatus          bool                 `json:"hide_status" xml:"hide_status"`
	ShowStatusWatermark bool                 `json:"show_status_watermark" xml:"show_status_watermark"`
	ClientID            uint                 `json:"client_id" xml:"client_id"`
	Notes               string               `json:"notes" xml:"notes"`
	Terms               string               `json:"terms" xml:"terms"`
	Items               []APIInvoiceItemData `json:"items" xml:"items>item"`
}

type APIInvoiceItemData struct {
	Name        string `json:"name" xml:"name"`
	Description string `json:"description" xml:"description"`
	Quantity    int    `json:"quantity" xml:"quantity"`
	Price       string `json:"price" xml:"price"`
	Discount    string `json:"discount" xml:"discount"`
}

func (ctrl *controller) apiInvoiceCreate(c echo.Context) error {
	ownerID := apiOwnerID(c)
	if s := apiScopes(c); s != "" && !strings.Contains(s, "write") {
		return respond(c, http.StatusForbidden, apiError("forbidden", "token lacks write scope"))
	}

	var input APIInvoiceCreate
	if err := c.Bind(&input); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid request body"))
	}
	if strings.TrimSpace(input.Number) == "" {
		return respond(c, http.StatusBadRequest, apiError("validation_error", "number is required"))
	}
	if input.ClientID == 0 {
		return respond(c, http.StatusBadRequest, apiError("validation_error", "client_id is required"))
	}
	if len(input.Items) == 0 {
		return respond(c, http.StatusBadRequest, apiError("validation_error", "at least one item is required"))
	}

	client, err := ctrl.model.LoadClient(input.ClientID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusUnprocessableEntity, apiError("client_not_owned", "client not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load client"))
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load company profile"))
	}

	items := make([]model.InvoiceItem, 0, len(input.Items))
	for _, in := range input.Items {
		price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
		if err != nil {
			return respond(c, http.StatusBadRequest, apiError("validation_error", "invalid item price"))
		}
		discount := decimal.Zero
		if s := strings.TrimSpace(in.Discount); s != "" {
			discount, err = decimal.NewFromString(s)
			if err != nil {
				return respond(c, http.StatusBadRequest, apiError("validation_error", "invalid item discount"))
			}
		}
		qty := in.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, model.InvoiceItem{
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			Quantity:    qty,
			Price:       price,
			Discount:    discount,
		})
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	// same write path as the editor: draft state machine in front of the store
	d := draft.New(ownerID, profile.TaxRate, 0)
	actions := []draft.Action{
		draft.SetClient{Snapshot: draft.ClientSnapshot{
			ClientID: client.ID,
			Name:     client.Name,
			Address:  client.Address,
			Phone:    client.Phone,
			Email:    client.Email,
		}},
		draft.SetItems{Items: items},
		draft.SetDetails{Details: draft.Details{
			Number:              strings.TrimSpace(input.Number),
			Date:                date,
			Paid:                input.Paid,
			HideStatus:          input.HideStatus,
			ShowStatusWatermark: input.ShowStatusWatermark,
		}},
		draft.SetNotes{Text: input.Notes},
		draft.SetTerms{Text: input.Terms},
	}
	for _, a := range actions {
		if err := d.Apply(a); err != nil {
			return respond(c, http.StatusBadRequest, apiError("validation_error", err.Error()))
		}
	}

	saved, err := d.Save(ctrl.model)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrDuplicateNumber):
			return respond(c, http.StatusConflict, apiError("duplicate_number", "invoice number already in use"))
		case errors.Is(err, model.ErrClientNotOwned):
			return respond(c, http.StatusUnprocessableEntity, apiError("client_not_owned", "client not found"))
		case errors.Is(err, model.ErrInvalidInvoice), errors.Is(err, draft.ErrNotSavable):
			return respond(c, http.StatusBadRequest, apiError("validation_error", "invoice is missing client or items"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not create invoice"))
	}

	c.Response().Header().Set("Location", "/api/v1/invoices/"+strconv.FormatUint(uint64(saved.ID), 10))
	return respond(c, http.StatusCreated, toAPIInvoice(saved))
}

type invoicePaidReq struct {
	Paid bool `json:"paid" xml:"paid"`
}

func (ctrl *controller) apiInvoicePaid(c echo.Context) error {
	ownerID := apiOwnerID(c)
	if s := apiScopes(c); s != "" && !strings.Contains(s, "write") {
		return respond(c, http.StatusForbidden, apiError("forbidden", "token lacks write scope"))
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	var req invoicePaidReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}
	if err := ctrl.model.SetInvoicePaid(uint(id), ownerID, req.Paid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "invoice not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not update invoice"))
	}
	return respond(c, http.StatusOK, invoicePaidReq{Paid: req.Paid})
}
