package controller

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type APIError struct {
	Code    string `json:"code" xml:"code"`
	Message string `json:"message" xml:"message"`
}

func apiError(code, msg string) *APIError { return &APIError{Code: code, Message: msg} }

func wantsXML(c echo.Context) bool {
	if c.QueryParam("format") == "xml" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}

func respond(c echo.Context, status int, v any) error {
	if wantsXML(c) {
		return c.XML(status, v)
	}
	return c.JSON(status, v)
}

// APIInvoice is the invoice representation used both by the JSON/XML API and
// the account ZIP export. Decimals travel as strings to keep them exact.
type APIInvoice struct {
	ID                  uint             `json:"id" xml:"id,attr"`
	Number              string           `json:"number" xml:"number"`
	Date                time.Time        `json:"date" xml:"date"`
	Paid                bool             `json:"paid" xml:"paid"`
	HideStatus          bool             `json:"hide_status,omitempty" xml:"hide_status,omitempty"`
	ShowStatusWatermark bool             `json:"show_status_watermark,omitempty" xml:"show_status_watermark,omitempty"`
	Subtotal            string           `json:"subtotal" xml:"subtotal"`
	Tax                 string           `json:"tax" xml:"tax"`
	Total               string           `json:"total" xml:"total"`
	Notes               string           `json:"notes,omitempty" xml:"notes,omitempty"`
	Terms               string           `json:"terms,omitempty" xml:"terms,omitempty"`
	ClientID            uint             `json:"client_id" xml:"client_id"`
	ClientName          string           `json:"client_name" xml:"client_name"`
	ClientAddress       string           `json:"client_address,omitempty" xml:"client_address,omitempty"`
	ClientPhone         string           `json:"client_phone,omitempty" xml:"client_phone,omitempty"`
	ClientEmail         string           `json:"client_email,omitempty" xml:"client_email,omitempty"`
	Items               []APIInvoiceItem `json:"items,omitempty" xml:"items>item,omitempty"`
	CreatedAt           time.Time        `json:"created_at" xml:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" xml:"updated_at"`
}

type APIInvoiceItem struct {
	ID          uint   `json:"id" xml:"id,attr"`
	Position    int    `json:"position" xml:"position"`
	ItemID      string `json:"item_id,omitempty" xml:"item_id,omitempty"`
	Name        string `json:"name" xml:"name"`
	Description string `json:"description,omitempty" xml:"description,omitempty"`
	Quantity    int    `json:"quantity" xml:"quantity"`
	Price       string `json:"price" xml:"price"`
	Discount    string `json:"discount" xml:"discount"`
	Amount      string `json:"amount" xml:"amount"`
}

type APIInvoiceList struct {
	XMLName    struct{}     `json:"-" xml:"invoices"`
	Items      []APIInvoice `json:"items" xml:"invoice"`
	NextCursor string       `json:"next_cursor,omitempty" xml:"next_cursor,omitempty"`
}
