// Package render turns an invoice plus the company profile into a
// self-contained HTML document. The same structure is used for the on-screen
// preview and for conversion to PDF; the only divergence between the two
// modes is interactivity and screen-only placeholder rows.
package render

import (
	"time"

	"github.com/motorbill/crm/model"
)

// Mode selects the output variant.
type Mode string

const (
	// ModePreview is the interactive on-screen variant. It may contain
	// screen-only placeholder rows and click targets.
	ModePreview Mode = "preview"
	// ModePrint is the variant handed to the print/PDF pipeline. Printed
	// output never shows placeholder prompts.
	ModePrint Mode = "print"
)

// Labels is the closed per-locale table of document strings. Adding a locale
// means adding a complete table here; lookups never fall through to another
// language.
type Labels struct {
	Invoice   string
	BillTo    string
	From      string
	Date      string
	Item      string
	Qty       string
	UnitPrice string
	Discount  string
	Amount    string
	Subtotal  string
	Tax       string
	Total     string
	Status    string
	Paid      string
	Unpaid    string
	Notes     string
	Terms     string
	NoItems   string
}

var labelTables = map[model.Locale]Labels{
	model.LocaleEnglish: {
		Invoice:   "Invoice",
		BillTo:    "Bill To",
		From:      "From",
		Date:      "Date",
		Item:      "Item",
		Qty:       "Qty",
		UnitPrice: "Unit Price",
		Discount:  "Discount",
		Amount:    "Amount",
		Subtotal:  "Subtotal",
		Tax:       "Tax",
		Total:     "Total",
		Status:    "Status",
		Paid:      "PAID",
		Unpaid:    "UNPAID",
		Notes:     "Notes",
		Terms:     "Terms",
		NoItems:   "Add items to the invoice to see them here",
	},
	model.LocaleHebrew: {
		Invoice:   "חשבונית",
		BillTo:    "לכבוד",
		From:      "מאת",
		Date:      "תאריך",
		Item:      "פריט",
		Qty:       "כמות",
		UnitPrice: "מחיר יחידה",
		Discount:  "הנחה",
		Amount:    "סכום",
		Subtotal:  "סכום ביניים",
		Tax:       "מס",
		Total:     "סה\"כ",
		Status:    "סטטוס",
		Paid:      "שולם",
		Unpaid:    "לא שולם",
		Notes:     "הערות",
		Terms:     "תנאים",
		NoItems:   "הוסיפו פריטים לחשבונית כדי לראות אותם כאן",
	},
}

// currencySymbols is the closed mapping from currency code to the glyph shown
// next to amounts. Codes without a dedicated glyph render as their three
// letter code.
var currencySymbols = map[model.Currency]string{
	model.CurrencyUSD: "$",
	model.CurrencyEUR: "€",
	model.CurrencyGBP: "£",
	model.CurrencyILS: "₪",
	model.CurrencyAED: "AED",
}

// CurrencySymbol resolves the display symbol; unknown or missing currencies
// fall back to the USD symbol.
func CurrencySymbol(c model.Currency) string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return currencySymbols[model.CurrencyUSD]
}

// LabelsFor resolves the label table; unknown locales fall back to English.
func LabelsFor(l model.Locale) Labels {
	if t, ok := labelTables[l]; ok {
		return t
	}
	return labelTables[model.LocaleEnglish]
}

// ItemView is one line of the rendered table. All money fields are
// preformatted strings; the unit price is derived from the stored amount so
// the printed columns always reconcile.
type ItemView struct {
	Name        string
	Description string
	Quantity    int
	UnitPrice   string
	Discount    string
	Amount      string
}

type ClientView struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

type ProfileView struct {
	CompanyName   string
	Address       string
	Phone         string
	Email         string
	LogoPath      string
	WatermarkText string
	ShowNotes     bool
	ShowTerms     bool
}

type InvoiceView struct {
	Number   string
	Date     time.Time
	Items    []ItemView
	Subtotal string
	Tax      string
	Total    string
	TaxRate  string
	Notes    string
	Terms    string
}

// Document is the deterministic input to the HTML renderer.
type Document struct {
	Direction      string // "ltr" or "rtl"
	RTL            bool
	Labels         Labels
	CurrencySymbol string
	Profile        ProfileView
	Client         ClientView
	Invoice        InvoiceView

	// ShowStatus and ShowWatermark are resolved here, not in the template:
	// hideStatus suppresses both, regardless of the watermark toggle.
	ShowStatus    bool
	ShowWatermark bool
	StatusLabel   string
}

// BuildDocument maps a stored or draft invoice and the company profile to the
// renderer input. It resolves locale, direction, currency symbol and the
// status/watermark precedence rules.
func BuildDocument(inv *model.Invoice, profile *model.CompanyProfile) Document {
	labels := LabelsFor(profile.Locale)
	rtl := profile.Locale.RTL()

	doc := Document{
		Direction:      "ltr",
		RTL:            rtl,
		Labels:         labels,
		CurrencySymbol: CurrencySymbol(profile.Currency),
		Profile: ProfileView{
			CompanyName:   profile.CompanyName,
			Address:       profile.Address,
			Phone:         profile.Phone,
			Email:         profile.Email,
			LogoPath:      profile.LogoPath,
			WatermarkText: profile.WatermarkText,
			ShowNotes:     profile.ShowNotes,
			ShowTerms:     profile.ShowTerms,
		},
		Client: ClientView{
			Name:    inv.ClientName,
			Address: inv.ClientAddress,
			Phone:   inv.ClientPhone,
			Email:   inv.ClientEmail,
		},
		Invoice: InvoiceView{
			Number:   inv.Number,
			Date:     inv.Date,
			Subtotal: inv.Subtotal.StringFixed(2),
			Tax:      inv.Tax.StringFixed(2),
			Total:    inv.Total.StringFixed(2),
			TaxRate:  profile.TaxRate.StringFixed(0),
			Notes:    inv.Notes,
			Terms:    inv.Terms,
		},
	}
	if rtl {
		doc.Direction = "rtl"
	}

	for _, it := range inv.Items {
		doc.Invoice.Items = append(doc.Invoice.Items, ItemView{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   model.DisplayUnitPrice(it).StringFixed(2),
			Discount:    it.Discount.StringFixed(0),
			Amount:      it.Amount.StringFixed(2),
		})
	}

	doc.ShowStatus = !inv.HideStatus
	doc.ShowWatermark = inv.ShowStatusWatermark && !inv.HideStatus
	if inv.Paid {
		doc.StatusLabel = labels.Paid
	} else {
		doc.StatusLabel = labels.Unpaid
	}
	return doc
}

// Renderer produces the final markup for a document.
type Renderer interface {
	RenderHTML(doc Document, mode Mode) (string, error)
}
