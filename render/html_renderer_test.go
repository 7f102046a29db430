package render_test

import (
	"strings"
	"testing"

	"github.com/motorbill/crm/fixtures"
	"github.com/motorbill/crm/model"
	"github.com/motorbill/crm/render"
	"github.com/shopspring/decimal"
)

func testProfile() *model.CompanyProfile {
	return &model.CompanyProfile{
		OwnerID:     fixtures.DefaultOwnerID,
		CompanyName: "Northside Motors",
		Address:     "1 Showroom Ave",
		Phone:       "+1 555 0100",
		Email:       "sales@northside.example",
		Currency:    model.CurrencyUSD,
		TaxRate:     decimal.NewFromInt(8),
		Locale:      model.LocaleEnglish,
		ShowNotes:   true,
		ShowTerms:   true,
	}
}

func testInvoice() *model.Invoice {
	inv := fixtures.Invoice(
		fixtures.WithNumber("INV-0042"),
		fixtures.WithClientID(7),
		fixtures.WithItems(fixtures.Item("Detailing", 2, 100, 10)),
	)
	inv.ClientName = "Dana Vered"
	inv.ClientAddress = "12 Harbor Rd"
	inv.RecomputeTotals(decimal.NewFromInt(8))
	return inv
}

func renderBoth(t *testing.T, inv *model.Invoice, profile *model.CompanyProfile) (preview, print string) {
	t.Helper()
	r := render.NewRenderer()
	doc := render.BuildDocument(inv, profile)
	var err error
	if preview, err = r.RenderHTML(doc, render.ModePreview); err != nil {
		t.Fatalf("render preview: %v", err)
	}
	if print, err = r.RenderHTML(doc, render.ModePrint); err != nil {
		t.Fatalf("render print: %v", err)
	}
	return preview, print
}

func TestRender_PreviewAndPrintIdenticalWithItems(t *testing.T) {
	preview, print := renderBoth(t, testInvoice(), testProfile())
	if preview != print {
		t.Error("preview and print output must be structurally identical when items exist")
	}
}

func TestRender_Amounts(t *testing.T) {
	preview, _ := renderBoth(t, testInvoice(), testProfile())

	for _, want := range []string{"$180.00", "$14.40", "$194.40", "$100.00"} {
		if !strings.Contains(preview, want) {
			t.Errorf("document missing %q", want)
		}
	}
	// quantity suffix on the item name
	if !strings.Contains(preview, "&times;2") {
		t.Error("document missing quantity multiplier suffix")
	}
}

func TestRender_CurrencySymbols(t *testing.T) {
	tests := []struct {
		currency model.Currency
		want     string
	}{
		{model.CurrencyUSD, "$194.40"},
		{model.CurrencyEUR, "€194.40"},
		{model.CurrencyILS, "₪194.40"},
		{model.CurrencyAED, "AED 194.40"},
		{model.Currency("XXX"), "$194.40"}, // unknown falls back to default
	}
	for _, tt := range tests {
		t.Run(string(tt.currency), func(t *testing.T) {
			profile := testProfile()
			profile.Currency = tt.currency
			preview, _ := renderBoth(t, testInvoice(), profile)
			if !strings.Contains(preview, tt.want) {
				t.Errorf("document missing %q", tt.want)
			}
		})
	}
}

func TestRender_StatusWatermark(t *testing.T) {
	inv := testInvoice()
	inv.ShowStatusWatermark = true

	preview, _ := renderBoth(t, inv, testProfile())
	if !strings.Contains(preview, `<div class="watermark">UNPAID</div>`) {
		t.Error("expected unpaid watermark overlay")
	}

	inv.Paid = true
	preview, _ = renderBoth(t, inv, testProfile())
	if !strings.Contains(preview, `<div class="watermark">PAID</div>`) {
		t.Error("expected paid watermark overlay")
	}
}

// hideStatus wins over showStatusWatermark: no watermark and no status field
// at all.
func TestRender_HideStatusSuppressesEverything(t *testing.T) {
	inv := testInvoice()
	inv.ShowStatusWatermark = true
	inv.HideStatus = true

	preview, print := renderBoth(t, inv, testProfile())
	for _, out := range []string{preview, print} {
		if strings.Contains(out, `<div class="watermark">`) {
			t.Error("watermark rendered despite hideStatus")
		}
		if strings.Contains(out, "Status:") {
			t.Error("status field rendered despite hideStatus")
		}
	}
}

func TestRender_ZeroItemsPlaceholderIsScreenOnly(t *testing.T) {
	inv := fixtures.Invoice(fixtures.WithClientID(7))
	inv.ClientName = "Dana Vered"

	preview, print := renderBoth(t, inv, testProfile())
	if !strings.Contains(preview, `class="placeholder"`) {
		t.Error("preview should show the call-to-action row for zero items")
	}
	if strings.Contains(print, `class="placeholder"`) {
		t.Error("printed output must never show placeholder prompts")
	}
}

func TestRender_RTLMirrorsLayout(t *testing.T) {
	profile := testProfile()
	profile.Locale = model.LocaleHebrew
	profile.Currency = model.CurrencyILS

	preview, _ := renderBoth(t, testInvoice(), profile)

	if !strings.Contains(preview, `dir="rtl"`) {
		t.Error("document should carry dir=rtl")
	}
	if !strings.Contains(preview, `<body class="rtl">`) {
		t.Error("body should carry the rtl class that mirrors block order")
	}
	// localized labels from the closed table
	if !strings.Contains(preview, "לכבוד") {
		t.Error("missing localized bill-to label")
	}
	// dates stay numeric and left-to-right inside the RTL document
	if !strings.Contains(preview, `<span dir="ltr">14/03/2026</span>`) {
		t.Error("date must render in fixed numeric format with forced LTR")
	}
}

func TestRender_FullDiscountUsesStoredPrice(t *testing.T) {
	inv := fixtures.Invoice(
		fixtures.WithClientID(7),
		fixtures.WithItems(fixtures.Item("Giveaway", 2, 250, 100)),
	)
	inv.ClientName = "Dana Vered"
	inv.RecomputeTotals(decimal.NewFromInt(8))

	preview, _ := renderBoth(t, inv, testProfile())
	// the derived unit price would divide by zero; the stored price shows up
	if !strings.Contains(preview, "$250.00") {
		t.Error("full-discount line should display the stored unit price")
	}
	if strings.Contains(preview, "Inf") || strings.Contains(preview, "NaN") {
		t.Error("non-finite value leaked into the document")
	}
}

func TestBuildDocument_Precedence(t *testing.T) {
	inv := testInvoice()
	inv.HideStatus = true
	inv.ShowStatusWatermark = true

	doc := render.BuildDocument(inv, testProfile())
	if doc.ShowStatus || doc.ShowWatermark {
		t.Error("hideStatus must suppress both status and watermark")
	}

	inv.HideStatus = false
	doc = render.BuildDocument(inv, testProfile())
	if !doc.ShowStatus || !doc.ShowWatermark {
		t.Error("watermark should show when not hidden")
	}
}

func TestRender_NotesAndTermsToggles(t *testing.T) {
	inv := testInvoice()
	inv.Notes = "keys in glovebox"
	inv.Terms = "net 14"

	profile := testProfile()
	profile.ShowTerms = false

	preview, _ := renderBoth(t, inv, profile)
	if !strings.Contains(preview, "keys in glovebox") {
		t.Error("notes should render when enabled")
	}
	if strings.Contains(preview, "net 14") {
		t.Error("terms must not render when the profile disables them")
	}
}
