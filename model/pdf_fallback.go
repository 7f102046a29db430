package model

import (
	"bytes"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// BuildFallbackPDF writes a plain tabular PDF for the invoice without going
// through the rendering service. Used when no render server is configured,
// for example in development. Layout fidelity (logo, watermark, RTL
// mirroring) is intentionally reduced; the numbers are the same as in the
// rendered document.
func BuildFallbackPDF(inv *Invoice, profile *CompanyProfile) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Invoice "+inv.Number)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(90, 5, profile.CompanyName)
	pdf.Cell(0, 5, "Bill to: "+inv.ClientName)
	pdf.Ln(5)
	pdf.Cell(90, 5, profile.Address)
	pdf.Cell(0, 5, inv.ClientAddress)
	pdf.Ln(5)
	pdf.Cell(90, 5, profile.Phone)
	pdf.Cell(0, 5, inv.ClientEmail)
	pdf.Ln(10)

	pdf.Cell(0, 5, "Date: "+inv.Date.Format("02/01/2006"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(80, 7, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Unit price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(20, 7, "Disc %", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, it := range inv.Items {
		pdf.CellFormat(80, 6, it.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, strconv.Itoa(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, DisplayUnitPrice(it).StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, it.Discount.StringFixed(0), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, it.Amount.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(145, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, inv.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(145, 6, "Tax ("+profile.TaxRate.StringFixed(0)+"%)", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, inv.Tax.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(145, 8, "Total "+string(profile.Currency), "T", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, inv.Total.StringFixed(2), "T", 1, "R", false, 0, "")

	if profile.ShowNotes && inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.Cell(0, 5, "Notes")
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 4.5, inv.Notes, "", "L", false)
	}
	if profile.ShowTerms && inv.Terms != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.Cell(0, 5, "Terms")
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 4.5, inv.Terms, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
