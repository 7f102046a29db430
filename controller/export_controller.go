package controller

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/motorbill/crm/model"
	"github.com/xuri/excelize/v2"
)

func (ctrl *controller) exportInit(e *echo.Echo) {
	g := e.Group("/export", ctrl.authMiddleware)
	g.GET("/invoices.xlsx", ctrl.exportInvoicesXLSX)
	g.GET("/account.zip", ctrl.exportAccountZip)
}

// exportInvoicesXLSX writes all invoices of the owner into a spreadsheet,
// one row per invoice with an item count column.
func (ctrl *controller) exportInvoicesXLSX(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)

	invs, err := ctrl.model.ListInvoicesForExport(ownerID)
	if err != nil {
		return ErrInternal(fmt.Errorf("load invoices for export: %w", err))
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return ErrInternal(fmt.Errorf("load company profile: %w", err))
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoices"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return ErrInternal(fmt.Errorf("create sheet: %w", err))
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	header := []any{"Number", "Client", "Date", "Status", "Items", "Subtotal", "Tax", "Total", "Currency"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return ErrInternal(fmt.Errorf("write header row: %w", err))
	}

	for i := range invs {
		inv := &invs[i]
		inv.RecomputeTotals(profile.TaxRate)

		status := "Unpaid"
		if inv.Paid {
			status = "Paid"
		}

		subtotal, _ := inv.Subtotal.Float64()
		tax, _ := inv.Tax.Float64()
		total, _ := inv.Total.Float64()

		row := []any{
			inv.Number,
			inv.ClientName,
			inv.Date.Format("2006-01-02"),
			status,
			len(inv.Items),
			subtotal,
			tax,
			total,
			string(profile.Currency),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return ErrInternal(fmt.Errorf("address row: %w", err))
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return ErrInternal(fmt.Errorf("write invoice row: %w", err))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return ErrInternal(fmt.Errorf("serialize workbook: %w", err))
	}

	fn := fmt.Sprintf("invoices-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fn))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// exportAccountZip streams a full account export: invoices, clients, cars and
// the company profile as XML, plus all uploaded user assets.
func (ctrl *controller) exportAccountZip(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	ctx := c.Request().Context()

	fn := fmt.Sprintf("motorbill-export-%s.zip", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentType, "application/zip")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fn))
	c.Response().WriteHeader(http.StatusOK)

	zw := zip.NewWriter(c.Response())
	defer zw.Close()

	if err := ctrl.exportInvoicesXML(ctx, zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportClientsXML(ctx, zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportCarsXML(ctx, zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportProfileXML(ctx, zw, ownerID); err != nil {
		return err
	}
	if err := ctrl.exportUserAssets(zw, ownerID); err != nil {
		return err
	}
	return zw.Close()
}

type ExportInvoices struct {
	XMLName  xml.Name     `xml:"invoices"`
	Version  string       `xml:"version,attr,omitempty"`
	Invoices []APIInvoice `xml:"invoice"`
}

func (ctrl *controller) exportInvoicesXML(ctx context.Context, zw *zip.Writer, ownerID uint) error {
	invs, err := ctrl.model.ListInvoicesForExport(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load invoices for export: %w", err)
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load company profile for export: %w", err)
	}

	f, err := zw.Create("invoices.xml")
	if err != nil {
		return fmt.Errorf("cannot create invoices.xml in ZIP: %w", err)
	}

	export := ExportInvoices{
		Version:  "1",
		Invoices: make([]APIInvoice, 0, len(invs)),
	}

	for i := range invs {
		inv := &invs[i]

		// Keep stored totals in sync with the items before exporting.
		inv.RecomputeTotals(profile.TaxRate)

		export.Invoices = append(export.Invoices, toAPIInvoice(inv))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode invoices.xml: %w", err)
	}
	return enc.Flush()
}

func (ctrl *controller) exportClientsXML(ctx context.Context, zw *zip.Writer, ownerID uint) error {
	clients, err := ctrl.model.ListClients(ownerID, "", true)
	if err != nil {
		return fmt.Errorf("cannot load clients for export: %w", err)
	}

	f, err := zw.Create("clients.xml")
	if err != nil {
		return fmt.Errorf("cannot create clients.xml in ZIP: %w", err)
	}

	export := ExportClients{
		Version: "1",
		Clients: make([]APIClient, 0, len(clients)),
	}
	for i := range clients {
		export.Clients = append(export.Clients, toAPIClient(&clients[i]))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode clients.xml: %w", err)
	}
	return enc.Flush()
}

type ExportCars struct {
	XMLName xml.Name `xml:"cars"`
	Version string   `xml:"version,attr,omitempty"`
	Cars    []APICar `xml:"car"`
}

type APICar struct {
	ID          uint      `json:"id" xml:"id,attr"`
	Make        string    `json:"make" xml:"make"`
	ModelName   string    `json:"model" xml:"model"`
	Year        int       `json:"year,omitempty" xml:"year,omitempty"`
	Price       string    `json:"price" xml:"price"`
	Description string    `json:"description,omitempty" xml:"description,omitempty"`
	Sold        bool      `json:"sold" xml:"sold"`
	CreatedAt   time.Time `json:"created_at" xml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" xml:"updated_at"`
}

func toAPICar(car *model.Car) APICar {
	return APICar{
		ID:          car.ID,
		Make:        car.Make,
		ModelName:   car.ModelName,
		Year:        car.Year,
		Price:       car.Price.String(),
		Description: car.Description,
		Sold:        car.Sold,
		CreatedAt:   car.CreatedAt,
		UpdatedAt:   car.UpdatedAt,
	}
}

func (ctrl *controller) exportCarsXML(ctx context.Context, zw *zip.Writer, ownerID uint) error {
	cars, err := ctrl.model.ListCars(ownerID, "")
	if err != nil {
		return fmt.Errorf("cannot load cars for export: %w", err)
	}

	f, err := zw.Create("cars.xml")
	if err != nil {
		return fmt.Errorf("cannot create cars.xml in ZIP: %w", err)
	}

	export := ExportCars{
		Version: "1",
		Cars:    make([]APICar, 0, len(cars)),
	}
	for i := range cars {
		export.Cars = append(export.Cars, toAPICar(&cars[i]))
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode cars.xml: %w", err)
	}
	return enc.Flush()
}

type ExportProfile struct {
	XMLName xml.Name   `xml:"profile"`
	Version string     `xml:"version,attr,omitempty"`
	Profile APIProfile `xml:"company"`
}

type APIProfile struct {
	CompanyName           string `json:"company_name" xml:"company_name"`
	Address               string `json:"address,omitempty" xml:"address,omitempty"`
	Country               string `json:"country,omitempty" xml:"country,omitempty"`
	Phone                 string `json:"phone,omitempty" xml:"phone,omitempty"`
	Email                 string `json:"email,omitempty" xml:"email,omitempty"`
	Currency              string `json:"currency" xml:"currency"`
	TaxRate               string `json:"tax_rate" xml:"tax_rate"`
	Locale                string `json:"locale" xml:"locale"`
	WatermarkText         string `json:"watermark_text,omitempty" xml:"watermark_text,omitempty"`
	ShowNotes             bool   `json:"show_notes" xml:"show_notes"`
	ShowTerms             bool   `json:"show_terms" xml:"show_terms"`
	InvoiceNumberTemplate string `json:"invoice_number_template,omitempty" xml:"invoice_number_template,omitempty"`
}

func toAPIProfile(p *model.CompanyProfile) APIProfile {
	return APIProfile{
		CompanyName:           p.CompanyName,
		Address:               p.Address,
		Country:               p.Country,
		Phone:                 p.Phone,
		Email:                 p.Email,
		Currency:              string(p.Currency),
		TaxRate:               p.TaxRate.String(),
		Locale:                string(p.Locale),
		WatermarkText:         p.WatermarkText,
		ShowNotes:             p.ShowNotes,
		ShowTerms:             p.ShowTerms,
		InvoiceNumberTemplate: p.InvoiceNumberTemplate,
	}
}

func (ctrl *controller) exportProfileXML(ctx context.Context, zw *zip.Writer, ownerID uint) error {
	p, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return fmt.Errorf("cannot load company profile for export: %w", err)
	}

	f, err := zw.Create("profile.xml")
	if err != nil {
		return fmt.Errorf("cannot create profile.xml in ZIP: %w", err)
	}

	export := ExportProfile{
		Version: "1",
		Profile: toAPIProfile(p),
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("cannot encode profile.xml: %w", err)
	}
	return enc.Flush()
}

// addFileToZip copies a single file from disk into the ZIP archive under the
// given zipPath. Missing source files are skipped.
func (ctrl *controller) addFileToZip(zw *zip.Writer, srcPath, zipPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	w, err := zw.Create(zipPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return nil
}

// exportUserAssets adds all uploaded assets of this owner (logo, generated
// page previews) into the ZIP under assets/userassets/owner{ownerID}/...
func (ctrl *controller) exportUserAssets(zw *zip.Writer, ownerID uint) error {
	baseDir := filepath.Join(
		ctrl.model.Config.UserAssetsDir(),
		fmt.Sprintf("owner%d", ownerID),
	)

	fi, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat user assets dir: %w", err)
	}
	if !fi.IsDir() {
		return nil
	}

	err = filepath.WalkDir(baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}

		zipPath := filepath.ToSlash(filepath.Join(
			"assets", "userassets", fmt.Sprintf("owner%d", ownerID), rel,
		))

		if err := ctrl.addFileToZip(zw, path, zipPath); err != nil {
			return fmt.Errorf("add user asset %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk user assets dir: %w", err)
	}

	return nil
}
