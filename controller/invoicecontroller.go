package controller

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/motorbill/crm/draft"
	"github.com/motorbill/crm/model"
	"github.com/motorbill/crm/render"

	"github.com/go-playground/form/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var (
	commaperiod     = strings.NewReplacer(",", ".")
	counterReplacer = regexp.MustCompile(`%(0?)(\d*)C%`)
	year4Replacer   = regexp.MustCompile(`%YYYY%`)
	year2Replacer   = regexp.MustCompile(`%YY%`)
)

func (ctrl *controller) invoiceInit(e *echo.Echo) {
	g := e.Group("/invoice")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.invoiceNew)
	g.POST("/new", ctrl.invoiceNew)
	g.GET("/detail/:id", ctrl.invoiceDetail)
	g.DELETE("/delete/:id", ctrl.invoiceDelete)
	g.GET("/duplicate/:id", ctrl.invoiceDuplicate)
	g.GET("/edit/:id", ctrl.invoiceEdit)
	g.POST("/edit/:id", ctrl.invoiceEdit)
	g.GET("/preview/:id", ctrl.invoicePreview)
	g.GET("/print/:id", ctrl.invoicePrint)
	g.GET("/pdf/:id", ctrl.invoicePDF)
	g.GET("/pagepreviews/:id", ctrl.invoicePagePreviews)
	g.POST("/email/:id", ctrl.invoiceEmail)
	g.POST("/paid/:id", ctrl.invoicePaidChange)
	lg := e.Group("/invoices", ctrl.authMiddleware)
	lg.GET("", ctrl.invoiceList)
}

// invoiceitem is one line of the posted editor form
type invoiceitem struct {
	ItemID      string `form:"itemid"`
	Name        string `form:"name"`
	Description string `form:"description"`
	Quantity    string `form:"quantity"`
	Price       string `form:"price"`
	Discount    string `form:"discount"`
}

type invoiceForm struct {
	InvoiceID           uint          `form:"invoiceid"`
	ClientID            uint          `form:"clientid"`
	Number              string        `form:"invoicenumber"`
	Date                time.Time     `form:"date"`
	Paid                bool          `form:"paid"`
	HideStatus          bool          `form:"hidestatus"`
	ShowStatusWatermark bool          `form:"showstatuswatermark"`
	Notes               string        `form:"notes"`
	Terms               string        `form:"terms"`
	Items               []invoiceitem `form:"items"`
}

// bindInvoiceForm decodes the editor form. Empty item rows (no name, no
// quantity) are skipped; decimal inputs accept both comma and period.
func bindInvoiceForm(c echo.Context) (*invoiceForm, []model.InvoiceItem, error) {
	f := invoiceForm{}
	dec := form.NewDecoder()
	dec.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return time.Parse("2006-01-02", vals[0])
	}, time.Time{})
	if err := c.Request().ParseForm(); err != nil {
		return nil, nil, err
	}
	if err := dec.Decode(&f, c.Request().Form); err != nil {
		return nil, nil, err
	}

	var items []model.InvoiceItem
	for _, row := range f.Items {
		if strings.TrimSpace(row.Name) == "" && strings.TrimSpace(row.Quantity) == "" {
			continue
		}
		it := model.InvoiceItem{
			ItemID:      strings.TrimSpace(row.ItemID),
			Name:        strings.TrimSpace(row.Name),
			Description: strings.TrimSpace(row.Description),
		}
		qty, err := strconv.Atoi(strings.TrimSpace(row.Quantity))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid quantity %q: %w", row.Quantity, err)
		}
		it.Quantity = qty
		if it.Price, err = decimal.NewFromString(commaperiod.Replace(strings.TrimSpace(row.Price))); err != nil {
			return nil, nil, fmt.Errorf("invalid price %q: %w", row.Price, err)
		}
		discount := strings.TrimSpace(row.Discount)
		if discount == "" {
			discount = "0"
		}
		if it.Discount, err = decimal.NewFromString(commaperiod.Replace(discount)); err != nil {
			return nil, nil, fmt.Errorf("invalid discount %q: %w", row.Discount, err)
		}
		items = append(items, it)
	}
	return &f, items, nil
}

// applyForm dispatches the posted form onto a draft as typed actions. Item
// changes and totals land in one step.
func applyForm(d *draft.Draft, f *invoiceForm, items []model.InvoiceItem) error {
	if err := d.Apply(draft.SetClient{Snapshot: draft.ClientSnapshot{ClientID: f.ClientID}}); err != nil {
		return err
	}
	if err := d.Apply(draft.SetDetails{Details: draft.Details{
		Number:              strings.TrimSpace(f.Number),
		Date:                f.Date,
		Paid:                f.Paid,
		HideStatus:          f.HideStatus,
		ShowStatusWatermark: f.ShowStatusWatermark,
	}}); err != nil {
		return err
	}
	if err := d.Apply(draft.SetItems{Items: items}); err != nil {
		return err
	}
	if err := d.Apply(draft.SetNotes{Text: f.Notes}); err != nil {
		return err
	}
	return d.Apply(draft.SetTerms{Text: f.Terms})
}

// formatInvoiceNumber expands the number template from the settings.
// Supported placeholders: %YYYY%, %YY% and a zero-padded counter like %04C%.
func formatInvoiceNumber(in string, counter int) string {
	now := time.Now()
	year := now.Year()
	in = year4Replacer.ReplaceAllLiteralString(in, fmt.Sprintf("%04d", year))
	in = year2Replacer.ReplaceAllLiteralString(in, fmt.Sprintf("%02d", year%100))

	if counterReplacer.MatchString(in) {
		x := counterReplacer.FindAllStringSubmatch(in, -1)
		for _, m := range x {
			var formatted string
			if m[2] == "" { // no width, plain %d
				formatted = fmt.Sprintf("%d", counter)
			} else if m[1] == "0" {
				formatted = fmt.Sprintf("%0"+m[2]+"d", counter)
			} else {
				// width given but no leading zero
				formatted = fmt.Sprintf("%d", counter)
			}
			in = counterReplacer.ReplaceAllString(in, formatted)
		}
	}
	return in
}

// editFormMap fills the common render map for the invoice editor.
func (ctrl *controller) editFormMap(c echo.Context, m map[string]any, inv model.Invoice) error {
	ownerID := c.Get("ownerid").(uint)
	clients, err := ctrl.model.ListClients(ownerID, "", false)
	if err != nil {
		return ErrInvalid(err, "cannot load clients")
	}
	cars, err := ctrl.model.ListCars(ownerID, "")
	if err != nil {
		return ErrInvalid(err, "cannot load cars")
	}
	m["invoice"] = inv
	m["clients"] = clients
	m["cars"] = cars
	return nil
}

func (ctrl *controller) invoiceNew(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "New invoice")
	ownerID := c.Get("ownerid").(uint)

	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load company profile")
	}

	switch c.Request().Method {
	case http.MethodGet:
		count, err := ctrl.model.CountInvoices(ownerID)
		if err != nil {
			return ErrInternal(err)
		}
		d := draft.New(ownerID, profile.TaxRate, count)
		inv := d.Invoice()
		if profile.InvoiceNumberTemplate != "" {
			inv.Number = formatInvoiceNumber(profile.InvoiceNumberTemplate, int(count)+1)
		}
		if err := ctrl.editFormMap(c, m, inv); err != nil {
			return err
		}
		m["submit"] = "Create invoice"
		m["action"] = "/invoice/new"
		m["cancel"] = "/invoices"
		return c.Render(http.StatusOK, "invoiceedit.html", m)

	case http.MethodPost:
		f, items, err := bindInvoiceForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		count, err := ctrl.model.CountInvoices(ownerID)
		if err != nil {
			return ErrInternal(err)
		}
		d := draft.New(ownerID, profile.TaxRate, count)
		if err := applyForm(d, f, items); err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		stored, err := d.Save(ctrl.model)
		if err != nil {
			return ctrl.invoiceSaveError(c, err, "/invoice/new")
		}
		_ = AddFlash(c, "success", fmt.Sprintf("Invoice %s saved.", stored.Number))
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/invoice/detail/%d", stored.ID))
	}
	return nil
}

// invoiceSaveError maps failed saves to user feedback. The draft itself is
// untouched by a failed save, so the user can correct and resubmit.
func (ctrl *controller) invoiceSaveError(c echo.Context, err error, back string) error {
	switch {
	case errors.Is(err, draft.ErrNotSavable):
		_ = AddFlash(c, "warning", "Select a client and add at least one item before saving.")
	case errors.Is(err, model.ErrDuplicateNumber):
		_ = AddFlash(c, "warning", "This invoice number is already in use. Please pick another one.")
	case errors.Is(err, model.ErrClientNotOwned):
		_ = AddFlash(c, "error", "The selected client does not exist.")
	case errors.Is(err, model.ErrInvalidInvoice):
		_ = AddFlash(c, "warning", "The invoice is incomplete. Please check your input.")
	default:
		return ErrInvalid(err, "error while saving the invoice")
	}
	return c.Redirect(http.StatusSeeOther, back)
}

func (ctrl *controller) invoiceEdit(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Edit invoice")
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load invoice")
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load company profile")
	}

	switch c.Request().Method {
	case http.MethodGet:
		d := draft.FromInvoice(ownerID, profile.TaxRate, inv)
		if err := ctrl.editFormMap(c, m, d.Invoice()); err != nil {
			return err
		}
		m["title"] = "Invoice " + inv.Number
		m["submit"] = "Save invoice"
		m["action"] = "/invoice/edit/" + c.Param("id")
		m["cancel"] = "/invoice/detail/" + c.Param("id")
		return c.Render(http.StatusOK, "invoiceedit.html", m)

	case http.MethodPost:
		f, items, err := bindInvoiceForm(c)
		if err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		d := draft.FromInvoice(ownerID, profile.TaxRate, inv)
		if err := applyForm(d, f, items); err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}
		stored, err := d.Save(ctrl.model)
		if err != nil {
			return ctrl.invoiceSaveError(c, err, "/invoice/edit/"+c.Param("id"))
		}
		_ = AddFlash(c, "success", fmt.Sprintf("Invoice %s saved.", stored.Number))
		return c.Redirect(http.StatusSeeOther, "/invoice/detail/"+c.Param("id"))
	}
	return nil
}

func (ctrl *controller) invoiceDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Invoice details")
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load invoice")
	}
	m["title"] = "Invoice " + inv.Number
	m["invoice"] = inv
	if inv.ClientID != 0 {
		if client, err := ctrl.model.LoadClient(inv.ClientID, ownerID); err == nil {
			m["client"] = client
		}
	}
	return c.Render(http.StatusOK, "invoicedetail.html", m)
}

func (ctrl *controller) invoiceDelete(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load invoice")
	}
	if inv.Paid {
		return echo.NewHTTPError(http.StatusForbidden, "paid invoices cannot be deleted")
	}
	if err = ctrl.model.DeleteInvoice(inv, ownerID); err != nil {
		return ErrInvalid(err, "cannot delete invoice")
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Invoice %s deleted.", inv.Number))
	return c.Redirect(http.StatusSeeOther, "/invoices")
}

// invoiceDuplicate prefills the editor with a copy of an existing invoice.
// Nothing is persisted until the user submits the form.
func (ctrl *controller) invoiceDuplicate(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Duplicate invoice")
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load invoice")
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return ErrInvalid(err, "cannot load company profile")
	}
	count, err := ctrl.model.CountInvoices(ownerID)
	if err != nil {
		return ErrInternal(err)
	}

	inv.ID = 0
	inv.Date = time.Now()
	inv.Paid = false
	for idx := range inv.Items {
		inv.Items[idx].ID = 0
		inv.Items[idx].InvoiceID = 0
	}
	if profile.InvoiceNumberTemplate != "" {
		inv.Number = formatInvoiceNumber(profile.InvoiceNumberTemplate, int(count)+1)
	} else {
		inv.Number = draft.PlaceholderNumber(count)
	}

	if err := ctrl.editFormMap(c, m, *inv); err != nil {
		return err
	}
	m["submit"] = "Create invoice"
	m["action"] = "/invoice/new"
	m["cancel"] = "/invoices"
	return c.Render(http.StatusOK, "invoiceedit.html", m)
}

// renderInvoiceDocument loads the invoice and profile and produces the
// self-contained document markup.
func (ctrl *controller) renderInvoiceDocument(c echo.Context, mode render.Mode) (*model.Invoice, *model.CompanyProfile, string, error) {
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return nil, nil, "", ErrInvalid(err, "cannot load invoice")
	}
	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return nil, nil, "", ErrInvalid(err, "cannot load company profile")
	}
	doc := render.BuildDocument(inv, profile)
	html, err := render.NewRenderer().RenderHTML(doc, mode)
	if err != nil {
		return nil, nil, "", ErrInternal(fmt.Errorf("cannot render invoice document: %w", err))
	}
	return inv, profile, html, nil
}

func (ctrl *controller) invoicePreview(c echo.Context) error {
	_, _, html, err := ctrl.renderInvoiceDocument(c, render.ModePreview)
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, html)
}

func (ctrl *controller) invoicePrint(c echo.Context) error {
	_, _, html, err := ctrl.renderInvoiceDocument(c, render.ModePrint)
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, html)
}

// invoicePDFBytes renders the printed document to PDF. The external render
// service is tried first; when it is unreachable the built-in fallback
// renderer produces a plain PDF so the download still works.
func (ctrl *controller) invoicePDFBytes(c echo.Context) (*model.Invoice, []byte, error) {
	logger := c.Get("logger").(*slog.Logger)
	inv, profile, html, err := ctrl.renderInvoiceDocument(c, render.ModePrint)
	if err != nil {
		return nil, nil, err
	}

	pdf, err := ctrl.model.RenderPDF(c.Request().Context(), html, logger)
	if err != nil {
		if !errors.Is(err, model.ErrRenderFailed) {
			return nil, nil, ErrInternal(err)
		}
		logger.Warn("render service unavailable, using fallback renderer", "invoice_id", inv.ID, "error", err)
		if pdf, err = model.BuildFallbackPDF(inv, profile); err != nil {
			return nil, nil, ErrInternal(fmt.Errorf("fallback pdf failed: %w", err))
		}
	}
	return inv, pdf, nil
}

func (ctrl *controller) invoicePDF(c echo.Context) error {
	inv, pdf, err := ctrl.invoicePDFBytes(c)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s.pdf", inv.Number)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// invoicePagePreviews renders the PDF to page thumbnails and returns their
// public URLs. Requires a build with cgo (mupdf).
func (ctrl *controller) invoicePagePreviews(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	inv, pdf, err := ctrl.invoicePDFBytes(c)
	if err != nil {
		return err
	}

	urls, err := ctrl.ensureInvoicePagePreviews(ownerID, inv.ID, pdf)
	if err != nil {
		return ErrInternal(fmt.Errorf("cannot create page previews: %w", err))
	}
	return c.JSON(http.StatusOK, map[string]any{"pages": urls})
}

// invoiceEmail sends the invoice PDF to the email stored in the client
// snapshot.
func (ctrl *controller) invoiceEmail(c echo.Context) error {
	inv, pdf, err := ctrl.invoicePDFBytes(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(inv.ClientEmail) == "" {
		_ = AddFlash(c, "warning", "The client of this invoice has no email address on file.")
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/invoice/detail/%d", inv.ID))
	}

	subject := fmt.Sprintf("Invoice %s", inv.Number)
	body := fmt.Sprintf("Hello %s,\n\nplease find invoice %s attached.\n", inv.ClientName, inv.Number)
	filename := fmt.Sprintf("%s.pdf", inv.Number)
	if err := ctrl.sendEmailWithAttachment(inv.ClientEmail, subject, body, filename, pdf); err != nil {
		return ErrInternal(fmt.Errorf("cannot email invoice: %w", err))
	}

	_ = AddFlash(c, "success", fmt.Sprintf("Invoice %s sent to %s.", inv.Number, inv.ClientEmail))
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/invoice/detail/%d", inv.ID))
}

func (ctrl *controller) invoicePaidChange(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)

	idStr := c.Param("id")
	id64, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id64 == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	invoiceID := uint(id64)

	desired := strings.TrimSpace(c.FormValue("paid"))
	if desired == "" {
		var payload struct {
			Paid *bool `json:"paid"`
		}
		if bindErr := c.Bind(&payload); bindErr == nil && payload.Paid != nil {
			desired = strconv.FormatBool(*payload.Paid)
		}
	}
	paid, err := strconv.ParseBool(desired)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paid value")
	}

	if err := ctrl.model.SetInvoicePaid(invoiceID, ownerID, paid); err != nil {
		return ErrInvalid(err, "cannot change invoice status")
	}
	return c.JSON(http.StatusOK, map[string]any{"paid": paid})
}

// currentCSVURL builds a CSV export URL from the current request, keeping
// all active filters and sorting.
func currentCSVURL(u *url.URL) string {
	q := u.Query()
	q.Set("format", "csv")
	u2 := *u
	u2.RawQuery = q.Encode()
	return u2.RequestURI()
}

func (ctrl *controller) invoiceList(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	title := "Invoices"
	status := strings.ToLower(c.QueryParam("status"))
	format := strings.ToLower(c.QueryParam("format"))

	q := model.InvoiceListQuery{
		Search: strings.TrimSpace(c.QueryParam("query")),
		Cursor: c.QueryParam("cursor"),
		Sort:   strings.ToLower(c.QueryParam("sort")),
	}
	switch status {
	case "paid":
		title = "Paid invoices"
		t := true
		q.Paid = &t
	case "unpaid", "open":
		title = "Open invoices"
		f := false
		q.Paid = &f
	default:
		title = "All invoices"
	}
	if ps, err := strconv.Atoi(c.QueryParam("page_size")); err == nil && ps > 0 && ps <= 200 {
		q.Limit = ps
	} else {
		q.Limit = 50
	}

	rows, nextCursor, err := ctrl.model.ListInvoices(ownerID, q)
	if err != nil {
		return ErrInternal(fmt.Errorf("cannot list invoices: %w", err))
	}

	// CSV export covers all matching rows, not just the current page
	if format == "csv" {
		exportQ := q
		exportQ.Limit = 200
		exportQ.Cursor = ""
		var all []model.Invoice
		for {
			page, next, err := ctrl.model.ListInvoices(ownerID, exportQ)
			if err != nil {
				return ErrInternal(err)
			}
			all = append(all, page...)
			if next == "" {
				break
			}
			exportQ.Cursor = next
		}
		return writeInvoiceCSV(c, all)
	}

	var sumTotal decimal.Decimal
	for _, r := range rows {
		sumTotal = sumTotal.Add(r.Total)
	}

	if format == "json" || strings.Contains(c.Request().Header.Get("Accept"), "application/json") {
		type item struct {
			ID         uint   `json:"id"`
			ClientID   uint   `json:"client_id"`
			ClientName string `json:"client_name"`
			Number     string `json:"number"`
			Date       string `json:"date"`
			Paid       bool   `json:"paid"`
			Total      string `json:"total"`
		}
		out := make([]item, 0, len(rows))
		for _, r := range rows {
			out = append(out, item{
				ID:         r.ID,
				ClientID:   r.ClientID,
				ClientName: r.ClientName,
				Number:     r.Number,
				Date:       r.Date.Format("02/01/2006"),
				Paid:       r.Paid,
				Total:      r.Total.StringFixed(2),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"items": out, "next_cursor": nextCursor,
		})
	}

	m := ctrl.defaultResponseMap(c, title)
	m["invoices"] = rows
	m["sumTotal"] = sumTotal.StringFixed(2)
	m["nextCursor"] = nextCursor
	m["isViewActive"] = (status == "open" || status == "unpaid")
	m["exportURL"] = currentCSVURL(c.Request().URL)
	return c.Render(http.StatusOK, "invoicelist.html", m)
}

func writeInvoiceCSV(c echo.Context, rows []model.Invoice) error {
	filename := "invoices_" + time.Now().Format("2006-01-02") + ".csv"

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	// UTF-8 BOM for Excel compatibility
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	w := csv.NewWriter(res)
	if err := w.Write([]string{"Number", "Client", "Date", "Status", "Subtotal", "Tax", "Total"}); err != nil {
		return err
	}

	for _, r := range rows {
		status := "Unpaid"
		if r.Paid {
			status = "Paid"
		}
		row := []string{
			r.Number,
			r.ClientName,
			r.Date.Format("02/01/2006"),
			status,
			r.Subtotal.StringFixed(2),
			r.Tax.StringFixed(2),
			r.Total.StringFixed(2),
		}
		// ensure all fields are valid UTF-8
		for i := range row {
			if !utf8.ValidString(row[i]) {
				row[i] = strings.ToValidUTF8(row[i], "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
