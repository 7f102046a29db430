package controller

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/motorbill/crm/model"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// profileForm models the billing settings page. The currency and locale
// selects only offer the supported values; the model validates them again.
type profileForm struct {
	Companyname       string `form:"companyname"`
	Address           string `form:"address"`
	Country           string `form:"country"`
	Phone             string `form:"phone"`
	Email             string `form:"email"`
	Currency          string `form:"currency"`
	TaxRate           string `form:"taxrate"`
	Locale            string `form:"locale"`
	WatermarkText     string `form:"watermarktext"`
	ShowNotes         bool   `form:"shownotes"`
	ShowTerms         bool   `form:"showterms"`
	InvoiceTemplate   string `form:"invoicetemplate"`
	RemoveCompanyLogo bool   `form:"removelogo"`
}

func (ctrl *controller) settingsInit(e *echo.Echo) {
	g := e.Group("/settings")
	g.Use(ctrl.authMiddleware)
	g.GET("/profile", ctrl.showProfile)
	g.POST("/profile", ctrl.updateProfile)
	g.GET("", ctrl.settingsList)
	g.POST("", ctrl.settingsList)
}

func (ctrl *controller) settingsList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Settings")
	m["action"] = "/settings"
	m["submit"] = "Save"
	m["cancel"] = "/"
	ownerID := c.Get("ownerid").(uint)

	profile, err := ctrl.model.LoadCompanyProfile(ownerID)
	if err != nil {
		return ErrInvalid(err, "error while loading the settings")
	}

	switch c.Request().Method {
	case http.MethodGet:
		m["profile"] = profile
		m["currencies"] = []model.Currency{
			model.CurrencyUSD, model.CurrencyEUR, model.CurrencyGBP,
			model.CurrencyILS, model.CurrencyAED,
		}
		m["locales"] = []model.Locale{model.LocaleEnglish, model.LocaleHebrew}
		return c.Render(http.StatusOK, "settingslist.html", m)

	case http.MethodPost:
		pf := new(profileForm)
		if err := c.Bind(pf); err != nil {
			return ErrInvalid(err, "error while processing the form input")
		}

		profile.CompanyName = strings.TrimSpace(pf.Companyname)
		profile.Address = strings.TrimSpace(pf.Address)
		profile.Country = strings.TrimSpace(pf.Country)
		profile.Phone = strings.TrimSpace(pf.Phone)
		profile.Email = strings.TrimSpace(pf.Email)
		profile.Currency = model.Currency(pf.Currency)
		profile.Locale = model.Locale(pf.Locale)
		profile.WatermarkText = strings.TrimSpace(pf.WatermarkText)
		profile.ShowNotes = pf.ShowNotes
		profile.ShowTerms = pf.ShowTerms
		profile.InvoiceNumberTemplate = strings.TrimSpace(pf.InvoiceTemplate)

		rate, err := decimal.NewFromString(commaperiod.Replace(strings.TrimSpace(pf.TaxRate)))
		if err != nil {
			_ = AddFlash(c, "warning", "The tax rate must be a number between 0 and 100.")
			return c.Redirect(http.StatusSeeOther, "/settings")
		}
		profile.TaxRate = rate

		if pf.RemoveCompanyLogo {
			profile.LogoPath = ""
		} else if logoURL, err := ctrl.storeLogoUpload(c, ownerID); err != nil {
			return ErrInvalid(err, "error while storing the logo")
		} else if logoURL != "" {
			profile.LogoPath = logoURL
		}

		if err := ctrl.model.SaveCompanyProfile(profile); err != nil {
			_ = AddFlash(c, "warning", fmt.Sprintf("Cannot save settings: %v", err))
			return c.Redirect(http.StatusSeeOther, "/settings")
		}
		_ = AddFlash(c, "success", "Settings saved.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	return nil
}

// storeLogoUpload saves an optional multipart "logo" file under the owner's
// asset directory and returns its public URL. Empty return means no upload.
func (ctrl *controller) storeLogoUpload(c echo.Context, ownerID uint) (string, error) {
	fh, err := c.FormFile("logo")
	if err != nil {
		if err == http.ErrMissingFile || strings.Contains(err.Error(), "no such file") {
			return "", nil
		}
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".svg", ".webp":
	default:
		return "", fmt.Errorf("unsupported logo format %q", ext)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dir := filepath.Join(ctrl.model.Config.UserAssetsDir(), fmt.Sprintf("owner%d", ownerID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dstPath := filepath.Join(dir, "logo"+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return fmt.Sprintf("/userassets/owner%d/logo%s", ownerID, ext), nil
}

func (ctrl *controller) showProfile(c echo.Context) error {
	uid := c.Get("uid").(uint)
	u, err := ctrl.model.GetUserByID(uid)
	if err != nil || u == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}
	m := ctrl.defaultResponseMap(c, "Profile")
	m["user"] = u
	return c.Render(http.StatusOK, "profile.html", m)
}

func (ctrl *controller) updateProfile(c echo.Context) error {
	uid := c.Get("uid").(uint)
	u, err := ctrl.model.GetUserByID(uid)
	if err != nil || u == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}

	u.FullName = strings.TrimSpace(c.FormValue("fullname"))

	if err := ctrl.model.UpdateUser(u); err != nil {
		_ = AddFlash(c, "error", "Could not save the profile.")
		return c.Redirect(http.StatusSeeOther, "/settings/profile")
	}
	_ = AddFlash(c, "success", "Profile saved.")
	return c.Redirect(http.StatusSeeOther, "/settings/profile")
}
