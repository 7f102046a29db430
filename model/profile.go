package model

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Currency is one of the closed set of supported billing currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyILS Currency = "ILS"
	CurrencyAED Currency = "AED"
)

// Locale is one of the closed set of supported document languages.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleHebrew  Locale = "he"
)

// RTL reports whether the locale is written right to left.
func (l Locale) RTL() bool { return l == LocaleHebrew }

// maxWatermarkLen bounds the free-text watermark on rendered documents.
const maxWatermarkLen = 40

// CompanyProfile holds the dealership's billing identity: display data for
// the rendered document, the flat tax rate, currency and document language.
// One row per owner.
type CompanyProfile struct {
	gorm.Model
	OwnerID               uint `gorm:"uniqueIndex"`
	CompanyName           string
	Address               string
	Country               string
	Phone                 string
	Email                 string
	Currency              Currency
	TaxRate               decimal.Decimal `sql:"type:decimal(20,8);"` // percent, 0-100
	Locale                Locale
	LogoPath              string
	WatermarkText         string
	ShowNotes             bool
	ShowTerms             bool
	InvoiceNumberTemplate string
}

func validCurrency(c Currency) bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyILS, CurrencyAED:
		return true
	}
	return false
}

func validLocale(l Locale) bool {
	switch l {
	case LocaleEnglish, LocaleHebrew:
		return true
	}
	return false
}

// LoadCompanyProfile loads the owner's profile, initializing defaults on
// first access.
func (store *Store) LoadCompanyProfile(ownerID any) (*CompanyProfile, error) {
	p := &CompanyProfile{}
	result := store.db.Where(CompanyProfile{OwnerID: ownerID.(uint)}).FirstOrInit(p)
	if result.Error != nil {
		return nil, result.Error
	}
	if !validCurrency(p.Currency) {
		p.Currency = CurrencyUSD
	}
	if !validLocale(p.Locale) {
		p.Locale = LocaleEnglish
	}
	if p.InvoiceNumberTemplate == "" {
		p.InvoiceNumberTemplate = "INV-%04C%"
	}
	return p, result.Error
}

// SaveCompanyProfile validates and saves the owner's profile.
func (store *Store) SaveCompanyProfile(p *CompanyProfile) error {
	if !validCurrency(p.Currency) {
		return fmt.Errorf("unsupported currency %q", p.Currency)
	}
	if !validLocale(p.Locale) {
		return fmt.Errorf("unsupported locale %q", p.Locale)
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(hundred) {
		return fmt.Errorf("tax rate out of range: %s", p.TaxRate)
	}
	if utf8.RuneCountInString(p.WatermarkText) > maxWatermarkLen {
		return fmt.Errorf("watermark text too long")
	}
	p.Country = normalizeCountry(p.Country)
	return store.db.Save(p).Error
}
