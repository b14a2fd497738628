package models

import "time"

// Company profile keys. A charges VAT, B does not.
const (
	ProfileA = "A"
	ProfileB = "B"
)

// VATRate applied to profile A totals.
const VATRate = 0.19

// CompanyProfile is one of the two issuing companies printed on quotations.
type CompanyProfile struct {
	ID        string    `gorm:"primaryKey;size:1" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"size:255" json:"name"`
	TaxID   string `gorm:"size:50" json:"tax_id"`
	Address string `gorm:"size:500" json:"address"`
	Phone   string `gorm:"size:50" json:"phone"`
	Email   string `gorm:"size:255" json:"email"`

	// TaxRegime is "IVA" or "NO_IVA"; RegimeLabel is the printed wording.
	TaxRegime   string `gorm:"size:20" json:"tax_regime"`
	RegimeLabel string `gorm:"size:100" json:"regime_label"`

	LogoImage string `gorm:"size:255" json:"logo_image"`
	Slogan    string `gorm:"size:255" json:"slogan"`
}

// ChargesVAT reports whether totals for this profile include VAT.
func (c *CompanyProfile) ChargesVAT() bool {
	return c.ID == ProfileA
}

// Style is the print theme for a profile tier.
type Style struct {
	Border string `json:"border"`
	Text   string `json:"text"`
	Theme  string `json:"theme"`
}

var styles = map[string]Style{
	ProfileA: {Border: "border-blue-600", Text: "text-blue-800", Theme: "SAS"},
	ProfileB: {Border: "border-green-600", Text: "text-green-800", Theme: "INDIVIDUAL"},
}

// StyleFor returns the theme for profile, falling back to A's.
func StyleFor(profile string) Style {
	if s, ok := styles[profile]; ok {
		return s
	}
	return styles[ProfileA]
}
