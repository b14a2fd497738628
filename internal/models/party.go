package models

import (
	"strings"
	"time"
)

// Client kinds used by the dashboard distribution.
const (
	KindPrivate    = "Empresa Privada"
	KindGovernment = "Edificio Gubernamental"
	KindPH         = "Propiedad Horizontal"
)

// Client is a customer. Quotations copy its name and tax id at creation time.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TaxID     string    `gorm:"size:50" json:"tax_id"`
	Contact   string    `gorm:"size:255" json:"contact"`
	Address   string    `gorm:"size:500" json:"address"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Email     string    `gorm:"size:255" json:"email"`
	Kind      string    `gorm:"size:50" json:"kind"`
}

// Normalize upper-cases the identifying fields.
func (c *Client) Normalize() {
	c.Name = upper(c.Name)
	c.TaxID = upper(c.TaxID)
	c.Contact = upper(c.Contact)
	c.Address = upper(c.Address)
	c.Email = strings.TrimSpace(c.Email)
}

// Supplier has the same shape as Client.
type Supplier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TaxID     string    `gorm:"size:50" json:"tax_id"`
	Contact   string    `gorm:"size:255" json:"contact"`
	Address   string    `gorm:"size:500" json:"address"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Email     string    `gorm:"size:255" json:"email"`
	Kind      string    `gorm:"size:50" json:"kind"`
}

// Normalize upper-cases the identifying fields.
func (s *Supplier) Normalize() {
	s.Name = upper(s.Name)
	s.TaxID = upper(s.TaxID)
	s.Contact = upper(s.Contact)
	s.Address = upper(s.Address)
	s.Email = strings.TrimSpace(s.Email)
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
