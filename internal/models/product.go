package models

import "time"

// Product is an inventory item offered on quotations.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Code      string    `gorm:"size:50;index" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Kind      string    `gorm:"size:50" json:"kind"`
	Cost      float64   `json:"cost"`
	Price     float64   `json:"price"`
	Supplier  string    `gorm:"size:255" json:"supplier"`
	Image     string    `gorm:"size:500" json:"image"`
}

// Normalize upper-cases code and name.
func (p *Product) Normalize() {
	p.Code = upper(p.Code)
	p.Name = upper(p.Name)
}

// Margin is price minus cost.
func (p *Product) Margin() float64 {
	return p.Price - p.Cost
}

// CatalogEntry is the product shape offered to the quotation builder.
type CatalogEntry struct {
	Code  string  `json:"codigo"`
	Name  string  `json:"nombre"`
	Cost  float64 `json:"costo"`
	Price float64 `json:"precio"`
}

// Catalog projects products for the quotation form.
func Catalog(products []Product) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(products))
	for _, p := range products {
		out = append(out, CatalogEntry{Code: p.Code, Name: p.Name, Cost: p.Cost, Price: p.Price})
	}
	return out
}
