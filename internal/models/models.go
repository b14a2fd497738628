// Package models holds the GORM records of the ERP.
package models

// All lists every model for AutoMigrate, in dependency-free order.
func All() []any {
	return []any{
		&User{},
		&CompanyProfile{},
		&Client{},
		&Supplier{},
		&Product{},
		&Survey{},
		&Quotation{},
	}
}
