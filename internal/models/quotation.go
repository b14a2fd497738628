package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sallegelias/metaverso-erp/internal/money"
)

// QuotationStatus is the workflow state of a quotation.
type QuotationStatus string

const (
	StatusPending  QuotationStatus = "Pendiente"
	StatusSent     QuotationStatus = "Enviada"
	StatusApproved QuotationStatus = "Aprobada"
	StatusRejected QuotationStatus = "Rechazada"
)

var transitions = map[QuotationStatus][]QuotationStatus{
	StatusPending: {StatusSent, StatusApproved, StatusRejected},
	StatusSent:    {StatusApproved, StatusRejected},
}

// ParseStatus accepts the stored value or the English name, case-insensitively.
func ParseStatus(s string) (QuotationStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pendiente", "pending":
		return StatusPending, true
	case "enviada", "sent":
		return StatusSent, true
	case "aprobada", "approved":
		return StatusApproved, true
	case "rechazada", "rejected":
		return StatusRejected, true
	}
	return "", false
}

// CanTransition reports whether a quotation may move from s to next.
func (s QuotationStatus) CanTransition(next QuotationStatus) bool {
	from := s
	if from == "" {
		from = StatusPending
	}
	for _, to := range transitions[from] {
		if to == next {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further transitions exist.
func (s QuotationStatus) IsFinal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Quotation is a priced offer to a client. Total is fixed at creation.
// Rows are hard-deleted so numbering resets leave nothing behind.
type Quotation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Date string `gorm:"column:date;size:50" json:"date"`

	// Client snapshot taken at creation; later client edits do not propagate.
	ClientName  string `gorm:"column:client_name;size:255" json:"client_name"`
	ClientTaxID string `gorm:"column:client_tax_id;size:50" json:"client_tax_id"`

	CompanyProfile string  `gorm:"column:company_profile;size:1" json:"company_profile"`
	LineItems      string  `gorm:"column:line_items;type:text" json:"line_items"`
	Total          float64 `gorm:"column:total" json:"total"`

	Status      QuotationStatus `gorm:"column:status;size:20;default:'Pendiente'" json:"status"`
	NotifyEmail string          `gorm:"column:notify_email;size:255" json:"notify_email,omitempty"`
}

// TableName pins the table name used by raw sequence statements.
func (Quotation) TableName() string {
	return "quotations"
}

// Reference is the printed quotation number, e.g. COT-10001.
func (q *Quotation) Reference() string {
	return fmt.Sprintf("COT-%04d", q.ID)
}

// Profile returns the company profile key, "A" when unset.
func (q *Quotation) Profile() string {
	if p := strings.TrimSpace(q.CompanyProfile); p != "" {
		return p
	}
	return ProfileA
}

// CurrentStatus treats an empty status as pending.
func (q *Quotation) CurrentStatus() QuotationStatus {
	if q.Status == "" {
		return StatusPending
	}
	return q.Status
}

// QuotationTotal applies VAT for profile A to the sum of subtotals.
func QuotationTotal(profile string, subtotals ...float64) float64 {
	var sum float64
	for _, s := range subtotals {
		sum += s
	}
	if profile == ProfileA {
		return sum * (1 + VATRate)
	}
	return sum
}

// DisplayItem is a stored line item normalized for rendering.
type DisplayItem struct {
	Description string  `json:"producto"`
	UnitPrice   float64 `json:"precio"`
	Quantity    int     `json:"cantidad"`
	Subtotal    float64 `json:"subtotal"`
}

// DefaultDescription labels items stored without a product name.
const DefaultDescription = "Sin descripción"

// DisplayItems decodes LineItems. A malformed payload yields an empty list
// together with the decode error so the caller can log it.
func (q *Quotation) DisplayItems() ([]DisplayItem, error) {
	items := []DisplayItem{}
	if strings.TrimSpace(q.LineItems) == "" {
		return items, nil
	}
	var raw []any
	if err := json.Unmarshal([]byte(q.LineItems), &raw); err != nil {
		return items, err
	}
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, NewDisplayItem(m))
	}
	return items, nil
}

// NewDisplayItem reads one raw item. The unit price comes from "precio",
// then the legacy "unitario", then 0.
func NewDisplayItem(m map[string]any) DisplayItem {
	price := m["precio"]
	if !truthy(price) {
		price = m["unitario"]
	}
	desc, _ := m["producto"].(string)
	if strings.TrimSpace(desc) == "" {
		desc = DefaultDescription
	}
	return DisplayItem{
		Description: desc,
		UnitPrice:   money.Amount(price),
		Quantity:    quantity(m["cantidad"]),
		Subtotal:    money.Amount(m["subtotal"]),
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	default:
		return true
	}
}

func quantity(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
	}
	return 1
}
