package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/db"
	"github.com/sallegelias/metaverso-erp/internal/metrics"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/money"
)

// NumberingBase is the last id after a reset; the next quotation gets NumberingBase+1.
const NumberingBase = 10000

// QuotationInput is what the quotation builder submits. Items keep the
// caller's keys (producto, precio, cantidad, subtotal) and are stored as-is.
type QuotationInput struct {
	Date           string
	ClientName     string
	ClientTaxID    string
	CompanyProfile string
	Items          []map[string]any
	NotifyEmail    string
}

// RenderableQuotation is a stored quotation prepared for printing.
type RenderableQuotation struct {
	Quotation models.Quotation
	Items     []models.DisplayItem
	Company   models.CompanyProfile
	Style     models.Style
}

// ItemsSubtotal sums the displayed item subtotals.
func (r *RenderableQuotation) ItemsSubtotal() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.Subtotal
	}
	return sum
}

// Tax is the part of the stored total above the item subtotals.
func (r *RenderableQuotation) Tax() float64 {
	if t := r.Quotation.Total - r.ItemsSubtotal(); t > 0 {
		return t
	}
	return 0
}

// QuotationService creates, renders, deletes and renumbers quotations.
type QuotationService struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewQuotationService(db *gorm.DB, log *zap.Logger, m *metrics.Metrics) *QuotationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuotationService{db: db, log: log, metrics: m}
}

// Create prices and persists a quotation in one transaction. The total is
// the sum of the item subtotals, plus VAT for profile A. If the insert
// with the notification address fails the row is written without it.
func (s *QuotationService) Create(ctx context.Context, in QuotationInput) (*models.Quotation, error) {
	profile := strings.ToUpper(strings.TrimSpace(in.CompanyProfile))
	if profile != models.ProfileA && profile != models.ProfileB {
		return nil, fmt.Errorf("%w: company profile %q", ErrInvalidInput, in.CompanyProfile)
	}

	items := in.Items
	if items == nil {
		items = []map[string]any{}
	}
	subtotals := make([]float64, 0, len(items))
	for i, it := range items {
		sub, ok := money.Parse(it["subtotal"])
		if !ok {
			s.log.Debug("unparseable subtotal counted as zero", zap.Int("item", i), zap.Any("subtotal", it["subtotal"]))
		}
		s.crossCheck(i, it, sub)
		subtotals = append(subtotals, sub)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: line items: %v", ErrInvalidInput, err)
	}

	q := models.Quotation{
		Date:           in.Date,
		ClientName:     strings.TrimSpace(in.ClientName),
		ClientTaxID:    strings.TrimSpace(in.ClientTaxID),
		CompanyProfile: profile,
		LineItems:      string(raw),
		Total:          models.QuotationTotal(profile, subtotals...),
		Status:         models.StatusPending,
		NotifyEmail:    strings.TrimSpace(in.NotifyEmail),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		full := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&q).Error
		})
		if full == nil {
			return nil
		}
		s.log.Warn("quotation insert failed, retrying without notify_email", zap.Error(full))
		q.ID = 0
		return tx.Transaction(func(sp *gorm.DB) error {
			return sp.Omit("notify_email").Create(&q).Error
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}

	s.metrics.QuotationCreated(profile)
	s.log.Info("quotation created",
		zap.Uint("id", q.ID),
		zap.String("client", q.ClientName),
		zap.String("profile", profile),
		zap.Float64("total", q.Total),
		zap.String("notify_email", q.NotifyEmail))
	return &q, nil
}

// crossCheck logs items whose subtotal differs from price x quantity.
// The caller's subtotal is kept.
func (s *QuotationService) crossCheck(i int, it map[string]any, sub float64) {
	d := models.NewDisplayItem(it)
	if d.UnitPrice == 0 {
		return
	}
	if expected := d.UnitPrice * float64(d.Quantity); math.Abs(expected-sub) > 0.5 {
		s.log.Debug("item subtotal differs from price x quantity",
			zap.Int("item", i),
			zap.Float64("subtotal", sub),
			zap.Float64("expected", expected))
	}
}

// Get loads one quotation.
func (s *QuotationService) Get(ctx context.Context, id uint) (*models.Quotation, error) {
	var q models.Quotation
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// GetForDisplay loads a quotation with its company profile and print style.
// Malformed stored items are logged and rendered as an empty list.
func (s *QuotationService) GetForDisplay(ctx context.Context, id uint) (*RenderableQuotation, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := q.DisplayItems()
	if err != nil {
		s.log.Warn("malformed stored line items", zap.Uint("id", q.ID), zap.Error(err))
	}

	profile := q.Profile()
	company, err := s.companyProfile(ctx, profile)
	if err != nil {
		return nil, err
	}

	return &RenderableQuotation{
		Quotation: *q,
		Items:     items,
		Company:   company,
		Style:     models.StyleFor(profile),
	}, nil
}

func (s *QuotationService) companyProfile(ctx context.Context, id string) (models.CompanyProfile, error) {
	var c models.CompanyProfile
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c, err
	}
	s.log.Warn("company profile row missing, using defaults", zap.String("profile", id))
	defaults := db.DefaultCompanyProfiles()
	for _, d := range defaults {
		if d.ID == id {
			return d, nil
		}
	}
	return defaults[0], nil
}

// List returns all quotations, newest first.
func (s *QuotationService) List(ctx context.Context) ([]models.Quotation, error) {
	var out []models.Quotation
	err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error
	return out, err
}

// Delete removes a quotation. Deleting a missing id succeeds.
func (s *QuotationService) Delete(ctx context.Context, id uint) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	if id == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Delete(&models.Quotation{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete quotation %d: %w", id, res.Error)
	}
	s.log.Info("quotation deleted", zap.Uint("id", id), zap.Int64("rows", res.RowsAffected))
	return nil
}

// ResetNumbering deletes every quotation and restarts numbering so the
// next id is NumberingBase+1. Running it twice leaves the same state.
func (s *QuotationService) ResetNumbering(ctx context.Context) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Quotation{}).Error; err != nil {
			return err
		}
		return db.ResetSequence(tx, models.Quotation{}.TableName(), NumberingBase)
	})
	if err != nil {
		return fmt.Errorf("reset numbering: %w", err)
	}
	s.metrics.NumberingReset()
	s.log.Warn("quotation numbering reset", zap.Int("next_id", NumberingBase+1))
	return nil
}

// SetStatus moves a quotation along the approval workflow.
func (s *QuotationService) SetStatus(ctx context.Context, id uint, next models.QuotationStatus) (*models.Quotation, error) {
	if !auth.IsAdmin(ctx) {
		return nil, ErrForbidden
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.CurrentStatus().CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.CurrentStatus(), next)
	}
	if err := s.db.WithContext(ctx).Model(q).Update("status", next).Error; err != nil {
		return nil, err
	}
	q.Status = next
	return q, nil
}

// MarkSent records a successful full email for a pending quotation.
// Other states are left alone.
func (s *QuotationService) MarkSent(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Quotation{}).
		Where("id = ? AND (status = ? OR status = '' OR status IS NULL)", id, models.StatusPending).
		Update("status", models.StatusSent).Error
}
