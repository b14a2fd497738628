package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

// RecordService manages the flat records: clients, suppliers, products and
// surveys. Saves are upserts keyed on the optional id; deletes are admin only.
type RecordService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRecordService(db *gorm.DB, log *zap.Logger) *RecordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordService{db: db, log: log}
}

// upsert inserts rec when id is zero, otherwise overwrites every column of
// the row with that id.
func upsert[T any](ctx context.Context, db *gorm.DB, rec *T, id uint) error {
	if id == 0 {
		return db.WithContext(ctx).Create(rec).Error
	}
	res := db.WithContext(ctx).Model(rec).Select("*").Omit("id", "created_at").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RecordService) remove(ctx context.Context, model any, id uint) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	if id == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Delete(model, id)
	if res.Error != nil {
		return fmt.Errorf("delete %T %d: %w", model, id, res.Error)
	}
	s.log.Info("record deleted", zap.String("model", fmt.Sprintf("%T", model)), zap.Uint("id", id), zap.Int64("rows", res.RowsAffected))
	return nil
}

// Clients

func (s *RecordService) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error
	return out, err
}

// ClientsByName is the picker list for the quotation builder and surveys.
func (s *RecordService) ClientsByName(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	err := s.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (s *RecordService) SaveClient(ctx context.Context, c *models.Client) error {
	c.Normalize()
	return upsert(ctx, s.db, c, c.ID)
}

func (s *RecordService) DeleteClient(ctx context.Context, id uint) error {
	return s.remove(ctx, &models.Client{}, id)
}

// Suppliers

func (s *RecordService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var out []models.Supplier
	err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error
	return out, err
}

// SupplierNames returns supplier names sorted for the product form.
func (s *RecordService) SupplierNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.Supplier{}).Order("name").Pluck("name", &names).Error
	return names, err
}

func (s *RecordService) SaveSupplier(ctx context.Context, sup *models.Supplier) error {
	sup.Normalize()
	return upsert(ctx, s.db, sup, sup.ID)
}

func (s *RecordService) DeleteSupplier(ctx context.Context, id uint) error {
	return s.remove(ctx, &models.Supplier{}, id)
}

// Products

func (s *RecordService) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error
	return out, err
}

// Catalog returns products sorted by name in the quotation builder shape.
func (s *RecordService) Catalog(ctx context.Context) ([]models.CatalogEntry, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, err
	}
	return models.Catalog(products), nil
}

func (s *RecordService) SaveProduct(ctx context.Context, p *models.Product) error {
	p.Normalize()
	return upsert(ctx, s.db, p, p.ID)
}

func (s *RecordService) DeleteProduct(ctx context.Context, id uint) error {
	return s.remove(ctx, &models.Product{}, id)
}

// Surveys

// SurveyView pairs a survey with its decoded amenities.
type SurveyView struct {
	models.Survey
	AmenityList []string
}

func (s *RecordService) ListSurveys(ctx context.Context) ([]SurveyView, error) {
	var rows []models.Survey
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SurveyView, 0, len(rows))
	for _, r := range rows {
		list, err := r.AmenityList()
		if err != nil {
			s.log.Warn("malformed survey amenities", zap.Uint("id", r.ID), zap.Error(err))
		}
		out = append(out, SurveyView{Survey: r, AmenityList: list})
	}
	return out, nil
}

func (s *RecordService) SaveSurvey(ctx context.Context, sv *models.Survey) error {
	sv.Normalize()
	return upsert(ctx, s.db, sv, sv.ID)
}

func (s *RecordService) DeleteSurvey(ctx context.Context, id uint) error {
	return s.remove(ctx, &models.Survey{}, id)
}
