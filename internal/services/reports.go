package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/internal/models"
)

// DashboardStats are the record counts and client distribution shown after login.
type DashboardStats struct {
	Clients    int64
	Suppliers  int64
	Products   int64
	Surveys    int64
	Quotations int64
	// ClientKinds is keyed Privada, Gobierno, PH.
	ClientKinds map[string]int64
}

// ClientVolume is one row of the top clients report.
type ClientVolume struct {
	Client    string  `gorm:"column:client_name"`
	Purchases int64   `gorm:"column:purchases"`
	Volume    float64 `gorm:"column:volume"`
}

// SalesReport totals quotations per company profile.
type SalesReport struct {
	TotalA     float64
	TotalB     float64
	TopClients []ClientVolume
}

// TopClientsLimit caps the top clients report.
const TopClientsLimit = 5

var chartKeys = map[string]string{
	models.KindPrivate:    "Privada",
	models.KindGovernment: "Gobierno",
	models.KindPH:         "PH",
}

type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService { return &ReportService{db: db} }

func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	conn := s.db.WithContext(ctx)
	st := &DashboardStats{ClientKinds: map[string]int64{"Privada": 0, "Gobierno": 0, "PH": 0}}

	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.Client{}, &st.Clients},
		{&models.Supplier{}, &st.Suppliers},
		{&models.Product{}, &st.Products},
		{&models.Survey{}, &st.Surveys},
		{&models.Quotation{}, &st.Quotations},
	}
	for _, c := range counts {
		if err := conn.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var kinds []struct {
		Kind  string
		Total int64
	}
	if err := conn.Model(&models.Client{}).Select("kind, COUNT(*) AS total").Group("kind").Scan(&kinds).Error; err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if key, ok := chartKeys[k.Kind]; ok {
			st.ClientKinds[key] = k.Total
		}
	}
	return st, nil
}

func (s *ReportService) Sales(ctx context.Context) (*SalesReport, error) {
	conn := s.db.WithContext(ctx)
	rep := &SalesReport{TopClients: []ClientVolume{}}

	sum := func(profile string, dst *float64) error {
		return conn.Model(&models.Quotation{}).
			Where("company_profile = ?", profile).
			Select("COALESCE(SUM(total), 0)").
			Scan(dst).Error
	}
	if err := sum(models.ProfileA, &rep.TotalA); err != nil {
		return nil, err
	}
	if err := sum(models.ProfileB, &rep.TotalB); err != nil {
		return nil, err
	}

	err := conn.Model(&models.Quotation{}).
		Select("client_name, COUNT(*) AS purchases, SUM(total) AS volume").
		Group("client_name").
		Order("volume DESC").
		Limit(TopClientsLimit).
		Scan(&rep.TopClients).Error
	if err != nil {
		return nil, err
	}
	return rep, nil
}
