package db

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

// Seed creates the default accounts and the two company profiles.
// Existing rows are left untouched, so it is safe to run on every start.
func Seed(conn *gorm.DB) error {
	if err := SeedUsers(conn); err != nil {
		return err
	}
	return SeedCompanyProfiles(conn)
}

// SeedUsers creates the admin and assistant accounts when missing.
func SeedUsers(conn *gorm.DB) error {
	users := []struct {
		Username string
		Password string
		Role     string
	}{
		{"admin", "admin123", auth.RoleAdmin},
		{"secre", "secre123", auth.RoleAssistant},
	}

	for _, u := range users {
		var existing models.User
		err := conn.Where("username = ?", u.Username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup user %s: %w", u.Username, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		if err := conn.Create(&models.User{Username: u.Username, Password: string(hash), Role: u.Role}).Error; err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
	}
	return nil
}

// DefaultCompanyProfiles are the rows created on first start.
func DefaultCompanyProfiles() []models.CompanyProfile {
	return []models.CompanyProfile{
		{
			ID:          models.ProfileA,
			Name:        "METAVERSO TECH S.A.S",
			TaxID:       "900.123.456-7",
			Address:     "Calle 100 # 20-30",
			Phone:       "(605) 300 1234",
			Email:       "gerencia@metaverso.com",
			TaxRegime:   "IVA",
			RegimeLabel: "RÉGIMEN COMÚN",
			LogoImage:   "logo_sas.png",
			Slogan:      "Innovación y Tecnología",
		},
		{
			ID:          models.ProfileB,
			Name:        "SOLUCIONES RÁPIDAS",
			TaxID:       "1.045.678.901-2",
			Address:     "Carrera 50 # 80-10",
			Phone:       "300 987 6543",
			Email:       "contacto@jhondoe.com",
			TaxRegime:   "NO_IVA",
			RegimeLabel: "RÉGIMEN SIMPLIFICADO",
			LogoImage:   "logo_simplificado.png",
			Slogan:      "Servicio Garantizado",
		},
	}
}

// SeedCompanyProfiles inserts A and B when missing.
func SeedCompanyProfiles(conn *gorm.DB) error {
	for _, p := range DefaultCompanyProfiles() {
		var count int64
		if err := conn.Model(&models.CompanyProfile{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("lookup company profile %s: %w", p.ID, err)
		}
		if count > 0 {
			continue
		}
		if err := conn.Create(&p).Error; err != nil {
			return fmt.Errorf("create company profile %s: %w", p.ID, err)
		}
	}
	return nil
}
