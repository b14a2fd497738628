package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

// ErrInvalidCredentials is returned by Authenticate for any unknown
// username or wrong password.
var ErrInvalidCredentials = errors.New("invalid_credentials")

// ProfileUpdate carries the editable fields of one company profile.
type ProfileUpdate struct {
	ID      string
	Name    string
	TaxID   string
	Address string
	Phone   string
	Email   string
	Slogan  string
}

// SettingsService edits company profiles and user accounts.
type SettingsService struct {
	db  *gorm.DB
	log *zap.Logger
	// userChanged runs after a user's role or password is rewritten.
	userChanged func(userID uint)
}

func NewSettingsService(db *gorm.DB, log *zap.Logger) *SettingsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsService{db: db, log: log}
}

// OnUserChanged registers fn to run after a user account changes, so
// cached roles can be dropped.
func (s *SettingsService) OnUserChanged(fn func(userID uint)) {
	s.userChanged = fn
}

// Profiles returns the company profiles ordered by id (A, B).
func (s *SettingsService) Profiles(ctx context.Context) ([]models.CompanyProfile, error) {
	var out []models.CompanyProfile
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

// Profile returns one company profile.
func (s *SettingsService) Profile(ctx context.Context, id string) (*models.CompanyProfile, error) {
	var p models.CompanyProfile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProfiles applies all updates in one transaction.
func (s *SettingsService) UpdateProfiles(ctx context.Context, updates ...ProfileUpdate) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&models.CompanyProfile{}).Where("id = ?", u.ID).Updates(map[string]any{
				"name":    strings.TrimSpace(u.Name),
				"tax_id":  strings.TrimSpace(u.TaxID),
				"address": strings.TrimSpace(u.Address),
				"phone":   strings.TrimSpace(u.Phone),
				"email":   strings.TrimSpace(u.Email),
				"slogan":  strings.TrimSpace(u.Slogan),
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("company profile %q: %w", u.ID, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("company profiles updated", zap.Int("count", len(updates)))
	return nil
}

// Authenticate checks a username and password against the stored hash.
func (s *SettingsService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// ChangePassword sets a new password for username.
func (s *SettingsService) ChangePassword(ctx context.Context, username, password string) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.updateUser(ctx, username, "password", string(hash)); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("username", username))
	return nil
}

// ChangeRole moves username to role, which must be admin or assistant.
func (s *SettingsService) ChangeRole(ctx context.Context, username, role string) error {
	if !auth.IsAdmin(ctx) {
		return ErrForbidden
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != auth.RoleAdmin && role != auth.RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.updateUser(ctx, username, "role", role); err != nil {
		return err
	}
	s.log.Info("role changed", zap.String("username", username), zap.String("role", role))
	return nil
}

func (s *SettingsService) updateUser(ctx context.Context, username, column string, value any) error {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.db.WithContext(ctx).Model(&u).Update(column, value).Error; err != nil {
		return err
	}
	if s.userChanged != nil {
		s.userChanged(u.ID)
	}
	return nil
}

// Usernames lists accounts for the password form.
func (s *SettingsService) Usernames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.User{}).Order("username").Pluck("username", &names).Error
	return names, err
}
