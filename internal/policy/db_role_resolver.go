package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/gate"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

// DBRoleResolver resolves a user id to the profile of the role stored on
// the user row.
type DBRoleResolver struct {
	DB    *gorm.DB
	Roles gate.RoleTable
}

// NewDBRoleResolver creates a resolver over the users table.
func NewDBRoleResolver(db *gorm.DB, roles gate.RoleTable) *DBRoleResolver {
	return &DBRoleResolver{DB: db, Roles: roles}
}

// Resolve returns nil, nil for unknown users and for roles missing from the
// table, so neither gets any permission.
func (r *DBRoleResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Select("id", "role").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := r.Roles.Lookup(user.Role)
	if errors.Is(err, gate.ErrUnknownRole) {
		return nil, nil
	}
	return p, err
}
