// Package gate provides role-based authorization. A Gate resolves a user to
// a role profile and checks "resource:action" permissions against it, with
// wildcard support ("quotation:*", "*:*").
//
// The package uses generics so any comparable user key works:
//   - Gate[uint] for user ID based auth
//   - Gate[string] for username based auth
package gate

import "context"

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

// New creates a gate backed by resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Profile resolves the user's profile. The zero user has none.
func (g *Gate[U]) Profile(ctx context.Context, user U) (Profile, error) {
	var zero U
	if user == zero {
		return nil, nil
	}
	return g.resolver.Resolve(ctx, user)
}

// Authorize returns ErrUnauthorized unless user's profile grants resource:action.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string) error {
	profile, err := g.Profile(ctx, user)
	if err != nil || profile == nil {
		return ErrUnauthorized
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.Authorize(ctx, user, action, resourceType) == nil
}

// IsSuperAdmin reports whether user's profile carries "*:*".
func (g *Gate[U]) IsSuperAdmin(ctx context.Context, user U) bool {
	profile, err := g.Profile(ctx, user)
	if err != nil || profile == nil {
		return false
	}
	return profile.HasPermission(PermissionSuperAdmin)
}
