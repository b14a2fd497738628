package gate

import (
	"context"
	"sort"
)

// Profile is a named role with a set of permissions.
type Profile interface {
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver resolves a user to their profile.
// A nil profile with a nil error means the user has no role.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is an in-memory profile.
type StaticProfile struct {
	name        string
	permissions map[Permission]bool
}

// NewStaticProfile creates a profile with the given permissions.
func NewStaticProfile(name string, permissions ...Permission) *StaticProfile {
	p := &StaticProfile{
		name:        name,
		permissions: make(map[Permission]bool, len(permissions)),
	}
	for _, perm := range permissions {
		p.permissions[perm] = true
	}
	return p
}

func (p *StaticProfile) Name() string { return p.name }

// Permissions returns all permissions in this profile, sorted.
func (p *StaticProfile) Permissions() []Permission {
	perms := make([]Permission, 0, len(p.permissions))
	for perm := range p.permissions {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// HasPermission checks if the profile has the requested permission.
// Supports wildcard matching.
func (p *StaticProfile) HasPermission(requested Permission) bool {
	for perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// RoleTable maps role names to their profiles.
type RoleTable map[string]Profile

// NewRoleTable indexes profiles by name.
func NewRoleTable(profiles ...Profile) RoleTable {
	t := make(RoleTable, len(profiles))
	for _, p := range profiles {
		t[p.Name()] = p
	}
	return t
}

// Lookup returns the profile for role or ErrUnknownRole.
func (t RoleTable) Lookup(role string) (Profile, error) {
	if p, ok := t[role]; ok {
		return p, nil
	}
	return nil, ErrUnknownRole
}

// StaticResolver is a simple in-memory resolver for tests and fixed setups.
type StaticResolver[U comparable] struct {
	profiles map[U]Profile
}

// NewStaticResolver creates a resolver with predefined user-profile mappings.
func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{profiles: make(map[U]Profile)}
}

// Set assigns a profile to a user.
func (r *StaticResolver[U]) Set(user U, profile Profile) {
	r.profiles[user] = profile
}

// Resolve returns the profile for the given user.
func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Profile, error) {
	return r.profiles[user], nil
}
