package gate

import "strings"

// Permission represents an allowed action on a resource type.
// Format: "resource:action" (e.g., "quotation:send", "client:save")
type Permission string

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Wildcards for super permissions
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches checks if this permission matches a requested permission.
// "*:*" matches all, "client:*" matches all client actions.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}
