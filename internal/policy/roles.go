package policy

import (
	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/gate"
)

// Resource types checked by the router.
const (
	ResourceClient    = "client"
	ResourceSupplier  = "supplier"
	ResourceProduct   = "product"
	ResourceSurvey    = "survey"
	ResourceQuotation = "quotation"
	ResourceDashboard = "dashboard"
	ResourceReport    = "report"
	ResourceSettings  = "settings"
)

// Roles returns the role table. Admin holds every permission; the assistant
// works the record modules and quotations but cannot delete, reset, change
// status or touch reports and settings. Anonymous users hold nothing.
func Roles() gate.RoleTable {
	var assistant []gate.Permission
	for _, res := range []string{ResourceClient, ResourceSupplier, ResourceProduct, ResourceSurvey} {
		assistant = append(assistant,
			gate.NewPermission(res, gate.ActionList),
			gate.NewPermission(res, gate.ActionView),
			gate.NewPermission(res, gate.ActionSave),
		)
	}
	for _, act := range []gate.Action{gate.ActionList, gate.ActionView, gate.ActionSave, gate.ActionPrint, gate.ActionSend} {
		assistant = append(assistant, gate.NewPermission(ResourceQuotation, act))
	}
	assistant = append(assistant, gate.NewPermission(ResourceDashboard, gate.ActionView))

	return gate.NewRoleTable(
		gate.NewStaticProfile(auth.RoleAdmin, gate.PermissionSuperAdmin),
		gate.NewStaticProfile(auth.RoleAssistant, assistant...),
		gate.NewStaticProfile(auth.RoleAnonymous),
	)
}
