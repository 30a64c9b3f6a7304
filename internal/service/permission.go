package service

import (
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// Permission modules
const (
	ModuleDashboard   = "dashboard"
	ModuleLeads       = "leads"
	ModuleLeadDetails = "lead_details"
	ModuleServices    = "services"
	ModuleStatuses    = "statuses"
	ModuleUsers       = "users"
)

// Permission actions
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Grant is a (module, action) pair
type Grant struct {
	Module string
	Action string
}

// AllGrants enumerates every valid grant. The dashboard only supports view.
func AllGrants() []Grant {
	modules := []string{ModuleDashboard, ModuleLeads, ModuleLeadDetails, ModuleServices, ModuleStatuses, ModuleUsers}
	actions := []string{ActionView, ActionCreate, ActionEdit, ActionDelete}

	var grants []Grant
	for _, m := range modules {
		for _, a := range actions {
			if m == ModuleDashboard && a != ActionView {
				continue
			}
			grants = append(grants, Grant{Module: m, Action: a})
		}
	}
	return grants
}

// Actor is the authenticated user a request runs as
type Actor struct {
	ID     int64
	Name   string
	Email  string
	Role   string
	grants map[Grant]struct{}
}

// NewActor builds an actor from a user and its loaded permissions
func NewActor(u *repository.User) *Actor {
	a := &Actor{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		grants: make(map[Grant]struct{}, len(u.Permissions)),
	}
	for _, p := range u.Permissions {
		a.grants[Grant{Module: p.Module, Action: p.Action}] = struct{}{}
	}
	return a
}

func (a *Actor) IsAdmin() bool {
	return a.Role == repository.RoleAdmin
}

// Can reports whether the actor holds module:action. Admins hold everything.
func (a *Actor) Can(module, action string) bool {
	if a.IsAdmin() {
		return true
	}
	_, ok := a.grants[Grant{Module: module, Action: action}]
	return ok
}

// Owns reports whether the actor is the given owner
func (a *Actor) Owns(ownerID int64) bool {
	return ownerID != 0 && a.ID == ownerID
}

// scope returns the assignee filter for listings: 0 for admins, the actor's
// own id otherwise.
func (a *Actor) scope() int64 {
	if a.IsAdmin() {
		return 0
	}
	return a.ID
}

// Rule selects how a policy combines the grant and ownership checks
type Rule int

const (
	// RuleGrantOnly requires module:action
	RuleGrantOnly Rule = iota
	// RuleOwnerOnly requires admin or ownership; grants are ignored
	RuleOwnerOnly
	// RuleGrantOrOwner accepts module:action or ownership
	RuleGrantOrOwner
	// RuleAdminOnly requires the admin role
	RuleAdminOnly
)

// Policy is one authorization decision point
type Policy struct {
	Module  string
	Action  string
	Rule    Rule
	Message string
}

// Allow evaluates the policy. ownerID is the resource owner, or 0 when the
// resource has none.
func (p Policy) Allow(a *Actor, ownerID int64) bool {
	if a == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}

	switch p.Rule {
	case RuleGrantOnly:
		return a.Can(p.Module, p.Action)
	case RuleOwnerOnly:
		return a.Owns(ownerID)
	case RuleGrantOrOwner:
		return a.Can(p.Module, p.Action) || a.Owns(ownerID)
	default:
		return false
	}
}

// Authorize returns a forbidden error when the policy denies the actor
func Authorize(a *Actor, p Policy, ownerID int64) error {
	if p.Allow(a, ownerID) {
		return nil
	}
	msg := p.Message
	if msg == "" {
		msg = "Unauthorized"
	}
	return apperrors.Forbidden(msg)
}

// Per-endpoint policies. Lead routes check the grant at the router and the
// assignment here. Lead detail routes have no router grant so either the
// grant or the assignment lets the actor through.
var (
	PolicyLeadAccess = Policy{Module: ModuleLeads, Action: ActionView, Rule: RuleOwnerOnly}

	PolicyDetailView = Policy{
		Module: ModuleLeads, Action: ActionView, Rule: RuleGrantOrOwner,
		Message: "You do not have permission to view call details for this lead.",
	}
	PolicyDetailCreate = Policy{
		Module: ModuleLeads, Action: ActionCreate, Rule: RuleGrantOrOwner,
		Message: "You do not have permission to add call details to this lead.",
	}
	PolicyDetailEdit = Policy{
		Module: ModuleLeads, Action: ActionEdit, Rule: RuleGrantOrOwner,
		Message: "You do not have permission to update call details for this lead.",
	}
	PolicyDetailDelete = Policy{
		Module: ModuleLeads, Action: ActionDelete, Rule: RuleGrantOrOwner,
		Message: "You do not have permission to delete call details for this lead.",
	}

	PolicyCallOwner = Policy{Rule: RuleOwnerOnly}

	PolicyDashboardForUser = Policy{Rule: RuleAdminOnly}
	PolicyUserStore        = Policy{Rule: RuleAdminOnly, Message: "Only administrators can create users."}
	PolicyUserRole         = Policy{Rule: RuleAdminOnly, Message: "Only administrators can change user roles."}
	PolicyUserDestroy      = Policy{Rule: RuleAdminOnly, Message: "Only administrators can delete users."}
)
