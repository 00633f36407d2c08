package ledger

import (
	"github.com/google/uuid"
)

// Action is a ledger operation subject to the permission check.
type Action string

const (
	ActionWithdraw  Action = "withdraw"
	ActionClose     Action = "close"
	ActionReconcile Action = "reconcile"
)

// Actor is the operator performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Authorizer is the external permission check. It must be synchronous and
// side-effect free.
type Authorizer interface {
	CanPerform(actor Actor, action Action) bool
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(actor Actor, action Action) bool

func (f AuthorizerFunc) CanPerform(actor Actor, action Action) bool { return f(actor, action) }

// AllowAll grants every action. Useful for kiosks without role separation.
var AllowAll = AuthorizerFunc(func(Actor, Action) bool { return true })

// RolePolicy grants an action to the listed roles.
type RolePolicy map[Action][]string

// DefaultRolePolicy: cashiers may close their own till; withdrawals and
// binding reconciliations are reserved to supervisors.
func DefaultRolePolicy() RolePolicy {
	return RolePolicy{
		ActionWithdraw:  {"supervisor", "administrador"},
		ActionClose:     {"cajero", "supervisor", "administrador"},
		ActionReconcile: {"supervisor", "administrador"},
	}
}

// CanPerform reports whether the actor's role is listed for the action.
func (p RolePolicy) CanPerform(actor Actor, action Action) bool {
	if actor.ID == uuid.Nil {
		return false
	}
	for _, r := range p[action] {
		if r == actor.Role {
			return true
		}
	}
	return false
}
