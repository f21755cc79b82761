package appshell

import "time"

// Role is one of the application's enumerated user roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOperations Role = "operations"
	RoleAccounts   Role = "accounts"
	RoleSales      Role = "sales"
	RoleDriver     Role = "driver"
	RoleCustomer   Role = "customer"
)

// User represents an authenticated user.
type User struct {
	ID    string
	Email string
	Name  string
}

// Permission is a (resource, action) pair granted to a session.
type Permission struct {
	Resource string
	Action   string
}

// String returns the canonical "resource:action" form.
func (p Permission) String() string { return p.Resource + ":" + p.Action }

// Session is the externally-owned identity snapshot this SDK reads.
//
// Initialized becomes true exactly once, when the identity provider has
// completed its first resolution attempt. Loading is true while a
// resolution or transition is in flight and may fluctuate after
// Initialized is already true (e.g. during re-auth); the two flags are
// orthogonal. ActiveRole is only meaningful when User is present.
type Session struct {
	User        *User
	ActiveRole  Role
	Permissions []Permission
	Initialized bool
	Loading     bool
}

// HasPermission reports whether the session holds the given permission.
func (s Session) HasPermission(p Permission) bool {
	for _, q := range s.Permissions {
		if q == p {
			return true
		}
	}
	return false
}

// Authenticated reports whether the session has both a user and an
// active role.
func (s Session) Authenticated() bool {
	return s.User != nil && s.ActiveRole != ""
}

// RouteRequirement declares what a protected view demands of a session.
// A view with neither a required permission nor required roles is
// accessible to any authenticated session with an active role.
type RouteRequirement struct {
	// RequiredPermission, when set, must be present in the session's
	// permission set.
	RequiredPermission *Permission

	// RequiredRoles, when non-empty, must contain the session's active
	// role.
	RequiredRoles []Role

	// RedirectTarget is where unauthenticated visitors are sent.
	RedirectTarget string

	// HasFallback indicates the view supplies a degraded fallback
	// rendering for denied sessions, instead of the forbidden screen.
	HasFallback bool
}

// HintPlacement is the side of the target element a hint attaches to.
type HintPlacement string

const (
	PlaceTop    HintPlacement = "top"
	PlaceRight  HintPlacement = "right"
	PlaceBottom HintPlacement = "bottom"
	PlaceLeft   HintPlacement = "left"
)

// Hint is one piece of contextual onboarding guidance tied to a screen
// element. Hints are immutable configuration; only their per-user seen
// status is mutable.
type Hint struct {
	ID             string        `json:"id" validate:"required"`
	TargetSelector string        `json:"target_selector" validate:"required"`
	Title          string        `json:"title" validate:"required"`
	Description    string        `json:"description"`
	Placement      HintPlacement `json:"placement" validate:"omitempty,oneof=top right bottom left"`
}

// OnboardingRecord is the per-user durable onboarding state.
//
// FirstVisit is the creation time of the record and is never extended on
// later visits; whether the user still counts as a first-time visitor is
// recomputed from it on every load, not stored.
type OnboardingRecord struct {
	SeenHints  map[string]bool `json:"seen_hints"`
	FirstVisit time.Time       `json:"first_visit"`
}
