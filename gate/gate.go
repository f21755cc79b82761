// Package gate evaluates per-view access requirements against the
// current session.
//
// Evaluation is a pure function of (session, requirement); the result is
// a variant Decision the caller pattern-matches on to render loading,
// redirect, fallback, forbidden or allowed content. Checks run in a
// fixed order and short-circuit, so only one failure reason is ever
// surfaced, permission before role.
package gate

import (
	"log/slog"
	"sync"
	"time"

	appshell "github.com/fleetdesk/appshell-go"
	"github.com/fleetdesk/appshell-go/audit"
	"github.com/fleetdesk/appshell-go/metrics"
)

// Outcome is the kind of decision the gate reached.
type Outcome int

const (
	// OutcomeLoading means the session is not ready to evaluate yet.
	OutcomeLoading Outcome = iota

	// OutcomeRedirect means the visitor is unauthenticated and should be
	// sent to the decision's RedirectTo path.
	OutcomeRedirect

	// OutcomeFallback means a requirement failed and the view supplies a
	// degraded fallback rendering.
	OutcomeFallback

	// OutcomeForbidden means a requirement failed and the forbidden
	// screen should be shown, naming the missing requirement and the
	// visitor's actual role.
	OutcomeForbidden

	// OutcomeAllow means the view may render.
	OutcomeAllow
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeFallback:
		return "fallback"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeAllow:
		return "allow"
	}
	return "unknown"
}

// Decision is the gate's verdict for one view evaluation.
type Decision struct {
	Outcome Outcome

	// RedirectTo and ReturnTo are set for OutcomeRedirect: where to send
	// the visitor, and the original location the login flow should
	// return them to afterward.
	RedirectTo string
	ReturnTo   string

	// MissingPermission or MissingRoles name the failed requirement for
	// OutcomeForbidden and OutcomeFallback. Only one is ever set.
	MissingPermission *appshell.Permission
	MissingRoles      []appshell.Role

	// ActualRole is the visitor's active role at denial time. Shown on
	// the forbidden screen to aid support requests; the visitor already
	// knows their own role, so this is not a leak.
	ActualRole appshell.Role
}

// Gate evaluates route requirements. Safe for concurrent use.
type Gate struct {
	cfg    appshell.Config
	logger *slog.Logger
	mtr    *metrics.Metrics
	aud    *audit.Logger

	overrideAll  bool
	overrideOnce sync.Once
}

// Option configures the Gate.
type Option func(*Gate)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.mtr = m }
}

// WithAudit sets the audit event logger.
func WithAudit(a *audit.Logger) Option {
	return func(g *Gate) { g.aud = a }
}

// WithDevOverride forces every evaluation to allow, for local iteration
// without real credentials. It is inert unless the binary was built with
// the devaccess build tag, and its first use is logged.
func WithDevOverride() Option {
	return func(g *Gate) { g.overrideAll = overrideCompiled }
}

// New creates a gate bound to the client's configuration and logger.
func New(client *appshell.Client, opts ...Option) *Gate {
	g := &Gate{
		cfg:    client.Config(),
		logger: client.Logger(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.mtr == nil {
		g.mtr = metrics.New(false)
	}
	return g
}

// Evaluate computes the decision for a view declared with req, visited
// at path, against the session snapshot s.
func (g *Gate) Evaluate(s appshell.Session, req appshell.RouteRequirement, path string) Decision {
	start := time.Now()
	d := g.evaluate(s, req, path)
	g.mtr.RecordGateDecision(d.Outcome.String(), time.Since(start).Seconds())
	return d
}

func (g *Gate) evaluate(s appshell.Session, req appshell.RouteRequirement, path string) Decision {
	if !s.Initialized || s.Loading {
		return Decision{Outcome: OutcomeLoading}
	}

	if !s.Authenticated() {
		target := req.RedirectTarget
		if target == "" {
			target = g.cfg.LoginPath
		}
		return Decision{
			Outcome:    OutcomeRedirect,
			RedirectTo: target,
			ReturnTo:   path,
		}
	}

	if req.RequiredPermission != nil && !s.HasPermission(*req.RequiredPermission) {
		if g.forceAllow(s, path, "permission "+req.RequiredPermission.String()) {
			return Decision{Outcome: OutcomeAllow}
		}
		p := *req.RequiredPermission
		return g.deny(s, path, Decision{
			Outcome:           denialOutcome(req),
			MissingPermission: &p,
			ActualRole:        s.ActiveRole,
		})
	}

	if len(req.RequiredRoles) > 0 && !roleAllowed(s.ActiveRole, req.RequiredRoles) {
		if g.forceAllow(s, path, "role") {
			return Decision{Outcome: OutcomeAllow}
		}
		return g.deny(s, path, Decision{
			Outcome:      denialOutcome(req),
			MissingRoles: append([]appshell.Role(nil), req.RequiredRoles...),
			ActualRole:   s.ActiveRole,
		})
	}

	return Decision{Outcome: OutcomeAllow}
}

func roleAllowed(active appshell.Role, required []appshell.Role) bool {
	for _, r := range required {
		if r == active {
			return true
		}
	}
	return false
}

func denialOutcome(req appshell.RouteRequirement) Outcome {
	if req.HasFallback {
		return OutcomeFallback
	}
	return OutcomeForbidden
}

// forceAllow applies the dev override to a failing branch. The override
// is observably logged once per gate instance so it cannot silently mask
// access bugs.
func (g *Gate) forceAllow(s appshell.Session, path, failed string) bool {
	if !g.overrideAll {
		return false
	}
	g.overrideOnce.Do(func() {
		g.logger.Warn("access-gate dev override active: all evaluations forced to allow")
		if g.aud != nil {
			g.aud.Log(audit.Event{
				Action:  "dev_override",
				Result:  "success",
				Details: "gate evaluations forced to allow",
			})
		}
	})
	g.mtr.RecordOverrideUse()
	g.logger.Debug("dev override forced allow", "path", path, "failed_check", failed)
	return true
}

func (g *Gate) deny(s appshell.Session, path string, d Decision) Decision {
	if g.aud != nil {
		e := audit.Event{
			Action:   "gate_deny",
			Resource: path,
			Result:   "denied",
			Role:     string(s.ActiveRole),
		}
		if s.User != nil {
			e.UserID = s.User.ID
		}
		if d.MissingPermission != nil {
			e.Details = "missing permission " + d.MissingPermission.String()
		} else {
			e.Details = "role not permitted"
		}
		g.aud.Log(e)
	}
	return d
}
