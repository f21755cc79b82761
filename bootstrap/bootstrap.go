// Package bootstrap resolves whether the current visitor is
// authenticated and where they should be routed, tolerating identity
// providers that are slow or never definitively resolve.
//
// The controller is a small state machine driven by session snapshots
// and navigation events. A session that stays in-flight past its settle
// deadline escalates; after enough consecutive escalations the
// controller bypasses the unresolved session rather than hanging the UI,
// accepting a possibly stale snapshot as a deliberate trade-off.
package bootstrap

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	appshell "github.com/fleetdesk/appshell-go"
	"github.com/fleetdesk/appshell-go/audit"
	"github.com/fleetdesk/appshell-go/metrics"
)

// Phase is the controller's externally visible state.
type Phase int

const (
	// PhaseAwaitingInit means the provider has not completed its first
	// resolution attempt.
	PhaseAwaitingInit Phase = iota

	// PhaseSettling means the provider is initialized but a resolution
	// is still in flight, within the settle deadline.
	PhaseSettling

	// PhaseEscalating means at least one settle deadline has elapsed
	// with the resolution still in flight.
	PhaseEscalating

	// PhaseBypassed means the controller gave up waiting and proceeds
	// with whatever snapshot it has.
	PhaseBypassed

	// PhaseReady means the session resolved normally.
	PhaseReady
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingInit:
		return "awaiting_init"
	case PhaseSettling:
		return "settling"
	case PhaseEscalating:
		return "escalating"
	case PhaseBypassed:
		return "bypassed"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Controller is the session bootstrap and redirect state machine.
// All methods are safe for concurrent use.
type Controller struct {
	cfg    appshell.Config
	clock  appshell.Clock
	nav    appshell.Navigator
	logger *slog.Logger
	mtr    *metrics.Metrics
	aud    *audit.Logger

	mu          sync.Mutex
	phase       Phase
	session     appshell.Session
	path        string
	escalations int
	loggingOut  bool
	redirected  bool
	closed      bool

	// gen invalidates timer callbacks from superseded arms; a callback
	// whose generation no longer matches must not act.
	gen   uint64
	timer appshell.Timer
}

// ErrNoNavigator is returned by New when the client has no Navigator.
var ErrNoNavigator = errors.New("appshell/bootstrap: a Navigator is required")

// Option configures the Controller.
type Option func(*Controller)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.mtr = m }
}

// WithAudit sets the audit event logger.
func WithAudit(a *audit.Logger) Option {
	return func(c *Controller) { c.aud = a }
}

// New creates a bootstrap controller bound to the client's navigator and
// clock. The client must have a Navigator configured.
func New(client *appshell.Client, opts ...Option) (*Controller, error) {
	if client.Nav() == nil {
		return nil, ErrNoNavigator
	}
	c := &Controller{
		cfg:    client.Config(),
		clock:  client.Clock(),
		nav:    client.Nav(),
		logger: client.Logger(),
		phase:  PhaseAwaitingInit,
	}
	for _, o := range opts {
		o(c)
	}
	if c.mtr == nil {
		c.mtr = metrics.New(false)
	}
	return c, nil
}

// OnSession feeds the controller the latest session snapshot. Call it
// whenever the identity provider's state changes.
func (c *Controller) OnSession(s appshell.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.session = s

	switch {
	case !s.Initialized:
		c.cancelTimerLocked()
		c.setPhaseLocked(PhaseAwaitingInit)
	case s.Loading:
		// A resolution already being timed keeps its deadline and
		// escalation count; arming anew would let a flapping provider
		// postpone escalation forever. Bypassed is sticky the same way:
		// providers re-notify without a value change, and a redelivered
		// stuck snapshot must not restart the loading cycle. Only a
		// settled observation leaves Bypassed.
		if c.phase != PhaseSettling && c.phase != PhaseEscalating && c.phase != PhaseBypassed {
			c.escalations = 0
			c.setPhaseLocked(PhaseSettling)
			c.armTimerLocked()
		}
	default:
		c.cancelTimerLocked()
		c.escalations = 0
		c.setPhaseLocked(PhaseReady)
	}

	target, reason := c.evalRedirectLocked()
	c.mu.Unlock()
	c.redirect(target, reason)
}

// OnNavigate informs the controller of the current navigation path.
// A path change re-enables redirect evaluation and, while a resolution
// is still being timed, re-arms the deadline appropriate to the new
// path (callback paths get the longer deadline).
func (c *Controller) OnNavigate(path string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if path != c.path {
		c.path = path
		c.redirected = false
		if c.phase == PhaseSettling || c.phase == PhaseEscalating {
			c.armTimerLocked()
		}
	}
	target, reason := c.evalRedirectLocked()
	c.mu.Unlock()
	c.redirect(target, reason)
}

// OnLogoutInitiated suppresses all redirect evaluation until the
// matching OnLogoutCompleted. This prevents the session-clearing side of
// a logout from racing an explicit navigation into a double redirect.
func (c *Controller) OnLogoutInitiated() {
	c.mu.Lock()
	c.loggingOut = true
	c.mu.Unlock()
}

// OnLogoutCompleted clears the logout suppression flag and re-evaluates
// redirects against the current snapshot.
func (c *Controller) OnLogoutCompleted() {
	c.mu.Lock()
	c.loggingOut = false
	target, reason := c.evalRedirectLocked()
	c.mu.Unlock()
	c.redirect(target, reason)
}

// Close cancels any pending deadline timer and inerts the controller.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.closed = true
	return nil
}

// Phase returns the current bootstrap phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Redirected reports whether a redirect was issued for the current path.
func (c *Controller) Redirected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirected
}

// Escalations returns how many settle deadlines have elapsed for the
// resolution currently being timed.
func (c *Controller) Escalations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escalations
}

// StatusMessage returns a human-readable description of the current
// phase, suitable for a loading placeholder.
func (c *Controller) StatusMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case PhaseAwaitingInit:
		return "Checking your session..."
	case PhaseSettling:
		return "Signing you in..."
	case PhaseEscalating:
		return "This is taking longer than usual..."
	case PhaseBypassed:
		return "Continuing without full session confirmation"
	}
	return ""
}

func (c *Controller) setPhaseLocked(p Phase) {
	if c.phase == p {
		return
	}
	c.logger.Debug("bootstrap phase change",
		"from", c.phase.String(), "to", p.String(), "path", c.path)
	c.phase = p
}

// armTimerLocked starts (or restarts) the settle deadline for the
// current path, invalidating any previously armed callback.
func (c *Controller) armTimerLocked() {
	c.cancelTimerLocked()
	c.gen++
	gen := c.gen
	d := c.cfg.SettleDeadline(c.path)
	c.timer = c.clock.AfterFunc(d, func() { c.onDeadline(gen, d) })
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) onDeadline(gen uint64, d time.Duration) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.escalations++
	c.mtr.RecordEscalation()
	c.logger.Warn("session resolution past deadline",
		"deadline", d, "escalations", c.escalations, "path", c.path)

	var target, reason string
	if c.escalations >= c.cfg.MaxEscalations {
		c.cancelTimerLocked()
		c.setPhaseLocked(PhaseBypassed)
		c.mtr.RecordBypass()
		c.auditEvent(c.session, audit.Event{
			Action:  "bootstrap_bypass",
			Result:  "degraded",
			Details: "session never settled; proceeding with unconfirmed snapshot",
		})
		target, reason = c.evalRedirectLocked()
	} else {
		c.setPhaseLocked(PhaseEscalating)
		c.gen++
		g := c.gen
		c.timer = c.clock.AfterFunc(d, func() { c.onDeadline(g, d) })
	}
	c.mu.Unlock()
	c.redirect(target, reason)
}

// evalRedirectLocked applies the redirect rules and returns the target
// path, or "" when no redirect applies. The caller performs the actual
// navigation after releasing the lock.
func (c *Controller) evalRedirectLocked() (target, reason string) {
	if c.loggingOut || c.redirected || c.path == "" {
		return "", ""
	}
	if c.phase != PhaseReady && c.phase != PhaseBypassed {
		return "", ""
	}
	switch {
	case c.session.User == nil && !c.cfg.IsPublicPath(c.path):
		c.redirected = true
		return c.cfg.LoginPath, "unauthenticated"
	case c.session.User != nil && c.path == c.cfg.LoginPath:
		c.redirected = true
		return c.cfg.LandingPath, "already_authenticated"
	}
	return "", ""
}

func (c *Controller) redirect(target, reason string) {
	if target == "" {
		return
	}
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	c.logger.Debug("bootstrap redirect", "to", target, "reason", reason)
	c.mtr.RecordRedirect(reason)
	c.auditEvent(s, audit.Event{
		Action:   "redirect",
		Resource: target,
		Result:   "success",
		Details:  reason,
	})
	c.nav.Replace(target)
}

// auditEvent must not touch the controller lock; callers in locked
// sections pass the snapshot they already hold.
func (c *Controller) auditEvent(s appshell.Session, e audit.Event) {
	if c.aud == nil {
		return
	}
	if s.User != nil {
		e.UserID = s.User.ID
		e.Role = string(s.ActiveRole)
	}
	c.aud.Log(e)
}
