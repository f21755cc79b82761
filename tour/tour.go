// Package tour drives role-scoped first-run guidance: which hints a
// user has acknowledged, which hint is currently active, and where on
// screen the active hint's tooltip belongs.
//
// Seen state is durable per user in a HintStore; the global
// enable/disable toggle is a device-level preference stored under an
// unscoped key. A corrupt persisted record is discarded and recreated,
// never surfaced as a failure.
package tour

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	appshell "github.com/fleetdesk/appshell-go"
	"github.com/fleetdesk/appshell-go/audit"
	"github.com/fleetdesk/appshell-go/metrics"
)

const (
	recordKeyPrefix = "onboarding-"
	enabledKey      = "onboarding-enabled"
)

// Engine maintains per-user onboarding state and the active hint
// pointer. All methods are safe for concurrent use.
type Engine struct {
	cfg     appshell.Config
	store   appshell.HintStore
	clock   appshell.Clock
	logger  *slog.Logger
	mtr     *metrics.Metrics
	aud     *audit.Logger
	catalog *Catalog

	mu         sync.Mutex
	userID     string
	role       appshell.Role
	record     appshell.OnboardingRecord
	firstVisit bool
	enabled    bool
	active     *appshell.Hint
}

// Option configures the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.mtr = m }
}

// WithAudit sets the audit event logger.
func WithAudit(a *audit.Logger) Option {
	return func(e *Engine) { e.aud = a }
}

// New creates a tour engine bound to the client's hint store and clock.
// The client must have a HintStore configured.
func New(client *appshell.Client, catalog *Catalog, opts ...Option) (*Engine, error) {
	if client.Store() == nil {
		return nil, fmt.Errorf("appshell/tour: a HintStore is required")
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	e := &Engine{
		cfg:     client.Config(),
		store:   client.Store(),
		clock:   client.Clock(),
		logger:  client.Logger(),
		catalog: catalog,
		enabled: true,
	}
	for _, o := range opts {
		o(e)
	}
	if e.mtr == nil {
		e.mtr = metrics.New(false)
	}
	return e, nil
}

// SetUser initializes the engine for an authenticated user and role,
// loading (or creating) their onboarding record and the device-level
// enabled toggle, then arming the first-visit auto-trigger. Passing a
// nil user clears all per-user state (logout). Calling it again with
// the same user and role is a no-op.
func (e *Engine) SetUser(ctx context.Context, user *appshell.User, role appshell.Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if user == nil {
		e.userID = ""
		e.role = ""
		e.record = appshell.OnboardingRecord{}
		e.firstVisit = false
		e.active = nil
		return nil
	}
	if user.ID == e.userID && role == e.role {
		return nil
	}

	if user.ID != e.userID {
		if err := e.loadRecordLocked(ctx, user.ID); err != nil {
			return err
		}
	} else {
		// Same user switching roles: drop the old role's active hint.
		e.active = nil
	}
	e.userID = user.ID
	e.role = role
	e.loadEnabledLocked(ctx)
	e.autoStartLocked()
	return nil
}

// loadRecordLocked fetches or creates the per-user onboarding record and
// recomputes the first-visit flag from its creation timestamp.
func (e *Engine) loadRecordLocked(ctx context.Context, userID string) error {
	raw, ok, err := e.store.Get(ctx, recordKeyPrefix+userID)
	if err != nil {
		return fmt.Errorf("appshell/tour: load onboarding record: %w", err)
	}

	fresh := appshell.OnboardingRecord{
		SeenHints:  make(map[string]bool),
		FirstVisit: e.clock.Now(),
	}

	if !ok {
		e.record = fresh
		e.firstVisit = true
		e.active = nil
		return e.persistRecordLocked(ctx, userID)
	}

	var rec appshell.OnboardingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.FirstVisit.IsZero() {
		// Corrupt record: discard and start over rather than fail.
		e.logger.Warn("discarding malformed onboarding record", "user_id", userID, "error", err)
		e.record = fresh
		e.firstVisit = true
		e.active = nil
		return e.persistRecordLocked(ctx, userID)
	}

	if rec.SeenHints == nil {
		rec.SeenHints = make(map[string]bool)
	}
	e.record = rec
	e.firstVisit = e.clock.Now().Sub(rec.FirstVisit) < e.cfg.FirstVisitWindow
	e.active = nil
	return nil
}

func (e *Engine) loadEnabledLocked(ctx context.Context) {
	raw, ok, err := e.store.Get(ctx, enabledKey)
	if err != nil {
		e.logger.Warn("loading onboarding toggle failed; defaulting to enabled", "error", err)
		e.enabled = true
		return
	}
	e.enabled = !ok || raw != "false"
}

// autoStartLocked activates the first unseen hint for the role when this
// is a qualifying first visit. Every hint already seen (possible within
// the window via another device) activates nothing.
func (e *Engine) autoStartLocked() {
	if !e.firstVisit || !e.enabled || e.active != nil {
		return
	}
	hints := e.catalog.Hints(e.role)
	for i := range hints {
		if !e.record.SeenHints[hints[i].ID] {
			h := hints[i]
			e.active = &h
			e.mtr.RecordTourStart("first_visit")
			e.logger.Debug("auto-started tour", "role", string(e.role), "hint", h.ID)
			return
		}
	}
}

// IsFirstVisit reports whether the user's onboarding record was created
// within the first-visit window. The window is anchored to record
// creation and never extended by later visits.
func (e *Engine) IsFirstVisit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstVisit
}

// HasSeenHint reports whether the hint has been acknowledged.
func (e *Engine) HasSeenHint(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.SeenHints[id]
}

// MarkHintAsSeen durably records the hint as acknowledged. Marking an
// already-seen hint is a no-op.
func (e *Engine) MarkHintAsSeen(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markSeenLocked(ctx, id)
}

func (e *Engine) markSeenLocked(ctx context.Context, id string) error {
	if e.userID == "" {
		return fmt.Errorf("appshell/tour: no active user")
	}
	if e.record.SeenHints[id] {
		return nil
	}
	e.record.SeenHints[id] = true
	if err := e.persistRecordLocked(ctx, e.userID); err != nil {
		return err
	}
	e.mtr.RecordHintSeen()
	return nil
}

// ActiveHint returns the currently active hint, or nil.
func (e *Engine) ActiveHint() *appshell.Hint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	h := *e.active
	return &h
}

// SetActiveHint directly activates a hint (or deactivates with nil).
func (e *Engine) SetActiveHint(h *appshell.Hint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		e.active = nil
		return
	}
	hh := *h
	e.active = &hh
}

// CompleteActive acknowledges the active hint and advances the tour.
// Sequencing is positional: completing the hint at index i activates
// index i+1 of the role's list even if later entries were already seen,
// so a resumed tour never skips entries along the way. Completing the
// last hint deactivates the tour.
func (e *Engine) CompleteActive(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil
	}
	if err := e.markSeenLocked(ctx, e.active.ID); err != nil {
		return err
	}

	hints := e.catalog.Hints(e.role)
	idx := -1
	for i := range hints {
		if hints[i].ID == e.active.ID {
			idx = i
			break
		}
	}
	if idx >= 0 && idx < len(hints)-1 {
		h := hints[idx+1]
		e.active = &h
	} else {
		e.active = nil
	}
	return nil
}

// StartTour activates the first currently-unseen hint of the role's
// list, recomputed at call time. It no-ops when every hint is seen. An
// explicit request for guidance works even when the device-level toggle
// is off.
func (e *Engine) StartTour() {
	e.mu.Lock()
	defer e.mu.Unlock()

	hints := e.catalog.Hints(e.role)
	for i := range hints {
		if !e.record.SeenHints[hints[i].ID] {
			h := hints[i]
			e.active = &h
			e.mtr.RecordTourStart("manual")
			return
		}
	}
}

// ResetOnboarding clears all seen state and restarts the first-visit
// window, for "replay onboarding" support actions.
func (e *Engine) ResetOnboarding(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == "" {
		return fmt.Errorf("appshell/tour: no active user")
	}
	e.record = appshell.OnboardingRecord{
		SeenHints:  make(map[string]bool),
		FirstVisit: e.clock.Now(),
	}
	e.firstVisit = true
	if err := e.persistRecordLocked(ctx, e.userID); err != nil {
		return err
	}
	if e.aud != nil {
		e.aud.Log(audit.Event{
			Action:  "onboarding_reset",
			UserID:  e.userID,
			Role:    string(e.role),
			Result:  "success",
			Details: "seen hints cleared, first-visit window restarted",
		})
	}
	return nil
}

// Enabled reports the device-level onboarding toggle.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled persists the device-level onboarding toggle. Disabling
// suppresses only the first-visit auto-trigger; StartTour still works.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := "true"
	if !enabled {
		v = "false"
	}
	if err := e.store.Set(ctx, enabledKey, v); err != nil {
		return fmt.Errorf("appshell/tour: persist onboarding toggle: %w", err)
	}
	e.enabled = enabled
	return nil
}

// ActivePosition computes the on-screen tooltip position for the active
// hint. ok=false when no hint is active or its target element is not
// currently present; the hint stays active and will position once the
// element appears.
func (e *Engine) ActivePosition(locate TargetLocator, tooltip Size, viewport Size) (Point, bool) {
	e.mu.Lock()
	h := e.active
	e.mu.Unlock()

	if h == nil {
		return Point{}, false
	}
	target, ok := locate(h.TargetSelector)
	if !ok {
		e.logger.Debug("hint target not present; skipping positioning", "hint", h.ID, "selector", h.TargetSelector)
		return Point{}, false
	}
	return position(target, tooltip, viewport, h.Placement, e.cfg.PlacementGap, e.cfg.ViewportInset), true
}

func (e *Engine) persistRecordLocked(ctx context.Context, userID string) error {
	data, err := json.Marshal(e.record)
	if err != nil {
		return fmt.Errorf("appshell/tour: encode onboarding record: %w", err)
	}
	if err := e.store.Set(ctx, recordKeyPrefix+userID, string(data)); err != nil {
		return fmt.Errorf("appshell/tour: persist onboarding record: %w", err)
	}
	return nil
}
