// Package fake provides in-memory implementations of all appshell
// collaborator interfaces for testing.
//
// Use fake.NewClient() in unit tests to avoid real timers, storage and
// navigation. The returned World exposes the individual fakes so tests
// can script session changes, advance time and inspect navigation.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	appshell "github.com/fleetdesk/appshell-go"
)

// World bundles the fakes backing a client built by NewClient.
type World struct {
	Source *Source
	Store  *Store
	Clock  *Clock
	Nav    *Navigator
}

// Option configures the initial fake state.
type Option func(*World)

// WithUser seeds an authenticated, initialized, settled session.
func WithUser(id, email string, role appshell.Role) Option {
	return func(w *World) {
		w.Source.Set(appshell.Session{
			User:        &appshell.User{ID: id, Email: email, Name: email},
			ActiveRole:  role,
			Initialized: true,
		})
	}
}

// WithPermissions grants permissions to the seeded session.
func WithPermissions(perms ...appshell.Permission) Option {
	return func(w *World) {
		s := w.Source.Snapshot0()
		s.Permissions = append(s.Permissions, perms...)
		w.Source.Set(s)
	}
}

// WithStoredValue seeds the hint store.
func WithStoredValue(key, value string) Option {
	return func(w *World) { w.Store.Seed(key, value) }
}

// WithStartTime sets the fake clock's initial time.
func WithStartTime(t time.Time) Option {
	return func(w *World) { w.Clock.now = t }
}

// NewClient creates an *appshell.Client with all collaborators wired to
// in-memory fakes, plus the World to drive them from tests.
func NewClient(opts ...Option) (*appshell.Client, *World) {
	w := &World{
		Source: NewSource(),
		Store:  NewStore(),
		Clock:  NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		Nav:    NewNavigator(),
	}
	for _, o := range opts {
		o(w)
	}

	c, err := appshell.NewClient(
		appshell.DefaultConfig(),
		appshell.WithSessionSource(w.Source),
		appshell.WithHintStore(w.Store),
		appshell.WithNavigator(w.Nav),
		appshell.WithClock(w.Clock),
	)
	if err != nil {
		panic(err)
	}
	return c, w
}

// --- SessionSource ---

// Source is a scriptable in-memory SessionSource.
type Source struct {
	mu      sync.Mutex
	session appshell.Session
	err     error
}

var _ appshell.SessionSource = (*Source)(nil)

// NewSource creates an empty, uninitialized source.
func NewSource() *Source { return &Source{} }

// Set replaces the current session snapshot.
func (s *Source) Set(sess appshell.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// Fail makes Snapshot return err (nil restores normal operation).
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Snapshot returns the scripted session.
func (s *Source) Snapshot(_ context.Context) (appshell.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return appshell.Session{}, s.err
	}
	return s.session, nil
}

// Snapshot0 returns the scripted session without a context or error,
// for option plumbing.
func (s *Source) Snapshot0() appshell.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// --- HintStore ---

// Store is an in-memory HintStore.
type Store struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	setOps int
}

var _ appshell.HintStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Seed stores a value without counting as a Set operation.
func (s *Store) Seed(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// FailGets makes Get return err (nil restores normal operation).
func (s *Store) FailGets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// FailSets makes Set return err (nil restores normal operation).
func (s *Store) FailSets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

// Value returns the stored value for key.
func (s *Store) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// SetCount returns how many Set operations succeeded.
func (s *Store) SetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOps
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.setOps++
	return nil
}

// --- Navigator ---

// Navigator records history replacements.
type Navigator struct {
	mu       sync.Mutex
	replaced []string
}

var _ appshell.Navigator = (*Navigator)(nil)

// NewNavigator creates an empty navigator.
func NewNavigator() *Navigator { return &Navigator{} }

func (n *Navigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = append(n.replaced, path)
}

// Replaced returns every path passed to Replace, in order.
func (n *Navigator) Replaced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

// Last returns the most recent replacement, or "".
func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.replaced) == 0 {
		return ""
	}
	return n.replaced[len(n.replaced)-1]
}

// --- Clock ---

// Clock is a manually advanced Clock for deterministic deadline tests.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	nextID int
}

var _ appshell.Clock = (*Clock)(nil)

type fakeTimer struct {
	clock    *Clock
	id       int
	deadline time.Time
	fn       func()
	stopped  bool
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) appshell.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{clock: c, id: c.nextID, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run outside the clock lock so they may arm new timers,
// which fire too if they fall within the same advance.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// nextDue pops the earliest unstopped timer due at or before target,
// advancing the clock to its deadline.
func (c *Clock) nextDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	due := make([]*fakeTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	t := due[0]
	t.stopped = true
	if t.deadline.After(c.now) {
		c.now = t.deadline
	}
	return t
}
