// Package appshell provides the client-side app shell for a multi-role
// business web application: session bootstrap with escalating timeout
// recovery, per-view access-control gating, and a role-scoped guided
// onboarding tour.
//
// The package defines the shared data model and collaborator interfaces;
// the three engines live in bootstrap/, gate/ and tour/. Concrete
// collaborator implementations are injected via Option functions, making
// the SDK independent of any specific identity provider or store.
//
// Example usage with an in-memory fake (see fake/ for tests):
//
//	client, err := appshell.NewClient(
//	    appshell.DefaultConfig(),
//	    appshell.WithSessionSource(mySource),
//	    appshell.WithHintStore(myStore),
//	    appshell.WithNavigator(myNav),
//	)
package appshell

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the behavior configuration for all three engines. Zero
// fields are filled with defaults by NewClient, except PlacementGap,
// where zero is honored.
type Config struct {
	// LoginPath is the unauthenticated sign-in view.
	LoginPath string `env:"APPSHELL_LOGIN_PATH, default=/login"`

	// PasswordResetPath is the public password-recovery view.
	PasswordResetPath string `env:"APPSHELL_PASSWORD_RESET_PATH, default=/password-reset"`

	// RoleSelectPath is the public post-login role chooser.
	RoleSelectPath string `env:"APPSHELL_ROLE_SELECT_PATH, default=/role-select"`

	// CallbackPath is the external-provider login callback view. Settle
	// deadlines are longer here because third-party OAuth round-trips
	// are legitimately slower.
	CallbackPath string `env:"APPSHELL_CALLBACK_PATH, default=/login-callback"`

	// LandingPath is the default authenticated landing view.
	LandingPath string `env:"APPSHELL_LANDING_PATH, default=/dashboard"`

	// SettleTimeout is how long the bootstrap controller waits for an
	// in-flight session resolution on an ordinary path.
	SettleTimeout time.Duration `env:"APPSHELL_SETTLE_TIMEOUT, default=3s"`

	// CallbackSettleTimeout is the settle deadline on the callback path.
	CallbackSettleTimeout time.Duration `env:"APPSHELL_CALLBACK_SETTLE_TIMEOUT, default=5s"`

	// MaxEscalations is how many elapsed deadlines the controller
	// tolerates before bypassing the unresolved session entirely.
	MaxEscalations int `env:"APPSHELL_MAX_ESCALATIONS, default=3"`

	// FirstVisitWindow is how long after onboarding-record creation a
	// user still counts as a first-time visitor.
	FirstVisitWindow time.Duration `env:"APPSHELL_FIRST_VISIT_WINDOW, default=72h"`

	// PlacementGap is the clearance between a hint tooltip and its
	// target element. Zero is a valid flush layout; only negative
	// values are replaced with the default.
	PlacementGap float64 `env:"APPSHELL_PLACEMENT_GAP, default=12"`

	// ViewportInset is the minimum distance kept between a hint tooltip
	// and every viewport edge.
	ViewportInset float64 `env:"APPSHELL_VIEWPORT_INSET, default=20"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	cfg := Config{PlacementGap: 12}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads configuration from environment variables.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("appshell: load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.PasswordResetPath == "" {
		c.PasswordResetPath = "/password-reset"
	}
	if c.RoleSelectPath == "" {
		c.RoleSelectPath = "/role-select"
	}
	if c.CallbackPath == "" {
		c.CallbackPath = "/login-callback"
	}
	if c.LandingPath == "" {
		c.LandingPath = "/dashboard"
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 3 * time.Second
	}
	if c.CallbackSettleTimeout <= 0 {
		c.CallbackSettleTimeout = 5 * time.Second
	}
	if c.MaxEscalations <= 0 {
		c.MaxEscalations = 3
	}
	if c.FirstVisitWindow <= 0 {
		c.FirstVisitWindow = 72 * time.Hour
	}
	if c.PlacementGap < 0 {
		c.PlacementGap = 12
	}
	if c.ViewportInset <= 0 {
		c.ViewportInset = 20
	}
}

// PublicPaths returns the views reachable without authentication.
func (c Config) PublicPaths() []string {
	return []string{c.LoginPath, c.PasswordResetPath, c.RoleSelectPath, c.CallbackPath}
}

// IsPublicPath reports whether path requires no authentication.
func (c Config) IsPublicPath(path string) bool {
	for _, p := range c.PublicPaths() {
		if p == path {
			return true
		}
	}
	return false
}

// SettleDeadline returns the settle timeout applicable to path.
func (c Config) SettleDeadline(path string) time.Duration {
	if path == c.CallbackPath {
		return c.CallbackSettleTimeout
	}
	return c.SettleTimeout
}

// Client aggregates the collaborators shared by the three engines.
// Collaborator implementations are injected via Option functions.
type Client struct {
	config Config
	logger *slog.Logger
	source SessionSource
	store  HintStore
	nav    Navigator
	clock  Clock
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionSource sets the identity session source implementation.
func WithSessionSource(s SessionSource) Option {
	return func(c *Client) { c.source = s }
}

// WithHintStore sets the durable onboarding store implementation.
func WithHintStore(s HintStore) Option {
	return func(c *Client) { c.store = s }
}

// WithNavigator sets the history navigation implementation.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// WithClock sets the clock used for deadlines and timestamps.
// Defaults to SystemClock.
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// NewClient creates a new app-shell client with the given configuration
// and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.applyDefaults()

	c := &Client{config: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = SystemClock()
	}
	if c.source == nil {
		return nil, fmt.Errorf("appshell: a SessionSource is required")
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the structured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Source returns the session source.
func (c *Client) Source() SessionSource { return c.source }

// Store returns the hint store, or nil if not configured.
func (c *Client) Store() HintStore { return c.store }

// Nav returns the navigator, or nil if not configured.
func (c *Client) Nav() Navigator { return c.nav }

// Clock returns the clock.
func (c *Client) Clock() Clock { return c.clock }
