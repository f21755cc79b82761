package tour

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	appshell "github.com/fleetdesk/appshell-go"
)

// Catalog holds the immutable, role-scoped hint lists defined at build
// time. Register every role's hints during startup; the catalog is then
// read-only for the life of the engine.
type Catalog struct {
	hints    map[appshell.Role][]appshell.Hint
	validate *validator.Validate
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		hints:    make(map[appshell.Role][]appshell.Hint),
		validate: validator.New(),
	}
}

// Register appends hints to a role's ordered list. Hints are validated
// structurally and IDs must be unique within the role.
func (c *Catalog) Register(role appshell.Role, hints ...appshell.Hint) error {
	seen := make(map[string]bool, len(c.hints[role]))
	for _, h := range c.hints[role] {
		seen[h.ID] = true
	}
	for _, h := range hints {
		if err := c.validate.Struct(h); err != nil {
			return fmt.Errorf("appshell/tour: invalid hint %q for role %s: %w", h.ID, role, err)
		}
		if seen[h.ID] {
			return fmt.Errorf("appshell/tour: duplicate hint id %q for role %s", h.ID, role)
		}
		seen[h.ID] = true
		if h.Placement == "" {
			h.Placement = appshell.PlaceRight
		}
		c.hints[role] = append(c.hints[role], h)
	}
	return nil
}

// Hints returns the ordered hint list for a role. The returned slice
// must not be modified.
func (c *Catalog) Hints(role appshell.Role) []appshell.Hint {
	return c.hints[role]
}

// DefaultCatalog returns the stock FleetDesk hint catalog, one short
// tour per role covering the screens that role lands on first.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(c.Register(appshell.RoleAdmin,
		appshell.Hint{ID: "admin-users", TargetSelector: "#nav-users", Title: "Manage users", Description: "Invite teammates and assign their roles here.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "admin-roles", TargetSelector: "#nav-roles", Title: "Role permissions", Description: "Fine-tune what each role can see and do.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "admin-settings", TargetSelector: "#nav-settings", Title: "Company settings", Description: "Branding, billing and integrations live here.", Placement: appshell.PlaceRight},
	))
	must(c.Register(appshell.RoleOperations,
		appshell.Hint{ID: "ops-jobs", TargetSelector: "#nav-jobs", Title: "Job board", Description: "Every active job, filterable by status and date.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "ops-carriers", TargetSelector: "#nav-carriers", Title: "Carriers", Description: "Assign carriers and track their availability.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "ops-fleet", TargetSelector: "#nav-fleet", Title: "Fleet overview", Description: "Vehicle status, maintenance and utilization.", Placement: appshell.PlaceRight},
	))
	must(c.Register(appshell.RoleAccounts,
		appshell.Hint{ID: "accounts-invoices", TargetSelector: "#nav-invoices", Title: "Invoices", Description: "Raise, send and reconcile invoices.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "accounts-payments", TargetSelector: "#nav-payments", Title: "Payments", Description: "Incoming payments are matched automatically.", Placement: appshell.PlaceRight},
	))
	must(c.Register(appshell.RoleSales,
		appshell.Hint{ID: "sales-leads", TargetSelector: "#nav-leads", Title: "Leads", Description: "New enquiries arrive here.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "sales-quotes", TargetSelector: "#nav-quotes", Title: "Quotes", Description: "Draft and send quotes in a couple of clicks.", Placement: appshell.PlaceRight},
	))
	must(c.Register(appshell.RoleDriver,
		appshell.Hint{ID: "driver-routes", TargetSelector: "#nav-routes", Title: "Your routes", Description: "Today's stops in driving order.", Placement: appshell.PlaceBottom},
		appshell.Hint{ID: "driver-pod", TargetSelector: "#btn-pod", Title: "Proof of delivery", Description: "Capture signatures and photos on handover.", Placement: appshell.PlaceTop},
	))
	must(c.Register(appshell.RoleCustomer,
		appshell.Hint{ID: "customer-orders", TargetSelector: "#nav-orders", Title: "Your orders", Description: "Track every order from booking to delivery.", Placement: appshell.PlaceRight},
		appshell.Hint{ID: "customer-tracking", TargetSelector: "#nav-tracking", Title: "Live tracking", Description: "Follow your delivery on the map.", Placement: appshell.PlaceRight},
	))
	return c
}
