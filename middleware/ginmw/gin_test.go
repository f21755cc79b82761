package ginmw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	appshell "github.com/fleetdesk/appshell-go"
	"github.com/fleetdesk/appshell-go/audit"
	"github.com/fleetdesk/appshell-go/fake"
	"github.com/fleetdesk/appshell-go/gate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, client *appshell.Client, req appshell.RouteRequirement, path string) *httptest.ResponseRecorder {
	t.Helper()
	g := gate.New(client)

	r := gin.New()
	r.GET(path, Enforce(client, g, req), func(c *gin.Context) {
		d := GetDecision(c)
		c.JSON(http.StatusOK, gin.H{
			"outcome": d.Outcome.String(),
			"user":    appshell.UserIDFromContext(c.Request.Context()),
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestEnforceAllow(t *testing.T) {
	client, _ := fake.NewClient(
		fake.WithUser("u1", "ops@fleetdesk.test", appshell.RoleOperations),
		fake.WithPermissions(appshell.Permission{Resource: "jobs", Action: "view"}),
	)

	req := appshell.RouteRequirement{
		RequiredPermission: &appshell.Permission{Resource: "jobs", Action: "view"},
	}
	w := serve(t, client, req, "/jobs")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["user"] != "u1" {
		t.Errorf("expected user context u1, got %v", body["user"])
	}
}

func TestEnforceForbidden(t *testing.T) {
	client, _ := fake.NewClient(
		fake.WithUser("u1", "ops@fleetdesk.test", appshell.RoleOperations),
	)

	req := appshell.RouteRequirement{
		RequiredPermission: &appshell.Permission{Resource: "finance", Action: "view"},
	}
	w := serve(t, client, req, "/finance")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["missing_permission"] != "finance:view" {
		t.Errorf("expected missing_permission finance:view, got %v", body["missing_permission"])
	}
	if body["role"] != "operations" {
		t.Errorf("expected actual role in body, got %v", body["role"])
	}
}

func TestEnforceRedirect(t *testing.T) {
	client, w0 := fake.NewClient()
	w0.Source.Set(appshell.Session{Initialized: true})

	w := serve(t, client, appshell.RouteRequirement{}, "/jobs")

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("redirect location not a valid URL: %v", err)
	}
	if loc.Path != "/login" {
		t.Errorf("expected redirect to /login, got %q", loc.Path)
	}
	if got := loc.Query().Get("return_to"); got != "/jobs" {
		t.Errorf("expected return location /jobs, got %q", got)
	}
}

func TestRedirectLocationEscaping(t *testing.T) {
	// A return path with query metacharacters must survive a round trip.
	loc, err := url.Parse(redirectLocation("/login", "/jobs?page=2&tab=late shipments"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := loc.Query().Get("return_to"); got != "/jobs?page=2&tab=late shipments" {
		t.Errorf("return location corrupted: %q", got)
	}

	// A target already carrying a query gains a &, not a second ?.
	loc, err = url.Parse(redirectLocation("/login?tenant=acme", "/jobs"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Count(loc.String(), "?") != 1 {
		t.Errorf("expected single query separator, got %q", loc.String())
	}
	if loc.Query().Get("tenant") != "acme" || loc.Query().Get("return_to") != "/jobs" {
		t.Errorf("query parameters lost: %q", loc.String())
	}

	if got := redirectLocation("/login", ""); got != "/login" {
		t.Errorf("empty return location should add nothing, got %q", got)
	}
}

func TestEnforceLoading(t *testing.T) {
	client, _ := fake.NewClient() // uninitialized source

	w := serve(t, client, appshell.RouteRequirement{}, "/jobs")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestEnforceFallbackRunsHandler(t *testing.T) {
	client, _ := fake.NewClient(
		fake.WithUser("u1", "ops@fleetdesk.test", appshell.RoleOperations),
	)

	req := appshell.RouteRequirement{
		RequiredPermission: &appshell.Permission{Resource: "finance", Action: "view"},
		HasFallback:        true,
	}
	w := serve(t, client, req, "/finance")

	if w.Code != http.StatusOK {
		t.Fatalf("fallback should reach the handler, got %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["outcome"] != "fallback" {
		t.Errorf("handler should see the fallback decision, got %v", body["outcome"])
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = audit.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("request ID not stored in context")
	}
	if w.Header().Get("X-Request-ID") != seen {
		t.Error("request ID not echoed in response header")
	}

	// Inbound IDs are honored.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "req-abc" {
		t.Errorf("expected inbound request ID, got %q", seen)
	}
}
