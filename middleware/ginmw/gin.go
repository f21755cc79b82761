// Package ginmw provides Gin HTTP middleware for server-driven views
// guarded by the access gate.
//
// The middleware resolves a session snapshot per request, evaluates the
// route's requirement, and maps the gate decision onto HTTP responses:
// redirects become 302s carrying the original location, denials become
// 403s naming the missing requirement, and a still-resolving session
// becomes a retryable 503.
package ginmw

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appshell "github.com/fleetdesk/appshell-go"
	"github.com/fleetdesk/appshell-go/audit"
	"github.com/fleetdesk/appshell-go/gate"
)

// Context keys for storing app-shell data in gin.Context.
const (
	KeySession  = "appshell_session"
	KeyDecision = "appshell_decision"
)

// RequestID returns middleware that assigns each request an ID for
// audit correlation, honoring an inbound X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Enforce returns middleware that gates the route behind req. The
// session snapshot and gate decision are stored in the context for
// downstream handlers (retrievable via GetSession and GetDecision).
func Enforce(client *appshell.Client, g *gate.Gate, req appshell.RouteRequirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := client.Source().Snapshot(c.Request.Context())
		if err != nil {
			// An unresolved provider is a degradation, not a hard
			// failure; the zero session evaluates to loading below.
			client.Logger().Warn("session snapshot failed", "error", err, "path", c.Request.URL.Path)
		}

		d := g.Evaluate(session, req, c.Request.URL.Path)
		c.Set(KeySession, session)
		c.Set(KeyDecision, d)

		switch d.Outcome {
		case gate.OutcomeLoading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"status": "session_resolving",
			})
		case gate.OutcomeRedirect:
			c.Redirect(http.StatusFound, redirectLocation(d.RedirectTo, d.ReturnTo))
			c.Abort()
		case gate.OutcomeForbidden:
			body := gin.H{"error": "forbidden", "role": string(d.ActualRole)}
			if d.MissingPermission != nil {
				body["missing_permission"] = d.MissingPermission.String()
			}
			if len(d.MissingRoles) > 0 {
				roles := make([]string, len(d.MissingRoles))
				for i, r := range d.MissingRoles {
					roles[i] = string(r)
				}
				body["required_roles"] = roles
			}
			c.AbortWithStatusJSON(http.StatusForbidden, body)
		case gate.OutcomeFallback, gate.OutcomeAllow:
			// Fallback renders the view's degraded variant; the handler
			// inspects the stored decision to choose.
			if session.User != nil {
				ctx := appshell.WithUserID(c.Request.Context(), session.User.ID)
				ctx = appshell.WithRole(ctx, session.ActiveRole)
				c.Request = c.Request.WithContext(appshell.WithSession(ctx, session))
			}
			c.Next()
		}
	}
}

// redirectLocation appends the return location to the redirect target as
// an escaped return_to parameter, respecting a target that already
// carries a query.
func redirectLocation(target, returnTo string) string {
	if returnTo == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + url.Values{"return_to": {returnTo}}.Encode()
}

// --- Context helpers ---

// GetSession returns the session snapshot stored by Enforce.
func GetSession(c *gin.Context) appshell.Session {
	v, _ := c.Get(KeySession)
	s, _ := v.(appshell.Session)
	return s
}

// GetDecision returns the gate decision stored by Enforce.
func GetDecision(c *gin.Context) gate.Decision {
	v, _ := c.Get(KeyDecision)
	d, _ := v.(gate.Decision)
	return d
}
