package appshell

import "context"

type ctxKey string

const (
	ctxKeyUserID  ctxKey = "appshell_user_id"
	ctxKeyRole    ctxKey = "appshell_role"
	ctxKeySession ctxKey = "appshell_session"
)

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

// WithRole stores the active role in the context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// RoleFromContext extracts the active role from the context.
func RoleFromContext(ctx context.Context) Role {
	v, _ := ctx.Value(ctxKeyRole).(Role)
	return v
}

// WithSession stores the full session snapshot in the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext extracts the session snapshot from the context.
// The second return is false when no snapshot was stored.
func SessionFromContext(ctx context.Context) (Session, bool) {
	v, ok := ctx.Value(ctxKeySession).(Session)
	return v, ok
}
