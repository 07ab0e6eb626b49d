package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the authorization role carried by an authenticated principal.
type Role string

const (
	RoleProfessional Role = "professional"
	RoleSecretary    Role = "secretary"
	RoleAdmin        Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProfessional, RoleSecretary, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. Engines receive it explicitly;
// there is no hidden request-global lookup.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsProfessional reports whether the principal holds the clinical role.
func (p Principal) IsProfessional() bool { return p.Role == RoleProfessional }

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal set by the auth middleware.
// The second return is false when no authenticated principal is present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
