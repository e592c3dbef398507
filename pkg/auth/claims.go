package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the authenticated caller the order engine trusts. It is
// produced at the HTTP boundary and never re-derived inside services.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     string
}

// IsAdmin reports whether the identity may override ownership checks.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Roles recognized in access tokens.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into the trusted caller identity.
func (c *AccessTokenClaims) Identity() Identity {
	return Identity{
		UserID:   c.UserID,
		TenantID: c.TenantID,
		Role:     c.Role,
	}
}
