package auth

import "github.com/golang-jwt/jwt/v5"

// Claims carry an operator's identity for the preview and cache API.
// TenantID scopes every request; only super_admin may act on a tenant other
// than its own. A non-empty Domains list narrows the token further to those
// switch domains.
type Claims struct {
	jwt.RegisteredClaims

	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Role     string   `json:"role"`
	Domains  []string `json:"domains,omitempty"`
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, TenantID: c.TenantID, Role: c.Role, Domains: c.Domains}
}
