package rbac

import (
	"context"

	"pbx-control/internal/auth"
)

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner           = "owner"
	RoleAdmin           = "admin"
	RoleAgent           = "agent"
	RoleSuperAdmin      = "super_admin"
	RoleNetworkOperator = "network_operator" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleNetworkOperator }

// CanAccessTenant reports whether a caller scoped to ownTenant may act on target.
func CanAccessTenant(role, ownTenant, target string) bool {
	if IsSuperAdmin(role) {
		return true
	}
	return ownTenant != "" && ownTenant == target
}

// CanAccessDomain reports whether the identity in ctx is scoped to domain.
func CanAccessDomain(ctx context.Context, domain string) bool {
	id, ok := auth.IdentityFrom(ctx)
	return ok && id.CoversDomain(domain)
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleAgent, RoleSuperAdmin, RoleNetworkOperator:
		return true
	}
	return false
}
