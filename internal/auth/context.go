package auth

import (
	"context"
	"errors"
	"strings"
)

// Identity is the verified operator behind a request.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
	// Domains limits which switch domains the operator may inspect or flush.
	// Empty means every domain of the tenant.
	Domains []string
}

// CoversDomain reports whether the identity's domain scope includes domain.
func (id Identity) CoversDomain(domain string) bool {
	if len(id.Domains) == 0 {
		return true
	}
	for _, d := range id.Domains {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", errors.New("user_id not in context")
}

func TenantID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.TenantID != "" {
		return id.TenantID, nil
	}
	return "", errors.New("tenant_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", errors.New("role not in context")
}
