package store

import (
	"context"
	"errors"

	"pbx-control/internal/pbx"
)

// ErrMalformed marks a stored record whose structured columns cannot be
// decoded. Callers treat such a record as unresolved rather than as a
// storage failure; list queries skip it.
var ErrMalformed = errors.New("malformed record")

// Reader is the read path into tenant configuration used by the routing
// compiler. The configuration itself is owned and written elsewhere.
//
// Absence is not an error: lookups return (nil, nil) when nothing matches and
// a non-nil error only for storage failures. Every lookup except the domain
// resolution is scoped by tenant id.
type Reader interface {
	// FindOperationalTenantByDomain returns the active tenant in trial or active status.
	FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error)

	FindActiveDidByNumber(ctx context.Context, tenantID, number string) (*pbx.Did, error)
	FindActiveExtensionByNumber(ctx context.Context, tenantID, number string) (*pbx.Extension, error)
	ListActiveExtensions(ctx context.Context, tenantID string) ([]pbx.Extension, error)

	// ListActivePreRoutingPolicies returns active policies not referenced by any
	// DID of the tenant, ordered by ascending priority.
	ListActivePreRoutingPolicies(ctx context.Context, tenantID string) ([]pbx.CallRoutingPolicy, error)

	GetExtension(ctx context.Context, tenantID, id string) (*pbx.Extension, error)
	GetRingGroup(ctx context.Context, tenantID, id string) (*pbx.RingGroup, error)
	GetIvr(ctx context.Context, tenantID, id string) (*pbx.Ivr, error)
	GetTimeCondition(ctx context.Context, tenantID, id string) (*pbx.TimeCondition, error)
	GetCallRoutingPolicy(ctx context.Context, tenantID, id string) (*pbx.CallRoutingPolicy, error)
	GetCallFlow(ctx context.Context, tenantID, id string) (*pbx.CallFlow, error)
}
