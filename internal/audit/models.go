package audit

import "time"

// Event is an immutable, append-only record of a privileged operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - Every event names the tenant it concerns, by id or by domain.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
//
// The switch callback is never audited; it is high volume and carries no operator identity.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id,omitempty" db:"tenant_id"`
	Domain   string `json:"domain,omitempty" db:"domain"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	// ActorRole may include hidden roles.
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`
	// ActorTenantID differs from TenantID when super_admin acts across tenants.
	ActorTenantID string `json:"actor_tenant_id,omitempty" db:"actor_tenant_id"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypePreview           EventType = "document_previewed"
	EventTypeCacheInvalidation EventType = "tenant_cache_invalidated"
)

// Actor identifies who performed an action.
type Actor struct {
	UserID   string
	Role     string
	TenantID string
	IP       string
}
