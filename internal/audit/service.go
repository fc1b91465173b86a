package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" && e.Domain == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogPreview records an operator reading a compiled document.
func (s *Service) LogPreview(ctx context.Context, actor Actor, tenantID, domain, section string) error {
	return s.Append(ctx, Event{
		TenantID:      tenantID,
		Domain:        domain,
		Type:          EventTypePreview,
		ActorUserID:   actor.UserID,
		ActorRole:     actor.Role,
		ActorTenantID: actor.TenantID,
		IPAddress:     actor.IP,
		Message:       section + " previewed",
	})
}

// LogCacheInvalidation records a tenant cache flush.
func (s *Service) LogCacheInvalidation(ctx context.Context, actor Actor, domain string) error {
	return s.Append(ctx, Event{
		Domain:        domain,
		Type:          EventTypeCacheInvalidation,
		ActorUserID:   actor.UserID,
		ActorRole:     actor.Role,
		ActorTenantID: actor.TenantID,
		IPAddress:     actor.IP,
		Message:       "tenant cache invalidated",
	})
}
