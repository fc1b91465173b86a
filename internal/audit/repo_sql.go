package audit

import (
	"context"
	"database/sql"
	"fmt"

	"pbx-control/internal/store"
)

const eventsTable = `CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	actor_user_id TEXT NOT NULL DEFAULT '',
	actor_role TEXT NOT NULL DEFAULT '',
	actor_tenant_id TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`

// SQLRepo appends events to the audit_events table. It issues INSERTs only.
type SQLRepo struct {
	db      *sql.DB
	dialect store.Dialect
}

func NewSQLRepo(db *sql.DB, dialect store.Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

// EnsureTable creates audit_events when missing.
func (r *SQLRepo) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("ensure audit table: %w", err)
	}
	return nil
}

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO audit_events
			(id, tenant_id, domain, type, actor_user_id, actor_role, actor_tenant_id, ip_address, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
		e.ID, e.TenantID, e.Domain, string(e.Type), e.ActorUserID, e.ActorRole, e.ActorTenantID, e.IPAddress, e.Message, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
