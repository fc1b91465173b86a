package store

import (
	"context"
	"database/sql"
	"fmt"

	"pbx-control/pkg/utils"
)

// Schema is the read model the SQL store expects. Identifiers are TEXT and
// structured columns (members, rules, conditions, nodes) hold JSON documents.
// The DDL is portable between Postgres and SQLite.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	domain TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	max_concurrent_calls INTEGER NOT NULL DEFAULT 0,
	timezone TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS extensions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	number TEXT NOT NULL,
	password TEXT NOT NULL DEFAULT '',
	effective_caller_id_name TEXT NOT NULL DEFAULT '',
	effective_caller_id_number TEXT NOT NULL DEFAULT '',
	outbound_caller_id_name TEXT NOT NULL DEFAULT '',
	outbound_caller_id_number TEXT NOT NULL DEFAULT '',
	voicemail_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	voicemail_pin TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (tenant_id, number)
)`,
	`CREATE TABLE IF NOT EXISTS dids (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	number TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	destination_type TEXT,
	destination_id TEXT,
	UNIQUE (tenant_id, number)
)`,
	`CREATE TABLE IF NOT EXISTS ring_groups (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL DEFAULT '',
	member_ids TEXT NOT NULL DEFAULT '[]',
	strategy TEXT NOT NULL DEFAULT 'simultaneous',
	ring_timeout INTEGER NOT NULL DEFAULT 30,
	active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS ivrs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS time_conditions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL DEFAULT '',
	rules TEXT NOT NULL DEFAULT '[]',
	match_type TEXT,
	match_id TEXT,
	no_match_type TEXT,
	no_match_id TEXT
)`,
	`CREATE TABLE IF NOT EXISTS call_routing_policies (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	conditions TEXT NOT NULL DEFAULT '[]',
	match_type TEXT,
	match_id TEXT,
	no_match_type TEXT,
	no_match_id TEXT
)`,
	`CREATE TABLE IF NOT EXISTS call_flows (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL DEFAULT '',
	nodes TEXT NOT NULL DEFAULT '[]'
)`,
}

// EnsureSchema creates any missing tables. Used for local SQLite databases;
// Postgres deployments run their own migrations.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range Schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
