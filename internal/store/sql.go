package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"pbx-control/internal/pbx"
)

type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore reads tenant configuration through database/sql. Queries are
// written with Postgres placeholders and rebound for SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, log: slog.Default()}
}

// WithLogger sets the logger used to report skipped rows.
func (s *SQLStore) WithLogger(l *slog.Logger) *SQLStore {
	if l != nil {
		s.log = l
	}
	return s
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites Postgres-style $n placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if d == DialectSQLite {
		return placeholderRe.ReplaceAllString(q, "?$1")
	}
	return q
}

func (s *SQLStore) rebind(q string) string { return s.dialect.Rebind(q) }

func (s *SQLStore) FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error) {
	const q = `
SELECT id, domain, status, active, max_concurrent_calls, timezone
FROM tenants
WHERE lower(domain) = lower($1) AND active = TRUE AND status IN ('trial', 'active')
LIMIT 1
`
	var t pbx.Tenant
	err := s.db.QueryRowContext(ctx, s.rebind(q), domain).Scan(
		&t.ID,
		&t.Domain,
		&t.Status,
		&t.Active,
		&t.MaxConcurrentCalls,
		&t.Timezone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant by domain: %w", err)
	}
	return &t, nil
}

func (s *SQLStore) FindActiveDidByNumber(ctx context.Context, tenantID, number string) (*pbx.Did, error) {
	const q = `
SELECT id, tenant_id, number, active, COALESCE(destination_type, ''), COALESCE(destination_id, '')
FROM dids
WHERE tenant_id = $1 AND number = $2 AND active = TRUE
LIMIT 1
`
	var d pbx.Did
	err := s.db.QueryRowContext(ctx, s.rebind(q), tenantID, number).Scan(
		&d.ID,
		&d.TenantID,
		&d.Number,
		&d.Active,
		&d.Destination.Kind,
		&d.Destination.TargetID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find did: %w", err)
	}
	return &d, nil
}

const extensionColumns = `id, tenant_id, number, password,
effective_caller_id_name, effective_caller_id_number,
outbound_caller_id_name, outbound_caller_id_number,
voicemail_enabled, voicemail_pin, active`

type scanner interface {
	Scan(dest ...any) error
}

func scanExtension(row scanner) (pbx.Extension, error) {
	var e pbx.Extension
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Number,
		&e.Password,
		&e.EffectiveCallerIDName,
		&e.EffectiveCallerIDNumber,
		&e.OutboundCallerIDName,
		&e.OutboundCallerIDNumber,
		&e.VoicemailEnabled,
		&e.VoicemailPIN,
		&e.Active,
	)
	return e, err
}

func (s *SQLStore) FindActiveExtensionByNumber(ctx context.Context, tenantID, number string) (*pbx.Extension, error) {
	q := `SELECT ` + extensionColumns + `
FROM extensions
WHERE tenant_id = $1 AND number = $2 AND active = TRUE
LIMIT 1`
	e, err := scanExtension(s.db.QueryRowContext(ctx, s.rebind(q), tenantID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find extension by number: %w", err)
	}
	return &e, nil
}

func (s *SQLStore) ListActiveExtensions(ctx context.Context, tenantID string) ([]pbx.Extension, error) {
	q := `SELECT ` + extensionColumns + `
FROM extensions
WHERE tenant_id = $1 AND active = TRUE
ORDER BY number ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	defer rows.Close()

	out := make([]pbx.Extension, 0)
	for rows.Next() {
		e, err := scanExtension(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extension: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	return out, nil
}

const policyColumns = `p.id, p.tenant_id, p.name, p.priority, p.active, p.conditions,
COALESCE(p.match_type, ''), COALESCE(p.match_id, ''),
COALESCE(p.no_match_type, ''), COALESCE(p.no_match_id, '')`

func scanPolicy(row scanner) (pbx.CallRoutingPolicy, error) {
	var (
		p          pbx.CallRoutingPolicy
		conditions []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Priority,
		&p.Active,
		&conditions,
		&p.Match.Kind,
		&p.Match.TargetID,
		&p.NoMatch.Kind,
		&p.NoMatch.TargetID,
	); err != nil {
		return p, err
	}
	if err := decodeJSON(conditions, &p.Conditions); err != nil {
		return p, fmt.Errorf("%w: policy %s conditions: %w", ErrMalformed, p.ID, err)
	}
	return p, nil
}

func (s *SQLStore) ListActivePreRoutingPolicies(ctx context.Context, tenantID string) ([]pbx.CallRoutingPolicy, error) {
	q := `SELECT ` + policyColumns + `
FROM call_routing_policies p
WHERE p.tenant_id = $1 AND p.active = TRUE
  AND NOT EXISTS (
    SELECT 1 FROM dids d
    WHERE d.tenant_id = p.tenant_id
      AND d.destination_type = 'call_routing_policy'
      AND d.destination_id = CAST(p.id AS TEXT)
  )
ORDER BY p.priority ASC, p.id ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list pre-routing policies: %w", err)
	}
	defer rows.Close()

	out := make([]pbx.CallRoutingPolicy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if errors.Is(err, ErrMalformed) {
			s.log.Warn("skipping undecodable policy", "tenant_id", tenantID, "policy_id", p.ID, "error", err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pre-routing policies: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetExtension(ctx context.Context, tenantID, id string) (*pbx.Extension, error) {
	q := `SELECT ` + extensionColumns + `
FROM extensions
WHERE tenant_id = $1 AND id = $2`
	e, err := scanExtension(s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get extension: %w", err)
	}
	return &e, nil
}

func (s *SQLStore) GetRingGroup(ctx context.Context, tenantID, id string) (*pbx.RingGroup, error) {
	const q = `
SELECT id, tenant_id, name, member_ids, strategy, ring_timeout, active
FROM ring_groups
WHERE tenant_id = $1 AND id = $2
`
	var (
		g       pbx.RingGroup
		members []byte
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id).Scan(
		&g.ID,
		&g.TenantID,
		&g.Name,
		&members,
		&g.Strategy,
		&g.RingTimeout,
		&g.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ring group: %w", err)
	}
	if err := decodeJSON(members, &g.MemberIDs); err != nil {
		return nil, fmt.Errorf("%w: ring group %s members: %w", ErrMalformed, g.ID, err)
	}
	return &g, nil
}

func (s *SQLStore) GetIvr(ctx context.Context, tenantID, id string) (*pbx.Ivr, error) {
	const q = `
SELECT id, tenant_id, name, active
FROM ivrs
WHERE tenant_id = $1 AND id = $2
`
	var v pbx.Ivr
	err := s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id).Scan(&v.ID, &v.TenantID, &v.Name, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ivr: %w", err)
	}
	return &v, nil
}

func (s *SQLStore) GetTimeCondition(ctx context.Context, tenantID, id string) (*pbx.TimeCondition, error) {
	const q = `
SELECT id, tenant_id, name, rules,
  COALESCE(match_type, ''), COALESCE(match_id, ''),
  COALESCE(no_match_type, ''), COALESCE(no_match_id, '')
FROM time_conditions
WHERE tenant_id = $1 AND id = $2
`
	var (
		tc    pbx.TimeCondition
		rules []byte
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id).Scan(
		&tc.ID,
		&tc.TenantID,
		&tc.Name,
		&rules,
		&tc.Match.Kind,
		&tc.Match.TargetID,
		&tc.NoMatch.Kind,
		&tc.NoMatch.TargetID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time condition: %w", err)
	}
	if err := decodeJSON(rules, &tc.Rules); err != nil {
		return nil, fmt.Errorf("%w: time condition %s rules: %w", ErrMalformed, tc.ID, err)
	}
	return &tc, nil
}

func (s *SQLStore) GetCallRoutingPolicy(ctx context.Context, tenantID, id string) (*pbx.CallRoutingPolicy, error) {
	q := `SELECT ` + policyColumns + `
FROM call_routing_policies p
WHERE p.tenant_id = $1 AND p.id = $2`
	p, err := scanPolicy(s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call routing policy: %w", err)
	}
	return &p, nil
}

func (s *SQLStore) GetCallFlow(ctx context.Context, tenantID, id string) (*pbx.CallFlow, error) {
	const q = `
SELECT id, tenant_id, name, nodes
FROM call_flows
WHERE tenant_id = $1 AND id = $2
`
	var (
		f     pbx.CallFlow
		nodes []byte
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), tenantID, id).Scan(&f.ID, &f.TenantID, &f.Name, &nodes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call flow: %w", err)
	}
	if err := decodeJSON(nodes, &f.Nodes); err != nil {
		return nil, fmt.Errorf("%w: call flow %s nodes: %w", ErrMalformed, f.ID, err)
	}
	return &f, nil
}

// decodeJSON tolerates empty columns.
func decodeJSON(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

var _ Reader = (*SQLStore)(nil)
