package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbx-control/internal/pbx"
)

type fixture struct {
	Tenants        []pbx.Tenant
	Extensions     []pbx.Extension
	Dids           []pbx.Did
	RingGroups     []pbx.RingGroup
	Ivrs           []pbx.Ivr
	TimeConditions []pbx.TimeCondition
	Policies       []pbx.CallRoutingPolicy
	CallFlows      []pbx.CallFlow
}

func testFixture() fixture {
	return fixture{
		Tenants: []pbx.Tenant{
			{ID: "t1", Domain: "acme.example.com", Status: pbx.TenantStatusActive, Active: true, MaxConcurrentCalls: 10, Timezone: "America/New_York"},
			{ID: "t2", Domain: "globex.example.com", Status: pbx.TenantStatusTrial, Active: true},
			{ID: "t3", Domain: "suspended.example.com", Status: pbx.TenantStatusSuspended, Active: true},
			{ID: "t4", Domain: "disabled.example.com", Status: pbx.TenantStatusActive, Active: false},
		},
		Extensions: []pbx.Extension{
			{ID: "e1", TenantID: "t1", Number: "1001", Password: "s3cret", EffectiveCallerIDName: "Alice", VoicemailEnabled: true, VoicemailPIN: "4321", Active: true},
			{ID: "e2", TenantID: "t1", Number: "1002", Password: "x", Active: false},
			{ID: "e3", TenantID: "t2", Number: "1001", Password: "y", Active: true},
			{ID: "e4", TenantID: "t1", Number: "1000", Password: "z", Active: true},
		},
		Dids: []pbx.Did{
			{ID: "d1", TenantID: "t1", Number: "+15550001", Active: true, Destination: pbx.Destination{Kind: pbx.DestinationExtension, TargetID: "e1"}},
			{ID: "d2", TenantID: "t1", Number: "+15550002", Active: true, Destination: pbx.Destination{Kind: pbx.DestinationCallRoutingPolicy, TargetID: "p2"}},
			{ID: "d3", TenantID: "t1", Number: "+15550003", Active: false, Destination: pbx.Destination{Kind: pbx.DestinationExtension, TargetID: "e1"}},
			{ID: "d4", TenantID: "t1", Number: "+15550004", Active: true},
		},
		RingGroups: []pbx.RingGroup{
			{ID: "rg1", TenantID: "t1", Name: "sales", MemberIDs: []string{"e1", "e4"}, Strategy: pbx.RingStrategySequential, RingTimeout: 20, Active: true},
		},
		Ivrs: []pbx.Ivr{
			{ID: "iv1", TenantID: "t1", Name: "main_menu", Active: true},
		},
		TimeConditions: []pbx.TimeCondition{
			{
				ID: "tc1", TenantID: "t1", Name: "business hours",
				Rules:   []pbx.TimeRule{{Weekdays: "2-6", TimeFrom: "09:00", TimeTo: "17:00"}},
				Match:   pbx.Destination{Kind: pbx.DestinationExtension, TargetID: "e1"},
				NoMatch: pbx.Destination{Kind: pbx.DestinationVoicemail, TargetID: "e1"},
			},
		},
		Policies: []pbx.CallRoutingPolicy{
			{
				ID: "p1", TenantID: "t1", Name: "block spam", Priority: 20, Active: true,
				Conditions: []pbx.Condition{{Type: pbx.ConditionBlacklist, Params: pbx.ConditionParams{Numbers: []string{"+15551234567"}}}},
			},
			{ID: "p2", TenantID: "t1", Name: "did bound", Priority: 5, Active: true},
			{
				ID: "p3", TenantID: "t1", Name: "weekdays", Priority: 10, Active: true,
				Conditions: []pbx.Condition{{Type: pbx.ConditionDayOfWeek, Params: pbx.ConditionParams{Days: []string{"mon", "tue"}}}},
				Match:      pbx.Destination{Kind: pbx.DestinationRingGroup, TargetID: "rg1"},
			},
			{ID: "p4", TenantID: "t1", Name: "disabled", Priority: 1, Active: false},
			{ID: "p5", TenantID: "t2", Name: "other tenant", Priority: 1, Active: true},
		},
		CallFlows: []pbx.CallFlow{
			{
				ID: "cf1", TenantID: "t1", Name: "welcome",
				Nodes: []pbx.Node{
					{ID: "start", Type: pbx.NodePlayPrompt, Data: map[string]string{"file": "welcome.wav"}, Next: "b"},
					{ID: "b", Type: pbx.NodeBridge, Data: map[string]string{"destination_type": "extension", "destination_id": "e1"}},
				},
			},
		},
	}
}

func (f fixture) memory() *MemoryStore {
	return &MemoryStore{
		Tenants:        f.Tenants,
		Extensions:     f.Extensions,
		Dids:           f.Dids,
		RingGroups:     f.RingGroups,
		Ivrs:           f.Ivrs,
		TimeConditions: f.TimeConditions,
		Policies:       f.Policies,
		CallFlows:      f.CallFlows,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// seed writes the fixture using SQLite placeholders.
func (f fixture) seed(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	exec := func(q string, args ...any) {
		t.Helper()
		_, err := db.ExecContext(ctx, q, args...)
		require.NoError(t, err)
	}

	for _, x := range f.Tenants {
		exec(`INSERT INTO tenants (id, domain, status, active, max_concurrent_calls, timezone) VALUES (?, ?, ?, ?, ?, ?)`,
			x.ID, x.Domain, string(x.Status), x.Active, x.MaxConcurrentCalls, x.Timezone)
	}
	for _, x := range f.Extensions {
		exec(`INSERT INTO extensions (id, tenant_id, number, password, effective_caller_id_name, effective_caller_id_number,
outbound_caller_id_name, outbound_caller_id_number, voicemail_enabled, voicemail_pin, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			x.ID, x.TenantID, x.Number, x.Password, x.EffectiveCallerIDName, x.EffectiveCallerIDNumber,
			x.OutboundCallerIDName, x.OutboundCallerIDNumber, x.VoicemailEnabled, x.VoicemailPIN, x.Active)
	}
	for _, x := range f.Dids {
		exec(`INSERT INTO dids (id, tenant_id, number, active, destination_type, destination_id) VALUES (?, ?, ?, ?, ?, ?)`,
			x.ID, x.TenantID, x.Number, x.Active, nullable(string(x.Destination.Kind)), nullable(x.Destination.TargetID))
	}
	for _, x := range f.RingGroups {
		exec(`INSERT INTO ring_groups (id, tenant_id, name, member_ids, strategy, ring_timeout, active) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			x.ID, x.TenantID, x.Name, mustJSON(t, x.MemberIDs), string(x.Strategy), x.RingTimeout, x.Active)
	}
	for _, x := range f.Ivrs {
		exec(`INSERT INTO ivrs (id, tenant_id, name, active) VALUES (?, ?, ?, ?)`, x.ID, x.TenantID, x.Name, x.Active)
	}
	for _, x := range f.TimeConditions {
		exec(`INSERT INTO time_conditions (id, tenant_id, name, rules, match_type, match_id, no_match_type, no_match_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			x.ID, x.TenantID, x.Name, mustJSON(t, x.Rules),
			nullable(string(x.Match.Kind)), nullable(x.Match.TargetID),
			nullable(string(x.NoMatch.Kind)), nullable(x.NoMatch.TargetID))
	}
	for _, x := range f.Policies {
		exec(`INSERT INTO call_routing_policies (id, tenant_id, name, priority, active, conditions, match_type, match_id, no_match_type, no_match_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			x.ID, x.TenantID, x.Name, x.Priority, x.Active, mustJSON(t, x.Conditions),
			nullable(string(x.Match.Kind)), nullable(x.Match.TargetID),
			nullable(string(x.NoMatch.Kind)), nullable(x.NoMatch.TargetID))
	}
	for _, x := range f.CallFlows {
		exec(`INSERT INTO call_flows (id, tenant_id, name, nodes) VALUES (?, ?, ?, ?)`, x.ID, x.TenantID, x.Name, mustJSON(t, x.Nodes))
	}
}

// checkReader runs the same expectations against any Reader implementation.
func checkReader(t *testing.T, r Reader) {
	t.Helper()
	ctx := context.Background()
	f := testFixture()

	t.Run("tenant by domain", func(t *testing.T) {
		tn, err := r.FindOperationalTenantByDomain(ctx, "ACME.example.com")
		require.NoError(t, err)
		require.NotNil(t, tn)
		assert.Equal(t, f.Tenants[0], *tn)

		for _, d := range []string{"suspended.example.com", "disabled.example.com", "nobody.example.com"} {
			tn, err := r.FindOperationalTenantByDomain(ctx, d)
			require.NoError(t, err)
			assert.Nil(t, tn, d)
		}
	})

	t.Run("did by number", func(t *testing.T) {
		d, err := r.FindActiveDidByNumber(ctx, "t1", "+15550001")
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, pbx.Destination{Kind: pbx.DestinationExtension, TargetID: "e1"}, d.Destination)

		d, err = r.FindActiveDidByNumber(ctx, "t1", "+15550004")
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.False(t, d.Destination.IsSet())

		d, err = r.FindActiveDidByNumber(ctx, "t2", "+15550001")
		require.NoError(t, err)
		assert.Nil(t, d)

		d, err = r.FindActiveDidByNumber(ctx, "t1", "+15550003")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("extension by number", func(t *testing.T) {
		e, err := r.FindActiveExtensionByNumber(ctx, "t1", "1001")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, f.Extensions[0], *e)

		e, err = r.FindActiveExtensionByNumber(ctx, "t1", "1002")
		require.NoError(t, err)
		assert.Nil(t, e)

		e, err = r.FindActiveExtensionByNumber(ctx, "t2", "1001")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "e3", e.ID)
	})

	t.Run("active extensions", func(t *testing.T) {
		list, err := r.ListActiveExtensions(ctx, "t1")
		require.NoError(t, err)
		var numbers []string
		for _, e := range list {
			numbers = append(numbers, e.Number)
		}
		assert.Equal(t, []string{"1000", "1001"}, numbers)

		list, err = r.ListActiveExtensions(ctx, "t9")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("pre-routing policies", func(t *testing.T) {
		list, err := r.ListActivePreRoutingPolicies(ctx, "t1")
		require.NoError(t, err)
		var ids []string
		for _, p := range list {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"p3", "p1"}, ids)
		assert.Equal(t, f.Policies[2].Conditions, list[0].Conditions)
		assert.Equal(t, f.Policies[2].Match, list[0].Match)
	})

	t.Run("scoped getters", func(t *testing.T) {
		e, err := r.GetExtension(ctx, "t1", "e2")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.False(t, e.Active)

		e, err = r.GetExtension(ctx, "t2", "e1")
		require.NoError(t, err)
		assert.Nil(t, e)

		g, err := r.GetRingGroup(ctx, "t1", "rg1")
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Equal(t, f.RingGroups[0], *g)

		v, err := r.GetIvr(ctx, "t1", "iv1")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "main_menu", v.Name)

		tc, err := r.GetTimeCondition(ctx, "t1", "tc1")
		require.NoError(t, err)
		require.NotNil(t, tc)
		assert.Equal(t, f.TimeConditions[0], *tc)

		p, err := r.GetCallRoutingPolicy(ctx, "t1", "p1")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, f.Policies[0], *p)

		p, err = r.GetCallRoutingPolicy(ctx, "t2", "p1")
		require.NoError(t, err)
		assert.Nil(t, p)

		cf, err := r.GetCallFlow(ctx, "t1", "cf1")
		require.NoError(t, err)
		require.NotNil(t, cf)
		assert.Equal(t, f.CallFlows[0], *cf)

		cf, err = r.GetCallFlow(ctx, "t1", "missing")
		require.NoError(t, err)
		assert.Nil(t, cf)
	})
}
