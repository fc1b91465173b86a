package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"pbx-control/internal/pbx"
)

// MemoryStore is an in-memory Reader for tests and local development.
// It enforces tenant isolation on every scoped read.
type MemoryStore struct {
	mu sync.RWMutex

	Tenants        []pbx.Tenant
	Extensions     []pbx.Extension
	Dids           []pbx.Did
	RingGroups     []pbx.RingGroup
	Ivrs           []pbx.Ivr
	TimeConditions []pbx.TimeCondition
	Policies       []pbx.CallRoutingPolicy
	CallFlows      []pbx.CallFlow
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.Tenants {
		if strings.EqualFold(t.Domain, domain) && t.Active && t.IsOperational() {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindActiveDidByNumber(ctx context.Context, tenantID, number string) (*pbx.Did, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.Dids {
		if d.TenantID == tenantID && d.Number == number && d.Active {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindActiveExtensionByNumber(ctx context.Context, tenantID, number string) (*pbx.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.Extensions {
		if e.TenantID == tenantID && e.Number == number && e.Active {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListActiveExtensions(ctx context.Context, tenantID string) ([]pbx.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pbx.Extension, 0)
	for _, e := range m.Extensions {
		if e.TenantID == tenantID && e.Active {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryStore) ListActivePreRoutingPolicies(ctx context.Context, tenantID string) ([]pbx.CallRoutingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	referenced := make(map[string]struct{})
	for _, d := range m.Dids {
		if d.TenantID == tenantID && d.Destination.Kind == pbx.DestinationCallRoutingPolicy {
			referenced[d.Destination.TargetID] = struct{}{}
		}
	}

	out := make([]pbx.CallRoutingPolicy, 0)
	for _, p := range m.Policies {
		if p.TenantID != tenantID || !p.Active {
			continue
		}
		if _, ok := referenced[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetExtension(ctx context.Context, tenantID, id string) (*pbx.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.Extensions, tenantID, id, func(e pbx.Extension) (string, string) { return e.TenantID, e.ID }), nil
}

func (m *MemoryStore) GetRingGroup(ctx context.Context, tenantID, id string) (*pbx.RingGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.RingGroups, tenantID, id, func(g pbx.RingGroup) (string, string) { return g.TenantID, g.ID }), nil
}

func (m *MemoryStore) GetIvr(ctx context.Context, tenantID, id string) (*pbx.Ivr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.Ivrs, tenantID, id, func(v pbx.Ivr) (string, string) { return v.TenantID, v.ID }), nil
}

func (m *MemoryStore) GetTimeCondition(ctx context.Context, tenantID, id string) (*pbx.TimeCondition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.TimeConditions, tenantID, id, func(tc pbx.TimeCondition) (string, string) { return tc.TenantID, tc.ID }), nil
}

func (m *MemoryStore) GetCallRoutingPolicy(ctx context.Context, tenantID, id string) (*pbx.CallRoutingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.Policies, tenantID, id, func(p pbx.CallRoutingPolicy) (string, string) { return p.TenantID, p.ID }), nil
}

func (m *MemoryStore) GetCallFlow(ctx context.Context, tenantID, id string) (*pbx.CallFlow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findScoped(m.CallFlows, tenantID, id, func(f pbx.CallFlow) (string, string) { return f.TenantID, f.ID }), nil
}

func findScoped[T any](items []T, tenantID, id string, key func(T) (string, string)) *T {
	for _, it := range items {
		tid, iid := key(it)
		if tid == tenantID && iid == id {
			out := it
			return &out
		}
	}
	return nil
}

var _ Reader = (*MemoryStore)(nil)
