package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/pbx"
	"pbx-control/internal/store"
)

// Monday 2024-01-01 10:30 UTC.
var fixedNow = time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

const acmeDomain = "acme.example.com"

func acmeTenant() pbx.Tenant {
	return pbx.Tenant{ID: "t1", Domain: acmeDomain, Status: pbx.TenantStatusActive, Active: true}
}

func globexTenant() pbx.Tenant {
	return pbx.Tenant{ID: "t2", Domain: "globex.example.com", Status: pbx.TenantStatusActive, Active: true}
}

func ext(id, tenantID, number string) pbx.Extension {
	return pbx.Extension{ID: id, TenantID: tenantID, Number: number, Password: "pw-" + number, Active: true}
}

func dest(kind pbx.DestinationKind, id string) pbx.Destination {
	return pbx.Destination{Kind: kind, TargetID: id}
}

func newTestCompiler(r store.Reader) (*Compiler, *recordingObserver) {
	obs := &recordingObserver{}
	c := NewCompiler(r, Options{
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observer:           obs,
		Now:                func() time.Time { return fixedNow },
		DefaultCountryCode: "1",
	})
	return c, obs
}

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) DocumentCompiled(section string, outcome Outcome) {
	o.calls = append(o.calls, section+":"+string(outcome))
}

func dial(t *testing.T, c *Compiler, destination, caller string) *fsxml.Document {
	t.Helper()
	doc, err := c.CompileDialplan(context.Background(), DialplanRequest{Domain: acmeDomain, Destination: destination, Caller: caller})
	if err != nil {
		t.Fatalf("CompileDialplan: %v", err)
	}
	if doc == nil {
		t.Fatalf("nil document")
	}
	return doc
}

func actionsOf(doc *fsxml.Document, app string) []fsxml.Action {
	var out []fsxml.Action
	for _, c := range doc.Conditions() {
		for _, a := range append(append([]fsxml.Action{}, c.Actions...), c.AntiActions...) {
			if a.Application == app {
				out = append(out, a)
			}
		}
	}
	return out
}

func applications(doc *fsxml.Document) []string {
	var out []string
	for _, a := range doc.Actions() {
		out = append(out, a.Application)
	}
	return out
}

func outcome(doc *fsxml.Document) string {
	v, _ := doc.Variable(VarOutcome)
	return v
}

func rendered(t *testing.T, doc *fsxml.Document) string {
	t.Helper()
	b, err := fsxml.Render(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return string(b)
}

// leakyStore ignores tenant scoping on by-id reads and returns tenants in
// any status, so the compiler's own checks are what the tests observe.
type leakyStore struct {
	*store.MemoryStore
}

func (l leakyStore) FindOperationalTenantByDomain(_ context.Context, domain string) (*pbx.Tenant, error) {
	for _, t := range l.Tenants {
		if strings.EqualFold(t.Domain, domain) {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (l leakyStore) ListActiveExtensions(_ context.Context, _ string) ([]pbx.Extension, error) {
	return l.Extensions, nil
}

func (l leakyStore) FindActiveDidByNumber(_ context.Context, _ string, number string) (*pbx.Did, error) {
	for _, d := range l.Dids {
		if d.Number == number {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (l leakyStore) GetExtension(_ context.Context, _ string, id string) (*pbx.Extension, error) {
	for _, e := range l.Extensions {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (l leakyStore) GetRingGroup(_ context.Context, _ string, id string) (*pbx.RingGroup, error) {
	for _, g := range l.RingGroups {
		if g.ID == id {
			out := g
			return &out, nil
		}
	}
	return nil, nil
}

func (l leakyStore) GetCallFlow(_ context.Context, _ string, id string) (*pbx.CallFlow, error) {
	for _, f := range l.CallFlows {
		if f.ID == id {
			out := f
			return &out, nil
		}
	}
	return nil, nil
}

var errStorage = errors.New("connection reset")

// failingStore fails the named operation and delegates the rest.
type failingStore struct {
	store.Reader
	op string
}

func (f failingStore) FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error) {
	if f.op == "tenant" {
		return nil, errStorage
	}
	return f.Reader.FindOperationalTenantByDomain(ctx, domain)
}

func (f failingStore) ListActiveExtensions(ctx context.Context, tenantID string) ([]pbx.Extension, error) {
	if f.op == "extensions" {
		return nil, errStorage
	}
	return f.Reader.ListActiveExtensions(ctx, tenantID)
}

func (f failingStore) ListActivePreRoutingPolicies(ctx context.Context, tenantID string) ([]pbx.CallRoutingPolicy, error) {
	if f.op == "policies" {
		return nil, errStorage
	}
	return f.Reader.ListActivePreRoutingPolicies(ctx, tenantID)
}

func (f failingStore) GetExtension(ctx context.Context, tenantID, id string) (*pbx.Extension, error) {
	if f.op == "extension" {
		return nil, errStorage
	}
	return f.Reader.GetExtension(ctx, tenantID, id)
}
