package routing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/numbers"
	"pbx-control/internal/pbx"
	"pbx-control/internal/policy"
	"pbx-control/internal/store"
)

// DialplanRequest is one call-setup lookup from the switch.
type DialplanRequest struct {
	Domain      string
	Destination string
	// Caller is optional; it is normalized before policy evaluation.
	Caller string
	// Context is the dialplan context the switch is hunting in. The returned
	// document must use the same name; empty means the tenant domain.
	Context string
}

// Hangup cause the switch uses when the tenant is over its concurrency ceiling.
const limitExceededCause = "!USER_BUSY"

// CompileDialplan decides how to handle one inbound call.
//
// Order: tenant resolution, tenant-wide pre-routing policies, DID then
// extension lookup, destination dispatch, admission guard, assembly. Each
// step can end the compilation with an empty, reject or failsafe document.
func (c *Compiler) CompileDialplan(ctx context.Context, req DialplanRequest) (*fsxml.Document, error) {
	req.Domain = strings.TrimSpace(req.Domain)
	req.Destination = strings.TrimSpace(req.Destination)
	log := c.logger(ctx).With("domain", req.Domain, "destination", req.Destination, "caller", req.Caller)

	tenant, err := c.Store.FindOperationalTenantByDomain(ctx, req.Domain)
	if err != nil {
		log.Error("tenant lookup failed", "error", err.Error())
		c.observe(fsxml.SectionDialplan, OutcomeError)
		return failsafeDocument(contextName(req, req.Domain), req.Destination), fmt.Errorf("compile dialplan: %w", err)
	}
	if !operational(tenant) {
		log.Debug("no operational tenant for domain")
		c.observe(fsxml.SectionDialplan, OutcomeEmpty)
		return fsxml.EmptyDialplan(), nil
	}

	log = log.With("tenant_id", tenant.ID)
	k := &compilation{
		ctx:    ctx,
		reader: c.Store,
		tenant: tenant,
		log:    log,
		policy: policy.Context{
			Tenant:             tenant,
			CallerID:           c.normalizeCaller(req.Caller),
			RawCallerID:        strings.TrimSpace(req.Caller),
			Now:                c.Now().In(tenant.Location()),
			DefaultCountryCode: c.DefaultCountryCode,
		},
	}
	ctxName := contextName(req, tenant.Domain)

	dest, decided, rejected := k.preRoute()
	if k.err != nil {
		return c.failWithError(log, ctxName, req.Destination, k.err)
	}
	if rejected != nil {
		log.Info("call rejected by pre-routing policy", "reason", rejected.Reason)
		c.observe(fsxml.SectionDialplan, OutcomeReject)
		return rejectDocument(ctxName, req.Destination, rejected.Reason), nil
	}
	if !decided {
		dest, decided = k.resolveDestination(req.Destination, c.DefaultCountryCode)
		if k.err != nil {
			return c.failWithError(log, ctxName, req.Destination, k.err)
		}
		if !decided {
			log.Info("no route for destination")
			c.observe(fsxml.SectionDialplan, OutcomeFailsafe)
			return failsafeDocument(ctxName, req.Destination), nil
		}
	}

	blocks := k.dispatch(dest, 0)
	if k.err != nil {
		return c.failWithError(log, ctxName, req.Destination, k.err)
	}
	if countActions(blocks) == 0 {
		log.Info("destination produced no actions", "kind", string(dest.Kind), "target_id", dest.TargetID)
		c.observe(fsxml.SectionDialplan, OutcomeFailsafe)
		return failsafeDocument(ctxName, req.Destination), nil
	}

	c.observe(fsxml.SectionDialplan, OutcomeRoute)
	return c.assemble(ctxName, req.Destination, tenant, blocks), nil
}

func (c *Compiler) normalizeCaller(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return numbers.Normalize(raw, c.DefaultCountryCode)
}

func (c *Compiler) failWithError(log *slog.Logger, ctxName, destination string, err error) (*fsxml.Document, error) {
	log.Error("dialplan compilation failed", "error", err.Error())
	c.observe(fsxml.SectionDialplan, OutcomeError)
	return failsafeDocument(ctxName, destination), fmt.Errorf("compile dialplan: %w", err)
}

func contextName(req DialplanRequest, fallback string) string {
	if req.Context != "" {
		return req.Context
	}
	return fallback
}

// preRoute runs the tenant-wide policy chain. It returns the redirect target
// when a policy redirects, or the rejecting decision when one rejects.
func (k *compilation) preRoute() (pbx.Destination, bool, *policy.Decision) {
	policies, err := k.reader.ListActivePreRoutingPolicies(k.ctx, k.tenant.ID)
	if err != nil {
		k.fail(err)
		return pbx.Destination{}, false, nil
	}
	for _, p := range policies {
		if p.TenantID != k.tenant.ID {
			continue
		}
		d := policy.Evaluate(p, k.policy)
		switch d.Action {
		case policy.ActionReject:
			return pbx.Destination{}, false, &d
		case policy.ActionRedirect:
			k.log.Info("pre-routing policy redirected call", "policy_id", p.ID,
				"kind", string(d.Destination.Kind), "target_id", d.Destination.TargetID)
			return d.Destination, true, nil
		}
	}
	return pbx.Destination{}, false, nil
}

// resolveDestination maps the dialed number to a destination: an active DID
// (as dialed, then normalized), else an active extension with that number.
func (k *compilation) resolveDestination(number, defaultCountryCode string) (pbx.Destination, bool) {
	if number == "" {
		return pbx.Destination{}, false
	}

	candidates := []string{number}
	if n := numbers.Normalize(number, defaultCountryCode); n != number {
		candidates = append(candidates, n)
	}
	for _, cand := range candidates {
		did, err := k.reader.FindActiveDidByNumber(k.ctx, k.tenant.ID, cand)
		if err != nil {
			k.fail(err)
			return pbx.Destination{}, false
		}
		if did != nil && did.TenantID == k.tenant.ID {
			return did.Destination, true
		}
	}

	ext, err := k.reader.FindActiveExtensionByNumber(k.ctx, k.tenant.ID, number)
	if err != nil {
		k.fail(err)
		return pbx.Destination{}, false
	}
	if ext != nil && ext.TenantID == k.tenant.ID {
		return pbx.Destination{Kind: pbx.DestinationExtension, TargetID: ext.ID}, true
	}
	return pbx.Destination{}, false
}

// assemble lays the dispatched blocks out under one extension. The leading
// block matches the dialed number and carries the outcome tag and the
// admission guard; unguarded blocks are folded into their predecessor.
func (c *Compiler) assemble(ctxName, destination string, tenant *pbx.Tenant, blocks []fsxml.Condition) *fsxml.Document {
	head := fsxml.Condition{
		Field:      "destination_number",
		Expression: destinationExpression(destination),
		Actions:    []fsxml.Action{fsxml.Set(VarOutcome, string(OutcomeRoute))},
	}
	if tenant.MaxConcurrentCalls > 0 {
		head.Actions = append(head.Actions,
			fsxml.Limit(c.LimitBackend, tenant.ID, "concurrent_calls", tenant.MaxConcurrentCalls, limitExceededCause))
	}

	conds := []fsxml.Condition{head}
	for _, b := range blocks {
		last := &conds[len(conds)-1]
		if !b.Guarded() && len(last.AntiActions) == 0 && last.Wday == "" && last.TimeOfDay == "" {
			last.Actions = append(last.Actions, b.Actions...)
			continue
		}
		conds = append(conds, b)
	}

	return fsxml.Dialplan(fsxml.Context{
		Name: ctxName,
		Extensions: []fsxml.Extension{{
			Name:       "route_" + tenant.ID,
			Conditions: conds,
		}},
	})
}

func destinationExpression(destination string) string {
	return "^" + regexp.QuoteMeta(destination) + "$"
}

func rejectActions(reason string) []fsxml.Action {
	return []fsxml.Action{
		fsxml.Set(VarOutcome, string(OutcomeReject)),
		fsxml.Set(VarRejectReason, reason),
		fsxml.Log("NOTICE", "call rejected: "+reason),
		fsxml.Respond(603, "Decline"),
	}
}

func rejectDocument(ctxName, destination, reason string) *fsxml.Document {
	return terminalDocument(ctxName, "reject", destination, rejectActions(reason))
}

func failsafeDocument(ctxName, destination string) *fsxml.Document {
	return terminalDocument(ctxName, "failsafe", destination, []fsxml.Action{
		fsxml.Set(VarOutcome, string(OutcomeFailsafe)),
		fsxml.Log("NOTICE", "no route for "+destination),
		fsxml.Respond(404, "Not Found"),
	})
}

func terminalDocument(ctxName, name, destination string, actions []fsxml.Action) *fsxml.Document {
	return fsxml.Dialplan(fsxml.Context{
		Name: ctxName,
		Extensions: []fsxml.Extension{{
			Name: name,
			Conditions: []fsxml.Condition{{
				Field:      "destination_number",
				Expression: destinationExpression(destination),
				Actions:    actions,
			}},
		}},
	})
}

func countActions(blocks []fsxml.Condition) int {
	n := 0
	for _, b := range blocks {
		n += len(b.Actions) + len(b.AntiActions)
	}
	return n
}

// compilation is the per-request state threaded through dispatch.
type compilation struct {
	ctx    context.Context
	reader store.Reader
	tenant *pbx.Tenant
	policy policy.Context
	log    *slog.Logger

	// err is the first read failure; it aborts the whole compilation.
	err error
}

func (k *compilation) fail(err error) {
	if k.err == nil {
		k.err = err
	}
}
