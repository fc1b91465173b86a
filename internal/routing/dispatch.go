package routing

import (
	"errors"
	"strconv"
	"strings"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/pbx"
	"pbx-control/internal/policy"
	"pbx-control/internal/store"
)

// dispatch translates one destination into dialplan blocks. Unguarded blocks
// carry plain actions; a time condition yields a guarded block.
//
// Anything unresolved emits nothing: missing or inactive targets, targets owned
// by another tenant, unknown kinds, and chains deeper than maxDispatchDepth.
func (k *compilation) dispatch(dest pbx.Destination, depth int) []fsxml.Condition {
	if k.err != nil || !dest.IsSet() {
		return nil
	}
	if depth > maxDispatchDepth {
		k.log.Warn("destination chain too deep", "kind", string(dest.Kind), "target_id", dest.TargetID, "depth", depth)
		return nil
	}

	switch dest.Kind {
	case pbx.DestinationExtension:
		ext := k.extension(dest.TargetID)
		if ext == nil {
			return nil
		}
		return flat(fsxml.Bridge(fsxml.UserAddress(ext.Number, k.tenant.Domain)))

	case pbx.DestinationVoicemail:
		ext := k.extension(dest.TargetID)
		if ext == nil {
			return nil
		}
		return flat(fsxml.Voicemail("default", k.tenant.Domain, ext.Number))

	case pbx.DestinationIvr:
		ivr, err := k.reader.GetIvr(k.ctx, k.tenant.ID, dest.TargetID)
		if k.unreadable(err, dest) {
			return nil
		}
		if ivr == nil || !ivr.Active || !k.owns(ivr.TenantID, dest) {
			return nil
		}
		return flat(fsxml.IVR(ivr.Name))

	case pbx.DestinationRingGroup:
		return k.ringGroup(dest)

	case pbx.DestinationTimeCondition:
		return k.timeCondition(dest, depth)

	case pbx.DestinationCallRoutingPolicy:
		p, err := k.reader.GetCallRoutingPolicy(k.ctx, k.tenant.ID, dest.TargetID)
		if k.unreadable(err, dest) {
			return nil
		}
		if p == nil || !p.Active || !k.owns(p.TenantID, dest) {
			return nil
		}
		d := policy.Evaluate(*p, k.policy)
		switch d.Action {
		case policy.ActionReject:
			k.log.Info("call rejected by policy", "policy_id", p.ID, "reason", d.Reason)
			return []fsxml.Condition{{Actions: rejectActions(d.Reason)}}
		case policy.ActionRedirect:
			return k.dispatch(d.Destination, depth+1)
		default:
			k.log.Debug("policy allowed without destination", "policy_id", p.ID)
			return nil
		}

	case pbx.DestinationCallFlow:
		flow, err := k.reader.GetCallFlow(k.ctx, k.tenant.ID, dest.TargetID)
		if k.unreadable(err, dest) {
			return nil
		}
		if flow == nil || !k.owns(flow.TenantID, dest) {
			return nil
		}
		return k.runFlow(flow, depth)

	default:
		k.log.Warn("unknown destination kind", "kind", string(dest.Kind), "target_id", dest.TargetID)
		return nil
	}
}

// extension resolves an active extension of this tenant.
func (k *compilation) extension(id string) *pbx.Extension {
	dest := pbx.Destination{Kind: pbx.DestinationExtension, TargetID: id}
	ext, err := k.reader.GetExtension(k.ctx, k.tenant.ID, id)
	if k.unreadable(err, dest) {
		return nil
	}
	if ext == nil || !ext.Active || !k.owns(ext.TenantID, dest) {
		return nil
	}
	return ext
}

// unreadable reports whether a lookup produced no usable record. A record
// that cannot be decoded counts as unresolved; any other error aborts the
// compilation.
func (k *compilation) unreadable(err error, dest pbx.Destination) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrMalformed) {
		k.log.Warn("ignoring malformed destination", "kind", string(dest.Kind), "target_id", dest.TargetID, "error", err.Error())
		return true
	}
	k.fail(err)
	return true
}

func (k *compilation) owns(tenantID string, dest pbx.Destination) bool {
	if tenantID == k.tenant.ID {
		return true
	}
	k.log.Warn("ignoring cross-tenant reference", "kind", string(dest.Kind), "target_id", dest.TargetID)
	return false
}

func (k *compilation) ringGroup(dest pbx.Destination) []fsxml.Condition {
	g, err := k.reader.GetRingGroup(k.ctx, k.tenant.ID, dest.TargetID)
	if k.unreadable(err, dest) {
		return nil
	}
	if g == nil || !g.Active || !k.owns(g.TenantID, dest) {
		return nil
	}

	targets := make([]string, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		ext := k.extension(id)
		if ext == nil {
			continue
		}
		targets = append(targets, fsxml.UserAddress(ext.Number, k.tenant.Domain))
	}
	if len(targets) == 0 {
		return nil
	}

	sep := ","
	if g.Strategy == pbx.RingStrategySequential {
		sep = "|"
	}
	return flat(
		fsxml.Set("call_timeout", strconv.Itoa(g.RingTimeout)),
		fsxml.Bridge(strings.Join(targets, sep)),
	)
}

// timeCondition guards the match branch with the first rule's weekday and
// time-of-day window. Without a guard the match branch runs unconditionally.
func (k *compilation) timeCondition(dest pbx.Destination, depth int) []fsxml.Condition {
	tc, err := k.reader.GetTimeCondition(k.ctx, k.tenant.ID, dest.TargetID)
	if k.unreadable(err, dest) {
		return nil
	}
	if tc == nil || !k.owns(tc.TenantID, dest) {
		return nil
	}

	guard := timeGuard(tc.Rules)
	if guard.Wday == "" && guard.TimeOfDay == "" {
		return k.dispatch(tc.Match, depth+1)
	}

	guard.Break = "never"
	guard.Actions = k.branch(tc.Match, depth, tc.ID)
	if tc.NoMatch.IsSet() {
		guard.AntiActions = k.branch(tc.NoMatch, depth, tc.ID)
	}
	if len(guard.Actions) == 0 && len(guard.AntiActions) == 0 {
		return nil
	}
	return []fsxml.Condition{guard}
}

// branch dispatches dest and keeps only plain actions; a guarded block cannot
// nest inside another guard.
func (k *compilation) branch(dest pbx.Destination, depth int, timeConditionID string) []fsxml.Action {
	var out []fsxml.Action
	for _, b := range k.dispatch(dest, depth+1) {
		if b.Guarded() {
			k.log.Warn("dropping nested time guard", "time_condition_id", timeConditionID)
			continue
		}
		out = append(out, b.Actions...)
	}
	return out
}

func timeGuard(rules []pbx.TimeRule) fsxml.Condition {
	var c fsxml.Condition
	if len(rules) == 0 {
		return c
	}
	r := rules[0]
	c.Wday = strings.TrimSpace(r.Weekdays)
	if from, to := strings.TrimSpace(r.TimeFrom), strings.TrimSpace(r.TimeTo); from != "" && to != "" {
		c.TimeOfDay = from + "-" + to
	}
	return c
}

func flat(actions ...fsxml.Action) []fsxml.Condition {
	return []fsxml.Condition{{Actions: actions}}
}
