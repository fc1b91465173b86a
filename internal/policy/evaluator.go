package policy

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"pbx-control/internal/numbers"
	"pbx-control/internal/pbx"
)

// Context is everything a condition may inspect. It is built once per call.
type Context struct {
	// Tenant is optional; when set and not operational every policy rejects.
	Tenant *pbx.Tenant

	// CallerID is the normalized caller number, empty when the switch sent none.
	CallerID string

	// RawCallerID is the caller number as the switch delivered it. Prefix and
	// pattern rules match either form.
	RawCallerID string

	// Now is the evaluation instant, already in the tenant's timezone.
	Now time.Time

	// DefaultCountryCode lets blacklist entries written in national form match
	// a normalized caller.
	DefaultCountryCode string
}

// Evaluate runs the decision procedure for a single policy.
//
// Blacklist conditions are reject-class: a listed caller rejects regardless of
// the other conditions. Every other condition type is filter-class and can only
// select between the match and no-match destinations.
func Evaluate(p pbx.CallRoutingPolicy, ctx Context) Decision {
	if ctx.Tenant != nil && !ctx.Tenant.IsOperational() {
		return Reject(ReasonTenantNotOperational)
	}

	filters := make([]pbx.Condition, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		if c.Type == pbx.ConditionBlacklist {
			if !EvaluateCondition(c, ctx) {
				return Reject(ReasonCallerBlacklisted)
			}
			continue
		}
		filters = append(filters, c)
	}

	if EvaluateConditions(filters, ctx) {
		if p.Match.IsSet() {
			return Redirect(p.Match)
		}
		return Allow()
	}
	if p.NoMatch.IsSet() {
		return Redirect(p.NoMatch)
	}
	return Allow()
}

// EvaluateConditions is true iff every condition matches. An empty list matches.
func EvaluateConditions(conds []pbx.Condition, ctx Context) bool {
	for _, c := range conds {
		if !EvaluateCondition(c, ctx) {
			return false
		}
	}
	return true
}

// EvaluateCondition evaluates one condition. Unknown types never match.
func EvaluateCondition(c pbx.Condition, ctx Context) bool {
	switch c.Type {
	case pbx.ConditionTimeOfDay:
		hm := ctx.Now.Format("15:04")
		return c.Params.Start <= hm && hm <= c.Params.End
	case pbx.ConditionDayOfWeek:
		day := strings.ToLower(ctx.Now.Weekday().String()[:3])
		return slices.ContainsFunc(c.Params.Days, func(d string) bool {
			return strings.ToLower(strings.TrimSpace(d)) == day
		})
	case pbx.ConditionCallerIDPattern:
		return slices.ContainsFunc(ctx.callerForms(), func(caller string) bool {
			return matchCallerPattern(c.Params.Pattern, caller)
		})
	case pbx.ConditionBlacklist:
		return !isListed(c.Params.Numbers, ctx)
	case pbx.ConditionGeoPrefix:
		for _, caller := range ctx.callerForms() {
			if slices.ContainsFunc(c.Params.Prefixes, func(p string) bool {
				return p != "" && strings.HasPrefix(caller, p)
			}) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// callerForms lists the distinct non-empty caller representations, normalized first.
func (ctx Context) callerForms() []string {
	forms := make([]string, 0, 2)
	if ctx.CallerID != "" {
		forms = append(forms, ctx.CallerID)
	}
	if raw := strings.TrimSpace(ctx.RawCallerID); raw != "" && raw != ctx.CallerID {
		forms = append(forms, raw)
	}
	return forms
}

func matchCallerPattern(pattern, callerID string) bool {
	if pattern == "" || callerID == "" {
		return false
	}
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(callerID)
}

func isListed(list []string, ctx Context) bool {
	if ctx.CallerID == "" {
		return false
	}
	for _, n := range list {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if n == ctx.CallerID {
			return true
		}
		if ctx.DefaultCountryCode != "" &&
			numbers.Normalize(n, ctx.DefaultCountryCode) == numbers.Normalize(ctx.CallerID, ctx.DefaultCountryCode) {
			return true
		}
	}
	return false
}
