package pbx

import "time"

// Read-only tenant configuration consumed by the routing compiler.
//
// Multi-tenant invariant: every tenant-scoped entity carries TenantID, and a
// reference is only followed when the resolved entity's TenantID matches the
// tenant performing the lookup.

type TenantStatus string

const (
	TenantStatusTrial      TenantStatus = "trial"
	TenantStatusActive     TenantStatus = "active"
	TenantStatusSuspended  TenantStatus = "suspended"
	TenantStatusTerminated TenantStatus = "terminated"
)

type Tenant struct {
	ID     string       `json:"id" db:"id"`
	Domain string       `json:"domain" db:"domain"`
	Status TenantStatus `json:"status" db:"status"`
	Active bool         `json:"active" db:"active"`

	// MaxConcurrentCalls is the admission ceiling; 0 means unlimited.
	MaxConcurrentCalls int `json:"max_concurrent_calls" db:"max_concurrent_calls"`

	// Timezone is an IANA zone name used for time-based policy; empty means UTC.
	Timezone string `json:"timezone,omitempty" db:"timezone"`
}

// IsOperational reports whether the tenant may route or register calls.
func (t Tenant) IsOperational() bool {
	return t.Status == TenantStatusTrial || t.Status == TenantStatusActive
}

// Location resolves the tenant timezone, falling back to UTC.
func (t Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Extension struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Number   string `json:"number" db:"number"`

	// Password is the SIP credential rendered into the directory.
	Password string `json:"-" db:"password"`

	EffectiveCallerIDName   string `json:"effective_caller_id_name,omitempty" db:"effective_caller_id_name"`
	EffectiveCallerIDNumber string `json:"effective_caller_id_number,omitempty" db:"effective_caller_id_number"`
	OutboundCallerIDName    string `json:"outbound_caller_id_name,omitempty" db:"outbound_caller_id_name"`
	OutboundCallerIDNumber  string `json:"outbound_caller_id_number,omitempty" db:"outbound_caller_id_number"`

	VoicemailEnabled bool   `json:"voicemail_enabled" db:"voicemail_enabled"`
	VoicemailPIN     string `json:"-" db:"voicemail_pin"`

	Active bool `json:"active" db:"active"`
}

type Did struct {
	ID          string      `json:"id" db:"id"`
	TenantID    string      `json:"tenant_id" db:"tenant_id"`
	Number      string      `json:"number" db:"number"`
	Active      bool        `json:"active" db:"active"`
	Destination Destination `json:"destination"`
}

type RingStrategy string

const (
	RingStrategySimultaneous RingStrategy = "simultaneous"
	RingStrategySequential   RingStrategy = "sequential"
)

type RingGroup struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`

	// MemberIDs are extension ids in hunt order.
	MemberIDs []string     `json:"member_ids" db:"member_ids"`
	Strategy  RingStrategy `json:"strategy" db:"strategy"`

	// RingTimeout is in seconds.
	RingTimeout int  `json:"ring_timeout" db:"ring_timeout"`
	Active      bool `json:"active" db:"active"`
}

type Ivr struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Active   bool   `json:"active" db:"active"`
}

// TimeRule is one guard of a time condition. Any field may be empty.
type TimeRule struct {
	// Weekdays is a switch weekday expression, 1 = Sunday ... 7 = Saturday (e.g. "2-6", "1,7").
	Weekdays string `json:"wday,omitempty"`
	TimeFrom string `json:"time_from,omitempty"` // "HH:MM"
	TimeTo   string `json:"time_to,omitempty"`   // "HH:MM"
}

type TimeCondition struct {
	ID       string     `json:"id" db:"id"`
	TenantID string     `json:"tenant_id" db:"tenant_id"`
	Name     string     `json:"name" db:"name"`
	Rules    []TimeRule `json:"rules" db:"rules"`

	Match   Destination `json:"match"`
	NoMatch Destination `json:"no_match"`
}

type CallRoutingPolicy struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`

	// Priority orders pre-routing evaluation; lower runs first.
	Priority   int         `json:"priority" db:"priority"`
	Active     bool        `json:"active" db:"active"`
	Conditions []Condition `json:"conditions" db:"conditions"`

	Match   Destination `json:"match"`
	NoMatch Destination `json:"no_match"`
}

type ConditionType string

const (
	ConditionTimeOfDay       ConditionType = "time_of_day"
	ConditionDayOfWeek       ConditionType = "day_of_week"
	ConditionCallerIDPattern ConditionType = "caller_id_pattern"
	ConditionBlacklist       ConditionType = "blacklist"
	ConditionGeoPrefix       ConditionType = "geo_prefix"
)

type Condition struct {
	Type   ConditionType   `json:"type"`
	Params ConditionParams `json:"params"`
}

// ConditionParams is the union of parameters used by the condition types.
// Each type reads only its own fields.
type ConditionParams struct {
	Start    string   `json:"start,omitempty"`    // time_of_day "HH:MM"
	End      string   `json:"end,omitempty"`      // time_of_day "HH:MM"
	Days     []string `json:"days,omitempty"`     // day_of_week, e.g. ["mon","tue"]
	Pattern  string   `json:"pattern,omitempty"`  // caller_id_pattern, "*" is a wildcard
	Numbers  []string `json:"numbers,omitempty"`  // blacklist
	Prefixes []string `json:"prefixes,omitempty"` // geo_prefix
}

type CallFlow struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Nodes    []Node `json:"nodes" db:"nodes"`
}

type NodeType string

const (
	NodePlayPrompt NodeType = "play_prompt"
	NodeBridge     NodeType = "bridge"
	NodeRecord     NodeType = "record"
	NodeWebhook    NodeType = "webhook"
)

// EntryNodeID names the node a flow starts at when present.
const EntryNodeID = "start"

type Node struct {
	ID   string            `json:"id"`
	Type NodeType          `json:"type"`
	Data map[string]string `json:"data,omitempty"`

	// Next is the successor node id; empty terminates the flow.
	Next string `json:"next,omitempty"`
}
