package policy

import "pbx-control/internal/pbx"

// Decision is the outcome of evaluating one routing policy.
//
// Reject carries a human-readable Reason; Redirect carries the Destination
// routing must continue at. Allow carries neither.
type Decision struct {
	Action      Action          `json:"action"`
	Reason      string          `json:"reason,omitempty"`
	Destination pbx.Destination `json:"destination,omitempty"`
}

type Action string

const (
	ActionAllow    Action = "allow"
	ActionReject   Action = "reject"
	ActionRedirect Action = "redirect"
)

const (
	ReasonTenantNotOperational = "Tenant is suspended or terminated."
	ReasonCallerBlacklisted    = "Caller is blacklisted."
)

func Allow() Decision { return Decision{Action: ActionAllow} }

func Reject(reason string) Decision { return Decision{Action: ActionReject, Reason: reason} }

func Redirect(dest pbx.Destination) Decision {
	return Decision{Action: ActionRedirect, Destination: dest}
}
