package pbx

// DestinationKind tags what a Destination's TargetID refers to.
type DestinationKind string

const (
	DestinationExtension         DestinationKind = "extension"
	DestinationRingGroup         DestinationKind = "ring_group"
	DestinationIvr               DestinationKind = "ivr"
	DestinationTimeCondition     DestinationKind = "time_condition"
	DestinationVoicemail         DestinationKind = "voicemail"
	DestinationCallRoutingPolicy DestinationKind = "call_routing_policy"
	DestinationCallFlow          DestinationKind = "call_flow"
)

// Destination is a tagged reference to the next routing target.
// The zero value means "not configured".
type Destination struct {
	Kind     DestinationKind `json:"kind,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
}

func (d Destination) IsSet() bool {
	return d.Kind != "" && d.TargetID != ""
}

func (k DestinationKind) Valid() bool {
	switch k {
	case DestinationExtension, DestinationRingGroup, DestinationIvr, DestinationTimeCondition,
		DestinationVoicemail, DestinationCallRoutingPolicy, DestinationCallFlow:
		return true
	default:
		return false
	}
}
