package rules

import "fmt"

// AbilityTier identifies one of the fixed priority stages at which triggered
// abilities may activate during event resolution. The set is closed: ability
// registrations carry a tier tag that is validated at registration time.
type AbilityTier int

const (
	// TierWouldInterrupt fires before an event is committed to happening,
	// before contingent events are even generated. Abilities here can cancel
	// the event outright.
	TierWouldInterrupt AbilityTier = iota
	// TierForcedInterrupt fires after contingent events exist; eligible
	// abilities resolve automatically in deterministic order.
	TierForcedInterrupt
	// TierInterrupt is the optional interrupt stage.
	TierInterrupt
	// TierForcedReaction fires after handlers have executed; no opt-out.
	TierForcedReaction
	// TierReaction is the optional reaction stage.
	TierReaction
)

// Forced reports whether abilities at this tier resolve without player choice.
func (t AbilityTier) Forced() bool {
	return t == TierForcedInterrupt || t == TierForcedReaction
}

// Valid reports whether the tier is one of the defined stages.
func (t AbilityTier) Valid() bool {
	return t >= TierWouldInterrupt && t <= TierReaction
}

// String returns the tier keyword used in ability definitions and logs.
func (t AbilityTier) String() string {
	switch t {
	case TierWouldInterrupt:
		return "wouldInterrupt"
	case TierForcedInterrupt:
		return "forcedInterrupt"
	case TierInterrupt:
		return "interrupt"
	case TierForcedReaction:
		return "forcedReaction"
	case TierReaction:
		return "reaction"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}
