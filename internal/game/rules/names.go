package rules

// EventName tags the category of a game event. The resolution notification
// published after an event's handler executes carries the same name.
type EventName string

const (
	// Card movement events
	EventCardLeavesPlay      EventName = "onCardLeavesPlay"
	EventCharacterEntersPlay EventName = "onCharacterEntersPlay"
	EventCardDiscarded       EventName = "onCardDiscarded"
	EventCardMoved           EventName = "onCardMoved"
	EventDeckShuffled        EventName = "onDeckShuffled"

	// Status events
	EventCardDishonored EventName = "onCardDishonored"
	EventCardHonored    EventName = "onCardHonored"
	EventCardBowed      EventName = "onCardBowed"
	EventCardReadied    EventName = "onCardReadied"

	// Fate and honor events
	EventFatePlaced       EventName = "onFatePlaced"
	EventFateRemoved      EventName = "onFateRemoved"
	EventFateCollected    EventName = "onFateCollected"
	EventHonorTransferred EventName = "onHonorTransferred"
	EventCardsDrawn       EventName = "onCardsDrawn"

	// Conflict events
	EventConflictDeclared EventName = "onConflictDeclared"
	EventConflictFinished EventName = "onConflictFinished"
	EventRingClaimed      EventName = "onRingClaimed"
	EventDuelFinished     EventName = "onDuelFinished"

	// Province events
	EventProvinceBroken   EventName = "onProvinceBroken"
	EventProvinceRefilled EventName = "onProvinceRefilled"

	// Phase events
	EventPhaseStarted EventName = "onPhaseStarted"
	EventPhaseEnded   EventName = "onPhaseEnded"
)

const otherEffectsSuffix = ":otherEffects"

// OtherEffects returns the notification name broadcast for persistent and
// delayed effects before this event's handler runs.
func (n EventName) OtherEffects() string {
	return string(n) + otherEffectsSuffix
}
