package rules

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ThenAbility executes after its triggering events are confirmed resolved,
// outside the tiered interrupt/reaction flow. It resolves in a fresh context
// scoped to the original triggering player, who is not necessarily the
// window's active player.
type ThenAbility struct {
	Title  string
	Player string
	Source string

	// Condition is evaluated against the registration's events once, after
	// handler execution. Nil means the default: all referenced events fully
	// resolved (handler executed, never cancelled).
	Condition func(events []*Event) bool

	// Resolve executes the ability and returns any new events. Those resolve
	// in a then-window that does not re-offer reaction tiers.
	Resolve func(ctx *AbilityContext) []*Event
}

type thenRegistration struct {
	ability ThenAbility
	events  []*Event
}

// RegisterThenAbility registers a then ability against events owned by this
// window. Registering against an event this window does not own is a
// programmer error.
func (w *EventWindow) RegisterThenAbility(events []*Event, ability ThenAbility) {
	for _, e := range events {
		if e.Window != w {
			panic(fmt.Sprintf("then ability %q references event %s (%s) not owned by window %s",
				ability.Title, e.Name, e.ID, w.ID))
		}
	}
	w.thenAbilities = append(w.thenAbilities, thenRegistration{
		ability: ability,
		events:  append([]*Event(nil), events...),
	})
}

// resolveThenAbilities evaluates every registration once and discards it
// regardless of outcome. Satisfied registrations resolve immediately; their
// events go into a then-window queued before the reaction tiers open.
func (w *EventWindow) resolveThenAbilities() {
	registrations := w.thenAbilities
	w.thenAbilities = nil
	for _, reg := range registrations {
		condition := reg.ability.Condition
		if condition == nil {
			condition = allFullyResolved
		}
		if !condition(reg.events) {
			w.game.logger.Debug("then ability discarded",
				zap.String("ability", reg.ability.Title),
				zap.String("window_id", w.ID),
			)
			continue
		}
		if reg.ability.Player == "" {
			w.game.fail(&ContextError{Title: reg.ability.Title, Missing: "player"})
			return
		}
		ctx := &AbilityContext{
			Game:   w.game,
			Player: reg.ability.Player,
			Source: reg.ability.Source,
			Events: reg.events,
		}
		w.game.logger.Debug("resolving then ability",
			zap.String("ability", reg.ability.Title),
			zap.String("player", reg.ability.Player),
		)
		events := reg.ability.Resolve(ctx)
		if len(events) > 0 {
			w.QueueStep(NewThenEventWindow(w.game, events))
		}
	}
}

func allFullyResolved(events []*Event) bool {
	for _, e := range events {
		if !e.FullyResolved() {
			return false
		}
	}
	return true
}

// NewThenEventWindow creates the specialized window used for events generated
// by then abilities. It skips the forcedReaction and reaction tiers, which
// belong only to the original triggering batch, and hands any events still
// unresolved at completion back to the previous window instead of dropping
// them.
func NewThenEventWindow(game *Game, events []*Event) *EventWindow {
	w := &EventWindow{
		ID:                uuid.NewString(),
		game:              game,
		suppressReactions: true,
	}
	for _, e := range events {
		w.AddEvent(e)
	}
	w.initializeSteps()
	return w
}

// transferLeftovers moves events that are neither resolved nor cancelled to
// the previous window, preserving the invariant that every event is owned by
// exactly one currently active window until fully resolved or permanently
// cancelled.
func (w *EventWindow) transferLeftovers() {
	if w.previous == nil {
		return
	}
	var leftovers []*Event
	for _, e := range w.events {
		if !e.Resolved() && !e.Cancelled() {
			leftovers = append(leftovers, e)
		}
	}
	for _, e := range leftovers {
		w.removeEvent(e)
		w.previous.AddEvent(e)
	}
	if len(leftovers) > 0 {
		w.game.logger.Debug("transferred leftover events to previous window",
			zap.String("window_id", w.ID),
			zap.String("previous_window_id", w.previous.ID),
			zap.Int("count", len(leftovers)),
		)
	}
}
