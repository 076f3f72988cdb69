package rules

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventWindow drives one batch of events through the canonical resolution
// order, giving players layered opportunities to interject triggered
// abilities at fixed priority points before, during and after the batch's
// state changes happen. Windows nest strictly last-in-first-out: a window
// records the previously current window on entry and restores it on exit.
//
// The tier order is fixed and non-configurable:
// setCurrent, checkConditions, wouldInterrupt, createContingentEvents,
// forcedInterrupt, interrupt, otherEffects, preResolution, executeHandlers,
// refillProvinces, checkGameState, thenAbilities, forcedReaction, reaction,
// restorePrevious.
type EventWindow struct {
	BaseStepWithPipeline

	ID   string
	game *Game

	events []*Event

	thenAbilities []thenRegistration
	refills       []refillRequest

	previous   *EventWindow
	handlerRan bool

	// suppressReactions marks windows created for abilities resolved via the
	// thenAbilities step: their child events do not re-offer the reaction
	// tiers, which belong only to the original triggering batch.
	suppressReactions bool
}

type refillRequest struct {
	player   string
	province string
}

// NewEventWindow creates a window owning the given events and builds its
// step pipeline.
func NewEventWindow(game *Game, events []*Event) *EventWindow {
	w := &EventWindow{
		ID:   uuid.NewString(),
		game: game,
	}
	for _, e := range events {
		w.AddEvent(e)
	}
	w.initializeSteps()
	return w
}

func (w *EventWindow) initializeSteps() {
	steps := []Step{
		NewSimpleStep(w.setCurrent),
		NewSimpleStep(w.checkConditions),
		NewSimpleStep(func() { w.openAbilityWindow(TierWouldInterrupt, nil) }),
		NewSimpleStep(w.createContingentEvents),
		NewSimpleStep(func() { w.openAbilityWindow(TierForcedInterrupt, nil) }),
		NewSimpleStep(func() { w.openAbilityWindow(TierInterrupt, nil) }),
		NewSimpleStep(w.notifyOtherEffects),
		NewSimpleStep(w.preResolutionEffects),
		NewSimpleStep(w.executeHandlers),
		NewSimpleStep(w.refillProvinces),
		NewSimpleStep(w.checkGameState),
		NewSimpleStep(w.resolveThenAbilities),
	}
	if !w.suppressReactions {
		steps = append(steps,
			NewSimpleStep(func() { w.openAbilityWindow(TierForcedReaction, nil) }),
			NewSimpleStep(func() { w.openAbilityWindow(TierReaction, nil) }),
		)
	}
	steps = append(steps, NewSimpleStep(w.restorePrevious))
	if err := w.pipeline.Initialize(steps); err != nil {
		panic(fmt.Sprintf("event window %s: %v", w.ID, err))
	}
}

// AddEvent transfers ownership of the event to this window.
func (w *EventWindow) AddEvent(e *Event) {
	e.Window = w
	w.events = append(w.events, e)
}

func (w *EventWindow) removeEvent(e *Event) {
	for i, candidate := range w.events {
		if candidate == e {
			w.events = append(w.events[:i], w.events[i+1:]...)
			return
		}
	}
}

// Events returns the events currently owned by this window.
func (w *EventWindow) Events() []*Event {
	return w.events
}

// QueueProvinceRefill records that the given province must be refilled once
// the batch's handlers have executed. Called from handlers when dynasty cards
// leave a province.
func (w *EventWindow) QueueProvinceRefill(player, province string) {
	w.refills = append(w.refills, refillRequest{player: player, province: province})
}

// setCurrent records the previously current window and installs this one, so
// ability code anywhere in the system can discover what is resolving right
// now without being handed an explicit reference.
func (w *EventWindow) setCurrent() {
	w.previous = w.game.CurrentWindow()
	w.game.setCurrentWindow(w)
	w.game.logger.Debug("event window opened",
		zap.String("window_id", w.ID),
		zap.Int("events", len(w.events)),
		zap.Bool("nested", w.previous != nil),
	)
}

// checkConditions re-validates every event's predicate. Events failing now
// are cancelled before any interrupt window opens, so players are never
// offered a chance to interrupt something that can no longer happen.
func (w *EventWindow) checkConditions() {
	for _, e := range w.events {
		e.CheckCondition()
	}
}

func (w *EventWindow) openAbilityWindow(tier AbilityTier, exclude []*Event) {
	w.QueueStep(newAbilityWindow(w.game, tier, w, exclude))
}

// createContingentEvents asks every surviving event for its contingent
// events. Contingent events join this same window, sharing the remaining
// tiers of the resolution, and get their own wouldInterrupt opportunity — the
// extra window excludes the original events so they cannot be interrupted a
// second time.
func (w *EventWindow) createContingentEvents() {
	var contingent []*Event
	for _, e := range w.events {
		if e.Cancelled() {
			continue
		}
		contingent = append(contingent, e.CreateContingentEvents()...)
	}
	if len(contingent) == 0 {
		return
	}
	originals := append([]*Event(nil), w.events...)
	w.openAbilityWindow(TierWouldInterrupt, originals)
	for _, e := range contingent {
		w.AddEvent(e)
	}
	w.game.logger.Debug("contingent events created",
		zap.String("window_id", w.ID),
		zap.Int("count", len(contingent)),
	)
}

// notifyOtherEffects broadcasts the otherEffects notification per surviving
// event. Persistent and delayed effects listen for these to decide whether to
// cancel themselves; this is not an ability-trigger tier.
func (w *EventWindow) notifyOtherEffects() {
	for _, e := range w.events {
		if e.Cancelled() {
			continue
		}
		w.game.emit(e.Name.OtherEffects(), e)
	}
}

func (w *EventWindow) preResolutionEffects() {
	for _, e := range w.events {
		if e.Cancelled() {
			continue
		}
		e.applyPreResolution()
	}
}

// executeHandlers fixes cross-event ordering (stable sort by Order, ties keep
// insertion order) and runs each surviving event's handler. Each event's
// condition is re-checked immediately before its own handler runs, because a
// sibling's handler may have just invalidated it. Cancelled events are
// skipped and logged, not treated as errors.
func (w *EventWindow) executeHandlers() {
	sort.SliceStable(w.events, func(i, j int) bool {
		return w.events[i].Order < w.events[j].Order
	})
	for _, e := range w.events {
		if e.Resolved() {
			continue
		}
		e.CheckCondition()
		if e.Cancelled() {
			w.game.logger.Debug("skipping cancelled event",
				zap.String("window_id", w.ID),
				zap.String("event", string(e.Name)),
				zap.String("event_id", e.ID),
			)
			continue
		}
		name := e.ExecuteHandler()
		w.handlerRan = true
		w.game.emit(name, e)
	}
}

func (w *EventWindow) refillProvinces() {
	if w.game.refiller == nil {
		w.refills = nil
		return
	}
	for _, req := range w.refills {
		w.game.refiller.RefillProvince(req.player, req.province)
	}
	w.refills = nil
}

func (w *EventWindow) checkGameState() {
	if w.game.stateChecker != nil {
		w.game.stateChecker.CheckGameState(w.handlerRan, w.events)
	}
}

// restorePrevious reinstalls the previously current window, re-running its
// condition checks since time has passed and its events may now be invalid,
// or clears the current-window pointer if this was the outermost window.
func (w *EventWindow) restorePrevious() {
	if w.suppressReactions {
		w.transferLeftovers()
	}
	if w.previous != nil {
		w.previous.checkConditions()
		w.game.setCurrentWindow(w.previous)
	} else {
		w.game.setCurrentWindow(nil)
	}
	w.game.logger.Debug("event window closed", zap.String("window_id", w.ID))
}
