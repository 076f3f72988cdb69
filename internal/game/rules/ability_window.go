package rules

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type abilityWindowState int

const (
	windowCollecting abilityWindowState = iota
	windowAwaitingChoice
	windowResolving
	windowClosed
)

// AbilityWindow drives one priority tier for one event batch: it gathers the
// triggered abilities eligible at that tier, lets the relevant players choose
// (or auto-selects at forced tiers), and resolves chosen abilities one at a
// time. Eligibility is recomputed on every collection pass, never cached,
// because earlier resolutions in the same batch can change what is legal.
type AbilityWindow struct {
	BaseStepWithPipeline

	game        *Game
	tier        AbilityTier
	eventWindow *EventWindow

	// exclude holds event IDs this window must not offer, used by the
	// courtesy wouldInterrupt window opened for contingent events so the
	// original events are not offered a second time.
	exclude map[string]bool

	state   abilityWindowState
	choices []TriggerChoice
	players []string
	chosen  *TriggerChoice

	uses        map[string]int
	failedCosts map[string]bool
}

func newAbilityWindow(game *Game, tier AbilityTier, eventWindow *EventWindow, excludeEvents []*Event) *AbilityWindow {
	w := &AbilityWindow{
		game:        game,
		tier:        tier,
		eventWindow: eventWindow,
		exclude:     make(map[string]bool),
		uses:        make(map[string]int),
		failedCosts: make(map[string]bool),
	}
	for _, e := range excludeEvents {
		w.exclude[e.ID] = true
	}
	return w
}

// Continue advances the tier's state machine. It returns false while a player
// choice is outstanding or a nested event window is still draining.
func (w *AbilityWindow) Continue() bool {
	for {
		// Nested windows created by resolved abilities drain before the
		// tier advances.
		if !w.pipeline.Continue() {
			return false
		}
		switch w.state {
		case windowCollecting:
			w.collect()
			if len(w.choices) == 0 {
				w.state = windowClosed
				continue
			}
			if w.tier.Forced() {
				w.chosen = w.nextForced()
				w.state = windowResolving
			} else {
				w.players = w.game.PlayersInOrder(w.game.TurnPlayer())
				w.state = windowAwaitingChoice
			}
		case windowAwaitingChoice:
			if !w.offerNext() {
				return false
			}
		case windowResolving:
			w.resolveChosen()
		case windowClosed:
			return true
		}
	}
}

// collect re-scans registered abilities for this tier against the events
// currently in the parent window. Cancelled and excluded events never make an
// ability eligible; abilities over their per-window limit or whose cost just
// failed this pass are skipped.
func (w *AbilityWindow) collect() {
	w.choices = w.choices[:0]
	events := w.eligibleEvents()
	if len(events) == 0 {
		return
	}
	for _, ability := range w.game.abilities.ForTier(w.tier) {
		if !ability.Limit.allows(w.uses[ability.ID]) || w.failedCosts[ability.ID] {
			continue
		}
		var matched []*Event
		for _, e := range events {
			if ability.matches(e) {
				matched = append(matched, e)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if ability.CanTrigger != nil && !ability.CanTrigger(matched) {
			continue
		}
		w.choices = append(w.choices, TriggerChoice{
			ID:      uuid.NewString(),
			Ability: ability,
			Events:  matched,
		})
	}
}

func (w *AbilityWindow) eligibleEvents() []*Event {
	var events []*Event
	for _, e := range w.eventWindow.events {
		if e.Cancelled() || w.exclude[e.ID] {
			continue
		}
		events = append(events, e)
	}
	return events
}

// nextForced picks the next forced ability deterministically: turn player
// first, then the other players in turn order; within a player, ability
// registration order.
func (w *AbilityWindow) nextForced() *TriggerChoice {
	for _, player := range w.game.PlayersInOrder(w.game.TurnPlayer()) {
		for i := range w.choices {
			if w.choices[i].Ability.Controller == player {
				return &w.choices[i]
			}
		}
	}
	return &w.choices[0]
}

// offerNext offers the current player their eligible choices through the
// chooser. It returns false while the prompt is unanswered. Passing moves to
// the next player; when every player has passed the tier closes.
func (w *AbilityWindow) offerNext() bool {
	for len(w.players) > 0 {
		player := w.players[0]
		choices := w.choicesFor(player)
		if len(choices) == 0 {
			w.players = w.players[1:]
			continue
		}
		if w.game.chooser == nil {
			// No prompt collaborator installed: optional tiers auto-pass.
			w.players = w.players[1:]
			continue
		}
		selection, answered := w.game.chooser.OfferChoice(player, w.tier, choices)
		if !answered {
			return false
		}
		if selection == "" {
			w.players = w.players[1:]
			continue
		}
		for i := range w.choices {
			if w.choices[i].ID == selection {
				w.chosen = &w.choices[i]
				w.state = windowResolving
				return true
			}
		}
		w.game.logger.Warn("unknown trigger choice selected",
			zap.String("player", player),
			zap.String("choice_id", selection),
		)
		w.players = w.players[1:]
	}
	w.state = windowClosed
	return true
}

func (w *AbilityWindow) choicesFor(player string) []TriggerChoice {
	var choices []TriggerChoice
	for _, c := range w.choices {
		if c.Ability.Controller == player {
			choices = append(choices, c)
		}
	}
	return choices
}

// resolveChosen resolves the chosen ability in a fresh ability-resolution
// context. New events it generates are pushed into a new nested event window
// on this window's own pipeline, never into the currently open one. After a
// resolution the tier re-collects so chained triggers at the same tier get
// their opportunity. A cost that cannot be paid leaves no state change and
// the remaining choices are offered again.
func (w *AbilityWindow) resolveChosen() {
	choice := w.chosen
	w.chosen = nil
	w.state = windowCollecting
	if choice == nil {
		return
	}

	ability := choice.Ability
	ctx, ctxErr := newAbilityContext(w.game, ability, choice.Events)
	if ctxErr != nil {
		w.state = windowClosed
		w.game.fail(ctxErr)
		return
	}
	if ability.PayCost != nil && !ability.PayCost(ctx) {
		w.failedCosts[ability.ID] = true
		w.game.logger.Debug("ability cost not paid",
			zap.String("ability", ability.Title),
			zap.String("tier", w.tier.String()),
		)
		return
	}

	w.uses[ability.ID]++
	w.failedCosts = make(map[string]bool)
	w.game.logger.Debug("resolving triggered ability",
		zap.String("ability", ability.Title),
		zap.String("player", ability.Controller),
		zap.String("tier", w.tier.String()),
	)
	events := ability.Resolve(ctx)
	if len(events) > 0 {
		w.QueueStep(NewEventWindow(w.game, events))
	}
}
