package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWindowResolvesSingleEvent(t *testing.T) {
	g := newTestGame()
	ran := false
	e := NewEvent(EventFateRemoved)
	e.Handler = func(*Event) { ran = true }

	g.Resolve(e)
	drive(t, g)

	assert.True(t, ran)
	assert.True(t, e.FullyResolved())
	assert.Nil(t, g.CurrentWindow())
}

func TestEventWindowExecutesHandlersInOrder(t *testing.T) {
	g := newTestGame()

	x := 0
	var handlerOrder []string
	var observed []int

	a := NewEvent(EventFateRemoved)
	a.Order = 1
	a.Handler = func(*Event) {
		x = 1
		handlerOrder = append(handlerOrder, "a")
	}

	b := NewEvent(EventCardDishonored)
	b.Order = 2
	b.Condition = func(*Event) bool {
		observed = append(observed, x)
		return true
	}
	b.Handler = func(*Event) { handlerOrder = append(handlerOrder, "b") }

	// Insertion order is b first; the stable sort on Order immediately
	// before handler execution must still run a first.
	g.Resolve(b, a)
	drive(t, g)

	assert.Equal(t, []string{"a", "b"}, handlerOrder)
	// b's final condition check, immediately before its own handler, must
	// see a's effects.
	require.NotEmpty(t, observed)
	assert.Equal(t, 1, observed[len(observed)-1])
}

func TestRestorePreviousRechecksOuterConditions(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickFirst())

	destroyed := false
	handlerRan := false
	lateOffered := false

	outer := NewEvent(EventProvinceBroken)
	outer.Condition = func(*Event) bool { return !destroyed }
	outer.Handler = func(*Event) { handlerRan = true }

	// Resolving this spawns a nested window whose handler invalidates the
	// outer event's condition.
	mustRegister(t, g, &TriggeredAbility{
		Title:      "undermine",
		Tier:       TierWouldInterrupt,
		EventNames: []EventName{EventProvinceBroken},
		Resolve: func(*AbilityContext) []*Event {
			loss := NewEvent(EventCardLeavesPlay)
			loss.Handler = func(*Event) { destroyed = true }
			return []*Event{loss}
		},
	})
	mustRegister(t, g, &TriggeredAbility{
		Title:      "too late",
		Tier:       TierInterrupt,
		EventNames: []EventName{EventProvinceBroken},
		CanTrigger: func([]*Event) bool { lateOffered = true; return true },
		Resolve:    noopResolve,
	})

	g.Resolve(outer)
	drive(t, g)

	// The nested window's restore re-ran the outer window's condition checks,
	// so the invalidated event is cancelled before any later tier opens.
	assert.True(t, outer.Cancelled())
	assert.False(t, handlerRan)
	assert.False(t, lateOffered)
}

func TestPreResolutionRunsAfterInterruptsBeforeHandler(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickFirst())

	var sequence []string

	mustRegister(t, g, &TriggeredAbility{
		Title:      "meddle",
		Tier:       TierInterrupt,
		EventNames: []EventName{EventFateRemoved},
		Resolve: func(*AbilityContext) []*Event {
			sequence = append(sequence, "interrupt")
			return nil
		},
	})

	e := NewEvent(EventFateRemoved)
	e.PreResolution = func(*Event) { sequence = append(sequence, "preResolution") }
	e.Handler = func(*Event) { sequence = append(sequence, "handler") }

	g.Resolve(e)
	drive(t, g)

	assert.Equal(t, []string{"interrupt", "preResolution", "handler"}, sequence)
}

func TestInterruptCanReorderHandlerExecution(t *testing.T) {
	g := newTestGame()

	var handlerOrder []string

	a := NewEvent(EventFateRemoved)
	a.Order = 1
	a.Handler = func(*Event) { handlerOrder = append(handlerOrder, "a") }

	b := NewEvent(EventCardDishonored)
	b.Order = 2
	b.Handler = func(*Event) { handlerOrder = append(handlerOrder, "b") }

	// Order stays mutable until handler execution; swapping it during an
	// interrupt flips the batch's execution order.
	mustRegister(t, g, &TriggeredAbility{
		Title:      "shuffle",
		Tier:       TierForcedInterrupt,
		EventNames: []EventName{EventFateRemoved},
		Resolve: func(*AbilityContext) []*Event {
			a.Order = 3
			b.Order = 0
			return nil
		},
	})

	g.Resolve(a, b)
	drive(t, g)

	assert.Equal(t, []string{"b", "a"}, handlerOrder)
}

func TestEventWindowCancelsFailedConditionsBeforeInterrupts(t *testing.T) {
	g := newTestGame()

	offered := false
	mustRegister(t, g, &TriggeredAbility{
		Title:      "pounce",
		Tier:       TierInterrupt,
		EventNames: []EventName{EventCardLeavesPlay},
		CanTrigger: func([]*Event) bool { offered = true; return true },
		Resolve:    noopResolve,
	})

	e := NewEvent(EventCardLeavesPlay)
	e.Condition = func(*Event) bool { return false }

	g.Resolve(e)
	drive(t, g)

	assert.True(t, e.Cancelled())
	assert.False(t, e.Resolved())
	// Players are never offered a chance to interrupt something that can no
	// longer happen.
	assert.False(t, offered)
}

func TestWouldInterruptCancelsEvent(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickFirst())

	handlerRan := false
	reactionOffered := false

	mustRegister(t, g, &TriggeredAbility{
		Title:      "deny",
		Tier:       TierWouldInterrupt,
		EventNames: []EventName{EventProvinceBroken},
		Resolve: func(ctx *AbilityContext) []*Event {
			for _, e := range ctx.Events {
				e.Cancel()
			}
			return nil
		},
	})
	mustRegister(t, g, &TriggeredAbility{
		Title:      "gloat",
		Tier:       TierReaction,
		EventNames: []EventName{EventProvinceBroken},
		CanTrigger: func([]*Event) bool { reactionOffered = true; return true },
		Resolve:    noopResolve,
	})

	e := NewEvent(EventProvinceBroken)
	e.Handler = func(*Event) { handlerRan = true }

	g.Resolve(e)
	drive(t, g)

	assert.True(t, e.Cancelled())
	assert.False(t, handlerRan)
	assert.False(t, reactionOffered, "cancelled events must not make reactions eligible")
}

func TestContingentEventGetsOwnWouldInterruptOpportunity(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickFirst())

	var offeredEvents [][]string
	dishonorRan := false
	leaveRan := false

	dishonor := NewEvent(EventCardDishonored)
	dishonor.Handler = func(*Event) { dishonorRan = true }

	leave := NewEvent(EventCardLeavesPlay)
	leave.Handler = func(*Event) { leaveRan = true }
	leave.ContingentEvents = func(*Event) []*Event { return []*Event{dishonor} }

	mustRegister(t, g, &TriggeredAbility{
		Title: "observe",
		Tier:  TierWouldInterrupt,
		CanTrigger: func(events []*Event) bool {
			var names []string
			for _, e := range events {
				names = append(names, string(e.Name))
			}
			offeredEvents = append(offeredEvents, names)
			return false
		},
		Resolve: noopResolve,
	})

	g.Resolve(leave)
	drive(t, g)

	// Both events resolve within the same outer window.
	assert.True(t, leaveRan)
	assert.True(t, dishonorRan)
	assert.Same(t, leave.Window, dishonor.Window)

	// The first wouldInterrupt pass sees only the original event; the
	// courtesy pass for the contingent event excludes the original.
	require.Len(t, offeredEvents, 2)
	assert.Equal(t, []string{string(EventCardLeavesPlay)}, offeredEvents[0])
	assert.Equal(t, []string{string(EventCardDishonored)}, offeredEvents[1])
}

func TestThenAbilityResolvesAfterHandlers(t *testing.T) {
	t.Run("resolves when event fully resolved", func(t *testing.T) {
		g := newTestGame()

		thenRan := false
		e := NewEvent(EventDuelFinished)
		e.Handler = func(e *Event) {
			e.Window.RegisterThenAbility([]*Event{e}, ThenAbility{
				Title:  "aftermath",
				Player: "player2",
				Source: "duel-card",
				Resolve: func(ctx *AbilityContext) []*Event {
					thenRan = true
					return nil
				},
			})
		}

		g.Resolve(e)
		drive(t, g)
		assert.True(t, thenRan)
	})

	t.Run("discarded when event cancelled", func(t *testing.T) {
		g := newTestGame()
		g.SetChooser(pickFirst())

		thenRan := false
		target := NewEvent(EventCardDishonored)
		carrier := NewEvent(EventDuelFinished)
		carrier.Handler = func(e *Event) {
			e.Window.RegisterThenAbility([]*Event{target}, ThenAbility{
				Title:  "aftermath",
				Player: "player2",
				Source: "duel-card",
				Resolve: func(ctx *AbilityContext) []*Event {
					thenRan = true
					return nil
				},
			})
		}

		mustRegister(t, g, &TriggeredAbility{
			Title:      "deny",
			Tier:       TierWouldInterrupt,
			EventNames: []EventName{EventCardDishonored},
			Resolve: func(ctx *AbilityContext) []*Event {
				for _, e := range ctx.Events {
					e.Cancel()
				}
				return nil
			},
		})

		g.Resolve(carrier, target)
		drive(t, g)

		assert.True(t, target.Cancelled())
		assert.False(t, thenRan)
	})
}

func TestThenAbilityEventsSkipReactionTiers(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickTitled("react-to-honor", "react-to-duel"))

	honorReaction := false
	duelReaction := false

	mustRegister(t, g, &TriggeredAbility{
		Title:      "react-to-honor",
		Tier:       TierReaction,
		EventNames: []EventName{EventCardHonored},
		Resolve: func(*AbilityContext) []*Event {
			honorReaction = true
			return nil
		},
	})
	mustRegister(t, g, &TriggeredAbility{
		Title:      "react-to-duel",
		Tier:       TierReaction,
		EventNames: []EventName{EventDuelFinished},
		Resolve: func(*AbilityContext) []*Event {
			duelReaction = true
			return nil
		},
	})

	honorRan := false
	e := NewEvent(EventDuelFinished)
	e.Handler = func(e *Event) {
		e.Window.RegisterThenAbility([]*Event{e}, ThenAbility{
			Title:  "honor the victor",
			Player: "player1",
			Source: "duel-card",
			Resolve: func(ctx *AbilityContext) []*Event {
				honor := NewEvent(EventCardHonored)
				honor.Handler = func(*Event) { honorRan = true }
				return []*Event{honor}
			},
		})
	}

	g.Resolve(e)
	drive(t, g)

	assert.True(t, honorRan, "then ability's event must still resolve")
	assert.False(t, honorReaction, "then-window events must not re-offer reaction tiers")
	assert.True(t, duelReaction, "the original batch keeps its reaction tiers")
}

func TestThenAbilityForeignEventPanics(t *testing.T) {
	g := newTestGame()
	w := NewEventWindow(g, nil)
	foreign := NewEvent(EventCardMoved)

	require.Panics(t, func() {
		w.RegisterThenAbility([]*Event{foreign}, ThenAbility{Title: "bad", Player: "player1"})
	})
}

func TestThenWindowTransfersLeftoverEvents(t *testing.T) {
	g := newTestGame()
	parent := NewEventWindow(g, nil)

	leftover := NewEvent(EventCardMoved)
	resolved := NewEvent(EventCardHonored)
	resolved.ExecuteHandler()

	then := NewThenEventWindow(g, []*Event{leftover, resolved})
	then.previous = parent
	then.transferLeftovers()

	require.Len(t, parent.Events(), 1)
	assert.Same(t, leftover, parent.Events()[0])
	assert.Same(t, parent, leftover.Window)
	assert.Len(t, then.Events(), 1)
}

func TestInterruptAbilityNestsCompleteWindow(t *testing.T) {
	g := newTestGame()
	g.SetChooser(pickTitled("sacrifice", "mourn"))

	var sequence []string

	mustRegister(t, g, &TriggeredAbility{
		Title:      "sacrifice",
		Tier:       TierInterrupt,
		EventNames: []EventName{EventProvinceBroken},
		Resolve: func(ctx *AbilityContext) []*Event {
			sequence = append(sequence, "interrupt")
			loss := NewEvent(EventCardLeavesPlay)
			loss.Handler = func(*Event) { sequence = append(sequence, "nested handler") }
			return []*Event{loss}
		},
	})
	mustRegister(t, g, &TriggeredAbility{
		Title:      "mourn",
		Tier:       TierReaction,
		EventNames: []EventName{EventCardLeavesPlay},
		Resolve: func(*AbilityContext) []*Event {
			sequence = append(sequence, "nested reaction")
			return nil
		},
	})

	e := NewEvent(EventProvinceBroken)
	e.Handler = func(*Event) { sequence = append(sequence, "outer handler") }

	g.Resolve(e)
	drive(t, g)

	// The nested window completes fully, including its own reaction tiers,
	// before the outer window's handlers run.
	assert.Equal(t, []string{"interrupt", "nested handler", "nested reaction", "outer handler"}, sequence)
	assert.Nil(t, g.CurrentWindow())
}

func TestForcedAbilityWithoutTargetIsSkipped(t *testing.T) {
	g := newTestGame()

	resolved := false
	mustRegister(t, g, &TriggeredAbility{
		Title:      "must fire",
		Tier:       TierForcedReaction,
		EventNames: []EventName{EventRingClaimed},
		CanTrigger: func([]*Event) bool { return false },
		Resolve: func(*AbilityContext) []*Event {
			resolved = true
			return nil
		},
	})

	e := NewEvent(EventRingClaimed)
	g.Resolve(e)
	drive(t, g)

	assert.False(t, resolved)
	assert.True(t, e.FullyResolved())
	assert.Nil(t, g.CurrentWindow(), "window must still reach restorePrevious")
}

func TestCheckGameStateReportsWhetherHandlersRan(t *testing.T) {
	g := newTestGame()
	checker := &stubChecker{}
	g.SetStateChecker(checker)

	ok := NewEvent(EventFateCollected)
	g.Resolve(ok)
	drive(t, g)

	doomed := NewEvent(EventFateCollected)
	doomed.Condition = func(*Event) bool { return false }
	g.Resolve(doomed)
	drive(t, g)

	assert.Equal(t, []bool{true, false}, checker.calls)
}

func TestProvinceRefillRequestsHandledAfterHandlers(t *testing.T) {
	g := newTestGame()
	refiller := &stubRefiller{}
	g.SetProvinceRefiller(refiller)

	e := NewEvent(EventCardLeavesPlay)
	e.Handler = func(e *Event) {
		e.Window.QueueProvinceRefill("player2", "province-3")
	}

	g.Resolve(e)
	drive(t, g)

	assert.Equal(t, []string{"player2/province-3"}, refiller.requests)
}

func TestOtherEffectsNotificationBroadcast(t *testing.T) {
	g := newTestGame()

	var names []string
	g.Bus().Subscribe(func(n Notification) { names = append(names, n.Name) })

	e := NewEvent(EventCardDishonored)
	g.Resolve(e)
	drive(t, g)

	assert.Equal(t, []string{
		EventCardDishonored.OtherEffects(),
		string(EventCardDishonored),
	}, names)
}

func TestDataErrorAbortsBatch(t *testing.T) {
	g := newTestGame()

	handlerRan := false
	_, err := g.RegisterAbility(&TriggeredAbility{
		Title: "broken",
		Tier:  TierForcedInterrupt,
		// Missing controller and source: malformed context.
		EventNames: []EventName{EventConflictDeclared},
		Resolve:    noopResolve,
	})
	require.NoError(t, err)

	e := NewEvent(EventConflictDeclared)
	e.Handler = func(*Event) { handlerRan = true }
	g.Resolve(e)

	done, err := g.Continue()
	require.Error(t, err)
	var ctxErr *ContextError
	require.True(t, errors.As(err, &ctxErr))
	assert.Equal(t, "broken", ctxErr.Title)
	assert.False(t, done)

	// The batch was aborted: nothing else runs and the pipeline is clear.
	assert.False(t, handlerRan)
	done, err = g.Continue()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Nil(t, g.CurrentWindow())
}

func TestDelayedEffectWatcherSeesOtherEffects(t *testing.T) {
	g := newTestGame()

	watcher := &expiryWatcher{key: "delayed-honor"}
	g.Watchers().Add(watcher)

	e := NewEvent(EventConflictFinished)
	g.Resolve(e)
	drive(t, g)

	assert.True(t, watcher.ConditionMet())
}

// expiryWatcher marks its condition once the conflict-finished otherEffects
// broadcast is seen, the point where a delayed effect decides whether to
// cancel itself.
type expiryWatcher struct {
	key     string
	expired bool
}

func (w *expiryWatcher) Watch(n Notification) {
	if n.Name == EventConflictFinished.OtherEffects() {
		w.expired = true
	}
}

func (w *expiryWatcher) Reset()             { w.expired = false }
func (w *expiryWatcher) ConditionMet() bool { return w.expired }
func (w *expiryWatcher) Key() string        { return w.key }
