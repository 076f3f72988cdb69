package rules

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriggerChoice is one activatable ability offered in an ability window,
// attributed to the events that made it eligible.
type TriggerChoice struct {
	ID      string
	Ability *TriggeredAbility
	Events  []*Event
}

// Chooser is the player/prompt collaborator. OfferChoice is a polled query:
// it returns answered=false while the player has not decided yet, and the
// selected choice ID (empty string for pass) once they have. It must never
// block.
type Chooser interface {
	OfferChoice(player string, tier AbilityTier, choices []TriggerChoice) (selection string, answered bool)
}

// StateChecker is notified once per batch after handler execution. handlerRan
// reports whether any handler actually executed, so global win/loss checks
// can skip batches where nothing changed.
type StateChecker interface {
	CheckGameState(handlerRan bool, events []*Event)
}

// ProvinceRefiller fills an empty province slot after dynasty cards leave it.
type ProvinceRefiller interface {
	RefillProvince(player, province string)
}

// Game hosts the rules-timing core for one game: the root pipeline, the
// ability registry, the notification bus, the current-window stack and the
// collaborator interfaces. Single actor: one call into Continue at a time.
type Game struct {
	ID     string
	logger *zap.Logger

	pipeline  Pipeline
	abilities *AbilityRegistry
	bus       *NotificationBus
	watchers  *WatcherRegistry

	chooser      Chooser
	stateChecker StateChecker
	refiller     ProvinceRefiller

	players    []string
	turnPlayer string

	currentWindow *EventWindow
}

// NewGame creates a rules host for the given players. The first player is the
// initial turn player.
func NewGame(players []string, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Game{
		ID:        uuid.NewString(),
		logger:    logger,
		abilities: NewAbilityRegistry(),
		bus:       NewNotificationBus(),
		watchers:  NewWatcherRegistry(),
		players:   append([]string(nil), players...),
	}
	if len(g.players) > 0 {
		g.turnPlayer = g.players[0]
	}
	g.bus.Subscribe(g.watchers.Notify)
	return g
}

// SetChooser installs the prompt collaborator. A nil chooser auto-passes all
// optional tiers.
func (g *Game) SetChooser(c Chooser) { g.chooser = c }

// SetStateChecker installs the game-state collaborator.
func (g *Game) SetStateChecker(sc StateChecker) { g.stateChecker = sc }

// SetProvinceRefiller installs the province refill collaborator.
func (g *Game) SetProvinceRefiller(r ProvinceRefiller) { g.refiller = r }

// SetTurnPlayer changes whose turn it is; turn order drives forced-tier
// resolution order and optional-tier offering order.
func (g *Game) SetTurnPlayer(player string) { g.turnPlayer = player }

// TurnPlayer returns the current turn player.
func (g *Game) TurnPlayer() string { return g.turnPlayer }

// PlayersInOrder returns all players starting from the given one, in turn
// order. An unknown first player falls back to table order.
func (g *Game) PlayersInOrder(first string) []string {
	start := 0
	for i, p := range g.players {
		if p == first {
			start = i
			break
		}
	}
	ordered := make([]string, 0, len(g.players))
	for i := 0; i < len(g.players); i++ {
		ordered = append(ordered, g.players[(start+i)%len(g.players)])
	}
	return ordered
}

// RegisterAbility adds a triggered ability to the game.
func (g *Game) RegisterAbility(ability *TriggeredAbility) (string, error) {
	return g.abilities.Register(ability)
}

// UnregisterAbility removes a triggered ability by ID.
func (g *Game) UnregisterAbility(id string) {
	g.abilities.Unregister(id)
}

// Bus exposes the notification bus for collaborators (journal, delayed
// effects, UI log).
func (g *Game) Bus() *NotificationBus { return g.bus }

// Watchers exposes the delayed-effect watcher registry.
func (g *Game) Watchers() *WatcherRegistry { return g.watchers }

// Logger returns the game's logger.
func (g *Game) Logger() *zap.Logger { return g.logger }

// CurrentWindow returns the event window currently resolving, or nil.
func (g *Game) CurrentWindow() *EventWindow { return g.currentWindow }

func (g *Game) setCurrentWindow(w *EventWindow) { g.currentWindow = w }

// QueueStep inserts a step into the innermost active pipeline.
func (g *Game) QueueStep(step Step) {
	g.pipeline.QueueStep(step)
}

// Resolve submits a batch of events for resolution and returns the window
// driving it. Resolution is not guaranteed to complete synchronously; the
// caller keeps invoking Continue until it reports done.
func (g *Game) Resolve(events ...*Event) *EventWindow {
	w := NewEventWindow(g, events)
	g.QueueStep(w)
	return w
}

// Continue advances the pipeline. It returns done=true once all pending work
// has drained, or done=false when a window is waiting for player input. Data
// errors (malformed ability contexts) abort the entire in-flight batch and
// are returned as typed errors; programmer-error panics propagate.
func (g *Game) Continue() (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ctxErr, ok := r.(*ContextError); ok {
				g.abort()
				done = false
				err = ctxErr
				return
			}
			panic(r)
		}
	}()
	return g.pipeline.Continue(), nil
}

// fail aborts the in-flight batch with a data error. Implemented as a panic
// unwound by Continue so that no further tier of the broken window runs.
func (g *Game) fail(err *ContextError) {
	panic(err)
}

func (g *Game) abort() {
	g.pipeline = Pipeline{}
	g.currentWindow = nil
	g.logger.Warn("aborted event resolution", zap.String("game_id", g.ID))
}

// emit publishes a notification on the bus.
func (g *Game) emit(name string, e *Event) {
	g.bus.Publish(Notification{Name: name, Event: e, Timestamp: time.Now()})
}
