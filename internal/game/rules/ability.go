package rules

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// AbilityLimit restricts how often an ability may trigger within a single
// ability window. The default (nil limit) is once per tier per batch.
type AbilityLimit struct {
	PerWindow int
}

func (l *AbilityLimit) allows(uses int) bool {
	max := 1
	if l != nil && l.PerWindow > 1 {
		max = l.PerWindow
	}
	return uses < max
}

// TriggeredAbility is a registered reaction to game events at one priority
// tier. The ability catalog constructs these; the rules core only evaluates
// and resolves them.
type TriggeredAbility struct {
	ID         string
	Title      string
	Tier       AbilityTier
	Controller string
	Source     string

	// EventNames filters which events this ability listens to. Empty means
	// any event in the window.
	EventNames []EventName

	// CanTrigger is evaluated against the current set of matching,
	// non-cancelled events each time an ability window collects choices.
	// A nil predicate is eligible whenever a matching event exists.
	CanTrigger func(events []*Event) bool

	// PayCost pays the ability's cost. Returning false means the ability is
	// treated as not actually triggered. Nil means no cost.
	PayCost func(ctx *AbilityContext) bool

	// Resolve executes the ability and returns any new events it generates.
	// Those events resolve in a new nested event window.
	Resolve func(ctx *AbilityContext) []*Event

	Limit *AbilityLimit
}

func (a *TriggeredAbility) matches(e *Event) bool {
	if len(a.EventNames) == 0 {
		return true
	}
	for _, name := range a.EventNames {
		if name == e.Name {
			return true
		}
	}
	return false
}

// AbilityContext is the fresh resolution context an ability executes in.
type AbilityContext struct {
	Game   *Game
	Player string
	Source string
	Events []*Event
}

// ContextError reports an ability or registration with a malformed context
// (missing player or source). Downstream tiers assume a consistent event set,
// so the surrounding batch is aborted rather than silently continued.
type ContextError struct {
	AbilityID string
	Title     string
	Missing   string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("ability %q (%s): context missing %s", e.Title, e.AbilityID, e.Missing)
}

func newAbilityContext(game *Game, ability *TriggeredAbility, events []*Event) (*AbilityContext, *ContextError) {
	if ability.Controller == "" {
		return nil, &ContextError{AbilityID: ability.ID, Title: ability.Title, Missing: "player"}
	}
	if ability.Source == "" {
		return nil, &ContextError{AbilityID: ability.ID, Title: ability.Title, Missing: "source"}
	}
	return &AbilityContext{
		Game:   game,
		Player: ability.Controller,
		Source: ability.Source,
		Events: events,
	}, nil
}

// AbilityRegistry stores triggered abilities in registration order.
// Registration order is the tie-break among same-priority abilities
// controlled by the same player at forced tiers.
type AbilityRegistry struct {
	mu        sync.Mutex
	abilities []*TriggeredAbility
	index     map[string]int
}

// NewAbilityRegistry creates an empty registry.
func NewAbilityRegistry() *AbilityRegistry {
	return &AbilityRegistry{
		index: make(map[string]int),
	}
}

// Register adds an ability, assigning an ID when missing. The tier tag and
// resolve hook are validated here rather than at trigger time.
func (r *AbilityRegistry) Register(ability *TriggeredAbility) (string, error) {
	if ability == nil {
		return "", fmt.Errorf("register: nil ability")
	}
	if !ability.Tier.Valid() {
		return "", fmt.Errorf("register %q: invalid tier %d", ability.Title, int(ability.Tier))
	}
	if ability.Resolve == nil {
		return "", fmt.Errorf("register %q: missing resolve", ability.Title)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ability.ID == "" {
		ability.ID = uuid.NewString()
	}
	if _, exists := r.index[ability.ID]; exists {
		return "", fmt.Errorf("register %q: duplicate id %s", ability.Title, ability.ID)
	}
	r.index[ability.ID] = len(r.abilities)
	r.abilities = append(r.abilities, ability)
	return ability.ID, nil
}

// Unregister removes an ability by ID.
func (r *AbilityRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.index[id]
	if !ok {
		return
	}
	r.abilities = append(r.abilities[:idx], r.abilities[idx+1:]...)
	delete(r.index, id)
	for i := idx; i < len(r.abilities); i++ {
		r.index[r.abilities[i].ID] = i
	}
}

// ForTier returns the abilities registered for the given tier in
// registration order.
func (r *AbilityRegistry) ForTier(tier AbilityTier) []*TriggeredAbility {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*TriggeredAbility
	for _, ability := range r.abilities {
		if ability.Tier == tier {
			result = append(result, ability)
		}
	}
	return result
}
