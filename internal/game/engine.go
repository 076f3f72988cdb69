package game

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fiverings/rings-server-go/internal/game/rules"
)

// PromptChoice is the transport-facing view of one activatable ability.
type PromptChoice struct {
	ID        string   `json:"id"`
	AbilityID string   `json:"ability_id"`
	Title     string   `json:"title"`
	EventIDs  []string `json:"event_ids"`
}

// PendingPrompt is an unanswered ability choice waiting on a player. The
// rules core re-offers it on every poll until a choice is submitted.
type PendingPrompt struct {
	Player  string         `json:"player"`
	Tier    string         `json:"tier"`
	Choices []PromptChoice `json:"choices"`
}

// promptChooser implements rules.Chooser by parking unanswered prompts as
// data. The rules core polls it; transports read the pending prompt and feed
// submitted choices back in.
type promptChooser struct {
	mu      sync.Mutex
	pending *PendingPrompt
	answer  *string
}

func (p *promptChooser) OfferChoice(player string, tier rules.AbilityTier, choices []rules.TriggerChoice) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.answer != nil && p.pending != nil && p.pending.Player == player {
		selection := *p.answer
		p.answer = nil
		p.pending = nil
		return selection, true
	}

	prompt := &PendingPrompt{Player: player, Tier: tier.String()}
	for _, c := range choices {
		pc := PromptChoice{
			ID:        c.ID,
			AbilityID: c.Ability.ID,
			Title:     c.Ability.Title,
		}
		for _, e := range c.Events {
			pc.EventIDs = append(pc.EventIDs, e.ID)
		}
		prompt.Choices = append(prompt.Choices, pc)
	}
	p.pending = prompt
	return "", false
}

func (p *promptChooser) pendingPrompt() *PendingPrompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// submit records the player's selection for the pending prompt. An empty
// choice ID is a pass.
func (p *promptChooser) submit(player, choiceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return fmt.Errorf("no prompt pending")
	}
	if p.pending.Player != player {
		return fmt.Errorf("prompt is for player %s, not %s", p.pending.Player, player)
	}
	if choiceID != "" {
		found := false
		for _, c := range p.pending.Choices {
			if c.ID == choiceID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown choice %s", choiceID)
		}
	}
	p.answer = &choiceID
	return nil
}

// Instance is one hosted game: the rules core plus its prompt bridge.
// Access is serialized; the rules core itself is single actor.
type Instance struct {
	ID string

	mu     sync.Mutex
	rules  *rules.Game
	prompt *promptChooser
}

// Rules exposes the rules core for ability registration and collaborator
// wiring.
func (i *Instance) Rules() *rules.Game {
	return i.rules
}

// ResolveEvents submits a batch of events for resolution.
func (i *Instance) ResolveEvents(events ...*rules.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rules.Resolve(events...)
}

// Continue polls the rules pipeline once. done=false with a nil error means a
// prompt is waiting on a player.
func (i *Instance) Continue() (done bool, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rules.Continue()
}

// PendingPrompt returns the prompt currently waiting on a player, or nil.
func (i *Instance) PendingPrompt() *PendingPrompt {
	return i.prompt.pendingPrompt()
}

// SubmitChoice answers the pending prompt (empty choiceID passes) and
// advances resolution until it completes or blocks on the next prompt.
func (i *Instance) SubmitChoice(player, choiceID string) (done bool, err error) {
	if err := i.prompt.submit(player, choiceID); err != nil {
		return false, err
	}
	return i.Continue()
}

// Manager hosts the active game instances.
type Manager struct {
	logger   *zap.Logger
	journals *JournalRecorder

	mu    sync.RWMutex
	games map[string]*Instance
}

// NewManager creates a game manager. The journal recorder may be nil to
// disable resolution journaling.
func NewManager(logger *zap.Logger, journals *JournalRecorder) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:   logger,
		journals: journals,
		games:    make(map[string]*Instance),
	}
}

// CreateGame starts a new game instance for the given players.
func (m *Manager) CreateGame(players []string) *Instance {
	g := rules.NewGame(players, m.logger)
	prompt := &promptChooser{}
	g.SetChooser(prompt)
	if m.journals != nil {
		m.journals.Attach(g)
	}

	inst := &Instance{ID: g.ID, rules: g, prompt: prompt}
	m.mu.Lock()
	m.games[inst.ID] = inst
	m.mu.Unlock()

	m.logger.Info("game created",
		zap.String("game_id", inst.ID),
		zap.Strings("players", players),
	)
	return inst
}

// Game retrieves an instance by ID.
func (m *Manager) Game(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.games[id]
	return inst, ok
}

// RemoveGame drops an instance.
func (m *Manager) RemoveGame(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
}

// Count returns the number of hosted games.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
