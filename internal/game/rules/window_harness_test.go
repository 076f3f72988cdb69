package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// autoChooser answers every prompt immediately using the pick function.
// A nil pick passes everything.
type autoChooser struct {
	pick func(player string, tier AbilityTier, choices []TriggerChoice) string
}

func (c *autoChooser) OfferChoice(player string, tier AbilityTier, choices []TriggerChoice) (string, bool) {
	if c.pick == nil {
		return "", true
	}
	return c.pick(player, tier, choices), true
}

// pickFirst always activates the first offered choice.
func pickFirst() *autoChooser {
	return &autoChooser{pick: func(_ string, _ AbilityTier, choices []TriggerChoice) string {
		return choices[0].ID
	}}
}

// pickTitled activates the named abilities whenever offered and passes
// otherwise.
func pickTitled(titles ...string) *autoChooser {
	wanted := make(map[string]bool, len(titles))
	for _, title := range titles {
		wanted[title] = true
	}
	return &autoChooser{pick: func(_ string, _ AbilityTier, choices []TriggerChoice) string {
		for _, c := range choices {
			if wanted[c.Ability.Title] {
				return c.ID
			}
		}
		return ""
	}}
}

// stubChecker records every CheckGameState call.
type stubChecker struct {
	calls []bool
}

func (s *stubChecker) CheckGameState(handlerRan bool, _ []*Event) {
	s.calls = append(s.calls, handlerRan)
}

// stubRefiller records province refill requests as "player/province".
type stubRefiller struct {
	requests []string
}

func (s *stubRefiller) RefillProvince(player, province string) {
	s.requests = append(s.requests, player+"/"+province)
}

func newTestGame() *Game {
	return NewGame([]string{"player1", "player2"}, zap.NewNop())
}

// drive runs the game's pipeline to completion, failing the test if it
// blocks or errors.
func drive(t *testing.T, g *Game) {
	t.Helper()
	done, err := g.Continue()
	require.NoError(t, err)
	require.True(t, done)
}

func mustRegister(t *testing.T, g *Game, ability *TriggeredAbility) string {
	t.Helper()
	if ability.Controller == "" {
		ability.Controller = "player1"
	}
	if ability.Source == "" {
		ability.Source = "test-card"
	}
	id, err := g.RegisterAbility(ability)
	require.NoError(t, err)
	return id
}
