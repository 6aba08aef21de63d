package battle

import (
	"slices"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// Transitions lists every legal status change. Anything absent is rejected.
var Transitions = map[models.BattleStatus][]models.BattleStatus{
	models.BattlePending:       {models.BattleActive, models.BattleCompleted},
	models.BattleActive:        {models.BattleCardsRevealed, models.BattleCompleted},
	models.BattleCardsRevealed: {models.BattleInProgress, models.BattleCompleted},
	models.BattleInProgress:    {models.BattleCompleted},
	models.BattleCompleted:     {},
}

func CanTransition(from, to models.BattleStatus) bool {
	return slices.Contains(Transitions[from], to)
}

// Transition moves b to status to, or fails with an invalid-state error and
// leaves b untouched.
func Transition(b *models.Battle, to models.BattleStatus) error {
	if !CanTransition(b.Status, to) {
		return apperr.InvalidState("battle %s cannot move from %s to %s", b.ID, b.Status, to)
	}
	b.Status = to
	return nil
}

// expectStatus fails with an invalid-state error unless b is in status want.
func expectStatus(b *models.Battle, want models.BattleStatus) error {
	if b.Status != want {
		return apperr.InvalidState("battle %s is %s, expected %s", b.ID, b.Status, want)
	}
	return nil
}
