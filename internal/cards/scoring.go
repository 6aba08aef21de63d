package cards

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
	SideNone     Side = "draw"
)

// BattleAttributes are compared in this order.
var BattleAttributes = []string{models.AttrStr, models.AttrDex, models.AttrInt}

type Comparison struct {
	Attribute string `json:"attribute"`
	Player    int    `json:"player"`
	Opponent  int    `json:"opponent"`
	Winner    Side   `json:"winner"`
}

type Outcome struct {
	Winner         Side         `json:"winner"`
	Comparisons    []Comparison `json:"comparisons"`
	PlayerPoints   int          `json:"player_points"`
	OpponentPoints int          `json:"opponent_points"`
	PlayerTotal    int          `json:"player_total"`
	OpponentTotal  int          `json:"opponent_total"`
	DecidedByTotal bool         `json:"decided_by_total"`
}

// Score compares two humanoid stat records attribute by attribute. More
// attribute wins takes the battle; equal points fall back to the stat sum,
// and an equal sum is a draw. The result depends only on the inputs.
func Score(player, opponent models.Attributes) Outcome {
	var out Outcome
	for _, attr := range BattleAttributes {
		p, o := player[attr], opponent[attr]
		c := Comparison{Attribute: attr, Player: p, Opponent: o, Winner: SideNone}
		switch {
		case p > o:
			c.Winner = SidePlayer
			out.PlayerPoints++
		case o > p:
			c.Winner = SideOpponent
			out.OpponentPoints++
		}
		out.PlayerTotal += p
		out.OpponentTotal += o
		out.Comparisons = append(out.Comparisons, c)
	}

	switch {
	case out.PlayerPoints > out.OpponentPoints:
		out.Winner = SidePlayer
	case out.OpponentPoints > out.PlayerPoints:
		out.Winner = SideOpponent
	case out.PlayerTotal > out.OpponentTotal:
		out.Winner = SidePlayer
		out.DecidedByTotal = true
	case out.OpponentTotal > out.PlayerTotal:
		out.Winner = SideOpponent
		out.DecidedByTotal = true
	default:
		out.Winner = SideNone
	}
	return out
}

// Explain renders the outcome with the given labels for each side, e.g.
// "STR 25 vs 10: challenger. DEX 20 vs 10: challenger. INT 15 vs 10: challenger. Points 3-0: challenger wins."
func (o Outcome) Explain(playerLabel, opponentLabel string) string {
	label := func(s Side) string {
		switch s {
		case SidePlayer:
			return playerLabel
		case SideOpponent:
			return opponentLabel
		default:
			return "tie"
		}
	}

	parts := make([]string, 0, len(o.Comparisons)+1)
	for _, c := range o.Comparisons {
		parts = append(parts, fmt.Sprintf("%s %d vs %d: %s", strings.ToUpper(c.Attribute), c.Player, c.Opponent, label(c.Winner)))
	}

	points := fmt.Sprintf("Points %d-%d", o.PlayerPoints, o.OpponentPoints)
	switch {
	case o.Winner == SideNone:
		parts = append(parts, fmt.Sprintf("%s, totals %d vs %d: draw", points, o.PlayerTotal, o.OpponentTotal))
	case o.DecidedByTotal:
		parts = append(parts, fmt.Sprintf("%s, totals %d vs %d: %s wins on total", points, o.PlayerTotal, o.OpponentTotal, label(o.Winner)))
	default:
		parts = append(parts, fmt.Sprintf("%s: %s wins", points, label(o.Winner)))
	}
	return strings.Join(parts, ". ") + "."
}
