package models

import "time"

type BattleStatus string

const (
	BattlePending       BattleStatus = "pending"
	BattleActive        BattleStatus = "active"
	BattleCardsRevealed BattleStatus = "cards_revealed"
	BattleInProgress    BattleStatus = "in_progress"
	BattleCompleted     BattleStatus = "completed"
)

// Battle is one match between two players. OpponentID stays empty for an
// open challenge until someone accepts it.
type Battle struct {
	ID                string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChallengerID      string       `gorm:"index;not null;type:varchar(64)" json:"challenger_id"`
	OpponentID        string       `gorm:"index;type:varchar(64)" json:"opponent_id,omitempty"`
	StakedCardID      string       `gorm:"not null;type:varchar(36)" json:"staked_card_id"`
	Status            BattleStatus `gorm:"index;type:varchar(16);not null" json:"status"`
	WinnerID          *string      `gorm:"type:varchar(64)" json:"winner_id,omitempty"`
	Explanation       string       `gorm:"type:text" json:"explanation,omitempty"`
	TransferCompleted bool         `gorm:"not null;default:false" json:"transfer_completed"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// IsParticipant reports whether playerID is one of the two sides.
func (b *Battle) IsParticipant(playerID string) bool {
	if playerID == "" {
		return false
	}
	return playerID == b.ChallengerID || playerID == b.OpponentID
}

// BattleSelection holds both sides' submitted cards. Player 1 is the
// challenger, player 2 the opponent.
type BattleSelection struct {
	BattleID           string     `gorm:"primaryKey;type:varchar(36)" json:"battle_id"`
	Player1CardID      *string    `gorm:"type:varchar(36)" json:"player1_card_id,omitempty"`
	Player1SubmittedAt *time.Time `json:"player1_submitted_at,omitempty"`
	Player2CardID      *string    `gorm:"type:varchar(36)" json:"player2_card_id,omitempty"`
	Player2SubmittedAt *time.Time `json:"player2_submitted_at,omitempty"`
}

// Complete reports whether both slots are filled.
func (s *BattleSelection) Complete() bool {
	return s.Player1CardID != nil && s.Player2CardID != nil
}
