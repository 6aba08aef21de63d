package types

import "time"

// Events published on the change-notification channel after a state change
// commits. Clients receive them over the websocket stream.
//
// Topics:
//   player:<id>   timer_ready, reward_claimed, challenge (invites), battle updates for that player
//   battle:<id>   everything that happens to one battle
//   challenges    open challenges anyone can accept

type EventType string

const (
	EvtChallenge         EventType = "challenge"
	EvtChallengeAccepted EventType = "challenge_accepted"
	EvtChallengeDeclined EventType = "challenge_declined"
	EvtCardSelected      EventType = "card_selected"
	EvtCardsRevealed     EventType = "cards_revealed"
	EvtBattleCompleted   EventType = "battle_completed"
	EvtTimerReady        EventType = "timer_ready"
	EvtRewardClaimed     EventType = "reward_claimed"
)

type Event struct {
	Type     EventType `json:"type"`
	Topic    string    `json:"topic"`
	BattleID string    `json:"battle_id,omitempty"`
	TimerID  string    `json:"timer_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	CardID   string    `json:"card_id,omitempty"`
	Status   string    `json:"status,omitempty"`
	WinnerID string    `json:"winner_id,omitempty"`
	At       time.Time `json:"at"`
}

const ChallengesTopic = "challenges"

func BattleTopic(battleID string) string { return "battle:" + battleID }

func PlayerTopic(playerID string) string { return "player:" + playerID }
