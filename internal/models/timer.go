package models

import "time"

type PackType string

const (
	PackTypeHumanoid PackType = "humanoid"
	PackTypeWeapon   PackType = "weapon"
)

type TimerStatus string

const (
	TimerActive    TimerStatus = "active"
	TimerReady     TimerStatus = "ready"
	TimerCompleted TimerStatus = "completed"
)

// Timer tracks the wait period of one pack. Status only moves forward:
// active -> ready -> completed, or active -> completed.
type Timer struct {
	ID               string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID          string      `gorm:"index:idx_timers_owner_pack;not null;type:varchar(64)" json:"owner_id"`
	PackType         PackType    `gorm:"index:idx_timers_owner_pack;type:varchar(16);not null" json:"pack_type"`
	StartTime        time.Time   `gorm:"not null" json:"start_time"`
	TargetDelayHours int         `gorm:"not null" json:"target_delay_hours"`
	Status           TimerStatus `gorm:"index;type:varchar(16);not null" json:"status"`
	CardID           *string     `gorm:"type:varchar(36)" json:"card_id,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReadyAt is the earliest moment the pack can be claimed.
func (t *Timer) ReadyAt() time.Time {
	return t.StartTime.Add(time.Duration(t.TargetDelayHours) * time.Hour)
}
