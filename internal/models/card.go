package models

import (
	"time"

	"gorm.io/datatypes"
)

type CardType string

const (
	CardTypeHumanoid CardType = "humanoid"
	CardTypeWeapon   CardType = "weapon"
)

type Rarity string

const (
	RarityBronze Rarity = "bronze"
	RaritySilver Rarity = "silver"
	RarityGold   Rarity = "gold"
)

// Attribute keys. Humanoids carry str/dex/int, weapons atk/def/spd.
const (
	AttrStr = "str"
	AttrDex = "dex"
	AttrInt = "int"
	AttrAtk = "atk"
	AttrDef = "def"
	AttrSpd = "spd"
)

type Attributes map[string]int

type Card struct {
	ID         string                         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID    string                         `gorm:"index;not null;type:varchar(64)" json:"owner_id"`
	CardType   CardType                       `gorm:"type:varchar(16);not null" json:"card_type"`
	CardName   string                         `gorm:"not null" json:"card_name"`
	Attributes datatypes.JSONType[Attributes] `json:"attributes"`
	Rarity     Rarity                         `gorm:"type:varchar(8);not null" json:"rarity"`
	TimerID    *string                        `gorm:"uniqueIndex;type:varchar(36)" json:"timer_id,omitempty"`
	ObtainedAt time.Time                      `gorm:"not null" json:"obtained_at"`
}

// Stats returns the card's attribute record.
func (c *Card) Stats() Attributes {
	return c.Attributes.Data()
}

// CardOwnershipHistory is append-only: one row per transfer.
type CardOwnershipHistory struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID          string    `gorm:"uniqueIndex:idx_history_battle_card;index;not null;type:varchar(36)" json:"card_id"`
	PreviousOwnerID string    `gorm:"not null;type:varchar(64)" json:"previous_owner_id"`
	NewOwnerID      string    `gorm:"not null;type:varchar(64)" json:"new_owner_id"`
	BattleID        string    `gorm:"uniqueIndex:idx_history_battle_card;not null;type:varchar(36)" json:"battle_id"`
	TransferredAt   time.Time `gorm:"not null" json:"transferred_at"`
}

func (CardOwnershipHistory) TableName() string {
	return "card_ownership_history"
}
