package cards

import (
	"math"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

type Archetype struct {
	Name    string
	Primary string
}

// Profile describes how cards of one type are generated and graded.
type Profile struct {
	Type       models.CardType
	Baseline   int
	Attributes []string
	Archetypes []Archetype
}

var Humanoid = Profile{
	Type:       models.CardTypeHumanoid,
	Baseline:   20,
	Attributes: []string{models.AttrStr, models.AttrDex, models.AttrInt},
	Archetypes: []Archetype{
		{Name: "Warrior", Primary: models.AttrStr},
		{Name: "Knight", Primary: models.AttrStr},
		{Name: "Barbarian", Primary: models.AttrStr},
		{Name: "Rogue", Primary: models.AttrDex},
		{Name: "Ranger", Primary: models.AttrDex},
		{Name: "Assassin", Primary: models.AttrDex},
		{Name: "Mage", Primary: models.AttrInt},
		{Name: "Cleric", Primary: models.AttrInt},
		{Name: "Scholar", Primary: models.AttrInt},
	},
}

var Weapon = Profile{
	Type:       models.CardTypeWeapon,
	Baseline:   10,
	Attributes: []string{models.AttrAtk, models.AttrDef, models.AttrSpd},
	Archetypes: []Archetype{
		{Name: "Greatsword", Primary: models.AttrAtk},
		{Name: "Warhammer", Primary: models.AttrAtk},
		{Name: "Tower Shield", Primary: models.AttrDef},
		{Name: "Buckler", Primary: models.AttrDef},
		{Name: "Dagger", Primary: models.AttrSpd},
		{Name: "Rapier", Primary: models.AttrSpd},
	},
}

// ProfileFor returns the profile of a card type.
func ProfileFor(t models.CardType) (Profile, bool) {
	switch t {
	case models.CardTypeHumanoid:
		return Humanoid, true
	case models.CardTypeWeapon:
		return Weapon, true
	default:
		return Profile{}, false
	}
}

// GoldThreshold is the lowest primary value graded gold (35 at baseline 20).
func (p Profile) GoldThreshold() int {
	return int(math.Round(float64(p.Baseline) * 1.75))
}

// SilverThreshold is the lowest primary value graded silver (28 at baseline 20).
func (p Profile) SilverThreshold() int {
	return int(math.Round(float64(p.Baseline) * 1.4))
}

// MaxRoll is the top of the gold band: baseline plus a 100% bonus.
func (p Profile) MaxRoll() int {
	return p.Baseline * 2
}

// RarityFor grades a rolled primary attribute value.
func (p Profile) RarityFor(value int) models.Rarity {
	switch {
	case value >= p.GoldThreshold():
		return models.RarityGold
	case value >= p.SilverThreshold():
		return models.RaritySilver
	default:
		return models.RarityBronze
	}
}
