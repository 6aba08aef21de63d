package cards

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// Draft is a freshly rolled card before it gets an id and an owner.
type Draft struct {
	Type       models.CardType
	Name       string
	Primary    string
	Roll       int
	Attributes models.Attributes
	Rarity     models.Rarity
}

// Generator rolls cards. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate picks an archetype uniformly and rolls its primary attribute.
// With goldChancePercent probability the roll lands in the gold band
// [GoldThreshold, MaxRoll]; otherwise in [Baseline, GoldThreshold-1], which
// is the baseline plus a 70% bonus. Rarity is graded from the roll alone.
func (g *Generator) Generate(cardType models.CardType, goldChancePercent float64) (Draft, error) {
	profile, ok := ProfileFor(cardType)
	if !ok {
		return Draft{}, fmt.Errorf("unknown card type %q", cardType)
	}

	g.mu.Lock()
	arch := profile.Archetypes[g.rng.Intn(len(profile.Archetypes))]
	gold := g.rng.Float64()*100 < goldChancePercent
	low, high := profile.Baseline, profile.GoldThreshold()-1
	if gold {
		low, high = profile.GoldThreshold(), profile.MaxRoll()
	}
	roll := int(math.Round(float64(low) + g.rng.Float64()*float64(high-low)))
	g.mu.Unlock()

	attrs := make(models.Attributes, len(profile.Attributes))
	for _, name := range profile.Attributes {
		attrs[name] = profile.Baseline
	}
	attrs[arch.Primary] = roll

	return Draft{
		Type:       profile.Type,
		Name:       arch.Name,
		Primary:    arch.Primary,
		Roll:       roll,
		Attributes: attrs,
		Rarity:     profile.RarityFor(roll),
	}, nil
}
