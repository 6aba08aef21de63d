package pack

import (
	"math"
	"time"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

const (
	MinDelayHours = 4
	MaxDelayHours = 24
)

// GoldChancePercent maps the wait length to the chance of a gold roll:
// 1% at 4 hours rising linearly to 20% at 24 hours. Hours outside the
// range are clamped.
func GoldChancePercent(hours float64) float64 {
	h := math.Min(math.Max(hours, MinDelayHours), MaxDelayHours)
	return 1 + ((h-MinDelayHours)/(MaxDelayHours-MinDelayHours))*19
}

// IsReady reports whether the timer's wait has fully elapsed at now.
func IsReady(t *models.Timer, now time.Time) bool {
	return !now.Before(t.ReadyAt())
}

// Remaining is the time left until the timer is ready, zero once it is.
func Remaining(t *models.Timer, now time.Time) time.Duration {
	left := t.ReadyAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// CardTypeFor is the kind of card a pack of the given type yields.
func CardTypeFor(p models.PackType) (models.CardType, bool) {
	switch p {
	case models.PackTypeHumanoid:
		return models.CardTypeHumanoid, true
	case models.PackTypeWeapon:
		return models.CardTypeWeapon, true
	default:
		return "", false
	}
}

func minutesLeft(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
