package pack

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// ErrTimerCompleted is returned by Store.CompleteTimer when the timer was
// already completed by someone else. Neither write happens in that case.
var ErrTimerCompleted = errors.New("timer already completed")

type Store interface {
	CreateTimer(ctx context.Context, t *models.Timer) error
	// GetTimer returns an apperr not-found error when the id is unknown.
	GetTimer(ctx context.Context, id string) (*models.Timer, error)
	ListTimers(ctx context.Context, ownerID string) ([]models.Timer, error)
	CountOpenTimers(ctx context.Context, ownerID string, packType models.PackType) (int64, error)
	ListActiveTimers(ctx context.Context) ([]models.Timer, error)
	// MarkTimerReady moves an active timer to ready. It reports false if the
	// timer was no longer active.
	MarkTimerReady(ctx context.Context, id string, at time.Time) (bool, error)
	// CompleteTimer marks the timer completed and inserts card in one
	// transaction, conditional on the timer not being completed yet.
	CompleteTimer(ctx context.Context, timerID string, card *models.Card, at time.Time) error
	ListCards(ctx context.Context, ownerID string) ([]models.Card, error)
}
