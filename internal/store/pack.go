package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/pack"
)

// PackStore implements pack.Store on gorm.
type PackStore struct {
	db *gorm.DB
}

func NewPackStore(db *gorm.DB) *PackStore {
	return &PackStore{db: db}
}

var _ pack.Store = (*PackStore)(nil)

func (s *PackStore) CreateTimer(ctx context.Context, t *models.Timer) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *PackStore) GetTimer(ctx context.Context, id string) (*models.Timer, error) {
	var t models.Timer
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("timer %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PackStore) ListTimers(ctx context.Context, ownerID string) ([]models.Timer, error) {
	var ts []models.Timer
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("start_time DESC").
		Find(&ts).Error
	return ts, err
}

func (s *PackStore) CountOpenTimers(ctx context.Context, ownerID string, packType models.PackType) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Timer{}).
		Where("owner_id = ? AND pack_type = ? AND status <> ?", ownerID, packType, models.TimerCompleted).
		Count(&n).Error
	return n, err
}

func (s *PackStore) ListActiveTimers(ctx context.Context) ([]models.Timer, error) {
	var ts []models.Timer
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TimerActive).
		Order("start_time").
		Find(&ts).Error
	return ts, err
}

func (s *PackStore) MarkTimerReady(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Timer{}).
		Where("id = ? AND status = ?", id, models.TimerActive).
		Updates(map[string]any{"status": models.TimerReady, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteTimer flips the timer to completed only if it is not already, then
// inserts the card. Both happen in one transaction.
func (s *PackStore) CompleteTimer(ctx context.Context, timerID string, card *models.Card, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Timer{}).
			Where("id = ? AND status <> ?", timerID, models.TimerCompleted).
			Updates(map[string]any{
				"status":       models.TimerCompleted,
				"card_id":      card.ID,
				"completed_at": at,
				"updated_at":   at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Timer{}).Where("id = ?", timerID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound("timer %s not found", timerID)
			}
			return pack.ErrTimerCompleted
		}
		return tx.Create(card).Error
	})
}

func (s *PackStore) ListCards(ctx context.Context, ownerID string) ([]models.Card, error) {
	var cs []models.Card
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("obtained_at DESC").
		Find(&cs).Error
	return cs, err
}
