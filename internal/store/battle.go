package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/battle"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// BattleStore implements battle.Store on gorm.
type BattleStore struct {
	db *gorm.DB
}

func NewBattleStore(db *gorm.DB) *BattleStore {
	return &BattleStore{db: db}
}

var _ battle.Store = (*BattleStore)(nil)

func (s *BattleStore) CreateBattle(ctx context.Context, b *models.Battle) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *BattleStore) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	var b models.Battle
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("battle %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BattleStore) GetSelection(ctx context.Context, battleID string) (*models.BattleSelection, error) {
	var sel models.BattleSelection
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).First(&sel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no selection for battle %s", battleID)
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

func (s *BattleStore) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return findCard(s.db.WithContext(ctx), id)
}

func (s *BattleStore) ListOpenChallenges(ctx context.Context, limit int) ([]models.Battle, error) {
	var bs []models.Battle
	err := s.db.WithContext(ctx).
		Where("status = ? AND opponent_id = ?", models.BattlePending, "").
		Order("created_at DESC").
		Limit(limit).
		Find(&bs).Error
	return bs, err
}

func (s *BattleStore) ListPlayerBattles(ctx context.Context, playerID string) ([]models.Battle, error) {
	var bs []models.Battle
	err := s.db.WithContext(ctx).
		Where("challenger_id = ? OR opponent_id = ?", playerID, playerID).
		Order("created_at DESC").
		Find(&bs).Error
	return bs, err
}

func (s *BattleStore) ListBattlesByStatus(ctx context.Context, status models.BattleStatus, olderThan time.Time) ([]models.Battle, error) {
	var bs []models.Battle
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, olderThan).
		Order("updated_at").
		Find(&bs).Error
	return bs, err
}

func (s *BattleStore) CardHistory(ctx context.Context, cardID string) ([]models.CardOwnershipHistory, error) {
	var hs []models.CardOwnershipHistory
	err := s.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("transferred_at, id").
		Find(&hs).Error
	return hs, err
}

func (s *BattleStore) CardCommitted(ctx context.Context, cardID string) (bool, error) {
	return cardCommitted(s.db.WithContext(ctx), cardID, "")
}

// WithBattle locks the battle row with SELECT ... FOR UPDATE on Postgres.
// SQLite runs on a single connection, so transactions are already serial.
func (s *BattleStore) WithBattle(ctx context.Context, id string, fn func(tx battle.Tx, b *models.Battle) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if isPostgres(tx) {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var b models.Battle
		err := q.Where("id = ?", id).First(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("battle %s not found", id)
		}
		if err != nil {
			return err
		}
		return fn(&battleTx{tx: tx, battleID: id}, &b)
	})
}

type battleTx struct {
	tx       *gorm.DB
	battleID string
}

func (t *battleTx) SaveBattle(b *models.Battle) error {
	return t.tx.Save(b).Error
}

func (t *battleTx) Selection() (*models.BattleSelection, error) {
	var sel models.BattleSelection
	err := t.tx.Where("battle_id = ?", t.battleID).First(&sel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.BattleSelection{BattleID: t.battleID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

func (t *battleTx) SaveSelection(sel *models.BattleSelection) error {
	return t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}},
		UpdateAll: true,
	}).Create(sel).Error
}

func (t *battleTx) GetCard(id string) (*models.Card, error) {
	q := t.tx
	if isPostgres(q) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findCard(q, id)
}

func (t *battleTx) CardCommitted(cardID string) (bool, error) {
	return cardCommitted(t.tx, cardID, t.battleID)
}

// TransferCard updates the owner only if from still holds the card, then
// appends the history row. The unique (battle_id, card_id) index rejects a
// second transfer of the same card for the same battle.
func (t *battleTx) TransferCard(cardID, from, to, battleID string, at time.Time) error {
	res := t.tx.Model(&models.Card{}).
		Where("id = ? AND owner_id = ?", cardID, from).
		Update("owner_id", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return battle.ErrCardMoved
	}
	return t.tx.Create(&models.CardOwnershipHistory{
		CardID:          cardID,
		PreviousOwnerID: from,
		NewOwnerID:      to,
		BattleID:        battleID,
		TransferredAt:   at,
	}).Error
}

// cardCommitted counts unfinished battles other than exclude that stake
// cardID or hold it in a selection slot.
func cardCommitted(db *gorm.DB, cardID, exclude string) (bool, error) {
	var n int64
	err := db.Model(&models.Battle{}).
		Joins("LEFT JOIN battle_selections ON battle_selections.battle_id = battles.id").
		Where("battles.status <> ? AND battles.id <> ?", models.BattleCompleted, exclude).
		Where("(battles.staked_card_id = ? OR battle_selections.player1_card_id = ? OR battle_selections.player2_card_id = ?)",
			cardID, cardID, cardID).
		Count(&n).Error
	return n > 0, err
}

func findCard(db *gorm.DB, id string) (*models.Card, error) {
	var c models.Card
	err := db.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("card %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
