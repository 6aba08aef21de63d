package battle

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// ErrCardMoved is returned by Tx.TransferCard when the card no longer
// belongs to the expected previous owner.
var ErrCardMoved = errors.New("card changed owner")

// Store is the persistence the battle service needs. Lookups return apperr
// not-found errors for unknown ids.
type Store interface {
	CreateBattle(ctx context.Context, b *models.Battle) error
	GetBattle(ctx context.Context, id string) (*models.Battle, error)
	GetSelection(ctx context.Context, battleID string) (*models.BattleSelection, error)
	GetCard(ctx context.Context, id string) (*models.Card, error)
	ListOpenChallenges(ctx context.Context, limit int) ([]models.Battle, error)
	ListPlayerBattles(ctx context.Context, playerID string) ([]models.Battle, error)
	ListBattlesByStatus(ctx context.Context, status models.BattleStatus, olderThan time.Time) ([]models.Battle, error)
	CardHistory(ctx context.Context, cardID string) ([]models.CardOwnershipHistory, error)
	// CardCommitted reports whether cardID is staked or selected in a
	// battle that has not completed.
	CardCommitted(ctx context.Context, cardID string) (bool, error)

	// WithBattle runs fn in one transaction holding an exclusive lock on the
	// battle row. Nothing fn wrote is kept if it returns an error.
	WithBattle(ctx context.Context, id string, fn func(tx Tx, b *models.Battle) error) error
}

// Tx is the view of the store inside WithBattle.
type Tx interface {
	SaveBattle(b *models.Battle) error
	// Selection returns the battle's selection row, or an empty one when
	// nobody has submitted yet.
	Selection() (*models.BattleSelection, error)
	SaveSelection(s *models.BattleSelection) error
	// GetCard locks the card row until the transaction ends.
	GetCard(id string) (*models.Card, error)
	// CardCommitted is Store.CardCommitted ignoring the locked battle.
	CardCommitted(cardID string) (bool, error)
	// TransferCard moves cardID from one owner to another and appends the
	// history row for battleID.
	TransferCard(cardID, from, to, battleID string, at time.Time) error
}
