package battle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/cards"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/notify"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

const (
	challengerLabel = "challenger"
	opponentLabel   = "opponent"

	defaultOpenLimit = 50
)

type Service struct {
	store Store
	pub   notify.Publisher
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, pub notify.Publisher, log *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, pub: pub, log: log.Named("battle"), now: now}
}

// CreateChallenge opens a pending battle staking one of the challenger's
// cards. An empty opponentID makes it an open challenge anyone can accept.
func (s *Service) CreateChallenge(ctx context.Context, challengerID, stakedCardID, opponentID string) (*models.Battle, error) {
	if challengerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	if stakedCardID == "" {
		return nil, apperr.Validation("staked_card_id is required")
	}
	if opponentID == challengerID {
		return nil, apperr.Validation("cannot challenge yourself")
	}

	card, err := s.loadCard(ctx, stakedCardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != challengerID {
		return nil, apperr.CardNotOwned("card %s is not yours", stakedCardID)
	}
	if card.CardType != models.CardTypeHumanoid {
		return nil, apperr.Validation("only humanoid cards can battle, %s is a %s", card.ID, card.CardType)
	}
	committed, err := s.store.CardCommitted(ctx, stakedCardID)
	if err != nil {
		return nil, apperr.Internal(err, "check card %s", stakedCardID)
	}
	if committed {
		return nil, apperr.InvalidState("card %s is already in an unfinished battle", stakedCardID)
	}

	now := s.now()
	b := &models.Battle{
		ID:           uuid.NewString(),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		StakedCardID: stakedCardID,
		Status:       models.BattlePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateBattle(ctx, b); err != nil {
		return nil, apperr.Internal(err, "create battle")
	}

	s.log.Info("challenge created",
		zap.String("battle_id", b.ID),
		zap.String("challenger_id", challengerID),
		zap.String("opponent_id", opponentID))

	topic := types.ChallengesTopic
	if opponentID != "" {
		topic = types.PlayerTopic(opponentID)
	}
	s.emit(ctx, types.Event{
		Type:     types.EvtChallenge,
		Topic:    topic,
		BattleID: b.ID,
		PlayerID: challengerID,
		CardID:   stakedCardID,
		Status:   string(b.Status),
		At:       now,
	})
	return b, nil
}

// AcceptChallenge binds the responder and moves the battle to card selection.
func (s *Service) AcceptChallenge(ctx context.Context, battleID, responderID string) (*models.Battle, error) {
	if responderID == "" {
		return nil, apperr.Auth("missing player identity")
	}

	var out models.Battle
	err := s.store.WithBattle(ctx, battleID, func(tx Tx, b *models.Battle) error {
		switch {
		case responderID == b.ChallengerID:
			return apperr.Authorization("cannot accept your own challenge")
		case b.OpponentID != "" && responderID != b.OpponentID:
			return apperr.Authorization("challenge %s was sent to another player", b.ID)
		}
		if err := expectStatus(b, models.BattlePending); err != nil {
			return err
		}

		b.OpponentID = responderID
		if err := Transition(b, models.BattleActive); err != nil {
			return err
		}
		b.UpdatedAt = s.now()
		if err := tx.SaveBattle(b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "accept challenge")
	}

	s.log.Info("challenge accepted", zap.String("battle_id", out.ID), zap.String("opponent_id", responderID))
	s.emitBattle(ctx, types.EvtChallengeAccepted, &out, responderID, "")
	return &out, nil
}

// DeclineChallenge ends a pending battle without a winner. The invited
// opponent declines; the challenger withdraws.
func (s *Service) DeclineChallenge(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}

	var out models.Battle
	err := s.store.WithBattle(ctx, battleID, func(tx Tx, b *models.Battle) error {
		if !b.IsParticipant(playerID) {
			return apperr.Authorization("not a participant of battle %s", b.ID)
		}
		if err := expectStatus(b, models.BattlePending); err != nil {
			return err
		}
		if err := Transition(b, models.BattleCompleted); err != nil {
			return err
		}

		now := s.now()
		b.CompletedAt = &now
		b.UpdatedAt = now
		b.Explanation = "Challenge declined."
		if playerID == b.ChallengerID {
			b.Explanation = "Challenge withdrawn."
		}
		if err := tx.SaveBattle(b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "decline challenge")
	}

	s.log.Info("challenge declined", zap.String("battle_id", out.ID), zap.String("player_id", playerID))
	s.emitBattle(ctx, types.EvtChallengeDeclined, &out, playerID, "")
	return &out, nil
}

// AbandonBattle ends an accepted battle before the cards are revealed. No
// winner is recorded and nothing changes hands.
func (s *Service) AbandonBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}

	var out models.Battle
	err := s.store.WithBattle(ctx, battleID, func(tx Tx, b *models.Battle) error {
		if !b.IsParticipant(playerID) {
			return apperr.Authorization("not a participant of battle %s", b.ID)
		}
		if err := expectStatus(b, models.BattleActive); err != nil {
			return err
		}
		if err := Transition(b, models.BattleCompleted); err != nil {
			return err
		}

		now := s.now()
		b.CompletedAt = &now
		b.UpdatedAt = now
		b.Explanation = "Battle abandoned by " + sideLabel(b, playerID) + "."
		if err := tx.SaveBattle(b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "abandon battle")
	}

	s.log.Info("battle abandoned", zap.String("battle_id", out.ID), zap.String("player_id", playerID))
	s.emitBattle(ctx, types.EvtBattleCompleted, &out, playerID, "")
	return &out, nil
}

// SelectCard fills the caller's selection slot. The challenger plays the
// card they staked; the opponent picks any humanoid they own. A card can
// back only one unfinished battle at a time. The submission that fills the
// second slot reveals the cards in the same transaction.
func (s *Service) SelectCard(ctx context.Context, battleID, playerID, cardID string) (*models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	if cardID == "" {
		return nil, apperr.Validation("card_id is required")
	}

	var (
		out      models.Battle
		revealed bool
	)
	err := s.store.WithBattle(ctx, battleID, func(tx Tx, b *models.Battle) error {
		if !b.IsParticipant(playerID) {
			return apperr.Authorization("not a participant of battle %s", b.ID)
		}
		if err := expectStatus(b, models.BattleActive); err != nil {
			return err
		}

		card, err := tx.GetCard(cardID)
		if err != nil {
			return err
		}
		if card.OwnerID != playerID {
			return apperr.CardNotOwned("card %s is not yours", cardID)
		}
		if card.CardType != models.CardTypeHumanoid {
			return apperr.Validation("only humanoid cards can battle, %s is a %s", card.ID, card.CardType)
		}

		sel, err := tx.Selection()
		if err != nil {
			return err
		}
		sel.BattleID = b.ID

		now := s.now()
		slot, at := &sel.Player2CardID, &sel.Player2SubmittedAt
		if playerID == b.ChallengerID {
			slot, at = &sel.Player1CardID, &sel.Player1SubmittedAt
		}
		if *slot != nil {
			return apperr.CardAlreadySelected("you already selected card %s", **slot)
		}
		if playerID == b.ChallengerID && cardID != b.StakedCardID {
			return apperr.Validation("the challenger must play the staked card %s", b.StakedCardID)
		}
		committed, err := tx.CardCommitted(cardID)
		if err != nil {
			return err
		}
		if committed {
			return apperr.InvalidState("card %s is already in another unfinished battle", cardID)
		}
		picked := cardID
		*slot, *at = &picked, &now

		if err := tx.SaveSelection(sel); err != nil {
			return err
		}

		if sel.Complete() {
			if err := Transition(b, models.BattleCardsRevealed); err != nil {
				return err
			}
			b.UpdatedAt = now
			if err := tx.SaveBattle(b); err != nil {
				return err
			}
			revealed = true
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "select card")
	}

	s.log.Info("card selected",
		zap.String("battle_id", out.ID),
		zap.String("player_id", playerID),
		zap.Bool("revealed", revealed))

	s.emit(ctx, types.Event{
		Type:     types.EvtCardSelected,
		Topic:    types.BattleTopic(out.ID),
		BattleID: out.ID,
		PlayerID: playerID,
		Status:   string(out.Status),
	})
	if revealed {
		s.emitBattle(ctx, types.EvtCardsRevealed, &out, "", "")
	}
	return &out, nil
}

// ResolveBattle scores a revealed battle and hands the loser's selected card
// to the winner. Calling it again on a completed battle returns the stored
// result and changes nothing.
func (s *Service) ResolveBattle(ctx context.Context, battleID string) (*models.Battle, error) {
	var (
		out      models.Battle
		resolved bool
	)
	err := s.store.WithBattle(ctx, battleID, func(tx Tx, b *models.Battle) error {
		if b.Status == models.BattleCompleted {
			out = *b
			return nil
		}
		if err := expectStatus(b, models.BattleCardsRevealed); err != nil {
			return err
		}

		sel, err := tx.Selection()
		if err != nil {
			return err
		}
		if !sel.Complete() {
			return apperr.InvalidState("battle %s has an incomplete selection", b.ID)
		}
		challengerCard, err := tx.GetCard(*sel.Player1CardID)
		if err != nil {
			return err
		}
		opponentCard, err := tx.GetCard(*sel.Player2CardID)
		if err != nil {
			return err
		}

		if err := Transition(b, models.BattleInProgress); err != nil {
			return err
		}
		if err := tx.SaveBattle(b); err != nil {
			return err
		}

		outcome := cards.Score(challengerCard.Stats(), opponentCard.Stats())
		now := s.now()
		b.Explanation = outcome.Explain(challengerLabel, opponentLabel)

		var winnerID, loserID string
		var stake *models.Card
		switch outcome.Winner {
		case cards.SidePlayer:
			winnerID, loserID, stake = b.ChallengerID, b.OpponentID, opponentCard
		case cards.SideOpponent:
			winnerID, loserID, stake = b.OpponentID, b.ChallengerID, challengerCard
		}

		if winnerID != "" {
			b.WinnerID = &winnerID
			if !b.TransferCompleted {
				err := tx.TransferCard(stake.ID, loserID, winnerID, b.ID, now)
				switch {
				case errors.Is(err, ErrCardMoved):
					s.log.Warn("stake no longer held by loser",
						zap.String("battle_id", b.ID),
						zap.String("card_id", stake.ID))
					b.Explanation += " Stake no longer held by the loser, nothing transferred."
				case err != nil:
					return err
				default:
					b.TransferCompleted = true
				}
			}
		}

		if err := Transition(b, models.BattleCompleted); err != nil {
			return err
		}
		b.CompletedAt = &now
		b.UpdatedAt = now
		if err := tx.SaveBattle(b); err != nil {
			return err
		}
		out = *b
		resolved = true
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "resolve battle")
	}

	if resolved {
		winner := ""
		if out.WinnerID != nil {
			winner = *out.WinnerID
		}
		s.log.Info("battle resolved",
			zap.String("battle_id", out.ID),
			zap.String("winner_id", winner),
			zap.Bool("transferred", out.TransferCompleted))
		s.emitBattle(ctx, types.EvtBattleCompleted, &out, "", winner)
	}
	return &out, nil
}

// ResolveBattleAs is ResolveBattle on behalf of a participant.
func (s *Service) ResolveBattleAs(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	if _, err := s.participantBattle(ctx, battleID, playerID); err != nil {
		return nil, err
	}
	return s.ResolveBattle(ctx, battleID)
}

// ResolveRevealed resolves battles that have sat in cards_revealed for
// longer than grace. It returns how many it completed.
func (s *Service) ResolveRevealed(ctx context.Context, grace time.Duration) (int, error) {
	stale, err := s.store.ListBattlesByStatus(ctx, models.BattleCardsRevealed, s.now().Add(-grace))
	if err != nil {
		return 0, apperr.Internal(err, "list revealed battles")
	}

	n := 0
	for i := range stale {
		if _, err := s.ResolveBattle(ctx, stale[i].ID); err != nil {
			s.log.Warn("watchdog resolve failed", zap.String("battle_id", stale[i].ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// GetBattle returns a battle to one of its participants. Open challenges
// are visible to everyone.
func (s *Service) GetBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	b, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !b.IsParticipant(playerID) && !isOpenChallenge(b) {
		return nil, apperr.Authorization("not a participant of battle %s", battleID)
	}
	return b, nil
}

// GetSelection returns the battle's selection as playerID may see it. Until
// the cards are revealed the other side's card id is withheld, only the
// fact that they submitted is shown.
func (s *Service) GetSelection(ctx context.Context, battleID, playerID string) (*models.BattleSelection, error) {
	b, err := s.participantBattle(ctx, battleID, playerID)
	if err != nil {
		return nil, err
	}
	sel, err := s.store.GetSelection(ctx, battleID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return &models.BattleSelection{BattleID: battleID}, nil
	case err != nil:
		return nil, apperr.Internal(err, "load selection")
	}

	if b.Status == models.BattlePending || b.Status == models.BattleActive {
		if playerID == b.ChallengerID {
			sel.Player2CardID = nil
		} else {
			sel.Player1CardID = nil
		}
	}
	return sel, nil
}

func (s *Service) ListOpenChallenges(ctx context.Context, limit int) ([]models.Battle, error) {
	if limit <= 0 || limit > defaultOpenLimit {
		limit = defaultOpenLimit
	}
	bs, err := s.store.ListOpenChallenges(ctx, limit)
	if err != nil {
		return nil, apperr.Internal(err, "list open challenges")
	}
	return bs, nil
}

func (s *Service) ListPlayerBattles(ctx context.Context, playerID string) ([]models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	bs, err := s.store.ListPlayerBattles(ctx, playerID)
	if err != nil {
		return nil, apperr.Internal(err, "list battles")
	}
	return bs, nil
}

// CardHistory lists the ownership transfers of a card, oldest first. Only
// the current owner and players who held the card before may read it.
func (s *Service) CardHistory(ctx context.Context, cardID, playerID string) ([]models.CardOwnershipHistory, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	hs, err := s.store.CardHistory(ctx, cardID)
	if err != nil {
		return nil, apperr.Internal(err, "load card history")
	}
	if card.OwnerID == playerID {
		return hs, nil
	}
	for _, h := range hs {
		if h.PreviousOwnerID == playerID || h.NewOwnerID == playerID {
			return hs, nil
		}
	}
	return nil, apperr.Authorization("card %s was never yours", cardID)
}

func (s *Service) participantBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	if playerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	b, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !b.IsParticipant(playerID) {
		return nil, apperr.Authorization("not a participant of battle %s", battleID)
	}
	return b, nil
}

func (s *Service) loadBattle(ctx context.Context, id string) (*models.Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.NotFound("battle %s not found", id)
	case err != nil:
		return nil, apperr.Internal(err, "load battle")
	}
	return b, nil
}

func (s *Service) loadCard(ctx context.Context, id string) (*models.Card, error) {
	c, err := s.store.GetCard(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.NotFound("card %s not found", id)
	case err != nil:
		return nil, apperr.Internal(err, "load card")
	}
	return c, nil
}

// wrap keeps domain errors as they are and turns anything else into an
// internal error.
func (s *Service) wrap(err error, op string) error {
	if apperr.Kind(err) != apperr.ErrInternal {
		return err
	}
	if errors.Is(err, apperr.ErrInternal) {
		return err
	}
	s.log.Error(op+" failed", zap.Error(err))
	return apperr.Internal(err, "%s", op)
}

func (s *Service) emit(ctx context.Context, evt types.Event) {
	if evt.At.IsZero() {
		evt.At = s.now()
	}
	notify.Emit(ctx, s.pub, s.log, evt)
}

// emitBattle sends evt to the battle topic and to both players' topics.
func (s *Service) emitBattle(ctx context.Context, t types.EventType, b *models.Battle, playerID, winnerID string) {
	topics := []string{types.BattleTopic(b.ID), types.PlayerTopic(b.ChallengerID)}
	if b.OpponentID != "" {
		topics = append(topics, types.PlayerTopic(b.OpponentID))
	}
	for _, topic := range topics {
		s.emit(ctx, types.Event{
			Type:     t,
			Topic:    topic,
			BattleID: b.ID,
			PlayerID: playerID,
			Status:   string(b.Status),
			WinnerID: winnerID,
		})
	}
}

func isOpenChallenge(b *models.Battle) bool {
	return b.Status == models.BattlePending && b.OpponentID == ""
}

func sideLabel(b *models.Battle, playerID string) string {
	if playerID == b.ChallengerID {
		return challengerLabel
	}
	return opponentLabel
}
