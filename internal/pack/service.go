package pack

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/cards"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/notify"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

type Options struct {
	// MaxOpenTimers bounds the non-completed timers a player may hold per
	// pack type. Zero means 1.
	MaxOpenTimers int
	Now           func() time.Time
}

type Service struct {
	store   Store
	gen     *cards.Generator
	pub     notify.Publisher
	log     *zap.Logger
	maxOpen int
	now     func() time.Time
}

func NewService(store Store, gen *cards.Generator, pub notify.Publisher, log *zap.Logger, opts Options) *Service {
	if opts.MaxOpenTimers <= 0 {
		opts.MaxOpenTimers = 1
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		gen:     gen,
		pub:     pub,
		log:     log.Named("pack"),
		maxOpen: opts.MaxOpenTimers,
		now:     opts.Now,
	}
}

// StartTimer opens a new pack timer for ownerID.
func (s *Service) StartTimer(ctx context.Context, ownerID string, packType models.PackType, hours int) (*models.Timer, error) {
	if ownerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	if _, ok := CardTypeFor(packType); !ok {
		return nil, apperr.Validation("unknown pack type %q", packType)
	}
	if hours < MinDelayHours || hours > MaxDelayHours {
		return nil, apperr.Validation("target_delay_hours must be between %d and %d, got %d", MinDelayHours, MaxDelayHours, hours)
	}

	open, err := s.store.CountOpenTimers(ctx, ownerID, packType)
	if err != nil {
		return nil, apperr.Internal(err, "count open timers")
	}
	if open >= int64(s.maxOpen) {
		return nil, apperr.Validation("already %d open %s timer(s), claim one first", open, packType)
	}

	t := &models.Timer{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		PackType:         packType,
		StartTime:        s.now(),
		TargetDelayHours: hours,
		Status:           models.TimerActive,
	}
	if err := s.store.CreateTimer(ctx, t); err != nil {
		return nil, apperr.Internal(err, "create timer")
	}

	s.log.Info("timer started",
		zap.String("timer_id", t.ID),
		zap.String("owner_id", ownerID),
		zap.String("pack_type", string(packType)),
		zap.Int("hours", hours))
	return t, nil
}

// ClaimReward mints the card of a ready timer. A timer yields at most one
// card however many times or however concurrently it is claimed.
func (s *Service) ClaimReward(ctx context.Context, timerID, ownerID string) (*models.Card, error) {
	if ownerID == "" {
		return nil, apperr.Auth("missing player identity")
	}

	t, err := s.store.GetTimer(ctx, timerID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.NotFound("timer %s not found", timerID)
	case err != nil:
		return nil, apperr.Internal(err, "load timer")
	case t.OwnerID != ownerID:
		return nil, apperr.NotFound("timer %s not found", timerID)
	}

	now := s.now()
	if !IsReady(t, now) {
		return nil, apperr.Validation("timer not ready, %d minutes remaining", minutesLeft(Remaining(t, now)))
	}
	if t.Status == models.TimerCompleted {
		return nil, apperr.Validation("already completed")
	}

	cardType, ok := CardTypeFor(t.PackType)
	if !ok {
		return nil, apperr.Internal(nil, "timer %s has unknown pack type %q", t.ID, t.PackType)
	}
	draft, err := s.gen.Generate(cardType, GoldChancePercent(float64(t.TargetDelayHours)))
	if err != nil {
		return nil, apperr.Internal(err, "generate card")
	}

	timerRef := t.ID
	card := &models.Card{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		CardType:   draft.Type,
		CardName:   draft.Name,
		Attributes: datatypes.NewJSONType(draft.Attributes),
		Rarity:     draft.Rarity,
		TimerID:    &timerRef,
		ObtainedAt: now,
	}

	if err := s.store.CompleteTimer(ctx, t.ID, card, now); err != nil {
		if errors.Is(err, ErrTimerCompleted) {
			return nil, apperr.Validation("already completed")
		}
		return nil, apperr.Internal(err, "complete timer")
	}

	s.log.Info("reward claimed",
		zap.String("timer_id", t.ID),
		zap.String("card_id", card.ID),
		zap.String("rarity", string(card.Rarity)))

	notify.Emit(ctx, s.pub, s.log, types.Event{
		Type:     types.EvtRewardClaimed,
		Topic:    types.PlayerTopic(ownerID),
		TimerID:  t.ID,
		PlayerID: ownerID,
		CardID:   card.ID,
		At:       now,
	})
	return card, nil
}

// TimerView is a timer plus its readiness at the time it was listed.
type TimerView struct {
	models.Timer
	Ready            bool    `json:"ready"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	GoldChance       float64 `json:"gold_chance_percent"`
}

func (s *Service) ListTimers(ctx context.Context, ownerID string) ([]TimerView, error) {
	if ownerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	timers, err := s.store.ListTimers(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "list timers")
	}

	now := s.now()
	out := make([]TimerView, 0, len(timers))
	for i := range timers {
		t := &timers[i]
		out = append(out, TimerView{
			Timer:            *t,
			Ready:            t.Status != models.TimerCompleted && IsReady(t, now),
			RemainingSeconds: int64(Remaining(t, now).Seconds()),
			GoldChance:       GoldChancePercent(float64(t.TargetDelayHours)),
		})
	}
	return out, nil
}

func (s *Service) ListCards(ctx context.Context, ownerID string) ([]models.Card, error) {
	if ownerID == "" {
		return nil, apperr.Auth("missing player identity")
	}
	cs, err := s.store.ListCards(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "list cards")
	}
	return cs, nil
}

// SweepReady flags active timers whose wait has elapsed and tells their
// owners. Claiming does not depend on it.
func (s *Service) SweepReady(ctx context.Context) (int, error) {
	timers, err := s.store.ListActiveTimers(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "list active timers")
	}

	now := s.now()
	marked := 0
	for i := range timers {
		t := &timers[i]
		if !IsReady(t, now) {
			continue
		}
		ok, err := s.store.MarkTimerReady(ctx, t.ID, now)
		if err != nil {
			s.log.Warn("mark timer ready failed", zap.String("timer_id", t.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		marked++
		notify.Emit(ctx, s.pub, s.log, types.Event{
			Type:     types.EvtTimerReady,
			Topic:    types.PlayerTopic(t.OwnerID),
			TimerID:  t.ID,
			PlayerID: t.OwnerID,
			Status:   string(models.TimerReady),
			At:       now,
		})
	}
	if marked > 0 {
		s.log.Info("timers ready", zap.Int("count", marked))
	}
	return marked, nil
}
