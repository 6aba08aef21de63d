package pack

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/cards"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

type fakeStore struct {
	mu     sync.Mutex
	timers map[string]models.Timer
	cards  map[string]models.Card
	writes int
	failOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{timers: map[string]models.Timer{}, cards: map[string]models.Card{}}
}

func (f *fakeStore) CreateTimer(_ context.Context, t *models.Timer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.timers[t.ID] = *t
	return nil
}

func (f *fakeStore) GetTimer(_ context.Context, id string) (*models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timers[id]
	if !ok {
		return nil, apperr.NotFound("timer %s", id)
	}
	return &t, nil
}

func (f *fakeStore) ListTimers(_ context.Context, ownerID string) ([]models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Timer
	for _, t := range f.timers {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) CountOpenTimers(_ context.Context, ownerID string, packType models.PackType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.timers {
		if t.OwnerID == ownerID && t.PackType == packType && t.Status != models.TimerCompleted {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListActiveTimers(_ context.Context) ([]models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Timer
	for _, t := range f.timers {
		if t.Status == models.TimerActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkTimerReady(_ context.Context, id string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timers[id]
	if !ok || t.Status != models.TimerActive {
		return false, nil
	}
	f.writes++
	t.Status = models.TimerReady
	f.timers[id] = t
	return true, nil
}

func (f *fakeStore) CompleteTimer(_ context.Context, timerID string, card *models.Card, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "complete" {
		return errors.New("connection reset")
	}
	t, ok := f.timers[timerID]
	if !ok {
		return apperr.NotFound("timer %s", timerID)
	}
	if t.Status == models.TimerCompleted {
		return ErrTimerCompleted
	}
	f.writes++
	t.Status = models.TimerCompleted
	t.CardID = &card.ID
	t.CompletedAt = &at
	f.timers[timerID] = t
	f.cards[card.ID] = *card
	return nil
}

func (f *fakeStore) ListCards(_ context.Context, ownerID string) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Card
	for _, c := range f.cards {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) ofType(t types.EventType) []types.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, maxOpen int) (*Service, *fakeStore, *recordingPublisher, *clock) {
	t.Helper()
	st := newFakeStore()
	pub := &recordingPublisher{}
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(st, cards.NewGenerator(99), pub, zaptest.NewLogger(t), Options{
		MaxOpenTimers: maxOpen,
		Now:           clk.Now,
	})
	return svc, st, pub, clk
}

func TestGoldChancePercent(t *testing.T) {
	assert.InDelta(t, 1.0, GoldChancePercent(4), 1e-9)
	assert.InDelta(t, 20.0, GoldChancePercent(24), 1e-9)
	assert.InDelta(t, 10.5, GoldChancePercent(14), 1e-9)
	assert.InDelta(t, 1.0, GoldChancePercent(1), 1e-9)
	assert.InDelta(t, 20.0, GoldChancePercent(48), 1e-9)

	prev := GoldChancePercent(MinDelayHours)
	for h := MinDelayHours*4 + 1; h <= MaxDelayHours*4; h++ {
		cur := GoldChancePercent(float64(h) / 4)
		assert.Greater(t, cur, prev, "hours=%v", float64(h)/4)
		prev = cur
	}
}

func TestIsReadyAndRemaining(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := &models.Timer{StartTime: start, TargetDelayHours: 4}

	assert.False(t, IsReady(timer, start.Add(4*time.Hour-time.Second)))
	assert.True(t, IsReady(timer, start.Add(4*time.Hour)))
	assert.Equal(t, 30*time.Minute, Remaining(timer, start.Add(3*time.Hour+30*time.Minute)))
	assert.Zero(t, Remaining(timer, start.Add(5*time.Hour)))
}

func TestStartTimer_Validation(t *testing.T) {
	cases := []struct {
		name     string
		owner    string
		packType models.PackType
		hours    int
		wantKind error
	}{
		{name: "below range", owner: "p1", packType: models.PackTypeHumanoid, hours: 3, wantKind: apperr.ErrValidation},
		{name: "above range", owner: "p1", packType: models.PackTypeHumanoid, hours: 25, wantKind: apperr.ErrValidation},
		{name: "unknown pack", owner: "p1", packType: "spell", hours: 4, wantKind: apperr.ErrValidation},
		{name: "no identity", owner: "", packType: models.PackTypeHumanoid, hours: 4, wantKind: apperr.ErrAuth},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, _, _ := newTestService(t, 1)
			_, err := svc.StartTimer(context.Background(), tc.owner, tc.packType, tc.hours)
			require.ErrorIs(t, err, tc.wantKind)
			assert.Zero(t, st.writes)
		})
	}
}

func TestStartTimer_BoundsOpenTimersPerPackType(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	assert.Equal(t, models.TimerActive, tm.Status)

	_, err = svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 8)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.StartTimer(ctx, "p1", models.PackTypeWeapon, 8)
	require.NoError(t, err)

	_, err = svc.StartTimer(ctx, "p2", models.PackTypeHumanoid, 8)
	require.NoError(t, err)
}

func TestClaimReward_EarlyClaimWritesNothing(t *testing.T) {
	svc, st, pub, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	writes := st.writes

	clk.now = clk.now.Add(3*time.Hour + 30*time.Minute)
	_, err = svc.ClaimReward(ctx, tm.ID, "p1")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "timer not ready, 30 minutes remaining", apperr.Message(err))
	assert.Equal(t, writes, st.writes)
	assert.Empty(t, st.cards)
	assert.Empty(t, pub.ofType(types.EvtRewardClaimed))
}

func TestClaimReward_MintsOneCardForTheOwner(t *testing.T) {
	svc, st, pub, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeWeapon, 6)
	require.NoError(t, err)
	clk.now = clk.now.Add(6 * time.Hour)

	card, err := svc.ClaimReward(ctx, tm.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", card.OwnerID)
	assert.Equal(t, models.CardTypeWeapon, card.CardType)
	require.NotNil(t, card.TimerID)
	assert.Equal(t, tm.ID, *card.TimerID)
	assert.Equal(t, cards.Weapon.RarityFor(maxStat(card.Stats())), card.Rarity)

	stored := st.timers[tm.ID]
	assert.Equal(t, models.TimerCompleted, stored.Status)
	require.NotNil(t, stored.CardID)
	assert.Equal(t, card.ID, *stored.CardID)

	evts := pub.ofType(types.EvtRewardClaimed)
	require.Len(t, evts, 1)
	assert.Equal(t, types.PlayerTopic("p1"), evts[0].Topic)
	assert.Equal(t, card.ID, evts[0].CardID)

	// a completed timer no longer counts against the bound
	_, err = svc.StartTimer(ctx, "p1", models.PackTypeWeapon, 6)
	require.NoError(t, err)
}

func TestClaimReward_SecondClaimIsAlreadyCompleted(t *testing.T) {
	svc, st, _, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	clk.now = clk.now.Add(5 * time.Hour)

	_, err = svc.ClaimReward(ctx, tm.ID, "p1")
	require.NoError(t, err)

	_, err = svc.ClaimReward(ctx, tm.ID, "p1")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "already completed", apperr.Message(err))
	assert.Len(t, st.cards, 1)
}

func TestClaimReward_ConcurrentClaimsMintOneCard(t *testing.T) {
	svc, st, _, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	clk.now = clk.now.Add(4 * time.Hour)

	var (
		mu        sync.Mutex
		successes int
		rejected  int
	)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.ClaimReward(ctx, tm.ID, "p1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrValidation):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, rejected)
	assert.Len(t, st.cards, 1)
}

func TestClaimReward_NotFoundForOtherPlayers(t *testing.T) {
	svc, _, _, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	clk.now = clk.now.Add(4 * time.Hour)

	_, err = svc.ClaimReward(ctx, tm.ID, "p2")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ClaimReward(ctx, "missing", "p1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClaimReward_StoreFailureIsInternal(t *testing.T) {
	svc, st, pub, clk := newTestService(t, 1)
	ctx := context.Background()

	tm, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	clk.now = clk.now.Add(4 * time.Hour)
	st.failOn = "complete"

	_, err = svc.ClaimReward(ctx, tm.ID, "p1")
	require.ErrorIs(t, err, apperr.ErrInternal)
	assert.Equal(t, models.TimerActive, st.timers[tm.ID].Status)
	assert.Empty(t, st.cards)
	assert.Empty(t, pub.events)
}

func TestSweepReady(t *testing.T) {
	svc, st, pub, clk := newTestService(t, 2)
	ctx := context.Background()

	early, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 4)
	require.NoError(t, err)
	late, err := svc.StartTimer(ctx, "p1", models.PackTypeHumanoid, 12)
	require.NoError(t, err)

	clk.now = clk.now.Add(5 * time.Hour)
	n, err := svc.SweepReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.TimerReady, st.timers[early.ID].Status)
	assert.Equal(t, models.TimerActive, st.timers[late.ID].Status)

	n, err = svc.SweepReady(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.ofType(types.EvtTimerReady), 1)

	// ready timers are still claimable
	_, err = svc.ClaimReward(ctx, early.ID, "p1")
	require.NoError(t, err)

	views, err := svc.ListTimers(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	byID := map[string]TimerView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, models.TimerCompleted, byID[early.ID].Status)
	assert.False(t, byID[early.ID].Ready)
	assert.False(t, byID[late.ID].Ready)
	assert.Equal(t, int64(7*3600), byID[late.ID].RemainingSeconds)
}

func maxStat(a models.Attributes) int {
	best := 0
	for _, v := range a {
		if v > best {
			best = v
		}
	}
	return best
}
