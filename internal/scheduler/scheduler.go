package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/hub"
)

type TimerSweeper interface {
	SweepReady(ctx context.Context) (int, error)
}

type BattleResolver interface {
	ResolveRevealed(ctx context.Context, grace time.Duration) (int, error)
}

type Pruner interface {
	Prune(idle time.Duration) int
}

type Options struct {
	SweepInterval time.Duration
	ResolveGrace  time.Duration
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	s   gocron.Scheduler
	log *zap.Logger
}

// New registers the jobs. Nothing runs until Run is called.
func New(timers TimerSweeper, battles BattleResolver, h *hub.Hub, limiter Pruner, log *zap.Logger, opts Options) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	log = log.Named("scheduler")
	sc := &Scheduler{s: s, log: log}

	jobs := []struct {
		name  string
		every time.Duration
		run   func(ctx context.Context)
	}{
		{name: "timer-sweep", every: opts.SweepInterval, run: func(ctx context.Context) {
			if _, err := timers.SweepReady(ctx); err != nil {
				log.Error("timer sweep failed", zap.Error(err))
			}
		}},
		{name: "battle-watchdog", every: opts.SweepInterval, run: func(ctx context.Context) {
			n, err := battles.ResolveRevealed(ctx, opts.ResolveGrace)
			if err != nil {
				log.Error("battle watchdog failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("watchdog resolved battles", zap.Int("count", n))
			}
		}},
		{name: "lobby-reap", every: 5 * time.Minute, run: func(ctx context.Context) {
			reply := make(chan int, 1)
			select {
			case h.Inbox() <- hub.Reap{Reply: reply}:
			case <-ctx.Done():
				return
			}
			select {
			case n := <-reply:
				if n > 0 {
					log.Debug("reaped idle lobbies", zap.Int("count", n))
				}
			case <-ctx.Done():
			}
		}},
		{name: "limiter-prune", every: 10 * time.Minute, run: func(context.Context) {
			limiter.Prune(30 * time.Minute)
		}},
	}

	for _, j := range jobs {
		_, err := s.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", j.name, err)
		}
	}
	return sc, nil
}

// Run starts the jobs and blocks until ctx is done.
func (sc *Scheduler) Run(ctx context.Context) error {
	sc.s.Start()
	sc.log.Info("scheduler started", zap.Int("jobs", len(sc.s.Jobs())))
	<-ctx.Done()
	return sc.s.Shutdown()
}
