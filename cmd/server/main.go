package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/cardclash-backend/internal/battle"
	"github.com/DoyleJ11/cardclash-backend/internal/cards"
	"github.com/DoyleJ11/cardclash-backend/internal/config"
	"github.com/DoyleJ11/cardclash-backend/internal/httpapi"
	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/internal/notify"
	"github.com/DoyleJ11/cardclash-backend/internal/pack"
	"github.com/DoyleJ11/cardclash-backend/internal/ratelimit"
	"github.com/DoyleJ11/cardclash-backend/internal/scheduler"
	"github.com/DoyleJ11/cardclash-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}

	h := hub.NewHub(ctx)
	g, ctx := errgroup.WithContext(ctx)

	// With Postgres, events travel through LISTEN/NOTIFY so every instance
	// sees them. Otherwise they go straight to the local hub.
	var pub notify.Publisher = notify.NewHubPublisher(h)
	if store.IsPostgresDSN(cfg.DatabaseURL) {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pub = notify.NewPGPublisher(pool, cfg.NotifyChannel)
		listener := notify.NewListener(pool, cfg.NotifyChannel, h, log)
		g.Go(func() error { return listener.Run(ctx) })
	}

	packs := pack.NewService(store.NewPackStore(db), cards.NewGenerator(time.Now().UnixNano()), pub, log,
		pack.Options{MaxOpenTimers: cfg.MaxOpenTimers})
	battles := battle.NewService(store.NewBattleStore(db), pub, log, nil)
	limiter := ratelimit.NewPerMinute(cfg.ClaimRatePerMinute)

	sched, err := scheduler.New(packs, battles, h, limiter, log, scheduler.Options{
		SweepInterval: cfg.SweepInterval,
		ResolveGrace:  cfg.ResolveGrace,
	})
	if err != nil {
		return err
	}
	g.Go(func() error { return sched.Run(ctx) })

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Packs:        packs,
			Battles:      battles,
			Hub:          h,
			ClaimLimiter: limiter,
			GatewayToken: cfg.GatewayToken,
			Log:          log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
