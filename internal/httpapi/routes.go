package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/internal/ratelimit"
	"github.com/DoyleJ11/cardclash-backend/internal/ws"
)

type Deps struct {
	Packs        PackAPI
	Battles      BattleAPI
	Hub          *hub.Hub
	ClaimLimiter ratelimit.Limiter
	GatewayToken string
	Log          *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &handlers{packs: d.Packs, battles: d.Battles, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(Identity(d.GatewayToken, log))

		r.Get("/cards", h.listCards)
		r.Get("/cards/{id}/history", h.cardHistory)

		r.Get("/timers", h.listTimers)
		r.Post("/timers", h.startTimer)
		r.With(RateLimit(d.ClaimLimiter, log)).Post("/timers/{id}/claim", h.claimReward)

		r.Get("/battles", h.listBattles)
		r.Post("/battles", h.createChallenge)
		r.Route("/battles/{id}", func(r chi.Router) {
			r.Get("/", h.getBattle)
			r.Get("/selection", h.getSelection)
			r.Post("/accept", h.battleAction(d.Battles.AcceptChallenge))
			r.Post("/decline", h.battleAction(d.Battles.DeclineChallenge))
			r.Post("/abandon", h.battleAction(d.Battles.AbandonBattle))
			r.Post("/resolve", h.battleAction(d.Battles.ResolveBattleAs))
			r.Post("/select", h.selectCard)
		})

		r.Get("/ws", ws.Handler(d.Hub, d.Battles, PlayerID, log))
	})
	return r
}
