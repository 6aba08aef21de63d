package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/types"
	pkgtypes "github.com/DoyleJ11/cardclash-backend/pkg/types"
)

// BattleViewer checks that a player may see a battle.
type BattleViewer interface {
	GetBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error)
}

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
	outboxSize   = 16
)

// Handler streams the events of one topic to a websocket client. The topic
// comes from ?topic= and must be visible to the caller.
func Handler(h *hub.Hub, viewer BattleViewer, identity func(*http.Request) string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := identity(r)
		topic := r.URL.Query().Get("topic")
		if err := authorizeTopic(r.Context(), viewer, topic, player); err != nil {
			status := http.StatusForbidden
			switch apperr.Kind(err) {
			case apperr.ErrValidation:
				status = http.StatusBadRequest
			case apperr.ErrNotFound:
				status = http.StatusNotFound
			case apperr.ErrInternal:
				status = http.StatusInternalServerError
			}
			http.Error(w, apperr.Message(err), status)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan pkgtypes.Event, outboxSize)
		if !send(r.Context(), h, hub.Subscribe{Topic: topic, ClientID: clientID, Outbox: out}) {
			return
		}
		defer send(context.Background(), h, hub.Unsubscribe{Topic: topic, ClientID: clientID})

		log = log.With(zap.String("topic", topic), zap.String("client_id", clientID), zap.String("player_id", player))
		log.Debug("stream opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. The outbox closes when the lobby drops us.
		go func() {
			defer cancel()
			for evt := range out {
				if err := write(ctx, conn, types.ServerMessage{Type: "event", Event: &evt}); err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			}
			if ctx.Err() == nil {
				conn.Close(websocket.StatusTryAgainLater, "too slow")
			}
		}()

		// Reader loop
		for {
			var cm types.ClientMessage
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			err := wsjson.Read(rctx, conn, &cm)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			reply := types.ServerMessage{Type: "pong"}
			if cm.Type != "ping" {
				reply = types.ServerMessage{Type: "error", Error: "unknown type"}
			}
			if err := write(ctx, conn, reply); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func send(ctx context.Context, h *hub.Hub, m hub.HubMsg) bool {
	select {
	case h.Inbox() <- m:
		return true
	case <-h.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// authorizeTopic lets players watch their own topic, any battle they may see,
// and the open challenge board.
func authorizeTopic(ctx context.Context, viewer BattleViewer, topic, player string) error {
	switch {
	case topic == "":
		return apperr.Validation("missing topic")
	case topic == pkgtypes.ChallengesTopic:
		return nil
	case strings.HasPrefix(topic, "player:"):
		if topic != pkgtypes.PlayerTopic(player) {
			return apperr.Authorization("cannot watch another player's events")
		}
		return nil
	case strings.HasPrefix(topic, "battle:"):
		_, err := viewer.GetBattle(ctx, strings.TrimPrefix(topic, "battle:"), player)
		return err
	default:
		return apperr.Validation("unknown topic %q", topic)
	}
}
