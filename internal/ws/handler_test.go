package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/internal/lobby"
	"github.com/DoyleJ11/cardclash-backend/internal/models"
	"github.com/DoyleJ11/cardclash-backend/internal/types"
	pkgtypes "github.com/DoyleJ11/cardclash-backend/pkg/types"
)

type viewerFunc func(ctx context.Context, battleID, playerID string) (*models.Battle, error)

func (f viewerFunc) GetBattle(ctx context.Context, battleID, playerID string) (*models.Battle, error) {
	return f(ctx, battleID, playerID)
}

var onlyAliceInB1 = viewerFunc(func(_ context.Context, battleID, playerID string) (*models.Battle, error) {
	if battleID != "b1" {
		return nil, apperr.NotFound("battle not found")
	}
	if playerID != "alice" {
		return nil, apperr.Authorization("not a participant")
	}
	return &models.Battle{ID: battleID}, nil
})

func TestAuthorizeTopic(t *testing.T) {
	cases := []struct {
		name   string
		topic  string
		player string
		kind   error
	}{
		{"challenge board", pkgtypes.ChallengesTopic, "bob", nil},
		{"own player topic", pkgtypes.PlayerTopic("alice"), "alice", nil},
		{"other player topic", pkgtypes.PlayerTopic("alice"), "bob", apperr.ErrAuthorization},
		{"participant battle", pkgtypes.BattleTopic("b1"), "alice", nil},
		{"outsider battle", pkgtypes.BattleTopic("b1"), "bob", apperr.ErrAuthorization},
		{"missing battle", pkgtypes.BattleTopic("nope"), "alice", apperr.ErrNotFound},
		{"empty", "", "alice", apperr.ErrValidation},
		{"unknown prefix", "lobby:x", "alice", apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorizeTopic(context.Background(), onlyAliceInB1, tc.topic, tc.player)
			if tc.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func newServer(t *testing.T, h *hub.Hub) *httptest.Server {
	t.Helper()
	identity := func(r *http.Request) string { return r.Header.Get("X-User-ID") }
	srv := httptest.NewServer(Handler(h, onlyAliceInB1, identity, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv
}

func dial(ctx context.Context, srv *httptest.Server, topic, player string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?topic=" + topic
	return websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-ID": []string{player}},
	})
}

func clients(h *hub.Hub, topic string) int {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{Topic: topic, Reply: reply}
	lb := <-reply
	if lb == nil {
		return 0
	}
	view := make(chan lobby.View, 1)
	lb.Inbox() <- lobby.GetState{Reply: view}
	return (<-view).NumClients
}

func TestHandler_StreamsTopicEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := hub.NewHub(ctx)
	srv := newServer(t, h)

	topic := pkgtypes.BattleTopic("b1")
	conn, _, err := dial(ctx, srv, topic, "alice")
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return clients(h, topic) == 1 }, time.Second, 10*time.Millisecond)

	h.Inbox() <- hub.Publish{Event: pkgtypes.Event{Type: pkgtypes.EvtCardsRevealed, Topic: topic, BattleID: "b1"}}

	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, pkgtypes.EvtCardsRevealed, msg.Event.Type)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "ping"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "pong", msg.Type)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "select"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "error", msg.Type)
}

func TestHandler_RejectsForeignTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := hub.NewHub(ctx)
	srv := newServer(t, h)

	_, resp, err := dial(ctx, srv, pkgtypes.PlayerTopic("alice"), "bob")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dial(ctx, srv, pkgtypes.BattleTopic("missing"), "alice")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
