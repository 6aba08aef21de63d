package hub

import (
	"context"

	"github.com/DoyleJ11/cardclash-backend/internal/lobby"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

// Subscribe joins a client to a topic, creating its lobby on first use.
type Subscribe struct {
	Topic    string
	ClientID string
	Outbox   chan types.Event
}

type Unsubscribe struct {
	Topic    string
	ClientID string
}

// Publish routes an event to the lobby of its topic. Events for topics
// nobody watches are dropped.
type Publish struct {
	Event types.Event
}

type GetLobby struct {
	Topic string
	Reply chan *lobby.Lobby
}

// Reap shuts down lobbies without clients and replies with how many it
// removed.
type Reap struct {
	Reply chan int
}

type Stats struct {
	Reply chan StatsView
}

type StatsView struct {
	Lobbies   int
	Published int
	Dropped   int
}

type Hub struct {
	inbox     chan HubMsg
	lobbies   map[string]*lobby.Lobby
	published int
	dropped   int
	ctx       context.Context
	cancel    context.CancelFunc
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (GetLobby) isHubMsg()    {}
func (Reap) isHubMsg()        {}
func (Stats) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				lb := h.lobbies[msg.Topic]
				if lb == nil {
					lb = lobby.NewLobby(h.ctx, msg.Topic)
					h.lobbies[msg.Topic] = lb
				}
				lb.Inbox() <- lobby.Join{ClientID: msg.ClientID, Outbox: msg.Outbox}

			case Unsubscribe:
				if lb := h.lobbies[msg.Topic]; lb != nil {
					lb.Inbox() <- lobby.Leave{ClientID: msg.ClientID}
				}

			case Publish:
				lb := h.lobbies[msg.Event.Topic]
				if lb == nil {
					h.dropped++
					break
				}
				h.published++
				lb.Inbox() <- lobby.Broadcast{Event: msg.Event}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Topic] // May be nil

			case Reap:
				msg.Reply <- h.reap()

			case Stats:
				msg.Reply <- StatsView{Lobbies: len(h.lobbies), Published: h.published, Dropped: h.dropped}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}

// reap runs inside the loop, so a Subscribe queued after it always lands in
// a live lobby.
func (h *Hub) reap() int {
	removed := 0
	for topic, lb := range h.lobbies {
		reply := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetState{Reply: reply}
		if v := <-reply; v.NumClients > 0 {
			continue
		}
		lb.Inbox() <- lobby.Shutdown{}
		delete(h.lobbies, topic)
		removed++
	}
	return removed
}
