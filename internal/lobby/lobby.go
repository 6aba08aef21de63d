package lobby

import (
	"context"

	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

type Msg interface{ isLobbyMsg() }

// Broadcast hands an event to every client in the lobby.
type Broadcast struct {
	Event types.Event
}

func (Broadcast) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan types.Event // where this client wants to receive events
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Topic      string
	Delivered  int
	NumClients int
	Last       *types.Event
}

// Lobby fans the events of one topic out to the clients watching it.
type Lobby struct {
	topic     string
	inbox     chan Msg
	last      *types.Event
	delivered int
	clients   map[string]chan types.Event
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, topic string) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		topic:   topic,
		inbox:   make(chan Msg, 64), // Small buffer
		clients: make(map[string]chan types.Event),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Late joiners get the latest event so they know where things stand
				l.clients[msg.ClientID] = msg.Outbox
				if l.last != nil {
					select {
					case msg.Outbox <- *l.last:
					default:
					}
				}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Broadcast:
				evt := msg.Event
				l.last = &evt
				l.delivered++
				l.broadcast(evt)

			case GetState:
				var last *types.Event
				if l.last != nil {
					cp := *l.last
					last = &cp
				}
				msg.Reply <- View{
					Topic:      l.topic,
					Delivered:  l.delivered,
					NumClients: len(l.clients),
					Last:       last,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more events
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(evt types.Event) {
	for id, ch := range l.clients {
		select {
		case ch <- evt:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so the hub and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Topic() string { return l.topic }
