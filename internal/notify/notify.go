package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

// Publisher pushes an event to whoever is subscribed to its topic.
// Publishing happens after the state change committed, so a failed
// publish never undoes or fails the operation.
type Publisher interface {
	Publish(ctx context.Context, evt types.Event) error
}

// Emit publishes evt and logs instead of returning a failure.
func Emit(ctx context.Context, pub Publisher, log *zap.Logger, evt types.Event) {
	if pub == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	if err := pub.Publish(ctx, evt); err != nil {
		log.Warn("event publish failed",
			zap.String("type", string(evt.Type)),
			zap.String("topic", evt.Topic),
			zap.Error(err))
	}
}

var errHubClosed = errors.New("hub closed")

// HubPublisher delivers events straight to the in-process hub. Used when the
// store is not Postgres and there is no LISTEN/NOTIFY channel to go through.
type HubPublisher struct {
	hub *hub.Hub
}

func NewHubPublisher(h *hub.Hub) *HubPublisher {
	return &HubPublisher{hub: h}
}

func (p *HubPublisher) Publish(ctx context.Context, evt types.Event) error {
	select {
	case p.hub.Inbox() <- hub.Publish{Event: evt}:
		return nil
	case <-p.hub.Done():
		return errHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
