package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/hub"
	"github.com/DoyleJ11/cardclash-backend/pkg/types"
)

// PGPublisher sends events through pg_notify so every server instance
// listening on the channel sees them.
type PGPublisher struct {
	pool    *pgxpool.Pool
	channel string
}

func NewPGPublisher(pool *pgxpool.Pool, channel string) *PGPublisher {
	return &PGPublisher{pool: pool, channel: channel}
}

func (p *PGPublisher) Publish(ctx context.Context, evt types.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Listener LISTENs on the channel and forwards every notification to the
// local hub. It reconnects until its context is cancelled.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	hub     *hub.Hub
	log     *zap.Logger
	backoff time.Duration
}

func NewListener(pool *pgxpool.Pool, channel string, h *hub.Hub, log *zap.Logger) *Listener {
	return &Listener{pool: pool, channel: channel, hub: h, log: log.Named("listener"), backoff: 2 * time.Second}
}

func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("notification listener stopped, reconnecting", zap.Error(err), zap.Duration("backoff", l.backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer releaseListenConn(conn, conn.Conn().Close, l.log)

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info("listening for notifications", zap.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, err := DecodeEvent(n.Payload)
		if err != nil {
			l.log.Warn("bad notification payload", zap.Error(err))
			continue
		}
		select {
		case l.hub.Inbox() <- hub.Publish{Event: evt}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// listenConn is the part of *pgxpool.Conn needed to hand it back.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

// releaseListenConn drops every LISTEN before the connection goes back to
// the pool. When UNLISTEN fails the connection is closed first, and the pool
// discards closed connections on release.
func releaseListenConn(conn listenConn, closeConn func(context.Context) error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		log.Debug("unlisten failed, closing connection", zap.Error(err))
		_ = closeConn(ctx)
	}
	conn.Release()
}

// DecodeEvent parses a notification payload. Events without a topic are
// rejected since the hub could not route them.
func DecodeEvent(payload string) (types.Event, error) {
	var evt types.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return types.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Topic == "" {
		return types.Event{}, fmt.Errorf("event %q has no topic", evt.Type)
	}
	return evt, nil
}
