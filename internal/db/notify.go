package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"earcheck/internal/logger"
)

// Notifier wraps the LISTEN/NOTIFY mechanism in PostgreSQL.  The service
// notifies when a summary is accepted; the doctor dashboard listens.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	Log     *logger.Logger
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL setting.  Listen opens its own connection from
// dsn.
func NewNotifier(db *sql.DB, dsn, channel string, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{DB: db, DSN: dsn, Channel: channel, Log: log}
}

// Notify sends the session ID as the payload of a notification.
func (n *Notifier) Notify(ctx context.Context, sessionID string) error {
	_, err := n.DB.ExecContext(ctx,
		fmt.Sprintf("NOTIFY %s, %s", pq.QuoteIdentifier(n.Channel), pq.QuoteLiteral(sessionID)))
	return err
}

// Listen yields notification payloads until ctx is cancelled, then closes
// the returned channel.  A dropped connection is re-established by the
// pq listener.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	l := pq.NewListener(n.DSN, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Log.Warn("notify listener event", "event", int(ev), "error", err)
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", n.Channel, err)
	}

	ch := make(chan string)
	go func() {
		defer func() {
			_ = l.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note := <-l.Notify:
				// nil after a reconnect; notifications may have been missed.
				if note == nil {
					continue
				}
				select {
				case ch <- note.Extra:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				go func() { _ = l.Ping() }()
			}
		}
	}()
	return ch, nil
}

// Broadcaster is the in-process Notifier used without a database.  Every
// Listen call gets its own buffered channel; slow listeners miss
// notifications rather than block Notify.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan string]struct{})}
}

func (b *Broadcaster) Notify(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- sessionID:
		default:
		}
	}
	return nil
}

func (b *Broadcaster) Listen(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
