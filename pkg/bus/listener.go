package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// listenCmd represents a LISTEN command to be executed by the receive
// loop, the sole goroutine permitted to touch the pgx connection.
type listenCmd struct {
	topic  string
	result chan error
}

// wakeupListener holds a dedicated LISTEN connection and fans out a
// wakeup signal per topic whenever a NOTIFY arrives, so Subscriber poll
// loops can react to new messages immediately instead of waiting out
// their poll interval. The NOTIFY payload itself is never trusted — the
// receiving Subscriber always re-polls bus_messages via SQL.
type wakeupListener struct {
	connString string
	conn       *pgx.Conn
	connMu     sync.Mutex

	wakeupMu sync.RWMutex
	wakeup   map[string]chan struct{} // topic -> buffered signal channel

	cmdCh   chan listenCmd
	running atomic.Bool

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

func newWakeupListener(connString string) *wakeupListener {
	return &wakeupListener{
		connString: connString,
		wakeup:     make(map[string]chan struct{}),
		cmdCh:      make(chan listenCmd, 16),
	}
}

// start establishes the dedicated LISTEN connection and begins receiving.
func (l *wakeupListener) start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("bus: connect for LISTEN: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	return nil
}

// wakeupChan returns (creating if needed) the buffered signal channel for
// topic, and issues LISTEN on it. Safe to call multiple times per topic.
func (l *wakeupListener) wakeupChan(ctx context.Context, topic string) (<-chan struct{}, error) {
	l.wakeupMu.Lock()
	ch, exists := l.wakeup[topic]
	if !exists {
		ch = make(chan struct{}, 1)
		l.wakeup[topic] = ch
	}
	l.wakeupMu.Unlock()

	if exists {
		return ch, nil
	}
	if !l.running.Load() {
		return ch, fmt.Errorf("bus: LISTEN connection not established")
	}

	cmd := listenCmd{topic: topic, result: make(chan error, 1)}
	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return ch, ctx.Err()
	}
	select {
	case err := <-cmd.result:
		if err != nil {
			return ch, fmt.Errorf("bus: LISTEN %s: %w", topic, err)
		}
		return ch, nil
	case <-ctx.Done():
		return ch, ctx.Err()
	}
}

func (l *wakeupListener) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.processPendingCmds(ctx)

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			l.reconnect(ctx)
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			slog.Error("bus: NOTIFY receive error", "error", err)
			l.reconnect(ctx)
			continue
		}

		l.wakeupMu.RLock()
		ch := l.wakeup[notification.Channel]
		l.wakeupMu.RUnlock()
		if ch != nil {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (l *wakeupListener) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-l.cmdCh:
			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()

			if conn == nil {
				cmd.result <- fmt.Errorf("bus: LISTEN connection not established")
				continue
			}

			sanitized := pgx.Identifier{cmd.topic}.Sanitize()
			_, err := conn.Exec(ctx, "LISTEN "+sanitized)
			cmd.result <- err
		default:
			return
		}
	}
}

func (l *wakeupListener) reconnect(ctx context.Context) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			slog.Error("bus: LISTEN reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		l.conn = conn

		l.wakeupMu.RLock()
		for topic := range l.wakeup {
			sanitized := pgx.Identifier{topic}.Sanitize()
			if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
				slog.Error("bus: re-LISTEN failed", "topic", topic, "error", err)
			}
		}
		l.wakeupMu.RUnlock()
		return
	}
}

// stop signals the receive loop to exit and closes the LISTEN connection.
func (l *wakeupListener) stop(ctx context.Context) {
	l.running.Store(false)
	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
}
