package bus

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/store"
)

// ErrNoMessageAvailable is returned internally by claim when the topic's
// queue is empty; Subscriber.run treats it as "sleep and retry".
var ErrNoMessageAvailable = errors.New("bus: no message available")

// Handler processes one claimed message. Returning nil acks (deletes)
// the row; a non-nil error leaves it claimed until visible_at elapses,
// so the message is redelivered — handlers must be idempotent, which is
// exactly what the duplicate-suppression gates in pkg/store exist for.
type Handler func(ctx context.Context, env Envelope) error

// Config controls Subscriber poll timing.
type Config struct {
	PollInterval      time.Duration
	PollJitter        time.Duration
	VisibilityTimeout time.Duration
}

// claimedMessage is a row claimed off bus_messages.
type claimedMessage struct {
	id       int64
	payload  []byte
	attempts int
}

// Subscriber runs one poll loop per subscribed topic, claiming messages
// with FOR UPDATE SKIP LOCKED and a visibility-timeout lease.
type Subscriber struct {
	store    *store.Store
	cfg      Config
	listener *wakeupListener

	mu       sync.Mutex
	handlers map[string]Handler

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSubscriber creates a Subscriber. connString is used to open a
// dedicated LISTEN connection distinct from s's pool, since
// pgx.Conn.WaitForNotification must own its connection exclusively.
func NewSubscriber(s *store.Store, connString string, cfg Config) *Subscriber {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	return &Subscriber{
		store:    s,
		cfg:      cfg,
		listener: newWakeupListener(connString),
		handlers: make(map[string]Handler),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers handler for topic. Must be called before Start.
func (sub *Subscriber) Subscribe(topic string, handler Handler) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.handlers[topic] = handler
}

// Start establishes the LISTEN connection and spawns one poll goroutine
// per subscribed topic.
func (sub *Subscriber) Start(ctx context.Context) error {
	if err := sub.listener.start(ctx); err != nil {
		return err
	}

	sub.mu.Lock()
	topics := make([]string, 0, len(sub.handlers))
	for topic := range sub.handlers {
		topics = append(topics, topic)
	}
	sub.mu.Unlock()

	for _, topic := range topics {
		wake, err := sub.listener.wakeupChan(ctx, topic)
		if err != nil {
			return fmt.Errorf("bus: subscribe to %s: %w", topic, err)
		}
		sub.wg.Add(1)
		go sub.run(ctx, topic, wake)
	}
	return nil
}

// Stop signals every poll loop to exit and waits for them to finish.
func (sub *Subscriber) Stop() {
	sub.stopOnce.Do(func() { close(sub.stopCh) })
	sub.wg.Wait()
	sub.listener.stop(context.Background())
}

func (sub *Subscriber) run(ctx context.Context, topic string, wake <-chan struct{}) {
	defer sub.wg.Done()

	sub.mu.Lock()
	handler := sub.handlers[topic]
	sub.mu.Unlock()

	log := slog.With("topic", topic)
	log.Info("bus: subscriber started")

	for {
		select {
		case <-sub.stopCh:
			log.Info("bus: subscriber stopping")
			return
		case <-ctx.Done():
			return
		default:
		}

		processed, err := sub.pollOnce(ctx, topic, handler)
		if err != nil {
			log.Error("bus: poll error", "error", err)
			sub.sleep(time.Second)
			continue
		}
		if !processed {
			sub.sleepOrWake(sub.pollInterval(), wake)
		}
	}
}

// pollOnce claims and processes at most one message, returning whether
// a message was found.
func (sub *Subscriber) pollOnce(ctx context.Context, topic string, handler Handler) (bool, error) {
	msg, err := sub.claim(ctx, topic)
	if err != nil {
		if errors.Is(err, ErrNoMessageAvailable) {
			return false, nil
		}
		return false, err
	}

	env, decodeErr := Decode(msg.payload)
	if decodeErr != nil {
		slog.Error("bus: dropping malformed envelope", "topic", topic, "message_id", msg.id, "error", decodeErr)
		_ = sub.ack(ctx, msg.id)
		return true, nil
	}

	log := slog.With("topic", topic, "message_id", msg.id, "case_id", env.CaseID(), "attempt", msg.attempts)
	handleErr := handler(ctx, env)
	if handleErr != nil {
		log.Warn("bus: handler failed, message will be redelivered", "error", handleErr)
		return true, nil
	}

	if err := sub.ack(ctx, msg.id); err != nil {
		log.Error("bus: ack failed", "error", err)
		return true, err
	}
	log.Debug("bus: message acked")
	return true, nil
}

// claim atomically selects and leases the oldest visible message on
// topic, incrementing attempts and extending visible_at.
func (sub *Subscriber) claim(ctx context.Context, topic string) (*claimedMessage, error) {
	tx, err := sub.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bus: begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var msg claimedMessage
	err = tx.QueryRowxContext(ctx, `
		SELECT id, payload, attempts
		FROM bus_messages
		WHERE topic = $1 AND visible_at <= now()
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, topic).Scan(&msg.id, &msg.payload, &msg.attempts)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNoMessageAvailable
		}
		return nil, fmt.Errorf("bus: claim select: %w", err)
	}

	newVisibleAt := time.Now().Add(sub.cfg.VisibilityTimeout)
	if _, err := tx.ExecContext(ctx,
		`UPDATE bus_messages SET visible_at = $1, attempts = attempts + 1 WHERE id = $2`,
		newVisibleAt, msg.id,
	); err != nil {
		return nil, fmt.Errorf("bus: claim update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("bus: commit claim tx: %w", err)
	}

	msg.attempts++
	return &msg, nil
}

// ack permanently removes a successfully processed message.
func (sub *Subscriber) ack(ctx context.Context, id int64) error {
	_, err := sub.store.DB.ExecContext(ctx, `DELETE FROM bus_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bus: delete message %d: %w", id, err)
	}
	return nil
}

func (sub *Subscriber) sleep(d time.Duration) {
	select {
	case <-sub.stopCh:
	case <-time.After(d):
	}
}

// sleepOrWake waits for the poll interval, a stop signal, or a NOTIFY
// wakeup, whichever comes first.
func (sub *Subscriber) sleepOrWake(d time.Duration, wake <-chan struct{}) {
	select {
	case <-sub.stopCh:
	case <-time.After(d):
	case <-wake:
	}
}

// pollInterval returns the configured interval jittered by +/- PollJitter.
func (sub *Subscriber) pollInterval() time.Duration {
	base := sub.cfg.PollInterval
	jitter := sub.cfg.PollJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
