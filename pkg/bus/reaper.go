package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/store"
)

// PoisonMessage describes a bus_messages row that has reached the
// reaper's attempts threshold without ever being acked.
type PoisonMessage struct {
	ID       int64
	Topic    string
	CaseID   string
	Attempts int
}

// Reaper periodically scans bus_messages for poison messages — rows
// whose attempts count indicates a handler keeps crashing or rejecting
// them rather than a worker crash mid-handler. It never deletes or
// mutates these rows (the human-review path decides what happens to a
// stuck case); it only surfaces them, mirroring the periodic-scan shape
// of pkg/queue/orphan.go's runOrphanDetection.
type Reaper struct {
	store       *store.Store
	interval    time.Duration
	maxAttempts int

	mu         sync.Mutex
	lastScan   time.Time
	lastPoison []PoisonMessage

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReaper creates a Reaper that scans every interval for messages with
// attempts >= maxAttempts.
func NewReaper(s *store.Store, interval time.Duration, maxAttempts int) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Reaper{
		store:       s,
		interval:    interval,
		maxAttempts: maxAttempts,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the scan loop in a goroutine.
func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop signals the scan loop to exit and waits for it.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.scan(ctx); err != nil {
				slog.Error("bus: poison scan failed", "error", err)
			}
		}
	}
}

func (r *Reaper) scan(ctx context.Context) error {
	rows, err := r.store.DB.QueryxContext(ctx,
		`SELECT id, topic, coalesce(case_id, ''), attempts
		 FROM bus_messages
		 WHERE attempts >= $1
		 ORDER BY created_at`, r.maxAttempts)
	if err != nil {
		return fmt.Errorf("bus: scan poison messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var poison []PoisonMessage
	for rows.Next() {
		var m PoisonMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.CaseID, &m.Attempts); err != nil {
			return fmt.Errorf("bus: scan poison message row: %w", err)
		}
		poison = append(poison, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("bus: iterate poison messages: %w", err)
	}

	for _, m := range poison {
		slog.Warn("bus: poison message detected",
			"message_id", m.ID, "topic", m.Topic, "case_id", m.CaseID, "attempts", m.Attempts)
	}

	r.mu.Lock()
	r.lastScan = time.Now()
	r.lastPoison = poison
	r.mu.Unlock()

	return nil
}

// PoisonMessages returns the poison messages found by the most recent
// scan, for health/metrics reporting.
func (r *Reaper) PoisonMessages() []PoisonMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PoisonMessage, len(r.lastPoison))
	copy(out, r.lastPoison)
	return out
}
