// Package warehouse mirrors completed cases to an append-only
// newline-delimited JSON sink, the way master_orchestrator.py
// best-effort mirrors pipeline state to BigQuery: failures are logged
// and never propagate back to the caller.
package warehouse

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/navigo-fleet/pipeline/pkg/masking"
)

// Sink appends one JSON record per line to an underlying writer.
type Sink struct {
	mu      sync.Mutex
	w       *bufio.Writer
	masking *masking.Service
}

// New wraps w (typically an *os.File opened in append mode) as a Sink.
func New(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// WithMasking attaches a masking.Service so mirrored records have PII
// (phone numbers, VINs, API keys) redacted before they leave the
// process — the warehouse is the one place every stage's record
// crosses into an external system, the same boundary
// pkg/mcp/executor.go in the teacher applies its masking.Service at.
func (s *Sink) WithMasking(m *masking.Service) *Sink {
	s.masking = m
	return s
}

// Mirror best-effort writes record as one JSON line. Errors are logged
// and swallowed — a warehouse outage must never fail a pipeline stage.
func (s *Sink) Mirror(table string, record any) {
	body, err := json.Marshal(struct {
		Table  string `json:"table"`
		Record any    `json:"record"`
	}{table, record})
	if err != nil {
		slog.Warn("warehouse: marshal failed", "table", table, "error", err)
		return
	}

	if s.masking != nil {
		masked, applied := s.masking.Mask(string(body))
		if len(applied) > 0 {
			body = []byte(masked)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(body); err != nil {
		slog.Warn("warehouse: write failed", "table", table, "error", err)
		return
	}
	if err := s.w.WriteByte('\n'); err != nil {
		slog.Warn("warehouse: write failed", "table", table, "error", err)
		return
	}
	if err := s.w.Flush(); err != nil {
		slog.Warn("warehouse: flush failed", "table", table, "error", err)
	}
}
