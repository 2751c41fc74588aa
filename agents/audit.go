package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditEntry is one append-only record of a pipeline run's outcome, written
// as newline-delimited JSON so external tooling can tail the file without
// parsing a JSON array incrementally.
type AuditEntry struct {
	RunID         string    `json:"run_id"`
	Phase         Phase     `json:"phase"`
	WatchlistSize int       `json:"watchlist_size"`
	TopCandidates int       `json:"top_candidates"`
	Approved      int       `json:"approved_trades"`
	Executed      int       `json:"executed_plans"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// AuditLog is an append-only JSONL writer, one file handle shared across
// runs and serialized by a mutex since Supervisor may run concurrent
// triggers (manual + scheduled).
type AuditLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func NewAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("agents: open audit log %q: %w", path, err)
	}
	return &AuditLog{path: path, file: f}, nil
}

// RunAudit writes one entry derived from the final pipeline state.
func (a *AuditLog) RunAudit(s State) error {
	entry := AuditEntry{
		RunID:         s.RunID,
		Phase:         s.Phase,
		WatchlistSize: len(s.Watchlist),
		TopCandidates: len(s.TopCandidates),
		Approved:      len(s.ApprovedTrades),
		Executed:      len(s.ExecutionPlans),
		ErrorMessage:  s.ErrorMessage,
		RecordedAt:    time.Now(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("agents: marshal audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("agents: write audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
