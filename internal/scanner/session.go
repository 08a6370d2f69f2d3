package scanner

import (
	"context"
	"sync"
	"time"
)

// ScanStatus is the lifecycle state of a scan session.
type ScanStatus string

const (
	StatusPending   ScanStatus = "pending"
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusCancelled ScanStatus = "cancelled"
	StatusFailed    ScanStatus = "failed"
)

// validTransitions is the closed transition table; anything not listed is
// rejected.
var validTransitions = map[ScanStatus][]ScanStatus{
	StatusPending: {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning: {StatusCompleted, StatusCancelled, StatusFailed},
}

// IsTerminal reports whether the status permits no further transitions.
func (s ScanStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// ScanSession tracks one scan campaign. Counter fields are mutated only by
// the session's background task; status transitions and snapshots are
// guarded by the session mutex.
type ScanSession struct {
	id   string
	mode ScanMode

	mu          sync.Mutex
	status      ScanStatus
	progress    int
	total       int
	valid       int
	invalid     int
	startedAt   time.Time
	completedAt *time.Time
	errMsg      string

	cancel context.CancelFunc
	done   chan struct{}
}

func newScanSession(id string, mode ScanMode, total int, cancel context.CancelFunc) *ScanSession {
	return &ScanSession{
		id:        id,
		mode:      mode,
		status:    StatusPending,
		total:     total,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *ScanSession) ID() string { return s.id }

// Done is closed when the background task has exited.
func (s *ScanSession) Done() <-chan struct{} { return s.done }

// transitionTo applies a status change if the transition table allows it,
// stamping completedAt on entry to a terminal state.
func (s *ScanSession) transitionTo(status ScanStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := false
	for _, next := range validTransitions[s.status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	s.status = status
	if status.IsTerminal() {
		now := time.Now().UTC()
		s.completedAt = &now
	}
	return true
}

func (s *ScanSession) fail(message string) {
	s.mu.Lock()
	s.errMsg = message
	s.mu.Unlock()
	s.transitionTo(StatusFailed)
}

func (s *ScanSession) recordResult(result ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress++
	if result.IsValid {
		s.valid++
	} else {
		s.invalid++
	}
}

// SessionSnapshot is a point-in-time read of a session, safe to hand to
// external callers.
type SessionSnapshot struct {
	ID          string     `json:"scan_id"`
	Mode        ScanMode   `json:"mode"`
	Status      ScanStatus `json:"status"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	Valid       int        `json:"valid"`
	Invalid     int        `json:"invalid"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the session's state.
func (s *ScanSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := SessionSnapshot{
		ID:        s.id,
		Mode:      s.mode,
		Status:    s.status,
		Progress:  s.progress,
		Total:     s.total,
		Valid:     s.valid,
		Invalid:   s.invalid,
		StartedAt: s.startedAt,
		Error:     s.errMsg,
	}
	if s.completedAt != nil {
		completed := *s.completedAt
		snapshot.CompletedAt = &completed
	}
	return snapshot
}
