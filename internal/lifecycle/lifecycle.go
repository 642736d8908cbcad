// Package lifecycle implements the generic Approval Lifecycle Manager state
// machine shared by the command approval path (two-state projection) and
// the Remediation Action Manager (full six-state machine), per the design
// note that a correct reimplementation factors this logic out once instead
// of duplicating it.
package lifecycle

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-qen/linux-broker/internal/types"
)

var (
	ErrNotFound        = errors.New("lifecycle: entry not found")
	ErrAlreadyExecuted = errors.New("lifecycle: entry already executed")
	ErrTerminal        = errors.New("lifecycle: entry already in a terminal state")
	ErrNotApproved     = errors.New("lifecycle: entry is not approved")
	ErrNotExecuting    = errors.New("lifecycle: entry is not executing")
)

// Entry is one proposal moving through PROPOSED → APPROVED → EXECUTING →
// {COMPLETED|FAILED}, or PROPOSED → REJECTED.
type Entry[T any] struct {
	ID         string
	Payload    T
	State      types.RemediationStatus
	CreatedAt  time.Time
	ApprovedAt *time.Time
	ApprovedBy string
	ExecutedAt *time.Time
	Result     string
	Err        string
}

// Approved reports the two-state projection used by the command path:
// true once the entry has left PROPOSED for APPROVED or further.
func (e *Entry[T]) Approved() bool {
	switch e.State {
	case types.StatusApproved, types.StatusExecuting, types.StatusCompleted:
		return true
	default:
		return false
	}
}

// Executed reports the two-state projection's terminal bit.
func (e *Entry[T]) Executed() bool {
	return e.State == types.StatusCompleted
}

// Machine is a mutex-guarded map of pending proposals. It is the only
// mutable shared state in the lifecycle: every mutation is serialized by a
// single exclusive lock, matching the linearizability requirement in the
// concurrency model.
type Machine[T any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[T]
}

// NewMachine returns an empty lifecycle machine.
func NewMachine[T any]() *Machine[T] {
	return &Machine[T]{entries: make(map[string]*Entry[T])}
}

// Propose creates a new PROPOSED entry with a fresh, process-lifetime-unique
// id and returns it.
func (m *Machine[T]) Propose(payload T) *Entry[T] {
	e := &Entry[T]{
		ID:        uuid.NewString(),
		Payload:   payload,
		State:     types.StatusProposed,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.entries[e.ID] = e
	m.mu.Unlock()
	return e
}

// Get returns the entry for id, if present.
func (m *Machine[T]) Get(id string) (*Entry[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

// Approve is the idempotent approve-only entry point used by the command
// path: approving an already-approved entry is a no-op success; approving
// an executed (or otherwise terminal) entry fails.
func (m *Machine[T]) Approve(id, approvedBy string) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch e.State {
	case types.StatusApproved, types.StatusExecuting:
		return e, nil
	case types.StatusCompleted:
		return nil, ErrAlreadyExecuted
	case types.StatusRejected, types.StatusFailed:
		return nil, ErrTerminal
	}
	now := time.Now().UTC()
	e.State = types.StatusApproved
	e.ApprovedAt = &now
	e.ApprovedBy = approvedBy
	return e, nil
}

// Decide transitions a PROPOSED entry to APPROVED or REJECTED. A REJECTED
// outcome deletes the entry, per the remediation action contract. Deciding
// on anything not in PROPOSED fails.
func (m *Machine[T]) Decide(id string, approved bool, approvedBy string) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != types.StatusProposed {
		return nil, ErrTerminal
	}
	if !approved {
		delete(m.entries, id)
		e.State = types.StatusRejected
		return e, nil
	}
	now := time.Now().UTC()
	e.State = types.StatusApproved
	e.ApprovedAt = &now
	e.ApprovedBy = approvedBy
	return e, nil
}

// AutoApprove immediately approves a freshly-proposed entry on behalf of
// the system, used by the remediation manager's auto_approve=true path.
func (m *Machine[T]) AutoApprove(id string) (*Entry[T], error) {
	return m.Decide(id, true, "auto")
}

// BeginExecution transitions APPROVED → EXECUTING. Executing a non-approved
// entry fails.
func (m *Machine[T]) BeginExecution(id string) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != types.StatusApproved {
		return nil, ErrNotApproved
	}
	e.State = types.StatusExecuting
	return e, nil
}

// MarkExecuted is the command path's direct APPROVED → COMPLETED
// transition, skipping the transient EXECUTING state because no
// intermediate observation of it is required there. Terminal.
func (m *Machine[T]) MarkExecuted(id string) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State == types.StatusCompleted {
		return e, nil
	}
	if e.State != types.StatusApproved {
		return nil, ErrNotApproved
	}
	now := time.Now().UTC()
	e.State = types.StatusCompleted
	e.ExecutedAt = &now
	return e, nil
}

// Complete transitions EXECUTING → COMPLETED, optionally removing the entry
// (the remediation manager deletes on completion; the command path retains
// until swept).
func (m *Machine[T]) Complete(id, result string, deleteAfter bool) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != types.StatusExecuting {
		return nil, ErrNotExecuting
	}
	now := time.Now().UTC()
	e.State = types.StatusCompleted
	e.ExecutedAt = &now
	e.Result = result
	if deleteAfter {
		delete(m.entries, id)
	}
	return e, nil
}

// Fail transitions EXECUTING → FAILED. Failed entries are always retained
// for inspection.
func (m *Machine[T]) Fail(id, errMsg string) (*Entry[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State != types.StatusExecuting {
		return nil, ErrNotExecuting
	}
	now := time.Now().UTC()
	e.State = types.StatusFailed
	e.ExecutedAt = &now
	e.Err = errMsg
	return e, nil
}

// Pending returns every non-terminal entry (PROPOSED, APPROVED, or
// EXECUTING) — used by list_pending_approvals / list_pending_actions.
func (m *Machine[T]) Pending() []*Entry[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry[T], 0, len(m.entries))
	for _, e := range m.entries {
		switch e.State {
		case types.StatusProposed, types.StatusApproved, types.StatusExecuting:
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry regardless of state.
func (m *Machine[T]) All() []*Entry[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry[T], 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}

// Sweep purges entries older than maxAge, regardless of state (a cleanup
// call on a process that never got around to deciding a proposal). Purged
// ids cannot be resurrected. Returns the count removed.
func (m *Machine[T]) Sweep(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of entries currently tracked.
func (m *Machine[T]) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
