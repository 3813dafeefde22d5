package relay

import (
	"sync"

	"github.com/StacksTasker/x402-stacks-agent-console/internal/marketplace"
)

// Observation classifies what RecordObservation learned from one snapshot.
type Observation int

const (
	// FirstSeen means the task id was absent from the cache. The entry is
	// inserted but the observation is not broadcastable, so a restart never
	// floods clients with the backlog of old tasks.
	FirstSeen Observation = iota
	// Unchanged means the cached status already matches.
	Unchanged
	// Changed means the status differs from the cached one; the cache is
	// updated and the observation is broadcastable.
	Changed
)

// State holds every piece of in-memory relay state: the task status cache,
// the seen-new-task-id set, and the payment transaction id map. One State is
// owned by one relay instance; nothing here is a process-wide singleton.
type State struct {
	mu        sync.Mutex
	statuses  map[string]marketplace.Status
	seenNew   map[string]struct{}
	seeded    bool
	paymentTx map[string]string
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		statuses:  make(map[string]marketplace.Status),
		seenNew:   make(map[string]struct{}),
		paymentTx: make(map[string]string),
	}
}

// RecordObservation applies one status observation to the cache and reports
// whether it is broadcastable. Observing a status equal to the cached value
// is always a no-op; that suppression is the signal clients rely on.
func (s *State) RecordObservation(taskID string, status marketplace.Status) Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.statuses[taskID]
	if !ok {
		s.statuses[taskID] = status
		return FirstSeen
	}
	if current == status {
		return Unchanged
	}
	s.statuses[taskID] = status
	return Changed
}

// SetStatus seeds or overwrites a cache entry directly. Used by the
// watch-task control operation.
func (s *State) SetStatus(taskID string, status marketplace.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[taskID] = status
}

// Status returns the cached status for a task, if any.
func (s *State) Status(taskID string) (marketplace.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[taskID]
	return status, ok
}

// Size returns the number of tracked tasks.
func (s *State) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses)
}

// WatchedIDs returns the ids of every non-terminal cache entry. The terminal
// check reads the current cached value each call, so a task whose status is
// mutated back to a non-terminal value resumes polling.
func (s *State) WatchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.statuses))
	for id, status := range s.statuses {
		if marketplace.IsTerminal(status) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// MarkSeen inserts task ids into the seen-new-task-id set.
func (s *State) MarkSeen(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.seenNew[id] = struct{}{}
	}
}

// Seen reports whether a task id has already been offered as newly discovered.
func (s *State) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seenNew[id]
	return ok
}

// MarkSeeded records that the first open-task cycle has run; Seeded reports it.
func (s *State) MarkSeeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeded = true
}

// Seeded reports whether the first open-task cycle has completed.
func (s *State) Seeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeded
}

// SetPaymentTx records an out-of-band payment transaction id for a task.
// Entries accumulate for the lifetime of the process.
func (s *State) SetPaymentTx(taskID, txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentTx[taskID] = txID
}

// PaymentTx looks up a recorded payment transaction id.
func (s *State) PaymentTx(taskID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txID, ok := s.paymentTx[taskID]
	return txID, ok
}
