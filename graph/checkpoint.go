package graph

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a snapshot of a run's progress: which node ids completed,
// their results, and any errors recorded so far (spec.md §4.4
// saveCheckpoint/loadCheckpoint, grounded on the teacher's Checkpoint[S]).
type Checkpoint struct {
	ID        string
	Completed []string
	Results   map[string]any
	Errors    map[string]string
	SavedAt   time.Time
}

// CheckpointSummary is the listing row returned by ListCheckpoints.
type CheckpointSummary struct {
	ID          string
	ResultCount int
	ErrorCount  int
	SavedAt     time.Time
}

// checkpointStore is an in-memory, mutex-guarded checkpoint table keyed by
// id. There is no implicit persistence (spec.md §5's "no implicit
// persistence" rule) — every Checkpoint lives only as long as the process.
type checkpointStore struct {
	mu   sync.Mutex
	byID map[string]Checkpoint
}

func newCheckpointStore() *checkpointStore {
	return &checkpointStore{byID: make(map[string]Checkpoint)}
}

// save stores cp, generating an id via uuid.NewString when none is
// supplied, and returns the id used.
func (s *checkpointStore) save(id string, results map[string]any, errs map[string]error) string {
	if id == "" {
		id = uuid.NewString()
	}
	errStrings := make(map[string]string, len(errs))
	for k, v := range errs {
		errStrings[k] = v.Error()
	}
	completed := make([]string, 0, len(results))
	for k := range results {
		completed = append(completed, k)
	}
	resultsCopy := make(map[string]any, len(results))
	for k, v := range results {
		resultsCopy[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = Checkpoint{
		ID:        id,
		Completed: completed,
		Results:   resultsCopy,
		Errors:    errStrings,
		SavedAt:   time.Now(),
	}
	return id
}

func (s *checkpointStore) load(id string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byID[id]
	if !ok {
		return Checkpoint{}, ErrNoCheckpoint
	}
	return cp, nil
}

func (s *checkpointStore) list() []CheckpointSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CheckpointSummary, 0, len(s.byID))
	for _, cp := range s.byID {
		out = append(out, CheckpointSummary{
			ID:          cp.ID,
			ResultCount: len(cp.Results),
			ErrorCount:  len(cp.Errors),
			SavedAt:     cp.SavedAt,
		})
	}
	return out
}

func (s *checkpointStore) clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}
