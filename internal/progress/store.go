package progress

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/codelens/codelens/internal/models"
)

const shardCount = 16

// Store tracks per-job processing progress for polling clients. It is the
// only state shared across concurrent jobs, so it is sharded by job ID to
// keep unrelated jobs off each other's locks. Records live in memory only;
// a restart loses them, which is acceptable for a take-at-most-once handoff.
type Store struct {
	shards [shardCount]*shard
}

type shard struct {
	mu      sync.RWMutex
	records map[string]models.ProgressRecord
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]models.ProgressRecord)}
	}
	return s
}

func (s *Store) shardFor(jobID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(jobID))
	return s.shards[h.Sum32()%shardCount]
}

// Set creates or replaces the record for jobID.
func (s *Store) Set(jobID string, rec models.ProgressRecord) {
	rec.JobID = jobID
	rec.Updated = time.Now()
	sh := s.shardFor(jobID)
	sh.mu.Lock()
	sh.records[jobID] = rec
	sh.mu.Unlock()
}

// Update mutates stage/progress/message while keeping any existing result.
func (s *Store) Update(jobID string, stage models.Stage, progress int, message string) {
	sh := s.shardFor(jobID)
	sh.mu.Lock()
	rec := sh.records[jobID]
	rec.JobID = jobID
	rec.Stage = stage
	// Progress never goes backwards within a run.
	if progress > rec.Progress || stage.Terminal() {
		rec.Progress = progress
	}
	rec.Message = message
	rec.Updated = time.Now()
	sh.records[jobID] = rec
	sh.mu.Unlock()
}

// Get returns the record without consuming it.
func (s *Store) Get(jobID string) (models.ProgressRecord, bool) {
	sh := s.shardFor(jobID)
	sh.mu.RLock()
	rec, ok := sh.records[jobID]
	sh.mu.RUnlock()
	return rec, ok
}

// Take returns the record, deleting it if it is terminal. A terminal
// record is therefore observed at most once; later polls see no record.
func (s *Store) Take(jobID string) (models.ProgressRecord, bool) {
	sh := s.shardFor(jobID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[jobID]
	if !ok {
		return models.ProgressRecord{}, false
	}
	if rec.Stage.Terminal() {
		delete(sh.records, jobID)
	}
	return rec, true
}

// Delete removes the record unconditionally.
func (s *Store) Delete(jobID string) {
	sh := s.shardFor(jobID)
	sh.mu.Lock()
	delete(sh.records, jobID)
	sh.mu.Unlock()
}

// Sweep removes non-terminal records older than maxAge. Terminal records
// are left for their reader; crashed jobs never reach terminal state, so
// their records would otherwise accumulate forever.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, rec := range sh.records {
			if !rec.Stage.Terminal() && rec.Updated.Before(cutoff) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
