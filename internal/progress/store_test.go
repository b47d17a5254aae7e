package progress

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/models"
)

func TestStoreGetUnknownJob(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("nope")
	assert.False(t, ok)

	_, ok = s.Take("nope")
	assert.False(t, ok)

	// Looking up an unknown job must not create a record.
	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestStoreUpdateMonotonicProgress(t *testing.T) {
	s := NewStore()
	s.Set("abc", models.ProgressRecord{Stage: models.StageDownloading, Progress: 40})

	s.Update("abc", models.StageDownloading, 20, "regression attempt")
	rec, ok := s.Get("abc")
	require.True(t, ok)
	assert.Equal(t, 40, rec.Progress)

	s.Update("abc", models.StageTranscribing, 60, "transcribing")
	rec, _ = s.Get("abc")
	assert.Equal(t, 60, rec.Progress)
	assert.Equal(t, models.StageTranscribing, rec.Stage)
}

func TestStoreTakeConsumesTerminalOnce(t *testing.T) {
	s := NewStore()
	s.Update("abc", models.StageComplete, 100, "done")

	rec, ok := s.Take("abc")
	require.True(t, ok)
	assert.Equal(t, models.StageComplete, rec.Stage)
	assert.Equal(t, 100, rec.Progress)

	// Second take sees nothing: terminal records are handed off at most once.
	_, ok = s.Take("abc")
	assert.False(t, ok)
}

func TestStoreTakeKeepsNonTerminal(t *testing.T) {
	s := NewStore()
	s.Update("abc", models.StageDownloading, 10, "downloading")

	for i := 0; i < 3; i++ {
		rec, ok := s.Take("abc")
		require.True(t, ok)
		assert.Equal(t, models.StageDownloading, rec.Stage)
	}
}

func TestStoreConcurrentJobs(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", n)
			for p := 0; p <= 100; p += 10 {
				s.Update(id, models.StageDownloading, p, "working")
				s.Get(id)
			}
			s.Update(id, models.StageComplete, 100, "done")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		rec, ok := s.Take(fmt.Sprintf("job-%d", i))
		require.True(t, ok)
		assert.Equal(t, 100, rec.Progress)
	}
}

func TestStoreSweep(t *testing.T) {
	s := NewStore()
	s.Update("stale", models.StageDownloading, 10, "stuck")
	s.Update("done", models.StageComplete, 100, "done")

	// Backdate the stale record.
	sh := s.shardFor("stale")
	sh.mu.Lock()
	rec := sh.records["stale"]
	rec.Updated = time.Now().Add(-48 * time.Hour)
	sh.records["stale"] = rec
	sh.mu.Unlock()

	removed := s.Sweep(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Get("stale")
	assert.False(t, ok)
	_, ok = s.Get("done")
	assert.True(t, ok, "terminal records are left for their reader")
}
