package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/progress"
)

func TestSweepTempDirsRemovesOnlyStale(t *testing.T) {
	base := t.TempDir()

	stale := filepath.Join(base, "abc123_1000_old")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "audio.mp3"), []byte("x"), 0o644))
	old := time.Now().Add(-8 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(base, "def456_2000_new")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	s := NewSweeper(progress.NewStore(), base)
	removed := s.sweepTempDirs()

	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}

func TestSweepTempDirsMissingBase(t *testing.T) {
	s := NewSweeper(progress.NewStore(), filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, 0, s.sweepTempDirs())
}

func TestSweepPurgesStaleProgress(t *testing.T) {
	store := progress.NewStore()
	store.Set("stuck", models.ProgressRecord{Stage: models.StageTranscribing, Progress: 40})

	s := NewSweeper(store, t.TempDir())
	s.progressMaxAge = 0
	s.sweep()

	_, ok := store.Get("stuck")
	assert.False(t, ok)
}
