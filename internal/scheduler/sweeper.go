package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codelens/codelens/internal/progress"
)

// Sweeper periodically reclaims what crashed or abandoned jobs leave
// behind: job temp directories that were never cleaned up, and progress
// records whose job stopped reporting without reaching a terminal stage.
type Sweeper struct {
	store          *progress.Store
	tempDir        string
	tempMaxAge     time.Duration
	progressMaxAge time.Duration
	cron           *cron.Cron
}

func NewSweeper(store *progress.Store, tempDir string) *Sweeper {
	return &Sweeper{
		store:          store,
		tempDir:        tempDir,
		tempMaxAge:     6 * time.Hour,
		progressMaxAge: 24 * time.Hour,
		cron:           cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 30m", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("[sweeper] started (30m interval)")
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[sweeper] stopped")
}

func (s *Sweeper) sweep() {
	if n := s.sweepTempDirs(); n > 0 {
		log.Printf("[sweeper] removed %d stale temp dir(s)", n)
	}
	if n := s.store.Sweep(s.progressMaxAge); n > 0 {
		log.Printf("[sweeper] purged %d stale progress record(s)", n)
	}
}

// sweepTempDirs removes entries under the temp base older than tempMaxAge.
// A running job touches its directory constantly, so anything this old
// belongs to a run that died without its deferred cleanup.
func (s *Sweeper) sweepTempDirs() int {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[sweeper] read temp dir: %v", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-s.tempMaxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[sweeper] remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
