package fetch

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codelens/codelens/internal/models"
)

// Mode selects what the fetcher should acquire.
type Mode int

const (
	AudioOnly Mode = iota
	AudioVideo
)

// ProgressFunc receives download progress in the 0-100 range.
type ProgressFunc func(pct float64)

// Strategy is one way of acquiring a video. The fetcher tries strategies
// in order and returns the first success.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error)
}

// Error is a fetch failure carrying the last strategy that was tried.
type Error struct {
	Strategy string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("fetch: %s", e.Message)
	}
	return fmt.Sprintf("fetch (%s): %s", e.Strategy, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher resolves a video ID to a local media file. Rate-limit style
// failures (HTTP 403-class) are retried with exponential backoff; anything
// else propagates immediately.
type Fetcher struct {
	strategies  []Strategy
	limiter     *rate.Limiter
	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewFetcher(strategies ...Strategy) *Fetcher {
	return &Fetcher{
		strategies:  strategies,
		limiter:     rate.NewLimiter(rate.Every(2*time.Second), 1),
		maxAttempts: 3,
		backoffBase: time.Second,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch runs the strategy chain, retrying transient failures. The caller
// owns deletion of the returned file.
func (f *Fetcher) Fetch(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error) {
	if len(f.strategies) == 0 {
		return models.MediaAsset{}, &Error{Message: "no strategies configured"}
	}

	var lastErr error
	var lastStrategy string

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := f.backoffBase << (attempt - 1)
			log.Printf("Fetch: retrying %s in %v (attempt %d/%d)", videoID, wait, attempt+1, f.maxAttempts)
			if err := f.sleep(ctx, wait); err != nil {
				return models.MediaAsset{}, &Error{Strategy: lastStrategy, Message: "cancelled during backoff", Err: err}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return models.MediaAsset{}, &Error{Message: "cancelled waiting for rate limiter", Err: err}
		}

		asset, err := f.tryStrategies(ctx, videoID, destDir, mode, onProgress)
		if err == nil {
			return asset, nil
		}
		lastErr = err
		if fe, ok := err.(*Error); ok {
			lastStrategy = fe.Strategy
		}

		if !isTransient(err) {
			return models.MediaAsset{}, err
		}
	}

	return models.MediaAsset{}, &Error{
		Strategy: lastStrategy,
		Message:  fmt.Sprintf("all %d attempts failed", f.maxAttempts),
		Err:      lastErr,
	}
}

func (f *Fetcher) tryStrategies(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error) {
	var lastErr error
	for _, s := range f.strategies {
		asset, err := s.Fetch(ctx, videoID, destDir, mode, onProgress)
		if err == nil {
			if verr := verifyAsset(asset); verr != nil {
				log.Printf("Fetch: %s produced unusable file for %s: %v", s.Name(), videoID, verr)
				lastErr = &Error{Strategy: s.Name(), Message: verr.Error()}
				continue
			}
			return asset, nil
		}
		log.Printf("Fetch: %s failed for %s: %v", s.Name(), videoID, err)
		lastErr = &Error{Strategy: s.Name(), Message: err.Error(), Err: err}
	}
	return models.MediaAsset{}, lastErr
}

// verifyAsset rejects empty downloads. A subordinate process exiting 0
// does not make a zero-byte file a success.
func verifyAsset(asset models.MediaAsset) error {
	info, err := os.Stat(asset.Path)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("downloaded file is empty")
	}
	return nil
}

// isTransient reports whether the failure looks like throttling rather
// than a hard error. Only these are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests")
}
