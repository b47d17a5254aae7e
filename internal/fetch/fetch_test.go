package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/models"
)

type fakeStrategy struct {
	name    string
	calls   int
	results []error // one per call; nil means success
	size    int     // bytes written on success
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Fetch(ctx context.Context, videoID, destDir string, mode Mode, onProgress ProgressFunc) (models.MediaAsset, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) && f.results[idx] != nil {
		return models.MediaAsset{}, f.results[idx]
	}
	path := filepath.Join(destDir, "out.mp3")
	data := make([]byte, f.size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.MediaAsset{}, err
	}
	return models.MediaAsset{Path: path, Container: "mp3"}, nil
}

func newTestFetcher(strategies ...Strategy) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(strategies...)
	delays := &[]time.Duration{}
	f.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	f.backoffBase = time.Second
	return f, delays
}

func TestFetchRetriesForbiddenThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	s := &fakeStrategy{
		name:    "primary",
		results: []error{errors.New("HTTP Error 403: Forbidden"), errors.New("HTTP Error 403: Forbidden"), nil},
		size:    10,
	}
	f, delays := newTestFetcher(s)

	asset, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", dir, AudioOnly, nil)
	require.NoError(t, err)
	assert.FileExists(t, asset.Path)
	assert.Equal(t, 3, s.calls)
	// Exactly two backoff delays before the successful attempt.
	require.Len(t, *delays, 2)
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])
}

func TestFetchDoesNotRetryFatalErrors(t *testing.T) {
	dir := t.TempDir()
	s := &fakeStrategy{
		name:    "primary",
		results: []error{errors.New("video unavailable")},
	}
	f, delays := newTestFetcher(s)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", dir, AudioOnly, nil)
	require.Error(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Empty(t, *delays)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "primary", fe.Strategy)
}

func TestFetchFallsBackToSecondStrategy(t *testing.T) {
	dir := t.TempDir()
	primary := &fakeStrategy{name: "primary", results: []error{errors.New("spawn failed")}}
	fallback := &fakeStrategy{name: "fallback", size: 10}
	f, _ := newTestFetcher(primary, fallback)

	asset, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", dir, AudioOnly, nil)
	require.NoError(t, err)
	assert.FileExists(t, asset.Path)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFetchRejectsEmptyDownload(t *testing.T) {
	dir := t.TempDir()
	// Exits cleanly but produces a zero-byte file.
	s := &fakeStrategy{name: "primary", size: 0}
	f, _ := newTestFetcher(s)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", dir, AudioOnly, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestFetchExhaustsRetriesCarryingLastError(t *testing.T) {
	dir := t.TempDir()
	s := &fakeStrategy{
		name: "primary",
		results: []error{
			errors.New("HTTP Error 403: Forbidden"),
			errors.New("HTTP Error 403: Forbidden"),
			errors.New("HTTP Error 403: Forbidden"),
		},
	}
	f, delays := newTestFetcher(s)

	_, err := f.Fetch(context.Background(), "dQw4w9WgXcQ", dir, AudioOnly, nil)
	require.Error(t, err)
	assert.Equal(t, 3, s.calls)
	assert.Len(t, *delays, 2)
	assert.Contains(t, err.Error(), "attempts failed")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("HTTP Error 403: Forbidden")))
	assert.True(t, isTransient(errors.New("429 Too Many Requests")))
	assert.False(t, isTransient(errors.New("video unavailable")))
	assert.False(t, isTransient(nil))
}
