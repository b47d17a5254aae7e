package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/models"
)

type fakeRunner struct {
	result   execx.Result
	err      error
	onRun    func(name string, args []string)
	lastName string
	lastArgs []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (execx.Result, error) {
	f.lastName = name
	f.lastArgs = args
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return f.result, f.err
}

func (f *fakeRunner) Stream(ctx context.Context, onEvent func(execx.Event), name string, args ...string) (execx.Result, error) {
	return f.Run(ctx, name, args...)
}

func TestNormalizeProducesDistinctOutputPath(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "source.webm")
	require.NoError(t, os.WriteFile(inPath, []byte("webm-bytes"), 0o644))

	runner := &fakeRunner{}
	runner.onRun = func(name string, args []string) {
		// ffmpeg writes its output file; the fake mimics that.
		out := args[len(args)-1]
		os.WriteFile(out, []byte("mp3-bytes"), 0o644)
	}
	tr := NewTranscoder("ffmpeg", nil, runner)

	out, err := tr.Normalize(context.Background(), models.MediaAsset{Path: inPath, Container: "webm"})
	require.NoError(t, err)
	assert.NotEqual(t, inPath, out.Path)
	assert.Equal(t, "mp3", out.Container)
	assert.FileExists(t, inPath, "input must survive for independent cleanup")
	assert.FileExists(t, out.Path)

	assert.Equal(t, "ffmpeg", runner.lastName)
	assert.Contains(t, runner.lastArgs, "-vn")
	assert.Contains(t, runner.lastArgs, "libmp3lame")
}

func TestNormalizeFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "source.webm")
	require.NoError(t, os.WriteFile(inPath, []byte("x"), 0o644))

	runner := &fakeRunner{
		result: execx.Result{ExitCode: 1, Stderr: "Invalid data found when processing input"},
		err:    errors.New("exit status 1"),
	}
	tr := NewTranscoder("ffmpeg", nil, runner)

	_, err := tr.Normalize(context.Background(), models.MediaAsset{Path: inPath, Container: "webm"})
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "Invalid data")
}

func TestNormalizeMissingOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "source.webm")
	require.NoError(t, os.WriteFile(inPath, []byte("x"), 0o644))

	// Runner "succeeds" but never writes the output file.
	tr := NewTranscoder("ffmpeg", nil, &fakeRunner{})

	_, err := tr.Normalize(context.Background(), models.MediaAsset{Path: inPath, Container: "webm"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing or empty")
}

func TestNormalizeSkipsReencodeForMp3(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "audio.mp3")
	require.NoError(t, os.WriteFile(inPath, []byte("mp3"), 0o644))

	runner := &fakeRunner{}
	tr := NewTranscoder("ffmpeg", nil, runner)

	out, err := tr.Normalize(context.Background(), models.MediaAsset{Path: inPath, Container: "mp3"})
	require.NoError(t, err)
	assert.Equal(t, inPath, out.Path)
	assert.Empty(t, runner.lastName, "no ffmpeg invocation expected")
}
