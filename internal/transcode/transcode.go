package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/ffmpeg"
	"github.com/codelens/codelens/internal/models"
)

// Error is a transcode failure. Transcoding is deterministic and local,
// so these are always fatal and never retried.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return "transcode: " + e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Transcoder normalizes a fetched asset into the mono 16 kHz mp3 the
// transcription engine expects.
type Transcoder struct {
	FFmpegPath string
	Runner     execx.Runner
	Probe      *ffmpeg.FFprobe
}

func NewTranscoder(ffmpegPath string, probe *ffmpeg.FFprobe, runner execx.Runner) *Transcoder {
	return &Transcoder{FFmpegPath: ffmpegPath, Runner: runner, Probe: probe}
}

// Normalize re-encodes the input to audio-only mp3. The output path is
// distinct from the input so the caller can clean up both independently.
func (t *Transcoder) Normalize(ctx context.Context, in models.MediaAsset) (models.MediaAsset, error) {
	if in.Container == "mp3" {
		// Probe still runs so duration/size metadata is filled in.
		return t.probeAsset(ctx, in)
	}

	base := strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))
	outPath := filepath.Join(filepath.Dir(in.Path), base+"-normalized.mp3")

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", in.Path,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outPath,
	}
	res, err := t.Runner.Run(ctx, t.FFmpegPath, args...)
	if err != nil {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		return models.MediaAsset{}, &Error{Message: fmt.Sprintf("ffmpeg exited %d: %s", res.ExitCode, detail), Err: err}
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return models.MediaAsset{}, &Error{Message: "ffmpeg completed but output is missing or empty", Err: err}
	}

	return t.probeAsset(ctx, models.MediaAsset{Path: outPath, Container: "mp3"})
}

func (t *Transcoder) probeAsset(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error) {
	if t.Probe == nil {
		return asset, nil
	}
	probe, err := t.Probe.Probe(ctx, asset.Path)
	if err != nil {
		// Metadata is enrichment; a probe failure does not fail the stage.
		return asset, nil
	}
	asset.DurationSeconds = probe.GetDurationSeconds()
	asset.SizeBytes = probe.GetSizeBytes()
	return asset, nil
}
