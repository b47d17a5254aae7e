package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/fetch"
	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/progress"
	"github.com/codelens/codelens/internal/transcribe"
)

// ──────────────────── Stage interfaces ────────────────────

type Fetcher interface {
	Fetch(ctx context.Context, videoID, destDir string, mode fetch.Mode, onProgress fetch.ProgressFunc) (models.MediaAsset, error)
}

type Transcoder interface {
	Normalize(ctx context.Context, in models.MediaAsset) (models.MediaAsset, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, onProgress transcribe.ProgressFunc) (transcribe.Result, error)
}

type FrameExtractor interface {
	Extract(ctx context.Context, videoPath, stagingDir, videoID string) ([]models.Frame, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, segments []models.TranscriptSegment) ([]models.CodeSnippet, error)
}

// Sink is the persistence boundary. The pipeline only ever writes to it:
// mark the record in flight, store results on success, mark it failed on
// any fatal error.
type Sink interface {
	MarkProcessing(ctx context.Context, videoID uuid.UUID) error
	SaveResults(ctx context.Context, videoID uuid.UUID, result models.PipelineResult) error
	MarkFailed(ctx context.Context, videoID uuid.UUID, message string) error
}

// Notifier pushes live progress events to connected clients. Polling the
// progress store remains the contract of record; this is advisory.
type Notifier interface {
	Broadcast(event string, data interface{})
}

// ──────────────────── Pipeline ────────────────────

// Job identifies one pipeline run.
type Job struct {
	VideoID   string    // YouTube identifier, also the progress key
	RecordID  uuid.UUID // persisted video row
	StartedAt time.Time
}

// Pipeline sequences fetch → transcode → transcribe → frames → snippets
// for one job, mapping each stage's own progress onto the 0-100 scale and
// guaranteeing temp cleanup on every exit path.
type Pipeline struct {
	fetcher     Fetcher
	transcoder  Transcoder
	transcriber Transcriber
	frames      FrameExtractor
	synthesizer Synthesizer
	sink        Sink
	store       *progress.Store
	notifier    Notifier

	tempBase      string
	framesEnabled bool
}

func New(fetcher Fetcher, transcoder Transcoder, transcriber Transcriber, frames FrameExtractor, synth Synthesizer, sink Sink, store *progress.Store, notifier Notifier, tempBase string, framesEnabled bool) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		transcoder:    transcoder,
		transcriber:   transcriber,
		frames:        frames,
		synthesizer:   synth,
		sink:          sink,
		store:         store,
		notifier:      notifier,
		tempBase:      tempBase,
		framesEnabled: framesEnabled,
	}
}

// band maps a stage's internal 0-100 progress onto its slice of the
// job-wide scale, keeping the whole job monotonic.
type band struct{ lo, hi int }

func (b band) at(pct float64) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return b.lo + int(pct/100*float64(b.hi-b.lo))
}

type bands struct {
	download   band
	transcribe band
	frames     band
	analyze    band
}

func (p *Pipeline) bands() bands {
	if p.framesEnabled {
		return bands{
			download:   band{0, 30},
			transcribe: band{30, 50},
			frames:     band{50, 90},
			analyze:    band{90, 100},
		}
	}
	return bands{
		download:   band{0, 60},
		transcribe: band{60, 90},
		analyze:    band{90, 100},
	}
}

// Run executes the whole pipeline for one job. It always leaves the
// persisted record in exactly one of COMPLETED or FAILED and always
// removes the job's temp dir, whatever path it exits through.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	result, err := p.run(ctx, job)
	if err != nil {
		log.Printf("Pipeline: job %s failed: %v", job.VideoID, err)
		if serr := p.sink.MarkFailed(context.WithoutCancel(ctx), job.RecordID, err.Error()); serr != nil {
			log.Printf("Pipeline: marking %s FAILED also failed: %v", job.VideoID, serr)
		}
		p.setProgress(job.VideoID, models.StageError, 0, err.Error(), nil)
		return err
	}

	if serr := p.sink.SaveResults(context.WithoutCancel(ctx), job.RecordID, *result); serr != nil {
		log.Printf("Pipeline: persisting results for %s failed: %v", job.VideoID, serr)
		_ = p.sink.MarkFailed(context.WithoutCancel(ctx), job.RecordID, "failed to persist results")
		p.setProgress(job.VideoID, models.StageError, 0, "failed to persist results", nil)
		return serr
	}

	p.setProgress(job.VideoID, models.StageComplete, 100, "Processing complete", result)
	log.Printf("Pipeline: job %s complete (%d segments, %d frames, %d snippets)",
		job.VideoID, len(result.Segments), len(result.Frames), len(result.Snippets))
	return nil
}

func (p *Pipeline) run(ctx context.Context, job Job) (*models.PipelineResult, error) {
	b := p.bands()
	p.setProgress(job.VideoID, models.StageDownloading, 0, "Starting download...", nil)

	if err := p.sink.MarkProcessing(ctx, job.RecordID); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	if err := os.MkdirAll(p.tempBase, 0o755); err != nil {
		return nil, fmt.Errorf("create temp base: %w", err)
	}
	// Job-unique workspace; the identifier plus a timestamp keeps
	// concurrent jobs on the same video apart.
	tempDir, err := os.MkdirTemp(p.tempBase, fmt.Sprintf("%s_%d_", job.VideoID, time.Now().Unix()))
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tempDir); rerr != nil {
			log.Printf("Pipeline: temp cleanup failed for %s: %v", tempDir, rerr)
		}
	}()

	// ── Fetch ──
	mode := fetch.AudioOnly
	if p.framesEnabled {
		mode = fetch.AudioVideo
	}
	asset, err := p.fetcher.Fetch(ctx, job.VideoID, tempDir, mode, func(pct float64) {
		p.setProgress(job.VideoID, models.StageDownloading, b.download.at(pct),
			fmt.Sprintf("Downloading: %.0f%%", pct), nil)
	})
	if err != nil {
		return nil, err
	}

	// ── Transcode ──
	p.setProgress(job.VideoID, models.StageDownloading, b.download.hi, "Normalizing audio...", nil)
	audio, err := p.transcoder.Normalize(ctx, asset)
	if err != nil {
		return nil, err
	}

	// ── Transcribe ──
	p.setProgress(job.VideoID, models.StageTranscribing, b.transcribe.lo, "Generating transcript...", nil)
	tres, err := p.transcriber.Transcribe(ctx, audio.Path, func(pct float64) {
		p.setProgress(job.VideoID, models.StageTranscribing, b.transcribe.at(pct), "Transcribing audio...", nil)
	})
	if err != nil {
		return nil, err
	}

	result := &models.PipelineResult{
		Transcript: tres.Text,
		Segments:   tres.Segments,
	}

	// ── Frames + OCR ──
	if p.framesEnabled {
		p.setProgress(job.VideoID, models.StageExtractingFrames, b.frames.lo, "Extracting frames...", nil)
		stagingDir := filepath.Join(tempDir, "frames-staging")
		frames, err := p.frames.Extract(ctx, asset.Path, stagingDir, job.VideoID)
		if err != nil {
			return nil, err
		}
		result.Frames = frames
		p.setProgress(job.VideoID, models.StageExtractingFrames, b.frames.hi,
			fmt.Sprintf("Extracted %d frames", len(frames)), nil)
	}

	// ── Snippets (best-effort) ──
	if p.synthesizer != nil {
		p.setProgress(job.VideoID, models.StageAnalyzing, b.analyze.lo, "Extracting code snippets...", nil)
		snips, err := p.synthesizer.Synthesize(ctx, tres.Segments)
		if err != nil {
			// Synthesis never fails the job; the transcript stands alone.
			log.Printf("Pipeline: snippet synthesis degraded for %s: %v", job.VideoID, err)
		}
		result.Snippets = snips
	}

	return result, nil
}

func (p *Pipeline) setProgress(jobID string, stage models.Stage, pct int, message string, result *models.PipelineResult) {
	if result != nil {
		p.store.Set(jobID, models.ProgressRecord{
			Stage:    stage,
			Progress: pct,
			Message:  message,
			Result:   result,
		})
	} else {
		p.store.Update(jobID, stage, pct, message)
	}

	if p.notifier != nil {
		p.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": jobID,
			"stage":   string(stage),
			"progress": func() int {
				if rec, ok := p.store.Get(jobID); ok {
					return rec.Progress
				}
				return pct
			}(),
			"message": message,
		})
	}
}
