package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/models"
)

// Error is a frame extraction failure. These are fatal and never retried.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return "frames: " + e.Message }
func (e *Error) Unwrap() error { return e.Err }

// frameRecord is one entry of the recognition process's stdout payload.
type frameRecord struct {
	Filename  string  `json:"filename"`
	Timestamp float64 `json:"timestamp"`
	HasCode   bool    `json:"has_code"`
	Text      string  `json:"text"`
}

// Extractor delegates frame sampling and OCR to an external recognition
// process, then materializes the returned images into the public frames
// directory. Materialization is transactional: frames are staged under the
// job's temp dir and published only after the whole run has succeeded, so
// a failed job leaves nothing public behind.
type Extractor struct {
	PythonPath string
	ScriptPath string
	PublicDir  string
	Runner     execx.Runner
	Timeout    time.Duration
}

func NewExtractor(pythonPath, scriptPath, publicDir string, runner execx.Runner, timeout time.Duration) *Extractor {
	return &Extractor{
		PythonPath: pythonPath,
		ScriptPath: scriptPath,
		PublicDir:  publicDir,
		Runner:     runner,
		Timeout:    timeout,
	}
}

// Extract samples the video, OCRs each frame, and returns the published
// frames ordered by ascending timestamp. stagingDir must live inside the
// job's temp dir so the orchestrator's cleanup covers it.
func (e *Extractor) Extract(ctx context.Context, videoPath, stagingDir, videoID string) ([]models.Frame, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, &Error{Message: "create staging dir", Err: err}
	}

	res, err := e.Runner.Run(ctx, e.PythonPath, e.ScriptPath, videoPath, stagingDir)
	if err != nil {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		return nil, &Error{Message: fmt.Sprintf("recognition process exited %d: %s", res.ExitCode, detail), Err: err}
	}

	var records []frameRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &records); err != nil {
		return nil, &Error{Message: "recognition output is not valid JSON", Err: err}
	}

	// Emission order from the external process is not trusted.
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	return e.publish(records, stagingDir, videoID)
}

// publish copies staged frame images into the public dir under job-unique
// names. Publishing is all-or-nothing: a failure rolls back every frame
// already copied for this job.
func (e *Extractor) publish(records []frameRecord, stagingDir, videoID string) ([]models.Frame, error) {
	if err := os.MkdirAll(e.PublicDir, 0o755); err != nil {
		return nil, &Error{Message: "create public frames dir", Err: err}
	}

	// Unique prefix per run so concurrent jobs on the same video never
	// overwrite each other's images.
	prefix := fmt.Sprintf("%s-%s", videoID, uuid.NewString()[:8])

	frames := make([]models.Frame, 0, len(records))
	var published []string
	rollback := func() {
		for _, p := range published {
			if err := os.Remove(p); err != nil {
				log.Printf("Frames: rollback failed for %s: %v", p, err)
			}
		}
	}

	for _, rec := range records {
		src := filepath.Join(stagingDir, rec.Filename)
		name := fmt.Sprintf("%s-%s", prefix, rec.Filename)
		dst := filepath.Join(e.PublicDir, name)

		if err := copyFile(src, dst); err != nil {
			rollback()
			return nil, &Error{Message: fmt.Sprintf("publish frame %s", rec.Filename), Err: err}
		}
		published = append(published, dst)

		frame := models.Frame{
			URL:              "/frames/" + name,
			TimestampSeconds: rec.Timestamp,
			HasCode:          rec.HasCode,
		}
		if text := strings.TrimSpace(rec.Text); text != "" {
			frame.RecognizedText = &text
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
