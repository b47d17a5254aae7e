package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codelens/codelens/internal/execx"
	"github.com/codelens/codelens/internal/models"
)

// Error is a transcription failure. InvalidOutput marks payloads the
// engine produced but we could not parse.
type Error struct {
	Message       string
	InvalidOutput bool
	Err           error
}

func (e *Error) Error() string { return "transcribe: " + e.Message }
func (e *Error) Unwrap() error { return e.Err }

// ProgressFunc receives coarse transcription progress in the 0-100 range,
// inferred from the engine's diagnostic stream.
type ProgressFunc func(pct float64)

// Result is the parsed engine output.
type Result struct {
	Text     string
	Segments []models.TranscriptSegment
}

// enginePayload is the single JSON document the engine writes to stdout
// at exit.
type enginePayload struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Metadata struct {
		TotalDuration float64 `json:"totalDuration"`
		SegmentCount  int     `json:"segmentCount"`
	} `json:"metadata"`
}

// Transcriber invokes the speech-recognition engine as a subordinate
// process and parses its output into classified transcript segments.
type Transcriber struct {
	PythonPath string
	ScriptPath string
	Model      string
	Timeout    time.Duration
	Runner     execx.Runner
	Classifier Classifier
}

func NewTranscriber(pythonPath, scriptPath, model string, timeout time.Duration, runner execx.Runner) *Transcriber {
	return &Transcriber{
		PythonPath: pythonPath,
		ScriptPath: scriptPath,
		Model:      model,
		Timeout:    timeout,
		Runner:     runner,
		Classifier: NewKeywordClassifier(),
	}
}

// Transcribe runs the engine against the audio file. A non-zero exit is
// always fatal; the engine's diagnostic text becomes the error detail.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, onProgress ProgressFunc) (Result, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := []string{t.ScriptPath, audioPath, "--model", t.Model}
	res, err := t.Runner.Stream(ctx, func(ev execx.Event) {
		if !ev.Stderr || onProgress == nil {
			return
		}
		// The engine reports lifecycle markers on stderr, not per-segment
		// progress, so the mapping is coarse.
		switch {
		case strings.Contains(ev.Line, "Loading Whisper model"):
			onProgress(25)
		case strings.Contains(ev.Line, "Starting transcription"):
			onProgress(50)
		}
	}, t.PythonPath, args...)
	if err != nil {
		detail := engineErrorDetail(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		return Result{}, &Error{Message: fmt.Sprintf("engine exited %d: %s", res.ExitCode, detail), Err: err}
	}

	result, perr := parsePayload(strings.TrimSpace(res.Stdout), t.Classifier)
	if perr != nil {
		return Result{}, perr
	}
	if onProgress != nil {
		onProgress(100)
	}
	return result, nil
}

func parsePayload(raw string, classifier Classifier) (Result, error) {
	if raw == "" {
		return Result{}, &Error{Message: "engine produced no output", InvalidOutput: true}
	}

	var payload enginePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, &Error{Message: "engine output is not valid JSON", InvalidOutput: true, Err: err}
	}

	if len(payload.Segments) == 0 {
		// Some engine configurations hand back continuous text with no
		// per-segment timing. Heuristic segmentation approximates the
		// timing from word counts; it is not a substitute for real
		// timestamps when the engine provides them.
		text := strings.TrimSpace(payload.Text)
		if text == "" {
			return Result{}, &Error{Message: "engine output is missing the segment collection", InvalidOutput: true}
		}
		return Result{Text: text, Segments: SegmentText(text, classifier)}, nil
	}

	segments := make([]models.TranscriptSegment, 0, len(payload.Segments))
	var full strings.Builder
	for _, s := range payload.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(text)
		segments = append(segments, models.TranscriptSegment{
			Start:       s.Start,
			End:         s.End,
			Text:        text,
			ContentType: classifier.Classify(text),
		})
	}

	text := payload.Text
	if text == "" {
		text = full.String()
	}
	return Result{Text: text, Segments: segments}, nil
}

// engineErrorDetail pulls the Error: lines out of the diagnostic stream,
// falling back to the whole stream.
func engineErrorDetail(stderr string) string {
	var errLines []string
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Error:") {
			errLines = append(errLines, strings.TrimSpace(line))
		}
	}
	if len(errLines) > 0 {
		return strings.Join(errLines, "; ")
	}
	return strings.TrimSpace(stderr)
}
