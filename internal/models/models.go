package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type VideoStatus string

const (
	VideoPending    VideoStatus = "PENDING"
	VideoProcessing VideoStatus = "PROCESSING"
	VideoCompleted  VideoStatus = "COMPLETED"
	VideoFailed     VideoStatus = "FAILED"
)

// Stage names the phases of the processing pipeline. Complete and Error
// are terminal.
type Stage string

const (
	StageDownloading      Stage = "downloading"
	StageTranscribing     Stage = "transcribing"
	StageExtractingFrames Stage = "extracting_frames"
	StageAnalyzing        Stage = "analyzing"
	StageComplete         Stage = "complete"
	StageError            Stage = "error"
	StageUnknown          Stage = "unknown"
)

func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// ContentType classifies what a transcript segment is talking about.
type ContentType string

const (
	ContentCode        ContentType = "code"
	ContentExplanation ContentType = "explanation"
	ContentOther       ContentType = "other"
)

// ──────────────────── Video ────────────────────

type Video struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	YouTubeID    string      `json:"youtube_id" db:"youtube_id"`
	Title        string      `json:"title" db:"title"`
	Description  *string     `json:"description,omitempty" db:"description"`
	ThumbnailURL *string     `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Duration     *int        `json:"duration_seconds,omitempty" db:"duration_seconds"`
	Status       VideoStatus `json:"status" db:"status"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`
	SubmittedBy  *string     `json:"submitted_by,omitempty" db:"submitted_by"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// ──────────────────── MediaAsset ────────────────────

// MediaAsset is a local media file produced by the fetcher or transcoder.
// The orchestrator owns the file until the job ends, at which point it is
// deleted along with the rest of the job's temp dir.
type MediaAsset struct {
	Path            string
	Container       string
	SizeBytes       int64
	DurationSeconds float64
	HasVideo        bool
}

// ──────────────────── Transcript ────────────────────

type Transcript struct {
	ID        uuid.UUID `json:"id" db:"id"`
	VideoID   uuid.UUID `json:"video_id" db:"video_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TranscriptSegment is one timestamped span of transcript text.
// Within a transcript, segments are ordered by start time and do not
// overlap: Start <= End always holds.
type TranscriptSegment struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	TranscriptID uuid.UUID   `json:"transcript_id" db:"transcript_id"`
	Start        float64     `json:"start" db:"start_time"`
	End          float64     `json:"end" db:"end_time"`
	Text         string      `json:"text" db:"text"`
	ContentType  ContentType `json:"content_type" db:"content_type"`
}

// ──────────────────── Frame ────────────────────

// Frame is a sampled still from the source video plus its OCR outcome.
type Frame struct {
	ID               uuid.UUID `json:"id" db:"id"`
	VideoID          uuid.UUID `json:"video_id" db:"video_id"`
	URL              string    `json:"url" db:"url"`
	TimestampSeconds float64   `json:"timestamp_seconds" db:"timestamp_seconds"`
	HasCode          bool      `json:"has_code" db:"has_code"`
	RecognizedText   *string   `json:"recognized_text,omitempty" db:"recognized_text"`
}

// ──────────────────── CodeSnippet ────────────────────

// CodeSnippet is a structured snippet synthesized from the transcript.
// Snippets are not unique per time range; a dense stretch of video can
// yield several overlapping ones.
type CodeSnippet struct {
	ID          uuid.UUID `json:"id" db:"id"`
	VideoID     uuid.UUID `json:"video_id" db:"video_id"`
	Language    string    `json:"language" db:"language"`
	Code        string    `json:"code" db:"code"`
	Explanation string    `json:"explanation" db:"explanation"`
	StartTime   float64   `json:"start_time" db:"start_time"`
	EndTime     float64   `json:"end_time" db:"end_time"`
}

// ──────────────────── Progress ────────────────────

// ProgressRecord is the poll-visible state of one job. It lives in the
// in-memory progress store only; it does not survive a restart.
type ProgressRecord struct {
	JobID    string      `json:"job_id"`
	Stage    Stage       `json:"stage"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
	Result   interface{} `json:"result,omitempty"`
	Updated  time.Time   `json:"-"`
}

// PipelineResult is the final payload attached to a completed job's
// progress record and persisted through the repository layer.
type PipelineResult struct {
	Transcript string              `json:"transcript"`
	Segments   []TranscriptSegment `json:"segments"`
	Frames     []Frame             `json:"frames"`
	Snippets   []CodeSnippet       `json:"snippets"`
}
