package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/models"
)

// Sink bundles the repositories behind the pipeline's persistence
// boundary. The pipeline only writes through it; query semantics live in
// the individual repositories.
type Sink struct {
	videos      *VideoRepository
	transcripts *TranscriptRepository
	frames      *FrameRepository
	snippets    *SnippetRepository
}

func NewSink(videos *VideoRepository, transcripts *TranscriptRepository, frames *FrameRepository, snippets *SnippetRepository) *Sink {
	return &Sink{videos: videos, transcripts: transcripts, frames: frames, snippets: snippets}
}

func (s *Sink) MarkProcessing(ctx context.Context, videoID uuid.UUID) error {
	return s.videos.UpdateStatus(videoID, models.VideoProcessing, nil)
}

func (s *Sink) MarkFailed(ctx context.Context, videoID uuid.UUID, message string) error {
	return s.videos.UpdateStatus(videoID, models.VideoFailed, &message)
}

// SaveResults persists everything a successful run produced and flips the
// video record to COMPLETED.
func (s *Sink) SaveResults(ctx context.Context, videoID uuid.UUID, result models.PipelineResult) error {
	if _, err := s.transcripts.CreateWithSegments(videoID, result.Transcript, result.Segments); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	if err := s.frames.CreateBatch(videoID, result.Frames); err != nil {
		return fmt.Errorf("save frames: %w", err)
	}
	if err := s.snippets.CreateBatch(videoID, result.Snippets); err != nil {
		return fmt.Errorf("save snippets: %w", err)
	}
	return s.videos.UpdateStatus(videoID, models.VideoCompleted, nil)
}
