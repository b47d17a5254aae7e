package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/codelens/codelens/internal/pipeline"
)

// ProcessVideoPayload is the process:video task body.
type ProcessVideoPayload struct {
	VideoID  string `json:"video_id"`  // YouTube identifier
	RecordID string `json:"record_id"` // persisted video row
}

// ProcessVideoHandler runs the media pipeline for one submitted video.
type ProcessVideoHandler struct {
	pipeline *pipeline.Pipeline
}

func NewProcessVideoHandler(p *pipeline.Pipeline) *ProcessVideoHandler {
	return &ProcessVideoHandler{pipeline: p}
}

func (h *ProcessVideoHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ProcessVideoPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	recordID, err := uuid.Parse(p.RecordID)
	if err != nil {
		return fmt.Errorf("parse record id: %w", err)
	}

	log.Printf("Job: processing video %s", p.VideoID)
	start := time.Now()

	if err := h.pipeline.Run(ctx, pipeline.Job{
		VideoID:   p.VideoID,
		RecordID:  recordID,
		StartedAt: start,
	}); err != nil {
		// The pipeline already persisted FAILED and published the terminal
		// progress record; retrying through asynq would re-run a job whose
		// failure the user has been told about.
		log.Printf("Job: video %s failed after %v: %v", p.VideoID, time.Since(start), err)
		return nil
	}

	log.Printf("Job: video %s done in %v", p.VideoID, time.Since(start))
	return nil
}
