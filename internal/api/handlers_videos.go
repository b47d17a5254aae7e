package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/jobs"
	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/youtube"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitVideo validates the submitted URL, records a PENDING video
// and enqueues the processing job. Submitting a video that is already
// pending or processing returns the existing record instead of starting
// a second job.
func (s *Server) handleSubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid YouTube URL or video ID")
		return
	}

	if existing, err := s.videoRepo.GetActiveByYouTubeID(videoID); err == nil && existing != nil {
		log.Printf("API: video %s already queued as %s", videoID, existing.ID)
		s.respondJSON(w, http.StatusOK, existing)
		return
	}

	video := &models.Video{
		YouTubeID: videoID,
		Title:     videoID,
		Status:    models.VideoPending,
	}

	// Metadata is best effort; a video we cannot describe can still be
	// transcribed.
	mctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if meta, err := s.metadata.FetchMetadata(mctx, videoID); err != nil {
		log.Printf("API: metadata lookup for %s failed: %v", videoID, err)
	} else {
		video.Title = meta.Title
		if meta.ThumbnailURL != "" {
			thumb := meta.ThumbnailURL
			video.ThumbnailURL = &thumb
		}
	}

	if err := s.videoRepo.Create(video); err != nil {
		log.Printf("API: failed to create video record: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	s.store.Set(videoID, models.ProgressRecord{
		JobID:    videoID,
		Stage:    models.StageDownloading,
		Progress: 0,
		Message:  "Queued",
	})

	payload := jobs.ProcessVideoPayload{VideoID: videoID, RecordID: video.ID.String()}
	if _, err := s.queue.EnqueueUnique(jobs.TaskProcessVideo, payload, videoID); err != nil {
		log.Printf("API: failed to enqueue video %s: %v", videoID, err)
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue processing job")
		return
	}

	s.respondJSON(w, http.StatusAccepted, video)
}

// handleGetProgress reports the in-memory progress record for a job. The
// path accepts either the YouTube video ID the job is keyed by or the
// database row ID, which is resolved to its YouTube ID first. An unknown
// job reads as stage "unknown" at progress 0; a terminal record is
// deleted as it is returned, so only one poller observes it.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	if rowID, err := uuid.Parse(key); err == nil {
		if video, err := s.videoRepo.GetByID(rowID); err == nil && video != nil {
			key = video.YouTubeID
		}
	}

	rec, ok := s.store.Take(key)
	if !ok {
		rec = models.ProgressRecord{JobID: key, Stage: models.StageUnknown, Progress: 0}
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	video, err := s.videoRepo.GetByID(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "video not found")
		return
	}

	transcript, segments, err := s.transcriptRepo.GetByVideoID(id)
	if err != nil {
		log.Printf("API: failed to load transcript for %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	frames, err := s.frameRepo.ListByVideo(id)
	if err != nil {
		log.Printf("API: failed to load frames for %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to load frames")
		return
	}

	snippets, err := s.snippetRepo.ListByVideo(id)
	if err != nil {
		log.Printf("API: failed to load snippets for %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to load snippets")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"video":      video,
		"transcript": transcript,
		"segments":   segments,
		"frames":     frames,
		"snippets":   snippets,
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	videos, err := s.videoRepo.ListRecent(limit)
	if err != nil {
		log.Printf("API: failed to list videos: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	s.respondJSON(w, http.StatusOK, videos)
}
