package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/codelens/codelens/internal/config"
	"github.com/codelens/codelens/internal/db"
	"github.com/codelens/codelens/internal/jobs"
	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/progress"
	"github.com/codelens/codelens/internal/repository"
	"github.com/codelens/codelens/internal/youtube"
)

// The handler layer depends on the narrow slices of the repositories and
// the queue it actually calls, so tests can stand in fakes without Redis
// or Postgres.
type videoStore interface {
	Create(video *models.Video) error
	GetByID(id uuid.UUID) (*models.Video, error)
	GetActiveByYouTubeID(youtubeID string) (*models.Video, error)
	ListRecent(limit int) ([]*models.Video, error)
}

type transcriptStore interface {
	GetByVideoID(videoID uuid.UUID) (*models.Transcript, []models.TranscriptSegment, error)
}

type frameStore interface {
	ListByVideo(videoID uuid.UUID) ([]models.Frame, error)
}

type snippetStore interface {
	ListByVideo(videoID uuid.UUID) ([]models.CodeSnippet, error)
}

type enqueuer interface {
	EnqueueUnique(taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error)
}

type metadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (*youtube.Metadata, error)
}

type Server struct {
	config         *config.Config
	videoRepo      videoStore
	transcriptRepo transcriptStore
	frameRepo      frameStore
	snippetRepo    snippetStore
	store          *progress.Store
	queue          enqueuer
	metadata       metadataFetcher
	wsHub          *WSHub
	router         *http.ServeMux
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, database *db.DB, jobQueue *jobs.Queue, store *progress.Store) *Server {
	s := &Server{
		config:         cfg,
		videoRepo:      repository.NewVideoRepository(database.DB),
		transcriptRepo: repository.NewTranscriptRepository(database.DB),
		frameRepo:      repository.NewFrameRepository(database.DB),
		snippetRepo:    repository.NewSnippetRepository(database.DB),
		store:          store,
		queue:          jobQueue,
		metadata:       youtube.NewClient(),
		wsHub:          NewWSHub(),
		router:         http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) setupRoutes() {
	// Published frame images
	framesFS := http.StripPrefix("/frames/", http.FileServer(http.Dir(s.config.FramesDir)))
	s.router.Handle("/frames/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		framesFS.ServeHTTP(w, r)
	}))

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ws", s.handleWebSocket)

	s.router.HandleFunc("POST /api/videos", s.handleSubmitVideo)
	s.router.HandleFunc("GET /api/videos", s.handleListVideos)
	s.router.HandleFunc("GET /api/videos/{id}", s.handleGetVideo)
	s.router.HandleFunc("GET /api/videos/{id}/progress", s.handleGetProgress)
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// Handler returns the routed handler wrapped in global middleware.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

// corsMiddleware handles CORS preflight and response headers globally.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
