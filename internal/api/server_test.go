package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens/codelens/internal/config"
	"github.com/codelens/codelens/internal/models"
	"github.com/codelens/codelens/internal/progress"
	"github.com/codelens/codelens/internal/youtube"
)

type fakeVideoRepo struct {
	videos    map[uuid.UUID]*models.Video
	active    map[string]*models.Video
	created   []*models.Video
	createErr error
	recent    []*models.Video
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{
		videos: make(map[uuid.UUID]*models.Video),
		active: make(map[string]*models.Video),
	}
}

func (f *fakeVideoRepo) Create(video *models.Video) error {
	if f.createErr != nil {
		return f.createErr
	}
	video.ID = uuid.New()
	f.created = append(f.created, video)
	f.videos[video.ID] = video
	return nil
}

func (f *fakeVideoRepo) GetByID(id uuid.UUID) (*models.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, fmt.Errorf("video not found")
	}
	return v, nil
}

func (f *fakeVideoRepo) GetActiveByYouTubeID(youtubeID string) (*models.Video, error) {
	return f.active[youtubeID], nil
}

func (f *fakeVideoRepo) ListRecent(limit int) ([]*models.Video, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeTranscriptRepo struct {
	transcript *models.Transcript
	segments   []models.TranscriptSegment
}

func (f *fakeTranscriptRepo) GetByVideoID(uuid.UUID) (*models.Transcript, []models.TranscriptSegment, error) {
	return f.transcript, f.segments, nil
}

type fakeFrameRepo struct{ frames []models.Frame }

func (f *fakeFrameRepo) ListByVideo(uuid.UUID) ([]models.Frame, error) { return f.frames, nil }

type fakeSnippetRepo struct{ snippets []models.CodeSnippet }

func (f *fakeSnippetRepo) ListByVideo(uuid.UUID) ([]models.CodeSnippet, error) {
	return f.snippets, nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) EnqueueUnique(taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.enqueued = append(f.enqueued, uniqueID)
	return uniqueID, nil
}

type fakeMetadata struct {
	meta *youtube.Metadata
	err  error
}

func (f *fakeMetadata) FetchMetadata(context.Context, string) (*youtube.Metadata, error) {
	return f.meta, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	srv      *Server
	videos   *fakeVideoRepo
	queue    *fakeQueue
	metadata *fakeMetadata
	store    *progress.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		videos:   newFakeVideoRepo(),
		queue:    &fakeQueue{},
		metadata: &fakeMetadata{meta: &youtube.Metadata{Title: "Go Tutorial", ThumbnailURL: "https://i.ytimg.com/t.jpg"}},
		store:    progress.NewStore(),
	}
	ts.srv = &Server{
		config:         &config.Config{FramesDir: t.TempDir()},
		videoRepo:      ts.videos,
		transcriptRepo: &fakeTranscriptRepo{},
		frameRepo:      &fakeFrameRepo{},
		snippetRepo:    &fakeSnippetRepo{},
		store:          ts.store,
		queue:          ts.queue,
		metadata:       ts.metadata,
		wsHub:          NewWSHub(),
		router:         http.NewServeMux(),
	}
	ts.srv.setupRoutes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.srv.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestSubmitVideo(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/videos", map[string]string{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, env.Success)

	var video models.Video
	require.NoError(t, json.Unmarshal(env.Data, &video))
	assert.Equal(t, "dQw4w9WgXcQ", video.YouTubeID)
	assert.Equal(t, "Go Tutorial", video.Title)
	assert.Equal(t, models.VideoPending, video.Status)

	require.Len(t, ts.videos.created, 1)
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, ts.queue.enqueued)

	rec, ok := ts.store.Get("dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, models.StageDownloading, rec.Stage)
	assert.Equal(t, 0, rec.Progress)
}

func TestSubmitVideoInvalidURL(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/videos", map[string]string{
		"url": "https://example.com/not-youtube",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Empty(t, ts.queue.enqueued)
	assert.Empty(t, ts.videos.created)
}

func TestSubmitVideoAlreadyActive(t *testing.T) {
	ts := newTestServer(t)
	existing := &models.Video{
		ID:        uuid.New(),
		YouTubeID: "dQw4w9WgXcQ",
		Status:    models.VideoProcessing,
	}
	ts.videos.active["dQw4w9WgXcQ"] = existing

	w, env := ts.do(t, http.MethodPost, "/api/videos", map[string]string{
		"url": "dQw4w9WgXcQ",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var video models.Video
	require.NoError(t, json.Unmarshal(env.Data, &video))
	assert.Equal(t, existing.ID, video.ID)
	assert.Empty(t, ts.queue.enqueued, "active video must not be enqueued twice")
	assert.Empty(t, ts.videos.created)
}

func TestSubmitVideoMetadataFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.metadata.meta = nil
	ts.metadata.err = errors.New("oembed unavailable")

	w, env := ts.do(t, http.MethodPost, "/api/videos", map[string]string{
		"url": "https://youtu.be/dQw4w9WgXcQ",
	})

	require.Equal(t, http.StatusAccepted, w.Code)

	var video models.Video
	require.NoError(t, json.Unmarshal(env.Data, &video))
	assert.Equal(t, "dQw4w9WgXcQ", video.Title, "title falls back to the video ID")
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, ts.queue.enqueued)
}

func TestGetProgressUnknownJob(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/videos/dQw4w9WgXcQ/progress", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var rec models.ProgressRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, models.StageUnknown, rec.Stage)
	assert.Equal(t, 0, rec.Progress)
}

func TestGetProgressNonTerminalSurvivesPolls(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Set("dQw4w9WgXcQ", models.ProgressRecord{
		JobID:    "dQw4w9WgXcQ",
		Stage:    models.StageTranscribing,
		Progress: 42,
	})

	for i := 0; i < 3; i++ {
		_, env := ts.do(t, http.MethodGet, "/api/videos/dQw4w9WgXcQ/progress", nil)
		var rec models.ProgressRecord
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.Equal(t, models.StageTranscribing, rec.Stage)
		assert.Equal(t, 42, rec.Progress)
	}
}

func TestGetProgressTerminalReadOnce(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Set("dQw4w9WgXcQ", models.ProgressRecord{
		JobID:    "dQw4w9WgXcQ",
		Stage:    models.StageComplete,
		Progress: 100,
	})

	_, env := ts.do(t, http.MethodGet, "/api/videos/dQw4w9WgXcQ/progress", nil)
	var rec models.ProgressRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, models.StageComplete, rec.Stage)

	_, env = ts.do(t, http.MethodGet, "/api/videos/dQw4w9WgXcQ/progress", nil)
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, models.StageUnknown, rec.Stage, "terminal record is deleted after first read")
}

func TestGetProgressByRowID(t *testing.T) {
	ts := newTestServer(t)
	video := &models.Video{YouTubeID: "dQw4w9WgXcQ", Status: models.VideoProcessing}
	require.NoError(t, ts.videos.Create(video))
	ts.store.Set("dQw4w9WgXcQ", models.ProgressRecord{
		JobID:    "dQw4w9WgXcQ",
		Stage:    models.StageDownloading,
		Progress: 10,
	})

	_, env := ts.do(t, http.MethodGet, "/api/videos/"+video.ID.String()+"/progress", nil)

	var rec models.ProgressRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, models.StageDownloading, rec.Stage)
	assert.Equal(t, 10, rec.Progress)
}

func TestGetVideoNotFound(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/videos/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestGetVideoAggregates(t *testing.T) {
	ts := newTestServer(t)
	video := &models.Video{YouTubeID: "dQw4w9WgXcQ", Title: "Go Tutorial", Status: models.VideoCompleted}
	require.NoError(t, ts.videos.Create(video))
	ts.srv.transcriptRepo = &fakeTranscriptRepo{
		transcript: &models.Transcript{VideoID: video.ID, Content: "hello world"},
		segments: []models.TranscriptSegment{
			{Start: 0, End: 2, Text: "hello world", ContentType: models.ContentOther},
		},
	}
	ts.srv.frameRepo = &fakeFrameRepo{frames: []models.Frame{
		{VideoID: video.ID, URL: "/frames/a.jpg", TimestampSeconds: 1.5, HasCode: true},
	}}

	w, env := ts.do(t, http.MethodGet, "/api/videos/"+video.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Video    models.Video               `json:"video"`
		Segments []models.TranscriptSegment `json:"segments"`
		Frames   []models.Frame             `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Go Tutorial", data.Video.Title)
	assert.Len(t, data.Segments, 1)
	assert.Len(t, data.Frames, 1)
}

func TestListVideosEmpty(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/videos", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(env.Data), "empty list serializes as an array")
}
