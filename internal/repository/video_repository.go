package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/models"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Create(video *models.Video) error {
	query := `INSERT INTO videos (youtube_id, title, description, thumbnail_url, duration_seconds, status, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	return r.db.QueryRow(query, video.YouTubeID, video.Title, video.Description,
		video.ThumbnailURL, video.Duration, video.Status, video.SubmittedBy).
		Scan(&video.ID, &video.CreatedAt, &video.UpdatedAt)
}

func (r *VideoRepository) UpdateStatus(id uuid.UUID, status models.VideoStatus, errMsg *string) error {
	query := `UPDATE videos SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.Exec(query, status, errMsg, id)
	return err
}

func (r *VideoRepository) GetByID(id uuid.UUID) (*models.Video, error) {
	video := &models.Video{}
	query := `SELECT id, youtube_id, title, description, thumbnail_url, duration_seconds, status, error_message, submitted_by, created_at, updated_at
		FROM videos WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(&video.ID, &video.YouTubeID, &video.Title,
		&video.Description, &video.ThumbnailURL, &video.Duration, &video.Status,
		&video.ErrorMessage, &video.SubmittedBy, &video.CreatedAt, &video.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	return video, err
}

// GetActiveByYouTubeID returns the newest non-terminal record for a
// YouTube ID, if one exists.
func (r *VideoRepository) GetActiveByYouTubeID(youtubeID string) (*models.Video, error) {
	video := &models.Video{}
	query := `SELECT id, youtube_id, title, description, thumbnail_url, duration_seconds, status, error_message, submitted_by, created_at, updated_at
		FROM videos WHERE youtube_id = $1 AND status IN ('PENDING', 'PROCESSING')
		ORDER BY created_at DESC LIMIT 1`
	err := r.db.QueryRow(query, youtubeID).Scan(&video.ID, &video.YouTubeID, &video.Title,
		&video.Description, &video.ThumbnailURL, &video.Duration, &video.Status,
		&video.ErrorMessage, &video.SubmittedBy, &video.CreatedAt, &video.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return video, err
}

func (r *VideoRepository) ListRecent(limit int) ([]*models.Video, error) {
	query := `SELECT id, youtube_id, title, description, thumbnail_url, duration_seconds, status, error_message, submitted_by, created_at, updated_at
		FROM videos ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video := &models.Video{}
		if err := rows.Scan(&video.ID, &video.YouTubeID, &video.Title,
			&video.Description, &video.ThumbnailURL, &video.Duration, &video.Status,
			&video.ErrorMessage, &video.SubmittedBy, &video.CreatedAt, &video.UpdatedAt); err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}
