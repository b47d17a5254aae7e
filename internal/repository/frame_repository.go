package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/models"
)

type FrameRepository struct {
	db *sql.DB
}

func NewFrameRepository(db *sql.DB) *FrameRepository {
	return &FrameRepository{db: db}
}

func (r *FrameRepository) CreateBatch(videoID uuid.UUID, frames []models.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO frames (video_id, url, timestamp_seconds, has_code, recognized_text)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(videoID, f.URL, f.TimestampSeconds, f.HasCode, f.RecognizedText); err != nil {
			return fmt.Errorf("insert frame: %w", err)
		}
	}
	return tx.Commit()
}

func (r *FrameRepository) ListByVideo(videoID uuid.UUID) ([]models.Frame, error) {
	rows, err := r.db.Query(`SELECT id, video_id, url, timestamp_seconds, has_code, recognized_text
		FROM frames WHERE video_id = $1 ORDER BY timestamp_seconds ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []models.Frame
	for rows.Next() {
		var f models.Frame
		if err := rows.Scan(&f.ID, &f.VideoID, &f.URL, &f.TimestampSeconds, &f.HasCode, &f.RecognizedText); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
