package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/models"
)

type TranscriptRepository struct {
	db *sql.DB
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// CreateWithSegments stores the full transcript and all of its segments
// in one transaction.
func (r *TranscriptRepository) CreateWithSegments(videoID uuid.UUID, content string, segments []models.TranscriptSegment) (uuid.UUID, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var transcriptID uuid.UUID
	err = tx.QueryRow(`INSERT INTO transcripts (video_id, content) VALUES ($1, $2) RETURNING id`,
		videoID, content).Scan(&transcriptID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transcript: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO transcript_segments (transcript_id, start_time, end_time, text, content_type)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return uuid.Nil, fmt.Errorf("prepare segments: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.Exec(transcriptID, seg.Start, seg.End, seg.Text, seg.ContentType); err != nil {
			return uuid.Nil, fmt.Errorf("insert segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return transcriptID, nil
}

func (r *TranscriptRepository) GetByVideoID(videoID uuid.UUID) (*models.Transcript, []models.TranscriptSegment, error) {
	transcript := &models.Transcript{}
	err := r.db.QueryRow(`SELECT id, video_id, content, created_at FROM transcripts WHERE video_id = $1`, videoID).
		Scan(&transcript.ID, &transcript.VideoID, &transcript.Content, &transcript.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.Query(`SELECT id, transcript_id, start_time, end_time, text, content_type
		FROM transcript_segments WHERE transcript_id = $1 ORDER BY start_time ASC`, transcript.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.TranscriptID, &seg.Start, &seg.End, &seg.Text, &seg.ContentType); err != nil {
			return nil, nil, err
		}
		segments = append(segments, seg)
	}
	return transcript, segments, rows.Err()
}
