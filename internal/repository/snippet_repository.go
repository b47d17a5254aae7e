package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codelens/codelens/internal/models"
)

type SnippetRepository struct {
	db *sql.DB
}

func NewSnippetRepository(db *sql.DB) *SnippetRepository {
	return &SnippetRepository{db: db}
}

func (r *SnippetRepository) CreateBatch(videoID uuid.UUID, snippets []models.CodeSnippet) error {
	if len(snippets) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO code_snippets (video_id, language, code, explanation, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range snippets {
		if _, err := stmt.Exec(videoID, s.Language, s.Code, s.Explanation, s.StartTime, s.EndTime); err != nil {
			return fmt.Errorf("insert snippet: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SnippetRepository) ListByVideo(videoID uuid.UUID) ([]models.CodeSnippet, error) {
	rows, err := r.db.Query(`SELECT id, video_id, language, code, explanation, start_time, end_time
		FROM code_snippets WHERE video_id = $1 ORDER BY start_time ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []models.CodeSnippet
	for rows.Next() {
		var s models.CodeSnippet
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Language, &s.Code, &s.Explanation, &s.StartTime, &s.EndTime); err != nil {
			return nil, err
		}
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}
