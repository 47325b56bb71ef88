package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// EmotionRepository provides PostgreSQL-backed emotion event storage.
// Events are append-only; no dedup constraint, unlike attendance.
type EmotionRepository struct {
	pool *Pool
}

// NewEmotionRepository creates a new PostgreSQL emotion repository.
func NewEmotionRepository(pool *Pool) *EmotionRepository {
	return &EmotionRepository{pool: pool}
}

// Insert stores a new emotion event.
func (r *EmotionRepository) Insert(ctx context.Context, ev *database.EmotionEvent) (*database.EmotionEvent, error) {
	var scores sql.NullString
	if ev.Scores != nil {
		raw, err := json.Marshal(ev.Scores)
		if err != nil {
			return nil, fmt.Errorf("marshal emotion scores: %w", err)
		}
		scores = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO emotion_events (student_id, class_id, dominant_emotion, confidence, emotion_scores)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, detected_at
	`

	stored := *ev
	err := r.pool.QueryRow(ctx, query, ev.StudentID, ev.ClassID, ev.DominantEmotion, ev.Confidence, scores).
		Scan(&stored.ID, &stored.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("insert emotion event: %w", err)
	}
	return &stored, nil
}

// ListByClass returns emotion events for a class, optionally bounded by an
// inclusive time window, ordered by detected_at.
func (r *EmotionRepository) ListByClass(ctx context.Context, classID string, start, end *time.Time) ([]database.EmotionEvent, error) {
	query := `
		SELECT id, student_id, class_id, dominant_emotion, confidence, emotion_scores, detected_at
		FROM emotion_events
		WHERE class_id = $1
	`
	args := []any{classID}
	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND detected_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND detected_at <= $%d", len(args))
	}
	query += " ORDER BY detected_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emotion events: %w", err)
	}
	defer rows.Close()

	return scanEmotionEvents(rows)
}

// ListByStudent returns a student's events within a class, oldest first,
// capped at limit when limit > 0.
func (r *EmotionRepository) ListByStudent(ctx context.Context, studentID, classID string, limit int) ([]database.EmotionEvent, error) {
	query := `
		SELECT id, student_id, class_id, dominant_emotion, confidence, emotion_scores, detected_at
		FROM emotion_events
		WHERE student_id = $1 AND class_id = $2
		ORDER BY detected_at
	`
	args := []any{studentID, classID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emotion events: %w", err)
	}
	defer rows.Close()

	return scanEmotionEvents(rows)
}

// ListAll returns every emotion event.
func (r *EmotionRepository) ListAll(ctx context.Context) ([]database.EmotionEvent, error) {
	query := `
		SELECT id, student_id, class_id, dominant_emotion, confidence, emotion_scores, detected_at
		FROM emotion_events
		ORDER BY detected_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query emotion events: %w", err)
	}
	defer rows.Close()

	return scanEmotionEvents(rows)
}

func scanEmotionEvents(rows *sql.Rows) ([]database.EmotionEvent, error) {
	var events []database.EmotionEvent
	for rows.Next() {
		var ev database.EmotionEvent
		var scores sql.NullString
		err := rows.Scan(&ev.ID, &ev.StudentID, &ev.ClassID, &ev.DominantEmotion, &ev.Confidence, &scores, &ev.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("scan emotion event: %w", err)
		}
		if scores.Valid {
			if err := json.Unmarshal([]byte(scores.String), &ev.Scores); err != nil {
				return nil, fmt.Errorf("unmarshal emotion scores: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emotion events: %w", err)
	}
	return events, nil
}
