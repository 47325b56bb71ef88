package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// SessionRepository provides PostgreSQL-backed class session storage.
// start_time and end_time are stored as naive civil timestamps; the
// attendance clock interprets them in the deployment's fixed zone.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new class session.
func (r *SessionRepository) Create(ctx context.Context, s *database.ClassSession) (*database.ClassSession, error) {
	query := `
		INSERT INTO class_sessions (class_id, class_name, instructor, room, start_time, end_time)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		RETURNING id, created_at
	`

	var end sql.NullTime
	if s.EndTime != nil {
		end = sql.NullTime{Time: *s.EndTime, Valid: true}
	}

	stored := *s
	err := r.pool.QueryRow(ctx, query, s.ClassID, s.ClassName, s.Instructor, s.Room, s.StartTime, end).
		Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert class session: %w", err)
	}
	return &stored, nil
}

// Get retrieves a session by class_id, nil if not found.
func (r *SessionRepository) Get(ctx context.Context, classID string) (*database.ClassSession, error) {
	query := sessionSelect + " WHERE class_id = $1"

	s, err := scanSession(r.pool.QueryRow(ctx, query, classID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class session: %w", err)
	}
	return s, nil
}

// List returns all sessions, newest first.
func (r *SessionRepository) List(ctx context.Context) ([]database.ClassSession, error) {
	rows, err := r.pool.Query(ctx, sessionSelect+" ORDER BY start_time DESC")
	if err != nil {
		return nil, fmt.Errorf("query class sessions: %w", err)
	}
	defer rows.Close()

	var sessions []database.ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class sessions: %w", err)
	}
	return sessions, nil
}

// Update applies the non-nil fields of upd to a session. Returns the
// updated row, nil when the class is unknown.
func (r *SessionRepository) Update(ctx context.Context, classID string, upd *database.SessionUpdate) (*database.ClassSession, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ClassName != nil {
		set("class_name", *upd.ClassName)
	}
	if upd.Instructor != nil {
		set("instructor", sql.NullString{String: *upd.Instructor, Valid: *upd.Instructor != ""})
	}
	if upd.Room != nil {
		set("room", sql.NullString{String: *upd.Room, Valid: *upd.Room != ""})
	}
	if upd.StartTime != nil {
		set("start_time", *upd.StartTime)
	}
	if upd.EndTime != nil {
		set("end_time", *upd.EndTime)
	}
	if len(sets) == 0 {
		return r.Get(ctx, classID)
	}

	args = append(args, classID)
	query := fmt.Sprintf("UPDATE class_sessions SET %s WHERE class_id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update class session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return r.Get(ctx, classID)
}

// Delete removes a session. Returns false if no such session exists.
func (r *SessionRepository) Delete(ctx context.Context, classID string) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM class_sessions WHERE class_id = $1", classID)
	if err != nil {
		return false, fmt.Errorf("delete class session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected > 0, nil
}

// ScheduledStart returns the scheduled start for a class, nil when unknown.
func (r *SessionRepository) ScheduledStart(ctx context.Context, classID string) (*time.Time, error) {
	var start time.Time
	err := r.pool.QueryRow(ctx, "SELECT start_time FROM class_sessions WHERE class_id = $1", classID).Scan(&start)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled start: %w", err)
	}
	return &start, nil
}

const sessionSelect = `
	SELECT id, class_id, class_name, COALESCE(instructor, ''), COALESCE(room, ''),
	       start_time, end_time, created_at
	FROM class_sessions`

func scanSession(row scanner) (*database.ClassSession, error) {
	var s database.ClassSession
	var end sql.NullTime
	err := row.Scan(&s.ID, &s.ClassID, &s.ClassName, &s.Instructor, &s.Room, &s.StartTime, &end, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if end.Valid {
		s.EndTime = &end.Time
	}
	return &s, nil
}
