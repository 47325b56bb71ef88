package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smart-classroom/presence/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage. The
// attendance_student_class_key unique constraint is what guarantees the
// at-most-once-per-(student, class) invariant under concurrent inserts.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Insert stores a new attendance record. Returns ErrDuplicateAttendance
// when the unique constraint rejects the row, so the caller can re-read
// and return the winning record instead of surfacing the conflict.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *database.AttendanceRecord) (*database.AttendanceRecord, error) {
	query := `
		INSERT INTO attendance (student_id, class_id, status, confidence, match_distance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, recorded_at
	`

	stored := *rec
	err := r.pool.QueryRow(ctx, query, rec.StudentID, rec.ClassID, rec.Status, rec.Confidence, rec.MatchDistance).
		Scan(&stored.ID, &stored.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, database.ErrDuplicateAttendance
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, nil
}

// Get retrieves the attendance record for (studentID, classID), nil if absent.
func (r *AttendanceRepository) Get(ctx context.Context, studentID, classID string) (*database.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, class_id, status, confidence, match_distance, recorded_at
		FROM attendance
		WHERE student_id = $1 AND class_id = $2
	`

	var rec database.AttendanceRecord
	err := r.pool.QueryRow(ctx, query, studentID, classID).Scan(
		&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Status,
		&rec.Confidence, &rec.MatchDistance, &rec.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return &rec, nil
}

// ListByClass returns all attendance records for a class ordered by recorded_at.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID string) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, class_id, status, confidence, match_distance, recorded_at
		FROM attendance
		WHERE class_id = $1
		ORDER BY recorded_at
	`

	rows, err := r.pool.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("query attendance by class: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

// ListAll returns every attendance record.
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, class_id, status, confidence, match_distance, recorded_at
		FROM attendance
		ORDER BY recorded_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

func scanAttendance(rows *sql.Rows) ([]database.AttendanceRecord, error) {
	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		err := rows.Scan(
			&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Status,
			&rec.Confidence, &rec.MatchDistance, &rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}
