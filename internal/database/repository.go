package database

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateStudent is returned when enrolling a student_id that already exists.
var ErrDuplicateStudent = errors.New("student already enrolled")

// ErrDuplicateAttendance is returned by AttendanceStore.Insert when the
// (student_id, class_id) uniqueness constraint rejects the row. The caller
// is expected to re-read and return the winner's record.
var ErrDuplicateAttendance = errors.New("attendance already recorded")

// StudentStore provides access to enrolled students and their embeddings.
type StudentStore interface {
	// Create enrolls a new student. Returns ErrDuplicateStudent if the
	// student_id is already taken.
	Create(ctx context.Context, s *Student) (*Student, error)
	// Get retrieves a student by student_id, returns nil if not found.
	Get(ctx context.Context, studentID string) (*Student, error)
	// List returns students, optionally restricted to active ones,
	// ordered by enrollment time.
	List(ctx context.Context, activeOnly bool) ([]Student, error)
	// SearchByName returns students whose normalized name contains the
	// normalized query (diacritic and case insensitive).
	SearchByName(ctx context.Context, name string) ([]Student, error)
	// Deactivate soft-deletes a student (is_active=false). Returns false
	// if no such student exists.
	Deactivate(ctx context.Context, studentID string) (bool, error)
	// Count returns the total number of students.
	Count(ctx context.Context) (int, error)

	StudentMatcher
}

// StudentMatcher finds active students by embedding similarity. Results are
// ordered ascending by distance and only include entries with
// distance strictly below threshold.
type StudentMatcher interface {
	FindByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]StudentMatch, error)
}

// AttendanceStore persists attendance records. Implementations must enforce
// uniqueness on (student_id, class_id) with a real constraint so concurrent
// duplicate inserts cannot both succeed.
type AttendanceStore interface {
	// Insert stores a new record and returns it with ID and RecordedAt
	// populated. Returns ErrDuplicateAttendance on a uniqueness conflict.
	Insert(ctx context.Context, rec *AttendanceRecord) (*AttendanceRecord, error)
	// Get retrieves the record for (studentID, classID), nil if absent.
	Get(ctx context.Context, studentID, classID string) (*AttendanceRecord, error)
	// ListByClass returns all records for a class ordered by recorded_at.
	ListByClass(ctx context.Context, classID string) ([]AttendanceRecord, error)
	// ListAll returns every attendance record (dashboard aggregation).
	ListAll(ctx context.Context) ([]AttendanceRecord, error)
}

// EmotionStore persists emotion events (append-only).
type EmotionStore interface {
	// Insert stores a new event and returns it with ID and DetectedAt set.
	Insert(ctx context.Context, ev *EmotionEvent) (*EmotionEvent, error)
	// ListByClass returns events for a class, optionally bounded by an
	// inclusive time window, ordered by detected_at.
	ListByClass(ctx context.Context, classID string, start, end *time.Time) ([]EmotionEvent, error)
	// ListByStudent returns a student's events within a class, oldest
	// first, capped at limit when limit > 0.
	ListByStudent(ctx context.Context, studentID, classID string, limit int) ([]EmotionEvent, error)
	// ListAll returns every emotion event (dashboard aggregation).
	ListAll(ctx context.Context) ([]EmotionEvent, error)
}

// SessionUpdate carries partial changes for a class session. Nil fields
// are left untouched.
type SessionUpdate struct {
	ClassName  *string
	Instructor *string
	Room       *string
	StartTime  *time.Time
	EndTime    *time.Time
}

// SessionStore provides class session scheduling data.
type SessionStore interface {
	// Create stores a new class session.
	Create(ctx context.Context, s *ClassSession) (*ClassSession, error)
	// Get retrieves a session by class_id, nil if not found.
	Get(ctx context.Context, classID string) (*ClassSession, error)
	// Update applies the non-nil fields of upd and returns the updated
	// session, nil if no such session exists.
	Update(ctx context.Context, classID string, upd *SessionUpdate) (*ClassSession, error)
	// List returns all sessions ordered by start time, newest first.
	List(ctx context.Context) ([]ClassSession, error)
	// Delete removes a session. Returns false if no such session exists.
	Delete(ctx context.Context, classID string) (bool, error)
	// ScheduledStart returns the scheduled start for a class, or nil when
	// the session is unknown. Timeliness degrades gracefully on nil.
	ScheduledStart(ctx context.Context, classID string) (*time.Time, error)
}
