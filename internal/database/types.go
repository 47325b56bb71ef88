package database

import (
	"time"
)

// Student represents an enrolled identity with its face embedding.
// Enrollment owns these rows; the attendance engine only reads them.
type Student struct {
	ID         int64
	StudentID  string
	Name       string
	Email      string
	Embedding  []float32
	EnrolledAt time.Time
	IsActive   bool
}

// StudentMatch pairs a student with its embedding distance to a query.
// Produced per similarity query and consumed immediately; never persisted.
type StudentMatch struct {
	Student  Student
	Distance float64
}

// AttendanceRecord is a committed attendance decision. At most one record
// exists per (student_id, class_id); rows are never updated after insert.
type AttendanceRecord struct {
	ID            int64
	StudentID     string
	ClassID       string
	Status        string
	Confidence    *float64
	MatchDistance *float64
	RecordedAt    time.Time
}

// EmotionEvent is a single emotion observation. Unlike attendance, many
// events per (student, class) are expected and retained.
type EmotionEvent struct {
	ID              int64
	StudentID       string
	ClassID         string
	DominantEmotion string
	Confidence      float64
	Scores          map[string]float64
	DetectedAt      time.Time
}

// ClassSession represents a scheduled class. The engine reads StartTime to
// classify timeliness; the rest is bookkeeping for the API layer.
type ClassSession struct {
	ID         int64
	ClassID    string
	ClassName  string
	Instructor string
	Room       string
	StartTime  time.Time
	EndTime    *time.Time
	CreatedAt  time.Time
}
