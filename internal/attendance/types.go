// Package attendance implements the attendance verification engine: identity
// resolution over ranked embedding candidates, timeliness classification in
// the deployment's fixed civil time zone, the idempotent attendance ledger,
// and the single/batch verification workflows that compose them.
package attendance

import (
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// Status is the attendance classification for a record.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// Match is a resolved identity with its similarity evidence.
type Match struct {
	Student    database.Student
	Distance   float64
	Confidence float64
}

// Result is the outcome of a single verification. Not-recognized and
// detection failures carry Success=false with a message; they are reported
// outcomes, not errors. Only infrastructure failures surface as errors.
type Result struct {
	Success           bool      `json:"success"`
	AlreadyRegistered bool      `json:"already_registered"`
	StudentID         string    `json:"student_id,omitempty"`
	StudentName       string    `json:"student_name,omitempty"`
	Status            Status    `json:"status,omitempty"`
	Confidence        float64   `json:"confidence"`
	// MatchDistance is always emitted: a perfect match has distance 0 and
	// must not disappear from the payload.
	MatchDistance float64 `json:"match_distance"`
	Timestamp         time.Time `json:"timestamp,omitzero"`
	Message           string    `json:"message,omitempty"`
}

// BatchResult is the outcome of a batch verification run.
type BatchResult struct {
	ClassID           string   `json:"class_id"`
	TotalImages       int      `json:"total_images"`
	Identified        []Result `json:"students_identified"`
	UnidentifiedCount int      `json:"unidentified_count"`
	ProcessingSeconds float64  `json:"processing_time"`
}

// Report aggregates a class session's attendance records.
type Report struct {
	ClassID      string                      `json:"class_id"`
	TotalRecords int                         `json:"total_records"`
	PresentCount int                         `json:"present_count"`
	LateCount    int                         `json:"late_count"`
	// AttendanceRate counts present records only; late students appear in
	// LateCount but do not contribute to the rate.
	AttendanceRate    float64                     `json:"attendance_rate"`
	AverageConfidence float64                     `json:"average_confidence"`
	Records           []database.AttendanceRecord `json:"records"`
}

// EmotionSummary aggregates a class session's emotion events.
type EmotionSummary struct {
	ClassID           string             `json:"class_id"`
	TotalEvents       int                `json:"total_events"`
	Distribution      map[string]int     `json:"emotion_distribution"`
	Percentages       map[string]float64 `json:"emotion_percentages"`
	AverageConfidence float64            `json:"average_confidence"`
	EngagementScore   float64            `json:"engagement_score"`
	// NegativeScore is the share of events whose dominant emotion falls in
	// the configured negative set. EngagementScore and NegativeScore need
	// not sum to 100: emotions in neither set count toward neither score.
	NegativeScore float64 `json:"negative_score"`
}
