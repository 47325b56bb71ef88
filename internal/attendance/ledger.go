package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/smart-classroom/presence/internal/database"
)

// Ledger enforces the at-most-one-record-per-(student, class) invariant.
// The check-then-insert sequence is not atomic here; the storage layer's
// unique constraint is what makes concurrent duplicates impossible, and
// the ledger recovers from the constraint conflict by returning the
// winner's record.
type Ledger struct {
	Store database.AttendanceStore
}

// NewLedger creates a ledger over the given attendance store.
func NewLedger(store database.AttendanceStore) *Ledger {
	return &Ledger{Store: store}
}

// MarkAttendance records attendance once per (studentID, classID). When a
// record already exists it is returned unchanged with alreadyExisted=true;
// the first successful verification wins permanently.
func (l *Ledger) MarkAttendance(ctx context.Context, studentID, classID string, status Status, confidence, distance *float64) (*database.AttendanceRecord, bool, error) {
	existing, err := l.Store.Get(ctx, studentID, classID)
	if err != nil {
		return nil, false, fmt.Errorf("check existing attendance: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	rec, err := l.Store.Insert(ctx, &database.AttendanceRecord{
		StudentID:     studentID,
		ClassID:       classID,
		Status:        string(status),
		Confidence:    confidence,
		MatchDistance: distance,
	})
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, database.ErrDuplicateAttendance) {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}

	// Lost the insert race: another verification committed between the
	// existence check and our insert. Re-read and return the winner's row.
	winner, err := l.Store.Get(ctx, studentID, classID)
	if err != nil {
		return nil, false, fmt.Errorf("re-read attendance after conflict: %w", err)
	}
	if winner == nil {
		return nil, false, fmt.Errorf("attendance conflict for %s in %s but no record found", studentID, classID)
	}
	return winner, true, nil
}

// ClassReport aggregates all attendance records for a class session.
func (l *Ledger) ClassReport(ctx context.Context, classID string) (*Report, error) {
	records, err := l.Store.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list attendance for class: %w", err)
	}

	report := &Report{
		ClassID:      classID,
		TotalRecords: len(records),
		Records:      records,
	}

	var confidenceSum float64
	var confidenceCount int
	for _, rec := range records {
		switch Status(rec.Status) {
		case StatusPresent:
			report.PresentCount++
		case StatusLate:
			report.LateCount++
		}
		if rec.Confidence != nil {
			confidenceSum += *rec.Confidence
			confidenceCount++
		}
	}

	if report.TotalRecords > 0 {
		report.AttendanceRate = float64(report.PresentCount) / float64(report.TotalRecords) * 100
	}
	if confidenceCount > 0 {
		report.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	return report, nil
}
