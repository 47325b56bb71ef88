package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/database"
)

const statsCacheTTL = 1 * time.Minute

// statsCache holds cached dashboard stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

// StatsHandler handles the dashboard statistics endpoint.
type StatsHandler struct {
	students   database.StudentStore
	records    database.AttendanceStore
	emotions   database.EmotionStore
	sessions   database.SessionStore
	aggregator *attendance.EmotionAggregator
	cache      statsCache
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(students database.StudentStore, records database.AttendanceStore, emotions database.EmotionStore, sessions database.SessionStore, aggregator *attendance.EmotionAggregator) *StatsHandler {
	return &StatsHandler{
		students:   students,
		records:    records,
		emotions:   emotions,
		sessions:   sessions,
		aggregator: aggregator,
	}
}

// StatsResponse represents the dashboard statistics response.
type StatsResponse struct {
	TotalStudents    int `json:"total_students"`
	TotalClasses     int `json:"total_classes"`
	TotalAttendance  int `json:"total_attendance_records"`
	TotalEmotions    int `json:"total_emotion_events"`
	ActiveClasses    int `json:"active_classes"`
	// AttendanceRate is unique (student, class) attendance pairs over the
	// students x classes grid, capped at 100.
	AttendanceRate  float64 `json:"attendance_rate"`
	EngagementScore float64 `json:"engagement_score"`
}

// ClassStatsResponse combines a session's attendance and emotion metrics.
type ClassStatsResponse struct {
	Class      classResponse              `json:"class_info"`
	Attendance classAttendanceStats       `json:"attendance"`
	Emotions   *attendance.EmotionSummary `json:"emotions"`
}

type classAttendanceStats struct {
	TotalRecords   int     `json:"total_records"`
	UniqueStudents int     `json:"unique_students"`
	PresentCount   int     `json:"present_count"`
	LateCount      int     `json:"late_count"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// ClassStats handles GET /classes/{classID}/stats.
func (h *StatsHandler) ClassStats(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	ctx := r.Context()

	session, err := h.sessions.Get(ctx, classID)
	if err != nil {
		log.Printf("class stats: session lookup failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	records, err := h.records.ListByClass(ctx, classID)
	if err != nil {
		log.Printf("class stats: attendance list failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	summary, err := h.aggregator.Summarize(ctx, classID, nil, nil)
	if err != nil {
		log.Printf("class stats: emotion summary failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	stats := ClassStatsResponse{
		Class:    toClassResponse(session),
		Emotions: summary,
	}
	students := make(map[string]struct{}, len(records))
	for _, rec := range records {
		students[rec.StudentID] = struct{}{}
		switch attendance.Status(rec.Status) {
		case attendance.StatusPresent:
			stats.Attendance.PresentCount++
		case attendance.StatusLate:
			stats.Attendance.LateCount++
		}
	}
	stats.Attendance.TotalRecords = len(records)
	stats.Attendance.UniqueStudents = len(students)
	if len(records) > 0 {
		stats.Attendance.AttendanceRate = float64(stats.Attendance.PresentCount) / float64(len(records)) * 100
	}

	respondJSON(w, http.StatusOK, stats)
}

// Get handles GET /stats/dashboard.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	ctx := r.Context()

	studentCount, err := h.students.Count(ctx)
	if err != nil {
		log.Printf("stats: student count failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	sessions, err := h.sessions.List(ctx)
	if err != nil {
		log.Printf("stats: session list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	records, err := h.records.ListAll(ctx)
	if err != nil {
		log.Printf("stats: attendance list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	events, err := h.emotions.ListAll(ctx)
	if err != nil {
		log.Printf("stats: emotion list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	stats := &StatsResponse{
		TotalStudents:   studentCount,
		TotalClasses:    len(sessions),
		TotalAttendance: len(records),
		TotalEmotions:   len(events),
	}

	for _, s := range sessions {
		if s.EndTime == nil {
			stats.ActiveClasses++
		}
	}

	// Unique (student, class) pairs over the possible grid; the same record
	// can never appear twice thanks to the uniqueness constraint, but cap
	// anyway in case classes were deleted after attendance was taken.
	if studentCount > 0 && len(sessions) > 0 {
		pairs := make(map[[2]string]struct{}, len(records))
		for _, rec := range records {
			pairs[[2]string{rec.StudentID, rec.ClassID}] = struct{}{}
		}
		rate := float64(len(pairs)) / float64(studentCount*len(sessions)) * 100
		if rate > 100 {
			rate = 100
		}
		stats.AttendanceRate = rate
	}

	if len(events) > 0 {
		var positive int
		for _, ev := range events {
			if h.aggregator.IsPositive(ev.DominantEmotion) {
				positive++
			}
		}
		stats.EngagementScore = float64(positive) / float64(len(events)) * 100
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
