package handlers

import (
	"encoding/base64"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/database"
	"github.com/smart-classroom/presence/internal/recognizer"
)

func happyReading() *recognizer.EmotionReading {
	return &recognizer.EmotionReading{
		DominantEmotion: "happy",
		Confidence:      0.87,
		Scores:          map[string]float64{"happy": 0.87, "neutral": 0.10, "sad": 0.03},
	}
}

func TestAnalyzeWithoutIdentityIsNotSaved(t *testing.T) {
	env := newTestEnv()
	env.analyzer.reading = happyReading()

	req := multipartRequest(t, "/api/v1/emotions/analyze", []byte("face"), nil)
	rec := httptest.NewRecorder()
	env.emotionsAPI.Analyze(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp analyzeResponse
	parseJSONResponse(t, rec, &resp)
	if !resp.Success || resp.DominantEmotion != "happy" || !resp.IsPositive {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.SavedToDB || resp.DBError {
		t.Errorf("nothing should touch the database without identity: %+v", resp)
	}

	events, _ := env.emotions.ListAll(req.Context())
	if len(events) != 0 {
		t.Errorf("expected no stored events, got %d", len(events))
	}
}

func TestAnalyzeWithIdentitySavesEvent(t *testing.T) {
	env := newTestEnv()
	env.analyzer.reading = happyReading()

	req := multipartRequest(t, "/api/v1/emotions/analyze", []byte("face"), map[string]string{
		"student_id": "S001",
		"class_id":   "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.emotionsAPI.Analyze(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp analyzeResponse
	parseJSONResponse(t, rec, &resp)
	if !resp.SavedToDB || resp.DBError {
		t.Errorf("expected saved_to_db=true, got %+v", resp)
	}

	events, _ := env.emotions.ListAll(req.Context())
	if len(events) != 1 || events[0].DominantEmotion != "happy" {
		t.Errorf("unexpected stored events: %+v", events)
	}
}

func TestAnalyzeDBFailureStillReturnsReading(t *testing.T) {
	env := newTestEnv()
	env.analyzer.reading = happyReading()
	env.emotions.InsertError = errors.New("connection refused")

	req := multipartRequest(t, "/api/v1/emotions/analyze", []byte("face"), map[string]string{
		"student_id": "S001",
		"class_id":   "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.emotionsAPI.Analyze(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp analyzeResponse
	parseJSONResponse(t, rec, &resp)
	if !resp.Success || resp.DominantEmotion != "happy" {
		t.Errorf("analysis outcome must survive a failed write: %+v", resp)
	}
	if resp.SavedToDB || !resp.DBError {
		t.Errorf("expected db_error=true and saved_to_db=false, got %+v", resp)
	}
}

func TestAnalyzeNoFace(t *testing.T) {
	env := newTestEnv()
	env.analyzer.err = attendance.ErrFaceNotDetected

	req := multipartRequest(t, "/api/v1/emotions/analyze", []byte("empty-desk"), nil)
	rec := httptest.NewRecorder()
	env.emotionsAPI.Analyze(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp analyzeResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Success {
		t.Errorf("expected success=false when no face is detected: %+v", resp)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/emotions/analyze", nil)
	rec := httptest.NewRecorder()
	env.emotionsAPI.Analyze(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestClassSummary(t *testing.T) {
	env := newTestEnv()
	for _, emotion := range []string{"happy", "happy", "neutral", "sad"} {
		env.emotions.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         "CLASS-1",
			DominantEmotion: emotion,
			Confidence:      0.8,
		})
	}

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/emotions/class-summary/CLASS-1", nil),
		map[string]string{"classID": "CLASS-1"},
	)
	rec := httptest.NewRecorder()
	env.emotionsAPI.ClassSummary(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var summary attendance.EmotionSummary
	parseJSONResponse(t, rec, &summary)
	if summary.TotalEvents != 4 {
		t.Errorf("expected 4 events, got %d", summary.TotalEvents)
	}
	if math.Abs(summary.EngagementScore-75.0) > 1e-9 {
		t.Errorf("expected engagement score 75.0, got %f", summary.EngagementScore)
	}
}

func TestClassSummaryWindow(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i, emotion := range []string{"happy", "sad", "neutral"} {
		env.emotions.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         "CLASS-1",
			DominantEmotion: emotion,
			Confidence:      0.8,
			DetectedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}

	url := "/api/v1/emotions/class-summary/CLASS-1?start_time=" + base.Add(time.Minute).Format(time.RFC3339)
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, url, nil),
		map[string]string{"classID": "CLASS-1"},
	)
	rec := httptest.NewRecorder()
	env.emotionsAPI.ClassSummary(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var summary attendance.EmotionSummary
	parseJSONResponse(t, rec, &summary)
	if summary.TotalEvents != 2 {
		t.Errorf("expected 2 events in window, got %d", summary.TotalEvents)
	}
}

func TestBatchAnalyze(t *testing.T) {
	env := newTestEnv()
	env.analyzer.reading = happyReading()

	encoded := base64.StdEncoding.EncodeToString([]byte("face"))
	req := jsonRequest(t, http.MethodPost, "/api/v1/emotions/batch-analyze", map[string]any{
		"images":   []string{encoded, encoded, "%%%not-base64%%%"},
		"class_id": "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.emotionsAPI.BatchAnalyze(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp batchAnalyzeResponse
	parseJSONResponse(t, rec, &resp)
	if resp.TotalImages != 3 || resp.TotalAnalyzed != 2 {
		t.Errorf("expected 2 of 3 analyzed, got %+v", resp)
	}
	if resp.Distribution["happy"] != 2 {
		t.Errorf("unexpected distribution: %v", resp.Distribution)
	}
	if len(resp.Results) != 3 || resp.Results[2].Success {
		t.Errorf("the bad frame must fail alone: %+v", resp.Results)
	}
}

func TestBatchAnalyzeValidation(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing class_id", map[string]any{"images": []string{"aGk="}}},
		{"no images", map[string]any{"images": []string{}, "class_id": "CLASS-1"}},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		env.emotionsAPI.BatchAnalyze(rec, jsonRequest(t, http.MethodPost, "/api/v1/emotions/batch-analyze", c.body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", c.name, rec.Code)
		}
	}
}

func TestClassLogsNewestFirst(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i, emotion := range []string{"happy", "sad", "neutral"} {
		env.emotions.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         "CLASS-1",
			DominantEmotion: emotion,
			Confidence:      0.8,
			DetectedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	env.emotions.Add(database.EmotionEvent{
		StudentID:       "S001",
		ClassID:         "CLASS-2",
		DominantEmotion: "angry",
		Confidence:      0.8,
	})

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/emotions/class/CLASS-1", nil),
		map[string]string{"classID": "CLASS-1"},
	)
	rec := httptest.NewRecorder()
	env.emotionsAPI.ClassLogs(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Count int                     `json:"count"`
		Logs  []database.EmotionEvent `json:"logs"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 3 {
		t.Fatalf("expected 3 events, got %d", resp.Count)
	}
	if resp.Logs[0].DominantEmotion != "neutral" {
		t.Errorf("expected newest event first, got %+v", resp.Logs)
	}
}

func TestStudentTimeline(t *testing.T) {
	env := newTestEnv()
	for _, emotion := range []string{"happy", "neutral", "sad"} {
		env.emotions.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         "CLASS-1",
			DominantEmotion: emotion,
			Confidence:      0.8,
		})
	}
	env.emotions.Add(database.EmotionEvent{
		StudentID:       "S002",
		ClassID:         "CLASS-1",
		DominantEmotion: "angry",
		Confidence:      0.8,
	})

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/emotions/student-timeline/S001?class_id=CLASS-1&limit=2", nil),
		map[string]string{"studentID": "S001"},
	)
	rec := httptest.NewRecorder()
	env.emotionsAPI.StudentTimeline(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Count    int                     `json:"count"`
		Timeline []database.EmotionEvent `json:"timeline"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 2 {
		t.Fatalf("expected limit to cap at 2 events, got %d", resp.Count)
	}
	for _, ev := range resp.Timeline {
		if ev.StudentID != "S001" {
			t.Errorf("other students' events leaked in: %+v", ev)
		}
	}
}

func TestStudentTimelineValidation(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name string
		url  string
	}{
		{"missing class_id", "/api/v1/emotions/student-timeline/S001"},
		{"bad limit", "/api/v1/emotions/student-timeline/S001?class_id=CLASS-1&limit=zero"},
	}
	for _, c := range cases {
		req := requestWithChiParams(
			httptest.NewRequest(http.MethodGet, c.url, nil),
			map[string]string{"studentID": "S001"},
		)
		rec := httptest.NewRecorder()
		env.emotionsAPI.StudentTimeline(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", c.name, rec.Code)
		}
	}
}

func TestClassSummaryBadWindow(t *testing.T) {
	env := newTestEnv()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/emotions/class-summary/CLASS-1?start_time=yesterday", nil),
		map[string]string{"classID": "CLASS-1"},
	)
	rec := httptest.NewRecorder()
	env.emotionsAPI.ClassSummary(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}
