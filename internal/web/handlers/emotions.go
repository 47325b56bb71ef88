package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/database"
	"github.com/smart-classroom/presence/internal/recognizer"
)

// EmotionAnalyzer classifies the emotional state of a face image.
type EmotionAnalyzer interface {
	AnalyzeEmotion(ctx context.Context, image []byte) (*recognizer.EmotionReading, error)
}

// EmotionsHandler handles emotion analysis and summary endpoints.
type EmotionsHandler struct {
	analyzer   EmotionAnalyzer
	store      database.EmotionStore
	aggregator *attendance.EmotionAggregator
	validate   func([]byte) error
}

// NewEmotionsHandler creates a new emotions handler.
func NewEmotionsHandler(analyzer EmotionAnalyzer, store database.EmotionStore, aggregator *attendance.EmotionAggregator, validate func([]byte) error) *EmotionsHandler {
	return &EmotionsHandler{
		analyzer:   analyzer,
		store:      store,
		aggregator: aggregator,
		validate:   validate,
	}
}

// analyzeResponse reports analysis and persistence outcomes independently:
// a reading can succeed while the database write fails, and vice versa the
// event is only saved when both student_id and class_id are present.
type analyzeResponse struct {
	Success         bool               `json:"success"`
	DominantEmotion string             `json:"dominant_emotion,omitempty"`
	Confidence      float64            `json:"confidence"`
	EmotionScores   map[string]float64 `json:"emotion_scores,omitempty"`
	IsPositive      bool               `json:"is_positive"`
	SavedToDB       bool               `json:"saved_to_db"`
	DBError         bool               `json:"db_error"`
	Message         string             `json:"message,omitempty"`
}

// Analyze handles POST /emotions/analyze. The image arrives as a multipart
// upload; student_id and class_id are optional form fields that trigger
// event persistence when both are present.
func (h *EmotionsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	image, err := readImageFile(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or unreadable file upload")
		return
	}

	if h.validate != nil {
		if err := h.validate(image); err != nil {
			respondJSON(w, http.StatusOK, analyzeResponse{Success: false, Message: err.Error()})
			return
		}
	}

	reading, err := h.analyzer.AnalyzeEmotion(r.Context(), image)
	if err != nil {
		if errors.Is(err, attendance.ErrFaceNotDetected) {
			respondJSON(w, http.StatusOK, analyzeResponse{Success: false, Message: err.Error()})
			return
		}
		log.Printf("emotion analysis failed: %v", err)
		respondError(w, http.StatusBadGateway, "emotion analysis unavailable")
		return
	}

	resp := analyzeResponse{
		Success:         true,
		DominantEmotion: reading.DominantEmotion,
		Confidence:      reading.Confidence,
		EmotionScores:   reading.Scores,
		IsPositive:      h.aggregator.IsPositive(reading.DominantEmotion),
	}

	studentID := r.FormValue("student_id")
	classID := r.FormValue("class_id")
	if studentID != "" && classID != "" {
		_, err := h.store.Insert(r.Context(), &database.EmotionEvent{
			StudentID:       studentID,
			ClassID:         classID,
			DominantEmotion: reading.DominantEmotion,
			Confidence:      reading.Confidence,
			Scores:          reading.Scores,
		})
		if err != nil {
			log.Printf("emotion event insert failed for %s/%s: %v",
				sanitizeForLog(studentID), sanitizeForLog(classID), err)
			resp.DBError = true
		} else {
			resp.SavedToDB = true
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type batchAnalyzeRequest struct {
	Images  []string `json:"images"` // base64-encoded images
	ClassID string   `json:"class_id"`
}

type batchAnalyzeItem struct {
	Success         bool    `json:"success"`
	DominantEmotion string  `json:"dominant_emotion,omitempty"`
	Confidence      float64 `json:"confidence"`
	IsPositive      bool    `json:"is_positive"`
	Message         string  `json:"message,omitempty"`
}

type batchAnalyzeResponse struct {
	ClassID       string             `json:"class_id"`
	TotalImages   int                `json:"total_images"`
	TotalAnalyzed int                `json:"total_analyzed"`
	Distribution  map[string]int     `json:"emotion_distribution"`
	Results       []batchAnalyzeItem `json:"results"`
}

// BatchAnalyze handles POST /emotions/batch-analyze. Items fail
// independently; a faceless frame does not sink the rest of the batch.
// Readings are not persisted, there is no per-face identity in a batch.
func (h *EmotionsHandler) BatchAnalyze(w http.ResponseWriter, r *http.Request) {
	var req batchAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}
	if len(req.Images) == 0 {
		respondError(w, http.StatusBadRequest, "no images provided")
		return
	}

	resp := batchAnalyzeResponse{
		ClassID:      req.ClassID,
		TotalImages:  len(req.Images),
		Distribution: make(map[string]int),
		Results:      make([]batchAnalyzeItem, 0, len(req.Images)),
	}
	for _, encoded := range req.Images {
		resp.Results = append(resp.Results, h.analyzeOne(r.Context(), encoded, &resp))
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *EmotionsHandler) analyzeOne(ctx context.Context, encoded string, resp *batchAnalyzeResponse) batchAnalyzeItem {
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return batchAnalyzeItem{Message: "image must be base64-encoded"}
	}
	if h.validate != nil {
		if err := h.validate(image); err != nil {
			return batchAnalyzeItem{Message: err.Error()}
		}
	}

	reading, err := h.analyzer.AnalyzeEmotion(ctx, image)
	if err != nil {
		if errors.Is(err, attendance.ErrFaceNotDetected) {
			return batchAnalyzeItem{Message: err.Error()}
		}
		log.Printf("batch emotion analysis failed: %v", err)
		return batchAnalyzeItem{Message: "emotion analysis unavailable"}
	}

	resp.TotalAnalyzed++
	resp.Distribution[reading.DominantEmotion]++
	return batchAnalyzeItem{
		Success:         true,
		DominantEmotion: reading.DominantEmotion,
		Confidence:      reading.Confidence,
		IsPositive:      h.aggregator.IsPositive(reading.DominantEmotion),
	}
}

// ClassSummary handles GET /emotions/class-summary/{classID}. Optional
// start_time and end_time query parameters bound the window (RFC 3339).
func (h *EmotionsHandler) ClassSummary(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	start, err := parseTimeParam(r, "start_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_time must be RFC 3339")
		return
	}
	end, err := parseTimeParam(r, "end_time")
	if err != nil {
		respondError(w, http.StatusBadRequest, "end_time must be RFC 3339")
		return
	}

	summary, err := h.aggregator.Summarize(r.Context(), classID, start, end)
	if err != nil {
		log.Printf("emotion summary failed for class %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// ClassLogs handles GET /emotions/class/{classID}: the raw event log,
// newest first.
func (h *EmotionsHandler) ClassLogs(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	events, err := h.store.ListByClass(r.Context(), classID, nil, nil)
	if err != nil {
		log.Printf("emotion logs failed for class %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to list emotion events")
		return
	}

	slices.Reverse(events)
	if events == nil {
		events = []database.EmotionEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"count":    len(events),
		"logs":     events,
	})
}

// StudentTimeline handles GET /emotions/student-timeline/{studentID}.
// class_id is a required query parameter; limit defaults to 100.
func (h *EmotionsHandler) StudentTimeline(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	classID := r.URL.Query().Get("class_id")
	if classID == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.store.ListByStudent(r.Context(), studentID, classID, limit)
	if err != nil {
		log.Printf("emotion timeline failed for %s/%s: %v",
			sanitizeForLog(studentID), sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to list emotion events")
		return
	}

	if events == nil {
		events = []database.EmotionEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"class_id":   classID,
		"count":      len(events),
		"timeline":   events,
	})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
