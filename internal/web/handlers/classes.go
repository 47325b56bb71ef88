package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smart-classroom/presence/internal/database"
)

// ClassesHandler handles class session endpoints.
type ClassesHandler struct {
	sessions database.SessionStore
}

// NewClassesHandler creates a new classes handler.
func NewClassesHandler(sessions database.SessionStore) *ClassesHandler {
	return &ClassesHandler{sessions: sessions}
}

// newClassID generates a class identifier of the form CLASS-<hex8>.
func newClassID() string {
	return "CLASS-" + uuid.NewString()[:8]
}

type createClassRequest struct {
	ClassName  string `json:"class_name"`
	Instructor string `json:"instructor"`
	Room       string `json:"room"`
	StartTime  string `json:"start_time"`         // RFC 3339
	EndTime    string `json:"end_time,omitempty"` // RFC 3339, optional
}

type classResponse struct {
	ClassID    string     `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Instructor string     `json:"instructor,omitempty"`
	Room       string     `json:"room,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toClassResponse(s *database.ClassSession) classResponse {
	return classResponse{
		ClassID:    s.ClassID,
		ClassName:  s.ClassName,
		Instructor: s.Instructor,
		Room:       s.Room,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		CreatedAt:  s.CreatedAt,
	}
}

// Create handles POST /classes.
func (h *ClassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassName == "" || req.StartTime == "" {
		respondError(w, http.StatusBadRequest, "class_name and start_time are required")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_time must be RFC 3339")
		return
	}

	var end *time.Time
	if req.EndTime != "" {
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_time must be RFC 3339")
			return
		}
		end = &t
	}

	session, err := h.sessions.Create(r.Context(), &database.ClassSession{
		ClassID:    newClassID(),
		ClassName:  req.ClassName,
		Instructor: req.Instructor,
		Room:       req.Room,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		log.Printf("class creation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create class")
		return
	}

	respondJSON(w, http.StatusCreated, toClassResponse(session))
}

// updateClassRequest carries optional field changes; pointers distinguish
// "leave alone" from "set empty".
type updateClassRequest struct {
	ClassName  *string `json:"class_name"`
	Instructor *string `json:"instructor"`
	Room       *string `json:"room"`
	StartTime  *string `json:"start_time"` // RFC 3339
	EndTime    *string `json:"end_time"`   // RFC 3339
}

// Update handles PUT /classes/{classID}. Only the provided fields change.
func (h *ClassesHandler) Update(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	var req updateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	upd := database.SessionUpdate{
		ClassName:  req.ClassName,
		Instructor: req.Instructor,
		Room:       req.Room,
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			respondError(w, http.StatusBadRequest, "start_time must be RFC 3339")
			return
		}
		upd.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_time must be RFC 3339")
			return
		}
		upd.EndTime = &t
	}
	if upd == (database.SessionUpdate{}) {
		respondError(w, http.StatusBadRequest, "no fields provided for update")
		return
	}

	session, err := h.sessions.Update(r.Context(), classID, &upd)
	if err != nil {
		log.Printf("class update failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to update class")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	respondJSON(w, http.StatusOK, toClassResponse(session))
}

// List handles GET /classes.
func (h *ClassesHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		log.Printf("class list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}

	out := make([]classResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toClassResponse(&sessions[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"classes": out,
		"count":   len(out),
	})
}

// Get handles GET /classes/{classID}.
func (h *ClassesHandler) Get(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	session, err := h.sessions.Get(r.Context(), classID)
	if err != nil {
		log.Printf("class lookup failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to look up class")
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	respondJSON(w, http.StatusOK, toClassResponse(session))
}

// Delete handles DELETE /classes/{classID}.
func (h *ClassesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	found, err := h.sessions.Delete(r.Context(), classID)
	if err != nil {
		log.Printf("class deletion failed for %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to delete class")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
