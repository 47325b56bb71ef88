package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/database"
)

// StudentsHandler handles student enrollment endpoints.
type StudentsHandler struct {
	store    database.StudentStore
	embedder attendance.Embedder
	validate func([]byte) error
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(store database.StudentStore, embedder attendance.Embedder, validate func([]byte) error) *StudentsHandler {
	return &StudentsHandler{store: store, embedder: embedder, validate: validate}
}

type studentResponse struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	EnrolledAt string `json:"enrolled_at"`
	IsActive   bool   `json:"is_active"`
}

func toStudentResponse(s *database.Student) studentResponse {
	return studentResponse{
		StudentID:  s.StudentID,
		Name:       s.Name,
		Email:      s.Email,
		EnrolledAt: s.EnrolledAt.Format("2006-01-02T15:04:05Z07:00"),
		IsActive:   s.IsActive,
	}
}

// Enroll handles POST /students/enroll. The face image arrives as a
// multipart upload; its embedding is computed once, at enrollment.
func (h *StudentsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	image, err := readImageFile(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or unreadable file upload")
		return
	}

	studentID := r.FormValue("student_id")
	name := r.FormValue("name")
	if studentID == "" || name == "" {
		respondError(w, http.StatusBadRequest, "student_id and name are required")
		return
	}

	if h.validate != nil {
		if err := h.validate(image); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	embedding, err := h.embedder.EmbedFace(r.Context(), image)
	if err != nil {
		if errors.Is(err, attendance.ErrFaceNotDetected) {
			respondError(w, http.StatusBadRequest, "no face detected in enrollment photo")
			return
		}
		log.Printf("enrollment embedding failed for %s: %v", sanitizeForLog(studentID), err)
		respondError(w, http.StatusBadGateway, "face recognition unavailable")
		return
	}

	student, err := h.store.Create(r.Context(), &database.Student{
		StudentID: studentID,
		Name:      name,
		Email:     r.FormValue("email"),
		Embedding: embedding,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateStudent) {
			respondError(w, http.StatusConflict, "student already enrolled")
			return
		}
		log.Printf("enrollment insert failed for %s: %v", sanitizeForLog(studentID), err)
		respondError(w, http.StatusInternalServerError, "failed to enroll student")
		return
	}

	respondJSON(w, http.StatusCreated, toStudentResponse(student))
}

// List handles GET /students. Inactive students are included only with
// ?include_inactive=true.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	students, err := h.store.List(r.Context(), activeOnly)
	if err != nil {
		log.Printf("student list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	out := make([]studentResponse, 0, len(students))
	for i := range students {
		out = append(out, toStudentResponse(&students[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": out,
		"count":    len(out),
	})
}

// Get handles GET /students/{studentID}.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	student, err := h.store.Get(r.Context(), studentID)
	if err != nil {
		log.Printf("student lookup failed for %s: %v", sanitizeForLog(studentID), err)
		respondError(w, http.StatusInternalServerError, "failed to look up student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	respondJSON(w, http.StatusOK, toStudentResponse(student))
}

// Delete handles DELETE /students/{studentID}. Soft delete: the student is
// deactivated and excluded from matching, but attendance history remains.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	found, err := h.store.Deactivate(r.Context(), studentID)
	if err != nil {
		log.Printf("student deactivation failed for %s: %v", sanitizeForLog(studentID), err)
		respondError(w, http.StatusInternalServerError, "failed to deactivate student")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// Search handles GET /students/search?name=. Matching is case and
// diacritic insensitive.
func (h *StudentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	students, err := h.store.SearchByName(r.Context(), name)
	if err != nil {
		log.Printf("student search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to search students")
		return
	}

	out := make([]studentResponse, 0, len(students))
	for i := range students {
		out = append(out, toStudentResponse(&students[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": out,
		"count":    len(out),
	})
}
