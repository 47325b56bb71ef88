package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/attendance"
)

// VerifyHandler handles attendance verification endpoints.
type VerifyHandler struct {
	verifier *attendance.Verifier
	ledger   *attendance.Ledger
}

// NewVerifyHandler creates a new verification handler.
func NewVerifyHandler(verifier *attendance.Verifier, ledger *attendance.Ledger) *VerifyHandler {
	return &VerifyHandler{verifier: verifier, ledger: ledger}
}

type verifyRequest struct {
	Image   string `json:"image"` // base64-encoded image
	ClassID string `json:"class_id"`
}

type batchVerifyRequest struct {
	Images  []string `json:"images"` // base64-encoded images
	ClassID string   `json:"class_id"`
}

// Verify handles POST /attendance/verify.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image must be base64-encoded")
		return
	}

	result, err := h.verifier.Verify(r.Context(), image, req.ClassID)
	if err != nil {
		log.Printf("verify failed for class %s: %v", sanitizeForLog(req.ClassID), err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// BatchVerify handles POST /attendance/batch-verify.
func (h *VerifyHandler) BatchVerify(w http.ResponseWriter, r *http.Request) {
	var req batchVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}

	images := make([][]byte, 0, len(req.Images))
	for _, encoded := range req.Images {
		image, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			respondError(w, http.StatusBadRequest, "images must be base64-encoded")
			return
		}
		images = append(images, image)
	}

	result, err := h.verifier.BatchVerify(r.Context(), images, req.ClassID)
	if err != nil {
		log.Printf("batch verify failed for class %s: %v", sanitizeForLog(req.ClassID), err)
		respondError(w, http.StatusInternalServerError, "failed to process batch")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Report handles GET /attendance/report/{classID}.
func (h *VerifyHandler) Report(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	report, err := h.ledger.ClassReport(r.Context(), classID)
	if err != nil {
		log.Printf("attendance report failed for class %s: %v", sanitizeForLog(classID), err)
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}
