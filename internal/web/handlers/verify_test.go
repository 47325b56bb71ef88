package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smart-classroom/presence/internal/attendance"
)

func TestVerifySuccess(t *testing.T) {
	env := newTestEnv()
	image := env.enroll("S001", "Maria Paz", 0)

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/verify", map[string]string{
		"image":    base64.StdEncoding.EncodeToString(image),
		"class_id": "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.verify.Verify(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var result attendance.Result
	parseJSONResponse(t, rec, &result)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.StudentID != "S001" || result.Status != attendance.StatusPresent {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestVerifyNotRecognizedIsHTTPOK(t *testing.T) {
	env := newTestEnv()
	// Detected face, but no enrolled student nearby.
	stranger := make([]float32, 8)
	stranger[7] = 1
	env.embedder.embeddings["stranger"] = stranger

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/verify", map[string]string{
		"image":    base64.StdEncoding.EncodeToString([]byte("stranger")),
		"class_id": "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.verify.Verify(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var result attendance.Result
	parseJSONResponse(t, rec, &result)
	if result.Success {
		t.Error("unknown face must not succeed")
	}
	if result.Message != "student not recognized" {
		t.Errorf("unexpected message %q", result.Message)
	}
}

func TestVerifyMissingClassID(t *testing.T) {
	env := newTestEnv()

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/verify", map[string]string{
		"image": base64.StdEncoding.EncodeToString([]byte("x")),
	})
	rec := httptest.NewRecorder()
	env.verify.Verify(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "class_id is required")
}

func TestVerifyBadBase64(t *testing.T) {
	env := newTestEnv()

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/verify", map[string]string{
		"image":    "!!! not base64 !!!",
		"class_id": "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.verify.Verify(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestVerifyInvalidJSON(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/verify", nil)
	rec := httptest.NewRecorder()
	env.verify.Verify(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, errInvalidRequestBody)
}

func TestBatchVerify(t *testing.T) {
	env := newTestEnv()
	img1 := env.enroll("S001", "Ana", 0)
	img2 := env.enroll("S002", "Bruno", 1)

	req := jsonRequest(t, http.MethodPost, "/api/v1/attendance/batch-verify", map[string]any{
		"images": []string{
			base64.StdEncoding.EncodeToString(img1),
			base64.StdEncoding.EncodeToString(img2),
			base64.StdEncoding.EncodeToString([]byte("empty-desk")),
		},
		"class_id": "CLASS-1",
	})
	rec := httptest.NewRecorder()
	env.verify.BatchVerify(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var result attendance.BatchResult
	parseJSONResponse(t, rec, &result)
	if result.TotalImages != 3 || result.UnidentifiedCount != 1 || len(result.Identified) != 2 {
		t.Errorf("unexpected batch result: %+v", result)
	}
}

func TestAttendanceReport(t *testing.T) {
	env := newTestEnv()
	image := env.enroll("S001", "Maria Paz", 0)

	verifyReq := jsonRequest(t, http.MethodPost, "/api/v1/attendance/verify", map[string]string{
		"image":    base64.StdEncoding.EncodeToString(image),
		"class_id": "CLASS-1",
	})
	env.verify.Verify(httptest.NewRecorder(), verifyReq)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/attendance/report/CLASS-1", nil),
		map[string]string{"classID": "CLASS-1"},
	)
	rec := httptest.NewRecorder()
	env.verify.Report(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var report attendance.Report
	parseJSONResponse(t, rec, &report)
	if report.TotalRecords != 1 || report.PresentCount != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}
