package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/database"
	"github.com/smart-classroom/presence/internal/database/mock"
	"github.com/smart-classroom/presence/internal/recognizer"
)

var (
	testPositive = []string{"happy", "surprise", "neutral"}
	testNegative = []string{"sad", "angry", "fear", "disgust"}
)

// testEmbedder maps image bytes to canned embeddings; unknown payloads fail
// face detection.
type testEmbedder struct {
	embeddings map[string][]float32
	err        error
}

func (f *testEmbedder) EmbedFace(ctx context.Context, image []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	emb, ok := f.embeddings[string(image)]
	if !ok {
		return nil, attendance.ErrFaceNotDetected
	}
	return emb, nil
}

// testAnalyzer returns a canned emotion reading.
type testAnalyzer struct {
	reading *recognizer.EmotionReading
	err     error
}

func (f *testAnalyzer) AnalyzeEmotion(ctx context.Context, image []byte) (*recognizer.EmotionReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reading, nil
}

// testEnv wires all handlers over in-memory stores.
type testEnv struct {
	students *mock.StudentStore
	records  *mock.AttendanceStore
	emotions *mock.EmotionStore
	sessions *mock.SessionStore
	embedder *testEmbedder
	analyzer *testAnalyzer

	verify      *VerifyHandler
	emotionsAPI *EmotionsHandler
	studentsAPI *StudentsHandler
	classes     *ClassesHandler
	stats       *StatsHandler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		students: mock.NewStudentStore(),
		records:  mock.NewAttendanceStore(),
		emotions: mock.NewEmotionStore(),
		sessions: mock.NewSessionStore(),
		embedder: &testEmbedder{embeddings: map[string][]float32{}},
		analyzer: &testAnalyzer{},
	}

	ledger := attendance.NewLedger(env.records)
	resolver := attendance.NewResolver(env.students, 0.6, 5)
	clock := attendance.NewClock(time.FixedZone("UTC-5", -5*3600), 15*time.Minute)
	verifier := attendance.NewVerifier(env.embedder, resolver, clock, env.sessions, ledger, nil)
	aggregator := attendance.NewEmotionAggregator(env.emotions, testPositive, testNegative)

	env.verify = NewVerifyHandler(verifier, ledger)
	env.emotionsAPI = NewEmotionsHandler(env.analyzer, env.emotions, aggregator, nil)
	env.studentsAPI = NewStudentsHandler(env.students, env.embedder, nil)
	env.classes = NewClassesHandler(env.sessions)
	env.stats = NewStatsHandler(env.students, env.records, env.emotions, env.sessions, aggregator)
	return env
}

// enroll seeds a student and registers a matching image with the embedder.
func (env *testEnv) enroll(studentID, name string, axis int) []byte {
	embedding := make([]float32, 8)
	embedding[axis] = 1
	env.students.Add(database.Student{
		StudentID: studentID,
		Name:      name,
		Embedding: embedding,
		IsActive:  true,
	})
	image := []byte("photo-" + studentID)
	env.embedder.embeddings[string(image)] = embedding
	return image
}

// jsonRequest creates a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a request with a file upload and form fields.
func multipartRequest(t *testing.T, path string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("failed to write image data: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
