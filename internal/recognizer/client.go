// Package recognizer is the HTTP client for the face recognition server:
// face detection and embedding at /embed/face, emotion analysis at
// /analyze/emotion.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/config"
)

const defaultRecognizerURL = "http://localhost:8000"

// Client talks to the recognition server. It implements
// attendance.Embedder.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a recognition client from configuration.
func NewClient(cfg config.RecognizerConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultRecognizerURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     cfg.Dim,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// faceDetection is a single detected face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response from the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// EmotionReading is the result of analyzing one face's emotional state.
type EmotionReading struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Confidence      float64            `json:"confidence"`
	Scores          map[string]float64 `json:"emotion_scores"`
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// EmbedFace detects faces in the image and returns the embedding of the
// most confident detection. Returns attendance.ErrFaceNotDetected when the
// server finds no face.
func (c *Client) EmbedFace(ctx context.Context, imageData []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if faceResp.FacesCount == 0 || len(faceResp.Faces) == 0 {
		return nil, attendance.ErrFaceNotDetected
	}

	best := faceResp.Faces[0]
	for _, face := range faceResp.Faces[1:] {
		if face.DetScore > best.DetScore {
			best = face
		}
	}

	if len(best.Embedding) == 0 {
		return nil, attendance.ErrFaceNotDetected
	}
	if c.dim > 0 && len(best.Embedding) != c.dim {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(best.Embedding), c.dim)
	}

	return best.Embedding, nil
}

// AnalyzeEmotion classifies the emotional state of the face in the image.
// Returns attendance.ErrFaceNotDetected when no face is found.
func (c *Client) AnalyzeEmotion(ctx context.Context, imageData []byte) (*EmotionReading, error) {
	body, err := c.postMultipartImage(ctx, "/analyze/emotion", imageData)
	if err != nil {
		return nil, err
	}

	var reading EmotionReading
	if err := json.Unmarshal(body, &reading); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if reading.DominantEmotion == "" {
		return nil, attendance.ErrFaceNotDetected
	}

	return &reading, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
