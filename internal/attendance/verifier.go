package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// Embedder maps a face image to its embedding vector. Returns
// ErrFaceNotDetected when the image contains no usable face.
type Embedder interface {
	EmbedFace(ctx context.Context, image []byte) ([]float32, error)
}

// Verifier composes image validation, embedding, identity resolution,
// timeliness classification, and the ledger into the verification workflow.
type Verifier struct {
	Embedder Embedder
	Resolver *Resolver
	Clock    *Clock
	Sessions database.SessionStore
	Ledger   *Ledger

	// Validate pre-checks the raw image before embedding. Optional.
	Validate func(image []byte) error

	// now is a test hook; defaults to time.Now.
	now func() time.Time
}

// NewVerifier wires a verifier from its collaborators.
func NewVerifier(embedder Embedder, resolver *Resolver, clock *Clock, sessions database.SessionStore, ledger *Ledger, validate func([]byte) error) *Verifier {
	return &Verifier{
		Embedder: embedder,
		Resolver: resolver,
		Clock:    clock,
		Sessions: sessions,
		Ledger:   ledger,
		Validate: validate,
		now:      time.Now,
	}
}

// Verify runs the full verification workflow for one image. Expected
// negatives (invalid image, no face, no match) come back as Result values
// with Success=false and a message; only persistence failures return an
// error. Fresh matches, idempotent repeats, and not-recognized are the
// three normal outcome shapes.
func (v *Verifier) Verify(ctx context.Context, image []byte, classID string) (*Result, error) {
	if v.Validate != nil {
		if err := v.Validate(image); err != nil {
			return &Result{Success: false, Message: err.Error()}, nil
		}
	}

	embedding, err := v.Embedder.EmbedFace(ctx, image)
	if err != nil {
		if errors.Is(err, ErrFaceNotDetected) || errors.Is(err, ErrInvalidImage) {
			return &Result{Success: false, Message: err.Error()}, nil
		}
		// Embedder outage or timeout is recoverable for this item.
		return &Result{Success: false, Message: fmt.Sprintf("verification error: %v", err)}, nil
	}

	match, err := v.Resolver.Resolve(ctx, embedding)
	if err != nil {
		return &Result{Success: false, Message: fmt.Sprintf("verification error: %v", err)}, nil
	}
	if match == nil {
		return &Result{Success: false, Message: "student not recognized"}, nil
	}

	status := v.classify(ctx, classID)

	confidence := match.Confidence
	distance := match.Distance
	rec, alreadyExisted, err := v.Ledger.MarkAttendance(ctx, match.Student.StudentID, classID, status, &confidence, &distance)
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	result := &Result{
		Success:           true,
		AlreadyRegistered: alreadyExisted,
		StudentID:         match.Student.StudentID,
		StudentName:       match.Student.Name,
		Status:            Status(rec.Status),
		Confidence:        match.Confidence,
		MatchDistance:     match.Distance,
		Timestamp:         rec.RecordedAt,
	}
	if alreadyExisted {
		result.Message = fmt.Sprintf("attendance for %s already registered in this class", match.Student.Name)
	}
	return result, nil
}

// classify looks up the scheduled start and classifies timeliness. A failed
// or empty lookup degrades to present; timeliness is a soft signal.
func (v *Verifier) classify(ctx context.Context, classID string) Status {
	start, err := v.Sessions.ScheduledStart(ctx, classID)
	if err != nil {
		log.Printf("scheduled start lookup failed for %s: %v", classID, err)
		return StatusPresent
	}
	return v.Clock.Classify(start, v.now())
}

// BatchVerify processes each image independently and sequentially. A
// failure on one image counts toward unidentified and never aborts the
// remaining items.
func (v *Verifier) BatchVerify(ctx context.Context, images [][]byte, classID string) (*BatchResult, error) {
	started := v.now()

	result := &BatchResult{
		ClassID:     classID,
		TotalImages: len(images),
		Identified:  []Result{},
	}

	for i, image := range images {
		verification, err := v.Verify(ctx, image, classID)
		if err != nil {
			log.Printf("batch verify: image %d failed: %v", i, err)
			result.UnidentifiedCount++
			continue
		}
		if !verification.Success {
			result.UnidentifiedCount++
			continue
		}
		result.Identified = append(result.Identified, *verification)
	}

	result.ProcessingSeconds = v.now().Sub(started).Seconds()
	return result, nil
}
