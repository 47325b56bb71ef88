package attendance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/smart-classroom/presence/internal/database"
	"github.com/smart-classroom/presence/internal/database/mock"
)

var (
	testPositive = []string{"happy", "surprise", "neutral", "attentive"}
	testNegative = []string{"sad", "angry", "fear", "disgust", "bored", "sleepy"}
)

func seedEmotions(store *mock.EmotionStore, classID string, emotions []string, confidence float64) {
	for i, emotion := range emotions {
		store.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         classID,
			DominantEmotion: emotion,
			Confidence:      confidence,
			DetectedAt:      time.Date(2026, 3, 10, 10, 0, i, 0, time.UTC),
		})
	}
}

func TestSummarizeEngagementScore(t *testing.T) {
	store := mock.NewEmotionStore()
	// 7 of 10 events in the positive set.
	seedEmotions(store, "CLASS-1", []string{
		"happy", "happy", "neutral", "neutral", "surprise", "happy", "neutral",
		"sad", "bored", "angry",
	}, 0.9)
	agg := NewEmotionAggregator(store, testPositive, testNegative)

	summary, err := agg.Summarize(context.Background(), "CLASS-1", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalEvents != 10 {
		t.Errorf("expected 10 events, got %d", summary.TotalEvents)
	}
	if math.Abs(summary.EngagementScore-70.0) > 1e-9 {
		t.Errorf("expected engagement score 70.0, got %f", summary.EngagementScore)
	}
	if summary.Distribution["happy"] != 3 || summary.Distribution["neutral"] != 3 {
		t.Errorf("unexpected distribution: %v", summary.Distribution)
	}
	if math.Abs(summary.Percentages["happy"]-30.0) > 1e-9 {
		t.Errorf("expected happy at 30%%, got %f", summary.Percentages["happy"])
	}
	if math.Abs(summary.AverageConfidence-0.9) > 1e-9 {
		t.Errorf("expected average confidence 0.9, got %f", summary.AverageConfidence)
	}
	// The remaining 3 of 10 events are all in the negative set.
	if math.Abs(summary.NegativeScore-30.0) > 1e-9 {
		t.Errorf("expected negative score 30.0, got %f", summary.NegativeScore)
	}
}

func TestSummarizeEmptyWindow(t *testing.T) {
	agg := NewEmotionAggregator(mock.NewEmotionStore(), testPositive, testNegative)

	summary, err := agg.Summarize(context.Background(), "CLASS-EMPTY", nil, nil)
	if err != nil {
		t.Fatalf("empty class must not be an error: %v", err)
	}
	if summary.TotalEvents != 0 || summary.EngagementScore != 0 || summary.AverageConfidence != 0 {
		t.Errorf("expected zero-valued summary, got %+v", summary)
	}
	if summary.Distribution == nil || summary.Percentages == nil {
		t.Error("maps must be initialized even when empty")
	}
}

func TestSummarizeWindowFiltering(t *testing.T) {
	store := mock.NewEmotionStore()
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i, emotion := range []string{"happy", "sad", "happy", "bored"} {
		store.Add(database.EmotionEvent{
			StudentID:       "S001",
			ClassID:         "CLASS-1",
			DominantEmotion: emotion,
			Confidence:      0.8,
			DetectedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	agg := NewEmotionAggregator(store, testPositive, testNegative)

	// Window covering only the middle two events.
	start := base.Add(time.Minute)
	end := base.Add(2 * time.Minute)
	summary, err := agg.Summarize(context.Background(), "CLASS-1", &start, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalEvents != 2 {
		t.Fatalf("expected 2 events in window, got %d", summary.TotalEvents)
	}
	if math.Abs(summary.EngagementScore-50.0) > 1e-9 {
		t.Errorf("expected engagement score 50.0, got %f", summary.EngagementScore)
	}
}

func TestSummarizeIgnoresOtherClasses(t *testing.T) {
	store := mock.NewEmotionStore()
	seedEmotions(store, "CLASS-1", []string{"happy"}, 0.9)
	seedEmotions(store, "CLASS-2", []string{"sad", "sad", "sad"}, 0.9)
	agg := NewEmotionAggregator(store, testPositive, testNegative)

	summary, err := agg.Summarize(context.Background(), "CLASS-1", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalEvents != 1 {
		t.Errorf("events from other classes leaked in: %+v", summary)
	}
	if math.Abs(summary.EngagementScore-100.0) > 1e-9 {
		t.Errorf("expected engagement score 100.0, got %f", summary.EngagementScore)
	}
}

func TestSummarizeUnclassifiedEmotionCountsTowardTotal(t *testing.T) {
	store := mock.NewEmotionStore()
	// "confused" is in neither configured set.
	seedEmotions(store, "CLASS-1", []string{"happy", "confused"}, 0.7)
	agg := NewEmotionAggregator(store, testPositive, testNegative)

	summary, err := agg.Summarize(context.Background(), "CLASS-1", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalEvents != 2 {
		t.Fatalf("expected 2 events, got %d", summary.TotalEvents)
	}
	if math.Abs(summary.EngagementScore-50.0) > 1e-9 {
		t.Errorf("unclassified emotions dilute engagement: want 50.0, got %f", summary.EngagementScore)
	}
	if summary.NegativeScore != 0 {
		t.Errorf("unclassified emotions must not count as negative, got %f", summary.NegativeScore)
	}
}

func TestSummarizeStoreError(t *testing.T) {
	store := mock.NewEmotionStore()
	store.ListError = errors.New("connection reset")
	agg := NewEmotionAggregator(store, testPositive, testNegative)

	if _, err := agg.Summarize(context.Background(), "CLASS-1", nil, nil); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestIsPositive(t *testing.T) {
	agg := NewEmotionAggregator(mock.NewEmotionStore(), testPositive, testNegative)

	if !agg.IsPositive("happy") {
		t.Error("happy must be positive")
	}
	if agg.IsPositive("sad") {
		t.Error("sad must not be positive")
	}
	if agg.IsPositive("confused") {
		t.Error("unknown emotions must not be positive")
	}
}
