package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// EmotionAggregator computes emotion distributions and the engagement
// score over recorded emotion events. Same reporting shape as the ledger,
// but over an append-only stream instead of deduplicated records.
type EmotionAggregator struct {
	Store    database.EmotionStore
	positive map[string]bool
	negative map[string]bool
}

// NewEmotionAggregator creates an aggregator with the configured positive
// and negative emotion sets. Emotions in neither set count toward totals
// but not toward the engagement score.
func NewEmotionAggregator(store database.EmotionStore, positive, negative []string) *EmotionAggregator {
	return &EmotionAggregator{
		Store:    store,
		positive: toSet(positive),
		negative: toSet(negative),
	}
}

func toSet(emotions []string) map[string]bool {
	set := make(map[string]bool, len(emotions))
	for _, e := range emotions {
		set[e] = true
	}
	return set
}

// IsPositive reports whether an emotion belongs to the positive set.
func (a *EmotionAggregator) IsPositive(emotion string) bool {
	return a.positive[emotion]
}

// Summarize aggregates emotion events for a class, optionally bounded by
// an inclusive time window. An empty window yields a zero-valued summary,
// not an error.
func (a *EmotionAggregator) Summarize(ctx context.Context, classID string, start, end *time.Time) (*EmotionSummary, error) {
	events, err := a.Store.ListByClass(ctx, classID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list emotion events: %w", err)
	}

	summary := &EmotionSummary{
		ClassID:      classID,
		TotalEvents:  len(events),
		Distribution: make(map[string]int),
		Percentages:  make(map[string]float64),
	}
	if len(events) == 0 {
		return summary, nil
	}

	var confidenceSum float64
	var positiveCount, negativeCount int
	for _, ev := range events {
		summary.Distribution[ev.DominantEmotion]++
		confidenceSum += ev.Confidence
		if a.positive[ev.DominantEmotion] {
			positiveCount++
		}
		if a.negative[ev.DominantEmotion] {
			negativeCount++
		}
	}

	total := float64(len(events))
	for emotion, count := range summary.Distribution {
		summary.Percentages[emotion] = float64(count) / total * 100
	}
	summary.AverageConfidence = confidenceSum / total
	summary.EngagementScore = float64(positiveCount) / total * 100
	summary.NegativeScore = float64(negativeCount) / total * 100

	return summary, nil
}
