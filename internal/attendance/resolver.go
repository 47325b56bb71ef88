package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/smart-classroom/presence/internal/database"
)

// Resolver turns ranked similarity candidates into a single best-match
// decision. It is a pure decision function aside from the index query.
type Resolver struct {
	Index database.StudentMatcher
	// Threshold is the maximum embedding distance for a match; candidates
	// at exactly the threshold are excluded by the index (strict <).
	Threshold float64
	// MaxCandidates caps how many ranked candidates are requested.
	MaxCandidates int
}

// NewResolver creates a resolver over the given similarity index.
func NewResolver(index database.StudentMatcher, threshold float64, maxCandidates int) *Resolver {
	if maxCandidates <= 0 {
		maxCandidates = 1
	}
	return &Resolver{Index: index, Threshold: threshold, MaxCandidates: maxCandidates}
}

// Resolve queries the index and selects the closest candidate. Returns
// (nil, nil) when no candidate falls under the threshold; an unrecognized
// face is a defined negative outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, query []float32) (*Match, error) {
	candidates, err := r.Index.FindByEmbedding(ctx, query, r.Threshold, r.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// The index contract is ascending order, but don't trust it: the
	// smallest distance must win regardless of backing implementation.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	best := candidates[0]
	return &Match{
		Student:    best.Student,
		Distance:   best.Distance,
		Confidence: confidenceFromDistance(best.Distance),
	}, nil
}

// confidenceFromDistance derives a match confidence from an embedding
// distance, clamped to [0, 1]. The legacy formula left 1-distance
// unclamped, which goes negative for distances above 1.
func confidenceFromDistance(distance float64) float64 {
	c := 1.0 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
