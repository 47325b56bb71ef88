package database

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// hnswMaxNeighbors is the M parameter of the HNSW graph.
	hnswMaxNeighbors = 16
	// hnswOversample compensates for approximate recall when the caller
	// filters by threshold after the search.
	hnswOversample = 4
)

// StudentIndex is an in-memory HNSW index over active student embeddings.
// It serves the same queries as the pgvector search but without a database
// round trip; the repository falls back to SQL when the index is absent.
type StudentIndex struct {
	mu          sync.RWMutex
	graph       *hnsw.Graph[string]
	idToStudent map[string]*Student
}

// NewStudentIndex creates a new empty student index.
func NewStudentIndex() *StudentIndex {
	return &StudentIndex{
		idToStudent: make(map[string]*Student),
	}
}

// Build replaces the index contents with the given students. Students
// without embeddings or marked inactive are skipped.
func (x *StudentIndex) Build(students []Student) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.idToStudent = make(map[string]*Student, len(students))
	if len(students) == 0 {
		x.graph = nil
		return
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for i := range students {
		s := &students[i]
		if !s.IsActive || len(s.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(s.StudentID, s.Embedding))
		x.idToStudent[s.StudentID] = s
	}

	x.graph = g
}

// Add inserts or replaces a single student in the index.
func (x *StudentIndex) Add(s *Student) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil || !s.IsActive || len(s.Embedding) == 0 {
		return
	}
	x.graph.Add(hnsw.MakeNode(s.StudentID, s.Embedding))
	x.idToStudent[s.StudentID] = s
}

// Remove deletes a student from the index (used on deactivation).
func (x *StudentIndex) Remove(studentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		return
	}
	x.graph.Delete(studentID)
	delete(x.idToStudent, studentID)
}

// Count returns the number of indexed students.
func (x *StudentIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.idToStudent)
}

// Search finds up to limit students with embedding distance strictly below
// threshold, ordered ascending by distance. Distances are recomputed
// exactly from the stored embeddings rather than taken from the graph.
func (x *StudentIndex) Search(query []float32, threshold float64, limit int) []StudentMatch {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || limit <= 0 {
		return nil
	}

	neighbors := x.graph.Search(query, limit*hnswOversample)

	matches := make([]StudentMatch, 0, limit)
	for _, n := range neighbors {
		s, ok := x.idToStudent[n.Key]
		if !ok {
			continue
		}
		d := CosineDistance(query, n.Value)
		if d >= threshold {
			continue
		}
		matches = append(matches, StudentMatch{Student: *s, Distance: d})
	}
	// Graph order is approximate; re-sort on the exact distances.
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
