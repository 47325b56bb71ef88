package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/smart-classroom/presence/internal/database"
)

// uniqueViolation is the PostgreSQL error code for unique constraint conflicts.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint conflict.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// StudentRepository provides PostgreSQL-backed student storage with an
// optional in-memory HNSW index for similarity search.
type StudentRepository struct {
	pool *Pool

	hnswMu      sync.RWMutex
	hnswIndex   *database.StudentIndex
	hnswEnabled bool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// EnableHNSW loads all active students and builds the in-memory index.
// Similarity queries fall back to pgvector when the index is disabled.
func (r *StudentRepository) EnableHNSW(ctx context.Context) error {
	students, err := r.List(ctx, true)
	if err != nil {
		return fmt.Errorf("load students for index: %w", err)
	}

	idx := database.NewStudentIndex()
	idx.Build(students)

	r.hnswMu.Lock()
	r.hnswIndex = idx
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// HNSWCount returns the number of students in the in-memory index.
func (r *StudentRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// Create enrolls a new student.
func (r *StudentRepository) Create(ctx context.Context, s *database.Student) (*database.Student, error) {
	query := `
		INSERT INTO students (student_id, name, email, face_embedding, is_active)
		VALUES ($1, $2, NULLIF($3, ''), $4, TRUE)
		RETURNING id, enrolled_at
	`

	stored := *s
	stored.IsActive = true
	err := r.pool.QueryRow(ctx, query, s.StudentID, s.Name, s.Email, pgvector.NewVector(s.Embedding)).
		Scan(&stored.ID, &stored.EnrolledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, database.ErrDuplicateStudent
		}
		return nil, fmt.Errorf("insert student: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(&stored)
	}
	r.hnswMu.RUnlock()

	return &stored, nil
}

// Get retrieves a student by student_id, returns nil if not found.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.Student, error) {
	query := `
		SELECT id, student_id, name, COALESCE(email, ''), face_embedding, enrolled_at, is_active
		FROM students
		WHERE student_id = $1
	`

	s, err := scanStudent(r.pool.QueryRow(ctx, query, studentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// List returns students ordered by enrollment time.
func (r *StudentRepository) List(ctx context.Context, activeOnly bool) ([]database.Student, error) {
	query := `
		SELECT id, student_id, name, COALESCE(email, ''), face_embedding, enrolled_at, is_active
		FROM students
	`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY enrolled_at"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// SearchByName returns students matching a normalized name substring.
// Comparison is case and diacritic insensitive (requires the unaccent
// extension on the database side; input is normalized in Go to match).
func (r *StudentRepository) SearchByName(ctx context.Context, name string) ([]database.Student, error) {
	normalized := database.NormalizeName(name)

	query := `
		SELECT id, student_id, name, COALESCE(email, ''), face_embedding, enrolled_at, is_active
		FROM students
		WHERE LOWER(unaccent(name)) LIKE '%' || $1 || '%'
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("search students by name: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Deactivate soft-deletes a student. Returns false if no such student exists.
func (r *StudentRepository) Deactivate(ctx context.Context, studentID string) (bool, error) {
	result, err := r.pool.Exec(ctx, "UPDATE students SET is_active = FALSE WHERE student_id = $1", studentID)
	if err != nil {
		return false, fmt.Errorf("deactivate student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if affected > 0 {
		r.hnswMu.RLock()
		if r.hnswEnabled && r.hnswIndex != nil {
			r.hnswIndex.Remove(studentID)
		}
		r.hnswMu.RUnlock()
	}

	return affected > 0, nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// FindByEmbedding finds active students by embedding similarity, ordered
// ascending by cosine distance, strictly below threshold. Uses the HNSW
// index when enabled, pgvector otherwise.
func (r *StudentRepository) FindByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]database.StudentMatch, error) {
	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		idx := r.hnswIndex
		r.hnswMu.RUnlock()
		return idx.Search(embedding, threshold, limit), nil
	}
	r.hnswMu.RUnlock()

	query := `
		SELECT id, student_id, name, COALESCE(email, ''), face_embedding, enrolled_at, is_active,
		       face_embedding <=> $1 AS distance
		FROM students
		WHERE is_active AND face_embedding <=> $1 < $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("query students by embedding: %w", err)
	}
	defer rows.Close()

	var matches []database.StudentMatch
	for rows.Next() {
		var s database.Student
		var vec pgvector.Vector
		var distance float64
		err := rows.Scan(&s.ID, &s.StudentID, &s.Name, &s.Email, &vec, &s.EnrolledAt, &s.IsActive, &distance)
		if err != nil {
			return nil, fmt.Errorf("scan student match: %w", err)
		}
		s.Embedding = vec.Slice()
		matches = append(matches, database.StudentMatch{Student: s, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student matches: %w", err)
	}
	return matches, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (*database.Student, error) {
	var s database.Student
	var vec pgvector.Vector
	err := row.Scan(&s.ID, &s.StudentID, &s.Name, &s.Email, &vec, &s.EnrolledAt, &s.IsActive)
	if err != nil {
		return nil, err
	}
	s.Embedding = vec.Slice()
	return &s, nil
}

func scanStudents(rows *sql.Rows) ([]database.Student, error) {
	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}
