// Package mock provides in-memory implementations of the database store
// interfaces for testing. The attendance mock enforces the same
// (student_id, class_id) uniqueness guarantee as the PostgreSQL constraint.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smart-classroom/presence/internal/database"
)

// StudentStore is an in-memory implementation of database.StudentStore.
type StudentStore struct {
	mu       sync.RWMutex
	students map[string]*database.Student
	nextID   int64

	// Error injection
	CreateError error
	GetError    error
	ListError   error
	FindError   error
}

// NewStudentStore creates an empty in-memory student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]*database.Student)}
}

// Add seeds a student without duplicate checks (test setup helper).
func (m *StudentStore) Add(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	if s.EnrolledAt.IsZero() {
		s.EnrolledAt = time.Now()
	}
	m.students[s.StudentID] = &s
}

func (m *StudentStore) Create(ctx context.Context, s *database.Student) (*database.Student, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.students[s.StudentID]; exists {
		return nil, database.ErrDuplicateStudent
	}
	m.nextID++
	stored := *s
	stored.ID = m.nextID
	stored.EnrolledAt = time.Now()
	stored.IsActive = true
	m.students[s.StudentID] = &stored
	out := stored
	return &out, nil
}

func (m *StudentStore) Get(ctx context.Context, studentID string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *StudentStore) List(ctx context.Context, activeOnly bool) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var students []database.Student
	for _, s := range m.students {
		if activeOnly && !s.IsActive {
			continue
		}
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (m *StudentStore) SearchByName(ctx context.Context, name string) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	normalized := database.NormalizeName(name)
	var students []database.Student
	for _, s := range m.students {
		if strings.Contains(database.NormalizeName(s.Name), normalized) {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (m *StudentStore) Deactivate(ctx context.Context, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (m *StudentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// FindByEmbedding performs a brute-force cosine scan over active students,
// mirroring the pgvector query semantics (ascending order, strict <).
func (m *StudentStore) FindByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]database.StudentMatch, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []database.StudentMatch
	for _, s := range m.students {
		if !s.IsActive || len(s.Embedding) == 0 {
			continue
		}
		d := database.CosineDistance(embedding, s.Embedding)
		if d < threshold {
			matches = append(matches, database.StudentMatch{Student: *s, Distance: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AttendanceStore is an in-memory implementation of database.AttendanceStore.
type AttendanceStore struct {
	mu      sync.Mutex
	records map[string]*database.AttendanceRecord
	nextID  int64

	// Error injection
	InsertError error
	GetError    error
	ListError   error

	// Now overrides the insert timestamp when set (test determinism).
	Now func() time.Time
}

// NewAttendanceStore creates an empty in-memory attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string]*database.AttendanceRecord)}
}

func attendanceKey(studentID, classID string) string {
	return studentID + "\x00" + classID
}

func (m *AttendanceStore) Insert(ctx context.Context, rec *database.AttendanceRecord) (*database.AttendanceRecord, error) {
	if m.InsertError != nil {
		return nil, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attendanceKey(rec.StudentID, rec.ClassID)
	if _, exists := m.records[key]; exists {
		return nil, database.ErrDuplicateAttendance
	}

	m.nextID++
	stored := *rec
	stored.ID = m.nextID
	if m.Now != nil {
		stored.RecordedAt = m.Now()
	} else {
		stored.RecordedAt = time.Now()
	}
	m.records[key] = &stored
	out := stored
	return &out, nil
}

func (m *AttendanceStore) Get(ctx context.Context, studentID, classID string) (*database.AttendanceRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[attendanceKey(studentID, classID)]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (m *AttendanceStore) ListByClass(ctx context.Context, classID string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []database.AttendanceRecord
	for _, rec := range m.records {
		if rec.ClassID == classID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *AttendanceStore) ListAll(ctx context.Context) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []database.AttendanceRecord
	for _, rec := range m.records {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// EmotionStore is an in-memory implementation of database.EmotionStore.
type EmotionStore struct {
	mu     sync.Mutex
	events []database.EmotionEvent
	nextID int64

	// Error injection
	InsertError error
	ListError   error
}

// NewEmotionStore creates an empty in-memory emotion store.
func NewEmotionStore() *EmotionStore {
	return &EmotionStore{}
}

// Add seeds an event directly (test setup helper).
func (m *EmotionStore) Add(ev database.EmotionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = time.Now()
	}
	m.events = append(m.events, ev)
}

func (m *EmotionStore) Insert(ctx context.Context, ev *database.EmotionEvent) (*database.EmotionEvent, error) {
	if m.InsertError != nil {
		return nil, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *ev
	stored.ID = m.nextID
	stored.DetectedAt = time.Now()
	m.events = append(m.events, stored)
	out := stored
	return &out, nil
}

func (m *EmotionStore) ListByClass(ctx context.Context, classID string, start, end *time.Time) ([]database.EmotionEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []database.EmotionEvent
	for _, ev := range m.events {
		if ev.ClassID != classID {
			continue
		}
		if start != nil && ev.DetectedAt.Before(*start) {
			continue
		}
		if end != nil && ev.DetectedAt.After(*end) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (m *EmotionStore) ListByStudent(ctx context.Context, studentID, classID string, limit int) ([]database.EmotionEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []database.EmotionEvent
	for _, ev := range m.events {
		if ev.StudentID != studentID || ev.ClassID != classID {
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (m *EmotionStore) ListAll(ctx context.Context) ([]database.EmotionEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.EmotionEvent(nil), m.events...), nil
}

// SessionStore is an in-memory implementation of database.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*database.ClassSession
	nextID   int64

	// Error injection
	CreateError error
	GetError    error
	UpdateError error
	StartError  error
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*database.ClassSession)}
}

// Add seeds a session directly (test setup helper).
func (m *SessionStore) Add(s database.ClassSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.sessions[s.ClassID] = &s
}

func (m *SessionStore) Create(ctx context.Context, s *database.ClassSession) (*database.ClassSession, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *s
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	m.sessions[s.ClassID] = &stored
	out := stored
	return &out, nil
}

func (m *SessionStore) Get(ctx context.Context, classID string) (*database.ClassSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[classID]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *SessionStore) Update(ctx context.Context, classID string, upd *database.SessionUpdate) (*database.ClassSession, error) {
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[classID]
	if !ok {
		return nil, nil
	}
	if upd.ClassName != nil {
		s.ClassName = *upd.ClassName
	}
	if upd.Instructor != nil {
		s.Instructor = *upd.Instructor
	}
	if upd.Room != nil {
		s.Room = *upd.Room
	}
	if upd.StartTime != nil {
		s.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		end := *upd.EndTime
		s.EndTime = &end
	}
	out := *s
	return &out, nil
}

func (m *SessionStore) List(ctx context.Context) ([]database.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []database.ClassSession
	for _, s := range m.sessions {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartTime.After(sessions[j].StartTime) })
	return sessions, nil
}

func (m *SessionStore) Delete(ctx context.Context, classID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[classID]; !ok {
		return false, nil
	}
	delete(m.sessions, classID)
	return true, nil
}

func (m *SessionStore) ScheduledStart(ctx context.Context, classID string) (*time.Time, error) {
	if m.StartError != nil {
		return nil, m.StartError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[classID]
	if !ok {
		return nil, nil
	}
	start := s.StartTime
	return &start, nil
}
