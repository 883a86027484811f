// Package memstore is an in-memory store for the matching engine and the
// profile service. It backs tests and the "memory" database driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
)

type state struct {
	students    map[int64]profile.Student
	mentors     map[int64]profile.Mentor
	internships map[int64]profile.Internship
	matches     map[uuid.UUID]matching.Match
}

func newState() *state {
	return &state{
		students:    make(map[int64]profile.Student),
		mentors:     make(map[int64]profile.Mentor),
		internships: make(map[int64]profile.Internship),
		matches:     make(map[uuid.UUID]matching.Match),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.mentors {
		c.mentors[k] = v
	}
	for k, v := range s.internships {
		c.internships[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	return c
}

// Store keeps everything in maps guarded by one mutex. A transaction works on
// a copy that replaces the live state on commit.
type Store struct {
	mu   sync.Mutex
	data *state

	// InsertHook, when set, is called before every match insert inside a
	// transaction. A non-nil error aborts the transaction.
	InsertHook func(m matching.Match) error
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// PutStudent inserts or replaces a student.
func (s *Store) PutStudent(st profile.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.students[st.ID] = st
}

// PutMentor inserts or replaces a mentor.
func (s *Store) PutMentor(m profile.Mentor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.mentors[m.ID] = m
}

// PutInternship inserts or replaces an internship.
func (s *Store) PutInternship(in profile.Internship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.internships[in.ID] = in
}

// PutMatch inserts or replaces a match without checking pair uniqueness.
func (s *Store) PutMatch(m matching.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.matches[m.ID] = m
}

// Matches returns every stored match ordered by (student, mentor).
func (s *Store) Matches() []matching.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedMatches(s.data.matches, nil)
}

// WithinTx runs fn against a private copy of the data. The copy becomes the
// live state only when fn returns nil. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(tx matching.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(&tx{data: work, hook: s.InsertHook}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) GetStudent(_ context.Context, id int64) (*profile.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.students[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("student %d not found", id))
	}
	return &st, nil
}

func (s *Store) GetMentor(_ context.Context, id int64) (*profile.Mentor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.mentors[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("mentor %d not found", id))
	}
	return &m, nil
}

func (s *Store) SaveStudent(_ context.Context, st profile.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.students[st.ID]; !ok {
		return apperr.NotFound(fmt.Sprintf("student %d not found", st.ID))
	}
	s.data.students[st.ID] = st
	return nil
}

func (s *Store) SaveMentor(_ context.Context, m profile.Mentor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.mentors[m.ID]; !ok {
		return apperr.NotFound(fmt.Sprintf("mentor %d not found", m.ID))
	}
	s.data.mentors[m.ID] = m
	return nil
}

func (s *Store) ListActiveInternships(_ context.Context) ([]profile.Internship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]profile.Internship, 0, len(s.data.internships))
	for _, in := range s.data.internships {
		if in.IsActive() {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetMatch(_ context.Context, id uuid.UUID) (*matching.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.matches[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("match %s not found", id))
	}
	return &m, nil
}

func (s *Store) ListMatchesByStudent(_ context.Context, studentID int64) ([]matching.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedMatches(s.data.matches, func(m matching.Match) bool { return m.StudentID == studentID }), nil
}

func (s *Store) ListMatchesByMentor(_ context.Context, mentorID int64) ([]matching.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedMatches(s.data.matches, func(m matching.Match) bool { return m.MentorID == mentorID }), nil
}

func (s *Store) UpdateMatchStatus(_ context.Context, id uuid.UUID, from, to matching.Status, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.matches[id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("match %s not found", id))
	}
	if m.Status != from {
		return apperr.Conflict(fmt.Sprintf("match %s is %s, not %s", id, m.Status, from))
	}
	m.Status = to
	m.Notes = notes
	s.data.matches[id] = m
	return nil
}

type tx struct {
	data *state
	hook func(matching.Match) error
}

// LockMatching is a no-op: WithinTx already holds the store mutex.
func (t *tx) LockMatching(context.Context) error { return nil }

func (t *tx) ListStudents(context.Context) ([]profile.Student, error) {
	out := make([]profile.Student, 0, len(t.data.students))
	for _, st := range t.data.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListMentors(context.Context) ([]profile.Mentor, error) {
	out := make([]profile.Mentor, 0, len(t.data.mentors))
	for _, m := range t.data.mentors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListMatches(context.Context) ([]matching.Match, error) {
	return sortedMatches(t.data.matches, nil), nil
}

func (t *tx) InsertMatch(_ context.Context, m matching.Match) error {
	if t.hook != nil {
		if err := t.hook(m); err != nil {
			return err
		}
	}
	for _, existing := range t.data.matches {
		if existing.StudentID == m.StudentID && existing.MentorID == m.MentorID {
			return apperr.Conflict(fmt.Sprintf("match for student %d and mentor %d already exists", m.StudentID, m.MentorID))
		}
	}
	t.data.matches[m.ID] = m
	return nil
}

func (t *tx) UpdateMatchScore(_ context.Context, id uuid.UUID, score float64) (bool, error) {
	m, ok := t.data.matches[id]
	if !ok || m.Status != matching.StatusSuggested {
		return false, nil
	}
	m.MatchScore = score
	t.data.matches[id] = m
	return true, nil
}

func sortedMatches(all map[uuid.UUID]matching.Match, keep func(matching.Match) bool) []matching.Match {
	out := make([]matching.Match, 0, len(all))
	for _, m := range all {
		if keep == nil || keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].MentorID < out[j].MentorID
	})
	return out
}
