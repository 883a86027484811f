package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
)

// matchingLockKey is the advisory lock key that serializes reconciliation
// transactions.
const matchingLockKey int64 = 0x6d61746368 // "match"

const (
	studentColumns    = `id, first_name, last_name, major, skills, interests, updated_at`
	mentorColumns     = `id, first_name, last_name, job_title, company, expertise_areas, skills, interests, updated_at`
	internshipColumns = `id, title, company_name, description, requirements, skills_required, status`
	matchColumns      = `id, student_id, mentor_id, match_score, status, matched_at, notes`
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store implements the matching store and the profile repository on top of
// PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn in a read-committed transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(tx matching.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(&txStore{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *Store) GetStudent(ctx context.Context, id int64) (*profile.Student, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("student %d not found", id))
		}
		return nil, apperr.New(apperr.CodeInternal, "failed to load student", err)
	}
	return &st, nil
}

func (s *Store) GetMentor(ctx context.Context, id int64) (*profile.Mentor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mentorColumns+` FROM mentors WHERE id = $1`, id)
	m, err := scanMentor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("mentor %d not found", id))
		}
		return nil, apperr.New(apperr.CodeInternal, "failed to load mentor", err)
	}
	return &m, nil
}

// SaveStudent writes the profile fields of an existing student.
func (s *Store) SaveStudent(ctx context.Context, st profile.Student) error {
	res, err := s.db.ExecContext(ctx, `UPDATE students
		SET first_name = $2, last_name = $3, major = $4, skills = $5, interests = $6, updated_at = $7
		WHERE id = $1`,
		st.ID, st.FirstName, st.LastName, st.Major, st.Skills.String(), st.Interests.String(), time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.CodeInternal, "failed to update student", err)
	}
	return expectOne(res, fmt.Sprintf("student %d not found", st.ID))
}

// SaveMentor writes the profile fields of an existing mentor.
func (s *Store) SaveMentor(ctx context.Context, m profile.Mentor) error {
	res, err := s.db.ExecContext(ctx, `UPDATE mentors
		SET first_name = $2, last_name = $3, job_title = $4, company = $5,
		    expertise_areas = $6, skills = $7, interests = $8, updated_at = $9
		WHERE id = $1`,
		m.ID, m.FirstName, m.LastName, m.JobTitle, m.Company,
		m.ExpertiseAreas.String(), m.Skills.String(), m.Interests.String(), time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.CodeInternal, "failed to update mentor", err)
	}
	return expectOne(res, fmt.Sprintf("mentor %d not found", m.ID))
}

func (s *Store) ListActiveInternships(ctx context.Context) ([]profile.Internship, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+internshipColumns+` FROM internships WHERE status = $1 ORDER BY id`,
		profile.InternshipActive)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to list internships", err)
	}
	defer rows.Close()
	var items []profile.Internship
	for rows.Next() {
		in, err := scanInternship(rows)
		if err != nil {
			return nil, apperr.New(apperr.CodeInternal, "failed to scan internship", err)
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (*matching.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM mentor_student_matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("match %s not found", id))
		}
		return nil, apperr.New(apperr.CodeInternal, "failed to load match", err)
	}
	return &m, nil
}

func (s *Store) ListMatchesByStudent(ctx context.Context, studentID int64) ([]matching.Match, error) {
	return listMatches(ctx, s.db, `WHERE student_id = $1 ORDER BY match_score DESC, mentor_id`, studentID)
}

func (s *Store) ListMatchesByMentor(ctx context.Context, mentorID int64) ([]matching.Match, error) {
	return listMatches(ctx, s.db, `WHERE mentor_id = $1 ORDER BY match_score DESC, student_id`, mentorID)
}

// UpdateMatchStatus moves a match from one status to another. The status
// guard in the WHERE clause turns a concurrent change into a conflict.
func (s *Store) UpdateMatchStatus(ctx context.Context, id uuid.UUID, from, to matching.Status, notes string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE mentor_student_matches SET status = $3, notes = $4
		WHERE id = $1 AND status = $2`, id, from, to, notes)
	if err != nil {
		return apperr.New(apperr.CodeInternal, "failed to update match status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.New(apperr.CodeInternal, "failed to update match status", err)
	}
	if n == 0 {
		return apperr.Conflict(fmt.Sprintf("match %s is no longer %s", id, from))
	}
	return nil
}

// txStore is the reconciliation unit of work.
type txStore struct {
	q querier
}

func (t *txStore) LockMatching(ctx context.Context) error {
	_, err := t.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, matchingLockKey)
	return err
}

func (t *txStore) ListStudents(ctx context.Context) ([]profile.Student, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []profile.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	return items, rows.Err()
}

func (t *txStore) ListMentors(ctx context.Context) ([]profile.Mentor, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+mentorColumns+` FROM mentors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []profile.Mentor
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (t *txStore) ListMatches(ctx context.Context) ([]matching.Match, error) {
	return listMatches(ctx, t.q, `ORDER BY student_id, mentor_id`)
}

// InsertMatch inserts a new suggestion. A row that already exists for the
// pair is reported as a conflict and aborts the run.
func (t *txStore) InsertMatch(ctx context.Context, m matching.Match) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO mentor_student_matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, mentor_id) DO NOTHING`,
		m.ID, m.StudentID, m.MentorID, m.MatchScore, m.Status, m.MatchedAt, m.Notes)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflict(fmt.Sprintf("match for student %d and mentor %d already exists", m.StudentID, m.MentorID))
	}
	return nil
}

// UpdateMatchScore refreshes the score of a match that is still suggested.
// Zero rows means a transition committed after the run read the match.
func (t *txStore) UpdateMatchScore(ctx context.Context, id uuid.UUID, score float64) (bool, error) {
	res, err := t.q.ExecContext(ctx, `UPDATE mentor_student_matches SET match_score = $2
		WHERE id = $1 AND status = $3`, id, score, matching.StatusSuggested)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func listMatches(ctx context.Context, q querier, tail string, args ...any) ([]matching.Match, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+matchColumns+` FROM mentor_student_matches `+tail, args...)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to list matches", err)
	}
	defer rows.Close()
	var items []matching.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, apperr.New(apperr.CodeInternal, "failed to scan match", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func expectOne(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(notFound)
	}
	return nil
}

func scanStudent(row scanner) (profile.Student, error) {
	var (
		st                profile.Student
		skills, interests string
	)
	err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Major, &skills, &interests, &st.UpdatedAt)
	st.Skills = profile.Tokenize(skills)
	st.Interests = profile.Tokenize(interests)
	return st, err
}

func scanMentor(row scanner) (profile.Mentor, error) {
	var (
		m                            profile.Mentor
		expertise, skills, interests string
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.JobTitle, &m.Company, &expertise, &skills, &interests, &m.UpdatedAt)
	m.ExpertiseAreas = profile.Tokenize(expertise)
	m.Skills = profile.Tokenize(skills)
	m.Interests = profile.Tokenize(interests)
	return m, err
}

func scanInternship(row scanner) (profile.Internship, error) {
	var (
		in     profile.Internship
		skills string
	)
	err := row.Scan(&in.ID, &in.Title, &in.CompanyName, &in.Description, &in.Requirements, &skills, &in.Status)
	in.SkillsRequired = profile.Tokenize(skills)
	return in, err
}

func scanMatch(row scanner) (matching.Match, error) {
	var m matching.Match
	err := row.Scan(&m.ID, &m.StudentID, &m.MentorID, &m.MatchScore, &m.Status, &m.MatchedAt, &m.Notes)
	return m, err
}

// CreateStudent inserts a student and returns it with its assigned ID.
func (s *Store) CreateStudent(ctx context.Context, st profile.Student) (*profile.Student, error) {
	st.UpdatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `INSERT INTO students (first_name, last_name, major, skills, interests, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		st.FirstName, st.LastName, st.Major, st.Skills.String(), st.Interests.String(), st.UpdatedAt).Scan(&st.ID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to create student", err)
	}
	return &st, nil
}

// CreateMentor inserts a mentor and returns it with its assigned ID.
func (s *Store) CreateMentor(ctx context.Context, m profile.Mentor) (*profile.Mentor, error) {
	m.UpdatedAt = time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `INSERT INTO mentors (first_name, last_name, job_title, company, expertise_areas, skills, interests, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		m.FirstName, m.LastName, m.JobTitle, m.Company,
		m.ExpertiseAreas.String(), m.Skills.String(), m.Interests.String(), m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to create mentor", err)
	}
	return &m, nil
}

// CreateInternship inserts an internship and returns it with its assigned ID.
func (s *Store) CreateInternship(ctx context.Context, in profile.Internship) (*profile.Internship, error) {
	if in.Status == "" {
		in.Status = profile.InternshipPending
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO internships (title, company_name, description, requirements, skills_required, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		in.Title, in.CompanyName, in.Description, in.Requirements, in.SkillsRequired.String(), in.Status).Scan(&in.ID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to create internship", err)
	}
	return &in, nil
}
