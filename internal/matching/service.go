// Package matching is the matching engine: it scores students against
// mentors and internships and reconciles mentor–student match suggestions
// against the match store.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/metrics"
	"github.com/uniportal/internship-portal/internal/profile"
)

// ErrRunInProgress is returned when another reconciliation run holds the run
// lock.
var ErrRunInProgress = apperr.Conflict("matching run already in progress")

// Store is the persistence contract of the matching engine.
type Store interface {
	// WithinTx runs fn in a single transaction. fn's error rolls everything
	// back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetStudent(ctx context.Context, id int64) (*profile.Student, error)
	ListActiveInternships(ctx context.Context) ([]profile.Internship, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*Match, error)
	ListMatchesByStudent(ctx context.Context, studentID int64) ([]Match, error)
	ListMatchesByMentor(ctx context.Context, mentorID int64) ([]Match, error)
	// UpdateMatchStatus moves a match from one status to another. It fails
	// with a conflict when the stored status is no longer from.
	UpdateMatchStatus(ctx context.Context, id uuid.UUID, from, to Status, notes string) error
}

// Tx is the unit of work a reconciliation run executes in.
type Tx interface {
	// LockMatching serializes reconciliation writers for the rest of the
	// transaction.
	LockMatching(ctx context.Context) error
	ListStudents(ctx context.Context) ([]profile.Student, error)
	ListMentors(ctx context.Context) ([]profile.Mentor, error)
	ListMatches(ctx context.Context) ([]Match, error)
	InsertMatch(ctx context.Context, m Match) error
	// UpdateMatchScore refreshes a suggested match. It reports false when the
	// match has left suggested since it was read.
	UpdateMatchScore(ctx context.Context, id uuid.UUID, score float64) (bool, error)
}

// Locker guards against overlapping runs across processes.
type Locker interface {
	Acquire(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

// InternshipCache caches matched internships per student.
type InternshipCache interface {
	Get(ctx context.Context, studentID int64) ([]ScoredInternship, bool, error)
	Set(ctx context.Context, studentID int64, items []ScoredInternship) error
	Invalidate(ctx context.Context, studentID int64) error
}

// Publisher announces run results and new suggestions.
type Publisher interface {
	RunCompleted(result RunResult) error
	Suggested(m Match) error
}

// Deps wires a Service. Only Store is required.
type Deps struct {
	Store     Store
	Locker    Locker
	Cache     InternshipCache
	Publisher Publisher
	Logger    *zap.Logger
}

// RunResult summarizes one reconciliation run. It is meant for logs and
// observability, callers only need the completion signal.
type RunResult struct {
	RunID          uuid.UUID `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
	Evaluated      int       `json:"evaluated"`
	Created        int       `json:"created"`
	Updated        int       `json:"updated"`
	Unchanged      int       `json:"unchanged"`
	BelowThreshold int       `json:"below_threshold"`
	HumanOwned     int       `json:"human_owned"`
}

// ScoredInternship is an internship that cleared the suggestion threshold for
// a student.
type ScoredInternship struct {
	Internship profile.Internship `json:"internship"`
	Score      float64            `json:"score"`
	Breakdown  Breakdown          `json:"breakdown"`
}

// Service runs reconciliation and answers matching queries.
type Service struct {
	store      Store
	locker     Locker
	cache      InternshipCache
	publisher  Publisher
	reconciler Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a matching service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      deps.Store,
		locker:     deps.Locker,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		reconciler: NewReconciler(),
		logger:     logger.With(zap.String("component", "matcher")),
		now:        time.Now,
	}
}

// RunMatching reconciles match suggestions for every student × mentor pair.
// Reads and writes happen in one transaction: on any failure nothing is
// committed.
func (s *Service) RunMatching(ctx context.Context) (*RunResult, error) {
	runID := uuid.New()
	log := s.logger.With(zap.String("run_id", runID.String()))

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, runID.String())
		switch {
		case err != nil:
			// The transaction-level lock still serializes writers.
			log.Warn("run lock unavailable, continuing", zap.Error(err))
		case !ok:
			metrics.MatchingRuns.WithLabelValues("locked").Inc()
			return nil, ErrRunInProgress
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), runID.String()); err != nil {
					log.Warn("release run lock", zap.Error(err))
				}
			}()
		}
	}

	started := s.now()
	var plan Plan
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.LockMatching(ctx); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		students, err := tx.ListStudents(ctx)
		if err != nil {
			return fmt.Errorf("list students: %w", err)
		}
		mentors, err := tx.ListMentors(ctx)
		if err != nil {
			return fmt.Errorf("list mentors: %w", err)
		}
		existing, err := tx.ListMatches(ctx)
		if err != nil {
			return fmt.Errorf("list matches: %w", err)
		}

		plan = s.reconciler.Reconcile(students, mentors, existing)

		for _, m := range plan.Created {
			if err := tx.InsertMatch(ctx, m); err != nil {
				return fmt.Errorf("insert match student=%d mentor=%d: %w", m.StudentID, m.MentorID, err)
			}
		}
		applied := make([]ScoreUpdate, 0, len(plan.Updated))
		for _, u := range plan.Updated {
			ok, err := tx.UpdateMatchScore(ctx, u.MatchID, u.NewScore)
			if err != nil {
				return fmt.Errorf("update match %s: %w", u.MatchID, err)
			}
			if !ok {
				// A transition committed after the snapshot; the match is human-owned now.
				log.Debug("match left suggested during run", zap.Stringer("match_id", u.MatchID))
				plan.HumanOwned++
				continue
			}
			applied = append(applied, u)
		}
		plan.Updated = applied
		return nil
	})
	elapsed := s.now().Sub(started)
	metrics.MatchingRunDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.MatchingRuns.WithLabelValues("failed").Inc()
		log.Error("matching run failed", zap.Error(err))
		if apperr.Is(err, apperr.CodeConflict) {
			return nil, fmt.Errorf("matching: run %s: %w", runID, err)
		}
		return nil, apperr.New(apperr.CodeInternal, fmt.Sprintf("matching: run %s failed", runID), err)
	}

	result := RunResult{
		RunID:          runID,
		StartedAt:      started.UTC(),
		DurationMs:     elapsed.Milliseconds(),
		Evaluated:      plan.Evaluated,
		Created:        len(plan.Created),
		Updated:        len(plan.Updated),
		Unchanged:      plan.Unchanged,
		BelowThreshold: plan.BelowBar,
		HumanOwned:     plan.HumanOwned,
	}

	metrics.MatchingRuns.WithLabelValues("ok").Inc()
	metrics.PairsEvaluated.Add(float64(result.Evaluated))
	metrics.MatchesCreated.Add(float64(result.Created))
	metrics.MatchesUpdated.Add(float64(result.Updated))

	log.Info("matching run completed",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("human_owned", result.HumanOwned),
		zap.Duration("elapsed", elapsed),
	)

	s.announce(log, result, plan.Created)
	return &result, nil
}

// announce publishes after commit. Failures are logged, the run itself has
// already succeeded.
func (s *Service) announce(log *zap.Logger, result RunResult, created []Match) {
	if s.publisher == nil {
		return
	}
	for _, m := range created {
		if err := s.publisher.Suggested(m); err != nil {
			log.Warn("publish suggestion", zap.Int64("student_id", m.StudentID), zap.Error(err))
		}
	}
	if err := s.publisher.RunCompleted(result); err != nil {
		log.Warn("publish run result", zap.Error(err))
	}
}

// MatchedInternshipsForStudent returns the active internships scoring at or
// above the suggestion threshold for the student, best first. It does not
// write to the match store. The student is looked up on every call so a
// cached ranking never outlives its student.
func (s *Service) MatchedInternshipsForStudent(ctx context.Context, studentID int64) ([]ScoredInternship, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			s.InvalidateStudent(ctx, studentID)
		}
		return nil, err
	}

	if s.cache != nil {
		items, ok, err := s.cache.Get(ctx, studentID)
		if err != nil {
			s.logger.Warn("internship cache read", zap.Int64("student_id", studentID), zap.Error(err))
		} else if ok {
			metrics.InternshipQueries.WithLabelValues("hit").Inc()
			return items, nil
		}
	}

	internships, err := s.store.ListActiveInternships(ctx)
	if err != nil {
		return nil, fmt.Errorf("matching: list active internships: %w", err)
	}

	items := RankInternships(*student, internships)

	if s.cache != nil {
		metrics.InternshipQueries.WithLabelValues("miss").Inc()
		if err := s.cache.Set(ctx, studentID, items); err != nil {
			s.logger.Warn("internship cache write", zap.Int64("student_id", studentID), zap.Error(err))
		}
	} else {
		metrics.InternshipQueries.WithLabelValues("bypass").Inc()
	}
	return items, nil
}

// InvalidateStudent drops cached query results for a student, e.g. after a
// profile update.
func (s *Service) InvalidateStudent(ctx context.Context, studentID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, studentID); err != nil {
		s.logger.Warn("internship cache invalidate", zap.Int64("student_id", studentID), zap.Error(err))
	}
}

// RankInternships scores every active internship for the student and keeps
// those at or above the threshold, ordered by score then ID.
func RankInternships(student profile.Student, internships []profile.Internship) []ScoredInternship {
	items := make([]ScoredInternship, 0, len(internships))
	for _, in := range internships {
		if !in.IsActive() {
			continue
		}
		b := ExplainInternshipScore(student, in)
		if b.Score < SuggestionThreshold {
			continue
		}
		items = append(items, ScoredInternship{Internship: in, Score: b.Score, Breakdown: b})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Internship.ID < items[j].Internship.ID
	})
	return items
}

// MatchesForStudent lists the stored matches of a student.
func (s *Service) MatchesForStudent(ctx context.Context, studentID int64) ([]Match, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.store.ListMatchesByStudent(ctx, studentID)
}

// MatchesForMentor lists the stored matches of a mentor.
func (s *Service) MatchesForMentor(ctx context.Context, mentorID int64) ([]Match, error) {
	return s.store.ListMatchesByMentor(ctx, mentorID)
}

// TransitionMatch applies a human-driven status change. notes, when non-nil,
// replaces the stored notes.
func (s *Service) TransitionMatch(ctx context.Context, id uuid.UUID, to Status, notes *string) (*Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(m.Status, to) {
		return nil, apperr.Validation(
			fmt.Sprintf("cannot move match from %s to %s", m.Status, to),
			map[string]string{"status": "transition not allowed"},
		)
	}

	newNotes := m.Notes
	if notes != nil {
		if err := ValidateNotes(*notes); err != nil {
			return nil, err
		}
		newNotes = *notes
	}
	if err := s.store.UpdateMatchStatus(ctx, id, m.Status, to, newNotes); err != nil {
		return nil, err
	}

	metrics.MatchTransitions.WithLabelValues(string(to)).Inc()
	s.logger.Info("match status changed",
		zap.String("match_id", id.String()),
		zap.String("from", string(m.Status)),
		zap.String("to", string(to)),
	)

	m.Status = to
	m.Notes = newNotes
	return m, nil
}
