package matching

import (
	"time"

	"github.com/google/uuid"

	"github.com/uniportal/internship-portal/internal/profile"
)

// ScoreUpdate is a score refresh for a still-suggested match.
type ScoreUpdate struct {
	MatchID   uuid.UUID `json:"match_id"`
	StudentID int64     `json:"student_id"`
	MentorID  int64     `json:"mentor_id"`
	OldScore  float64   `json:"old_score"`
	NewScore  float64   `json:"new_score"`
}

// Plan is the set of mutations one reconciliation pass produces.
type Plan struct {
	Created []Match
	Updated []ScoreUpdate

	Evaluated  int // pairs scored
	BelowBar   int // pairs under the suggestion threshold
	Unchanged  int // suggested matches whose score did not move
	HumanOwned int // matches past suggested, left alone
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Created) == 0 && len(p.Updated) == 0
}

// Reconciler decides which match records to create or refresh for a full
// student × mentor snapshot. The zero value is not usable; use NewReconciler.
type Reconciler struct {
	Score     func(profile.Student, profile.Mentor) float64
	Threshold float64
	Now       func() time.Time
	NewID     func() uuid.UUID
}

// NewReconciler returns a reconciler using MentorScore and
// SuggestionThreshold.
func NewReconciler() Reconciler {
	return Reconciler{
		Score:     MentorScore,
		Threshold: SuggestionThreshold,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.New,
	}
}

// Reconcile walks every (student, mentor) pair:
//
//   - score below the threshold: skipped, existing records untouched
//   - no existing match: created as suggested
//   - existing suggested match: score refreshed when it changed, up or down
//   - existing match past suggested: left alone, a human has acted on it
//
// With unchanged inputs a second pass over the applied result yields an
// empty plan.
func (r Reconciler) Reconcile(students []profile.Student, mentors []profile.Mentor, existing []Match) Plan {
	index := make(map[pairKey]Match, len(existing))
	for _, m := range existing {
		index[m.key()] = m
	}

	var plan Plan
	now := r.Now()

	for _, s := range students {
		for _, m := range mentors {
			plan.Evaluated++
			score := r.Score(s, m)
			if score < r.Threshold {
				plan.BelowBar++
				continue
			}

			current, ok := index[pairKey{studentID: s.ID, mentorID: m.ID}]
			switch {
			case !ok:
				plan.Created = append(plan.Created, Match{
					ID:         r.NewID(),
					StudentID:  s.ID,
					MentorID:   m.ID,
					MatchScore: score,
					Status:     StatusSuggested,
					MatchedAt:  now,
				})
			case current.Status != StatusSuggested:
				plan.HumanOwned++
			case current.MatchScore == score:
				plan.Unchanged++
			default:
				plan.Updated = append(plan.Updated, ScoreUpdate{
					MatchID:   current.ID,
					StudentID: s.ID,
					MentorID:  m.ID,
					OldScore:  current.MatchScore,
					NewScore:  score,
				})
			}
		}
	}
	return plan
}
