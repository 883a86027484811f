package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a mentor–student match.
type Status string

const (
	StatusSuggested Status = "suggested"
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// transitions lists the human-driven moves out of each state. Creation as
// suggested is done only by the reconciler.
var transitions = map[Status][]Status{
	StatusSuggested: {StatusRequested, StatusRejected},
	StatusRequested: {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusActive},
	StatusActive:    {StatusCompleted},
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusSuggested, StatusRequested, StatusAccepted, StatusRejected, StatusActive, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("matching: unknown status %q", s)
}

// CanTransition reports whether a match may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Match is a persisted mentor–student match. The (StudentID, MentorID) pair
// is unique.
type Match struct {
	ID         uuid.UUID `json:"id"`
	StudentID  int64     `json:"student_id"`
	MentorID   int64     `json:"mentor_id"`
	MatchScore float64   `json:"match_score"`
	Status     Status    `json:"status"`
	MatchedAt  time.Time `json:"matched_at"`
	Notes      string    `json:"notes"`
}

type pairKey struct {
	studentID int64
	mentorID  int64
}

func (m Match) key() pairKey {
	return pairKey{studentID: m.StudentID, mentorID: m.MentorID}
}
