package matching

import (
	"encoding/json"
	"fmt"

	"github.com/uniportal/internship-portal/internal/messaging"
)

// SuggestionEvent is published on match.suggested.<student_id> for every
// match a run creates.
type SuggestionEvent struct {
	MatchID    string  `json:"match_id"`
	StudentID  int64   `json:"student_id"`
	MentorID   int64   `json:"mentor_id"`
	MatchScore float64 `json:"match_score"`
}

// NATSPublisher announces run results and suggestions over NATS.
type NATSPublisher struct {
	nats *messaging.NATSClient
}

// NewNATSPublisher creates a publisher on top of an open NATS client.
func NewNATSPublisher(nats *messaging.NATSClient) *NATSPublisher {
	return &NATSPublisher{nats: nats}
}

// RunCompleted publishes the summary of a committed run.
func (p *NATSPublisher) RunCompleted(result RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("matching: marshal run result: %w", err)
	}
	if err := p.nats.PublishRunCompleted(data); err != nil {
		return fmt.Errorf("matching: publish run %s: %w", result.RunID, err)
	}
	return nil
}

// Suggested publishes a newly created suggestion to the student's subject.
func (p *NATSPublisher) Suggested(m Match) error {
	data, err := json.Marshal(NewSuggestionEvent(m))
	if err != nil {
		return fmt.Errorf("matching: marshal suggestion: %w", err)
	}
	if err := p.nats.PublishSuggested(m.StudentID, data); err != nil {
		return fmt.Errorf("matching: publish suggestion for student %d: %w", m.StudentID, err)
	}
	return nil
}

// NewSuggestionEvent builds the wire event for a match.
func NewSuggestionEvent(m Match) SuggestionEvent {
	return SuggestionEvent{
		MatchID:    m.ID.String(),
		StudentID:  m.StudentID,
		MentorID:   m.MentorID,
		MatchScore: m.MatchScore,
	}
}
