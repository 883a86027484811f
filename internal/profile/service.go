package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/apperr"
)

// Repository is the persistence contract for profile updates.
type Repository interface {
	GetStudent(ctx context.Context, id int64) (*Student, error)
	GetMentor(ctx context.Context, id int64) (*Mentor, error)
	SaveStudent(ctx context.Context, s Student) error
	SaveMentor(ctx context.Context, m Mentor) error
}

// Service applies partial profile updates.
type Service struct {
	repo   Repository
	logger *zap.Logger

	// OnStudentChanged, when set, runs after a student profile is saved.
	// The API uses it to drop cached internship matches.
	OnStudentChanged func(ctx context.Context, studentID int64)
}

// NewService creates a profile service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger.With(zap.String("component", "profile"))}
}

// UpdateStudent applies patch to the student with the given ID.
func (s *Service) UpdateStudent(ctx context.Context, id int64, patch StudentPatch) (*Student, error) {
	if patch.Empty() {
		return nil, apperr.Validation("patch has no fields", nil)
	}
	student, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(student)
	if err := s.repo.SaveStudent(ctx, *student); err != nil {
		return nil, fmt.Errorf("profile: save student %d: %w", id, err)
	}
	if s.OnStudentChanged != nil {
		s.OnStudentChanged(ctx, id)
	}
	s.logger.Info("student profile updated", zap.Int64("student_id", id))
	return student, nil
}

// UpdateMentor applies patch to the mentor with the given ID.
func (s *Service) UpdateMentor(ctx context.Context, id int64, patch MentorPatch) (*Mentor, error) {
	if patch.Empty() {
		return nil, apperr.Validation("patch has no fields", nil)
	}
	mentor, err := s.repo.GetMentor(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(mentor)
	if err := s.repo.SaveMentor(ctx, *mentor); err != nil {
		return nil, fmt.Errorf("profile: save mentor %d: %w", id, err)
	}
	s.logger.Info("mentor profile updated", zap.Int64("mentor_id", id))
	return mentor, nil
}
