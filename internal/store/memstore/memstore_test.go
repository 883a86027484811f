package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
)

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := New()
	s.PutStudent(profile.Student{ID: 1})
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx matching.Tx) error {
		require.NoError(t, tx.InsertMatch(ctx, matching.Match{ID: uuid.New(), StudentID: 1, MentorID: 2}))
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Empty(t, s.Matches())
}

func TestWithinTx_UniquePair(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx matching.Tx) error {
		if err := tx.InsertMatch(ctx, matching.Match{ID: uuid.New(), StudentID: 1, MentorID: 2}); err != nil {
			return err
		}
		return tx.InsertMatch(ctx, matching.Match{ID: uuid.New(), StudentID: 1, MentorID: 2})
	})

	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Empty(t, s.Matches())
}

func TestWithinTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(matching.Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestUpdateMatchStatus(t *testing.T) {
	s := New()
	id := uuid.New()
	s.PutMatch(matching.Match{ID: id, StudentID: 1, MentorID: 1, Status: matching.StatusSuggested})
	ctx := context.Background()

	require.NoError(t, s.UpdateMatchStatus(ctx, id, matching.StatusSuggested, matching.StatusRejected, "not now"))
	err := s.UpdateMatchStatus(ctx, id, matching.StatusSuggested, matching.StatusRequested, "")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	err = s.UpdateMatchStatus(ctx, uuid.New(), matching.StatusSuggested, matching.StatusRequested, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestUpdateMatchScore_OnlySuggested(t *testing.T) {
	s := New()
	ctx := context.Background()
	suggested := matching.Match{ID: uuid.New(), StudentID: 1, MentorID: 2, MatchScore: 40, Status: matching.StatusSuggested}
	requested := matching.Match{ID: uuid.New(), StudentID: 1, MentorID: 3, MatchScore: 40, Status: matching.StatusRequested}
	s.PutMatch(suggested)
	s.PutMatch(requested)

	err := s.WithinTx(ctx, func(tx matching.Tx) error {
		ok, err := tx.UpdateMatchScore(ctx, suggested.ID, 60)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.UpdateMatchScore(ctx, requested.ID, 60)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.UpdateMatchScore(ctx, uuid.New(), 60)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetMatch(ctx, requested.ID)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got.MatchScore, 1e-9)
	got, err = s.GetMatch(ctx, suggested.ID)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, got.MatchScore, 1e-9)
}

func TestSaveStudent_Unknown(t *testing.T) {
	s := New()
	err := s.SaveStudent(context.Background(), profile.Student{ID: 3})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
