package matching_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
	"github.com/uniportal/internship-portal/internal/store/memstore"
)

type fakeLocker struct {
	held    bool
	err     error
	release int
}

func (l *fakeLocker) Acquire(context.Context, string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *fakeLocker) Release(context.Context, string) error {
	l.release++
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	runs      []matching.RunResult
	suggested []matching.Match
}

func (p *recordingPublisher) RunCompleted(r matching.RunResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, r)
	return nil
}

func (p *recordingPublisher) Suggested(m matching.Match) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suggested = append(p.suggested, m)
	return nil
}

type mapCache struct {
	items map[int64][]matching.ScoredInternship
	gets  int
}

func (c *mapCache) Get(_ context.Context, id int64) ([]matching.ScoredInternship, bool, error) {
	c.gets++
	items, ok := c.items[id]
	return items, ok, nil
}

func (c *mapCache) Set(_ context.Context, id int64, items []matching.ScoredInternship) error {
	c.items[id] = items
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id int64) error {
	delete(c.items, id)
	return nil
}

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	st.PutStudent(profile.Student{ID: 1, Major: "Computer Science", Skills: profile.Tokenize("python, sql"), Interests: profile.Tokenize("ai")})
	st.PutStudent(profile.Student{ID: 2, Major: "History", Skills: profile.Tokenize("latin"), Interests: profile.Tokenize("museums")})
	st.PutMentor(profile.Mentor{ID: 10, ExpertiseAreas: profile.Tokenize("Computer Science"), Skills: profile.Tokenize("python, java"), Interests: profile.Tokenize("ai, hiking")})
	st.PutMentor(profile.Mentor{ID: 11, ExpertiseAreas: profile.Tokenize("history"), Skills: profile.Tokenize("latin, greek"), Interests: profile.Tokenize("museums")})
	st.PutInternship(profile.Internship{ID: 100, SkillsRequired: profile.Tokenize("python"), Status: profile.InternshipActive})
	st.PutInternship(profile.Internship{ID: 101, SkillsRequired: profile.Tokenize("python"), Status: profile.InternshipPending})
	return st
}

func TestRunMatching_CreatesThenIsIdempotent(t *testing.T) {
	store := seed(t)
	pub := &recordingPublisher{}
	svc := matching.NewService(matching.Deps{Store: store, Publisher: pub, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	first, err := svc.RunMatching(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Evaluated)
	assert.Equal(t, 2, first.Created)
	assert.Len(t, pub.suggested, 2)

	matches := store.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].StudentID)
	assert.Equal(t, int64(10), matches[0].MentorID)
	assert.InDelta(t, 66.67, matches[0].MatchScore, 0.01)
	assert.Equal(t, matching.StatusSuggested, matches[0].Status)

	second, err := svc.RunMatching(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, matches, store.Matches())
	assert.Len(t, pub.runs, 2)
}

func TestRunMatching_AllOrNothing(t *testing.T) {
	store := seed(t)
	inserts := 0
	store.InsertHook = func(matching.Match) error {
		inserts++
		if inserts == 2 {
			return errors.New("disk full")
		}
		return nil
	}
	pub := &recordingPublisher{}
	svc := matching.NewService(matching.Deps{Store: store, Publisher: pub})

	_, err := svc.RunMatching(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, store.Matches())
	assert.Empty(t, pub.suggested)
	assert.Empty(t, pub.runs)
}

func TestRunMatching_LockHeld(t *testing.T) {
	svc := matching.NewService(matching.Deps{Store: seed(t), Locker: &fakeLocker{held: true}})

	_, err := svc.RunMatching(context.Background())

	assert.ErrorIs(t, err, matching.ErrRunInProgress)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestRunMatching_LockErrorFailsOpen(t *testing.T) {
	store := seed(t)
	locker := &fakeLocker{err: errors.New("connection refused")}
	svc := matching.NewService(matching.Deps{Store: store, Locker: locker})

	result, err := svc.RunMatching(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, locker.release)
}

func TestRunMatching_ReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	svc := matching.NewService(matching.Deps{Store: seed(t), Locker: locker})

	_, err := svc.RunMatching(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, locker.release)
}

func TestRunMatching_ConcurrentRunsNeverDuplicate(t *testing.T) {
	store := seed(t)
	svc := matching.NewService(matching.Deps{Store: store})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RunMatching(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, store.Matches(), 2)
}

func TestMatchedInternshipsForStudent(t *testing.T) {
	store := seed(t)
	cache := &mapCache{items: map[int64][]matching.ScoredInternship{}}
	svc := matching.NewService(matching.Deps{Store: store, Cache: cache})
	ctx := context.Background()

	items, err := svc.MatchedInternshipsForStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(100), items[0].Internship.ID)
	assert.Contains(t, cache.items, int64(1))

	// The query is read-only.
	assert.Empty(t, store.Matches())

	svc.InvalidateStudent(ctx, 1)
	assert.NotContains(t, cache.items, int64(1))
}

func TestMatchedInternshipsForStudent_NotFound(t *testing.T) {
	svc := matching.NewService(matching.Deps{Store: seed(t)})

	_, err := svc.MatchedInternshipsForStudent(context.Background(), 404)

	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestMatchedInternshipsForStudent_CachedButGone(t *testing.T) {
	cache := &mapCache{items: map[int64][]matching.ScoredInternship{
		404: {{Internship: profile.Internship{ID: 100, Title: "Backend intern"}, Score: 80}},
	}}
	svc := matching.NewService(matching.Deps{Store: seed(t), Cache: cache})

	_, err := svc.MatchedInternshipsForStudent(context.Background(), 404)

	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NotContains(t, cache.items, int64(404))
}

func TestTransitionMatch(t *testing.T) {
	store := seed(t)
	svc := matching.NewService(matching.Deps{Store: store})
	ctx := context.Background()
	_, err := svc.RunMatching(ctx)
	require.NoError(t, err)
	id := store.Matches()[0].ID

	notes := "looking forward to it"
	m, err := svc.TransitionMatch(ctx, id, matching.StatusRequested, &notes)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusRequested, m.Status)
	assert.Equal(t, notes, m.Notes)

	_, err = svc.TransitionMatch(ctx, id, matching.StatusCompleted, nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.TransitionMatch(ctx, uuid.New(), matching.StatusRequested, nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRunMatching_LeavesHumanOwnedMatches(t *testing.T) {
	store := seed(t)
	svc := matching.NewService(matching.Deps{Store: store})
	ctx := context.Background()
	_, err := svc.RunMatching(ctx)
	require.NoError(t, err)

	id := store.Matches()[0].ID
	_, err = svc.TransitionMatch(ctx, id, matching.StatusRequested, nil)
	require.NoError(t, err)

	// A better profile would raise the score, but the match is no longer
	// suggested.
	store.PutStudent(profile.Student{ID: 1, Major: "Computer Science", Skills: profile.Tokenize("python, java"), Interests: profile.Tokenize("ai")})

	result, err := svc.RunMatching(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.HumanOwned)

	got, err := store.GetMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusRequested, got.Status)
	assert.InDelta(t, 66.67, got.MatchScore, 0.01)
}

func TestMatchesForStudent(t *testing.T) {
	store := seed(t)
	svc := matching.NewService(matching.Deps{Store: store})
	ctx := context.Background()
	_, err := svc.RunMatching(ctx)
	require.NoError(t, err)

	got, err := svc.MatchesForStudent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].MentorID)

	_, err = svc.MatchesForStudent(ctx, 99)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	byMentor, err := svc.MatchesForMentor(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, byMentor, 1)
}
