package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
)

func newTestCache(t *testing.T) (*Internships, *redis.Client) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	c := NewInternships(client, time.Minute)
	c.prefix = "test:internships:"
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, "test:internships:*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})
	return c, client
}

func TestInternships_SetGetInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	items := []matching.ScoredInternship{{
		Internship: profile.Internship{ID: 5, Title: "Backend intern", SkillsRequired: profile.Tokenize("go, sql"), Status: profile.InternshipActive},
		Score:      71.43,
	}}
	require.NoError(t, c.Set(ctx, 1, items))

	got, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].Internship.ID)
	assert.Equal(t, []string{"go", "sql"}, got[0].Internship.SkillsRequired.Sorted())
	assert.Equal(t, 71.43, got[0].Score)

	require.NoError(t, c.Invalidate(ctx, 1))
	_, ok, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInternships_EmptyListIsAHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 2, nil))

	got, ok, err := c.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestInternships_CorruptEntryIsAMiss(t *testing.T) {
	c, client := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, c.key(3), "{not json", time.Minute).Err())

	_, ok, err := c.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
